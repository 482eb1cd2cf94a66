package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/keyxmakerx/audittrail/internal/config"
	"github.com/keyxmakerx/audittrail/internal/database"
)

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	verbose    bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "auditctl",
		Short: "Administer the audit trail log store",
		Long: `auditctl works directly against the audit log store configured for the
server. It reads the same environment variables and AUDITTRAIL_CONFIG file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if c.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

			if c.configPath != "" {
				if err := os.Setenv("AUDITTRAIL_CONFIG", c.configPath); err != nil {
					return err
				}
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			c.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "YAML config file (overrides AUDITTRAIL_CONFIG)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(
		newMigrateCmd(c),
		newQueryCmd(c),
		newPurgeCmd(c),
		newReplayCmd(c),
	)
	return root
}

// openStore connects to the log store and brings its schema up to date.
func (c *cli) openStore(ctx context.Context) (*sql.DB, error) {
	db, err := database.Open(ctx, c.cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db, c.cfg.Database.Driver, c.cfg.Database.MigrationsPath); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
