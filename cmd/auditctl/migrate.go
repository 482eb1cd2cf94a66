package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keyxmakerx/audittrail/internal/database"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending log store migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			version, dirty, err := database.MigrationVersion(db, c.cfg.Database.Driver, c.cfg.Database.MigrationsPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)", version, c.cfg.Database.Driver)
			if dirty {
				fmt.Fprint(cmd.OutOrStdout(), " DIRTY")
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}
