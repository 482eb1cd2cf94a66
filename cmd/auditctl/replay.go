package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/keyxmakerx/audittrail/internal/app"
	"github.com/keyxmakerx/audittrail/internal/database"
	"github.com/keyxmakerx/audittrail/internal/lifecycle"
	"github.com/keyxmakerx/audittrail/internal/plugins/audit"
)

// printRecorder writes records as JSON lines instead of storing them.
type printRecorder struct {
	enc *json.Encoder
}

func (p *printRecorder) Record(_ context.Context, rec *audit.LogRecord) error {
	return p.enc.Encode(rec)
}

func newReplayCmd(c *cli) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Run captured notifications through the audit pipeline",
		Long: `replay reads a JSON notification or array of notifications, as posted to
/api/v1/notifications, and handles them in one scope. Use "-" for stdin.
With --dry-run the resulting records are printed instead of stored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			batch, err := lifecycle.DecodeNotifications(body)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			var rdb *redis.Client
			if c.cfg.UsesRedis() {
				if rdb, err = database.NewRedis(ctx, c.cfg.Redis); err != nil {
					return err
				}
				defer rdb.Close()
			}

			var recorder lifecycle.Recorder
			if dryRun {
				recorder = &printRecorder{enc: json.NewEncoder(cmd.OutOrStdout())}
			}
			pipeline, err := app.NewPipeline(c.cfg, db, rdb, recorder)
			if err != nil {
				return err
			}

			coord := pipeline.Coordinator
			ctx = coord.Scope(ctx, uuid.NewString())
			records, failed := 0, 0
			for _, n := range batch {
				rec, err := coord.Process(ctx, n)
				if err != nil {
					failed++
					slog.Warn("notification failed",
						slog.String("event", string(n.Event)),
						slog.String("kind", n.Kind),
						slog.String("id", n.ID),
						slog.Any("error", err),
					)
					continue
				}
				if rec != nil {
					records++
				}
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "replayed %d notifications: %d records, %d failed\n", len(batch), records, failed)
			if failed > 0 {
				return fmt.Errorf("%d notifications failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print records instead of storing them")
	return cmd
}

// readInput reads path, or stdin when path is "-".
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
