package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/keyxmakerx/audittrail/internal/plugins/audit"
)

func newPurgeCmd(c *cli) *cobra.Command {
	var olderThan string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete records older than a retention age",
		Example: `  auditctl purge --older-than 90d
  auditctl purge --older-than 720h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			age, err := parseAge(olderThan)
			if err != nil {
				return err
			}

			db, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := audit.NewAuditService(audit.NewAuditRepository(db)).Purge(cmd.Context(), age)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d records older than %s\n", n, olderThan)
			return nil
		},
	}
	cmd.Flags().StringVar(&olderThan, "older-than", "", "Retention age, e.g. 90d or 720h (required)")
	_ = cmd.MarkFlagRequired("older-than")
	return cmd
}

// parseAge parses a Go duration, additionally accepting whole days ("30d").
func parseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid age %q", s)
	}
	return d, nil
}
