package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/keyxmakerx/audittrail/internal/plugins/audit"
)

// Output formats of the query command.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func newQueryCmd(c *cli) *cobra.Command {
	var (
		params  = map[string]*string{}
		page    int
		perPage int
		output  string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List audit records matching a filter",
		Example: `  auditctl query --min-severity warning --from 2026-01-01
  auditctl query --kind post --object 42 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != outputTable && output != outputJSON && output != outputYAML {
				return fmt.Errorf("unknown output format %q", output)
			}

			f, err := audit.ParseFilter(func(name string) string {
				if v, ok := params[name]; ok {
					return *v
				}
				return ""
			})
			if err != nil {
				return err
			}

			db, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			result, err := audit.NewAuditService(audit.NewAuditRepository(db)).Query(cmd.Context(), f, page, perPage)
			if err != nil {
				return err
			}
			return writePage(cmd.OutOrStdout(), result, output)
		},
	}

	flag := func(param, name, usage string) {
		params[param] = cmd.Flags().String(name, "", usage)
	}
	flag("severity", "severity", "Exact severity level")
	flag("min_severity", "min-severity", "Minimum severity level")
	flag("action", "action", "Action, e.g. post_updated")
	flag("object_kind", "kind", "Object kind")
	flag("object_id", "object", "Object id")
	flag("actor_id", "actor", "Acting user id")
	flag("date_from", "from", "Start date (YYYY-MM-DD or RFC 3339)")
	flag("date_to", "to", "End date (YYYY-MM-DD or RFC 3339)")
	flag("search", "search", "Substring of the object label or details")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", 50, "Records per page")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")
	return cmd
}

// writePage renders a page of records in the chosen format.
func writePage(w io.Writer, p *audit.Page, format string) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return err
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tSEVERITY\tACTION\tOBJECT\tACTOR\tIP")
	for _, r := range p.Records {
		object := r.ObjectKind + ":" + r.ObjectID
		if r.ObjectLabel != "" {
			object += " (" + r.ObjectLabel + ")"
		}
		actor := "-"
		if r.ActorID != 0 {
			actor = strconv.FormatInt(r.ActorID, 10)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Severity, r.Action, object, actor, r.ActorIP)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "page %d, %d of %d records\n", p.Page, len(p.Records), p.Total)
	return err
}
