package main

import (
	"context"
	"encoding/json"
	"fmt"

	"RefineAPI/internal/model"
	"RefineAPI/internal/refine"

	"github.com/spf13/cobra"
)

var explainCmd = &cobra.Command{
	Use:   "explain <resource> [query-string]",
	Short: "Print the SQL and report a query string produces",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := model.InitRegistry(cfg.ModelsDir); err != nil {
			return err
		}
		res, ok := model.Lookup(args[0])
		if !ok {
			return fmt.Errorf("unknown resource %q (have %v)", args[0], model.Names())
		}
		raw := ""
		if len(args) == 2 {
			raw = args[1]
		}
		req, err := refine.ParseQuery(raw)
		if err != nil {
			return fmt.Errorf("parsing query string: %w", err)
		}

		count, _ := cmd.Flags().GetBool("count")
		base := res.SelectQuery(cfg.Refine.Qualifier)
		if count {
			base = res.CountQuery(cfg.Refine.Qualifier)
		}

		// Without a database, options_query filters have no options to check against.
		b := &model.Builder{Config: cfg.Refine.Engine()}
		r, err := b.NewRefine(context.Background(), res, base, req)
		if err != nil {
			return err
		}
		if count {
			r.DisableSorting()
		}
		if err := r.Refine(); err != nil {
			return err
		}
		sqlStr, sqlArgs, err := r.Query().ToSql()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sqlStr)
		argsJSON, _ := json.Marshal(sqlArgs)
		fmt.Fprintf(out, "args: %s\n", argsJSON)
		if noReport, _ := cmd.Flags().GetBool("no-report"); noReport {
			return nil
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r.Report())
	},
}

func init() {
	explainCmd.Flags().Bool("count", false, "explain the count query instead of the index query")
	explainCmd.Flags().Bool("no-report", false, "print only SQL and args")
}
