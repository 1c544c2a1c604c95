package main

import (
	"fmt"

	"RefineAPI/internal/db"
	"RefineAPI/internal/model"

	"github.com/spf13/cobra"
)

var flushOptionsCmd = &cobra.Command{
	Use:   "flush-options [resource]",
	Short: "Delete cached option lists from Redis",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db.InitRedis(cfg.RedisAddr)
		defer db.RDB.Close()
		if err := db.PingRedis(cmd.Context()); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		resource := ""
		if len(args) == 1 {
			resource = args[0]
		}
		removed, err := model.FlushOptions(cmd.Context(), db.RDB, resource)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached option lists\n", removed)
		return nil
	},
}
