package main

import (
	"fmt"

	"RefineAPI/internal/model"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load every resource definition and report all problems",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := model.InitRegistry(cfg.ModelsDir); err != nil {
			return err
		}
		for _, name := range model.Names() {
			fmt.Fprintf(cmd.OutOrStdout(), "ok  %s\n", name)
		}
		return nil
	},
}
