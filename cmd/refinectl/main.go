package main

import (
	"fmt"
	"os"

	"RefineAPI/internal/config"
	"RefineAPI/internal/logger"

	"github.com/spf13/cobra"
)

var (
	modelsDir string
	debugLog  bool
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "refinectl <command>",
	Short:         "Inspect and maintain refine resource definitions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.SetOutput(cmd.ErrOrStderr())
		logger.SetDebug(debugLog)
		cfg = config.LoadConfig()
		if modelsDir != "" {
			cfg.ModelsDir = modelsDir
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modelsDir, "models", "", "resource definitions directory (default MODELS_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&debugLog, "debug", "d", false, "write debug log lines to stderr")

	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(flushOptionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
