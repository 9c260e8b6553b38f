package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pwa-builder/PWABuilder-sub006/internal/service/logger"
	"github.com/pwa-builder/PWABuilder-sub006/model"
)

func newRootCmd() *cobra.Command {
	var envFile string
	var logLevel string

	root := &cobra.Command{
		Use:   "pwapack",
		Short: "Package web apps for Google Play",
		Long: `pwapack drives the Google Play packaging pipeline from the command line.
It can validate options, package locally, and enqueue or inspect jobs in the shared store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return fmt.Errorf("failed to load %s: %w", envFile, err)
				}
			} else {
				_ = godotenv.Load()
			}
			logger.InitWithLevel("pwapack", logLevel)
			return nil
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "environment file to load (default .env when present)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newValidateCmd(),
		newPackageCmd(),
		newEnqueueCmd(),
		newStatusCmd(),
		newOutcomesCmd(),
		newSweepCmd(),
	)
	return root
}

// readOptions loads packaging options from a JSON file, or stdin for "-".
func readOptions(cmd *cobra.Command, path string) (*model.PackagingOptions, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read options: %w", err)
	}
	var opts model.PackagingOptions
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("failed to parse options: %w", err)
	}
	return &opts, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
