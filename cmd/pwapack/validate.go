package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pwa-builder/PWABuilder-sub006/internal/packaging"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <options.json|->",
		Short: "Check packaging options without building",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readOptions(cmd, args[0])
			if err != nil {
				return err
			}
			if err := packaging.Validate(opts); err != nil {
				var perr *packaging.Error
				if errors.As(err, &perr) {
					for _, d := range perr.Details {
						fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", d)
					}
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "options for %s are valid\n", opts.PackageID)
			return nil
		},
	}
}
