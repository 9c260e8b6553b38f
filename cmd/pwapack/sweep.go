package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pwa-builder/PWABuilder-sub006/internal/lifecycle"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove scratch directories and archives left behind by crashed builds",
		RunE: func(cmd *cobra.Command, args []string) error {
			lm, err := lifecycle.NewFromConfig()
			if err != nil {
				return err
			}
			removed := lm.SweepOrphans(time.Now())
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned entries\n", removed)
			return nil
		},
	}
}
