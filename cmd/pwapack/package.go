package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/pwa-builder/PWABuilder-sub006/internal/component"
	"github.com/pwa-builder/PWABuilder-sub006/internal/util"
)

func newPackageCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "package <options.json|->",
		Short: "Build the Google Play package locally",
		Long: `Runs the packaging pipeline on this machine and writes the zip to --output.
The toolchain is taken from PROJECT_GENERATOR, GRADLE_PATH, KEYTOOL_PATH,
APKSIGNER_PATH and JARSIGNER_PATH.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readOptions(cmd, args[0])
			if err != nil {
				return err
			}
			packager, lm, err := component.GetPackager()
			if err != nil {
				return fmt.Errorf("failed to set up toolchain: %w", err)
			}
			defer lm.Flush()

			progress := func(msg string) { fmt.Fprintln(cmd.ErrOrStderr(), msg) }
			zipPath, err := packager.CreateZip(context.Background(), *opts, progress)
			if err != nil {
				return err
			}

			if output == "" {
				host := opts.Host
				if u, err := url.Parse(opts.PwaURL); err == nil && u.Host != "" {
					host = u.Host
				}
				output = util.DownloadFileName(host)
			}
			if err := copyFile(zipPath, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "package written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "zip destination (default \"<host> - Google Play Package.zip\")")
	return cmd
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return out.Close()
}
