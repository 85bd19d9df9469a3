// Package cmd provides the CLI commands for mathdex.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mathdex/pkg/version"
)

// NewRootCmd creates the root command for the mathdex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mathdex",
		Short: "Math-aware corpus indexer",
		Long: `mathdex ingests JSON corpus records into a math-aware search index.

Each record carries a url and a text field; the text is split into
plain words and embedded TeX expressions, which are indexed side by
side with a shared position numbering so that search results can mix
term and formula matches.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("mathdex version {{.Version}}\n")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
