package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
)

// rootOptions holds flags shared by every command.
type rootOptions struct {
	Format  string
	Verbose bool
	connect backendFactory
}

var validFormats = []string{"text", "json"}

// NewRootCommand builds the ledgerctl command tree. connect opens the ledger
// services lazily so --help works without a database.
func NewRootCommand(connect backendFactory) *cobra.Command {
	opts := &rootOptions{connect: connect}

	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the document, stock and loyalty ledgers",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "print service logs to stderr")

	cmd.AddCommand(newReconcileCommand(opts))
	cmd.AddCommand(newAllocateCommand(opts))
	cmd.AddCommand(newTenantCommand(opts))
	cmd.AddCommand(newDLQCommand(opts))
	return cmd
}

func (o *rootOptions) open(cmd *cobra.Command) (*backend, error) {
	logOutput := io.Discard
	if o.Verbose {
		logOutput = cmd.ErrOrStderr()
	}
	return o.connect(cmd.Context(), logOutput)
}

// emit prints v as indented JSON, or as the text lines when the text format
// is selected.
func (o *rootOptions) emit(cmd *cobra.Command, v any, lines ...string) error {
	out := cmd.OutOrStdout()
	if o.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
