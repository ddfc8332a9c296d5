package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
)

func newAllocateCommand(opts *rootOptions) *cobra.Command {
	var tenant, docType string
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Draw the next number of a tenant's sequence",
		Long: `Allocates a number outside of any document, for instance to burn a
number that was issued on paper. The number is consumed even if nothing
references it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := parseID("tenant", tenant)
			if err != nil {
				return err
			}
			dt, err := enums.ParseDocumentType(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(docType)), "-", "_"))
			if err != nil {
				return err
			}
			b, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			alloc, err := b.Numbering.Allocate(cmd.Context(), tenantID, dt)
			if err != nil {
				return err
			}
			return opts.emit(cmd, alloc, alloc.Number)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id (required)")
	cmd.Flags().StringVar(&docType, "type", "", "QUOTE, INVOICE or CREDIT_NOTE (required)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
