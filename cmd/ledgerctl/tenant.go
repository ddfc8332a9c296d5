package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/tenants"
)

func newTenantCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenant accounts",
	}
	cmd.AddCommand(newTenantCreateCommand(opts))
	return cmd
}

func newTenantCreateCommand(opts *rootOptions) *cobra.Command {
	var (
		input      tenants.CreateTenantInput
		pointsRate string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a tenant with its numbering and loyalty settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := decimal.NewFromString(pointsRate)
			if err != nil {
				return fmt.Errorf("invalid --points-per-unit %q", pointsRate)
			}
			input.LoyaltyPointsPerUnit = rate

			b, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			tenant, err := b.Tenants.Create(cmd.Context(), input)
			if err != nil {
				return err
			}
			out := map[string]any{"id": tenant.ID, "name": tenant.Name}
			return opts.emit(cmd, out, tenant.ID.String())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&input.Name, "name", "", "tenant name (required)")
	flags.StringVar(&input.QuotePrefix, "quote-prefix", "", "quote number prefix")
	flags.StringVar(&input.InvoicePrefix, "invoice-prefix", "", "invoice number prefix")
	flags.StringVar(&input.CreditNotePrefix, "credit-note-prefix", "", "credit note number prefix")
	flags.Int64Var(&input.SequenceStart, "start", 0, "first number of every sequence")
	flags.IntVar(&input.NumberPadding, "padding", 0, "zero padding of the numeric part")
	flags.StringVar(&pointsRate, "points-per-unit", "1", "loyalty points earned per currency unit")
	flags.IntVar(&input.LoyaltyExpiryDays, "points-expiry-days", 365, "days before earned points expire; 0 never expires")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
