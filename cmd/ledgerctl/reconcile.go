package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/loyalty"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/stock"
)

// errDrift makes the process exit non-zero when an audit finds drift that was
// not repaired.
var errDrift = errors.New("ledger drift detected")

type reconcileFlags struct {
	tenant string
	target string
	repair bool
}

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Replay a ledger and compare it with the cached balance",
	}
	cmd.AddCommand(newReconcileStockCommand(opts))
	cmd.AddCommand(newReconcilePointsCommand(opts))
	return cmd
}

func newReconcileStockCommand(opts *rootOptions) *cobra.Command {
	flags := &reconcileFlags{}
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Reconcile product stock against the stock movements",
		Long: `Replays the stock movements of one product, or of every tracked product
of the tenant when --product is omitted, and reports any difference with the
cached stock. --repair overwrites the cached value with the replayed one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, targetID, err := flags.ids("product")
			if err != nil {
				return err
			}
			b, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			var reports []stock.ReconcileReport
			if targetID == uuid.Nil {
				reports, err = b.Stock.ReconcileTenant(cmd.Context(), tenantID, flags.repair)
			} else {
				var report *stock.ReconcileReport
				report, err = b.Stock.Reconcile(cmd.Context(), tenantID, targetID, flags.repair)
				if report != nil {
					reports = append(reports, *report)
				}
			}
			if err != nil {
				return err
			}

			lines := make([]string, 0, len(reports))
			drift := false
			for _, r := range reports {
				lines = append(lines, fmt.Sprintf("product %s: cached=%s replayed=%s movements=%d %s",
					r.ProductID, r.Cached, r.Replayed, r.Movements, verdict(r.Drift, r.ChainBroken, r.Repaired)))
				drift = drift || (r.Drift && !r.Repaired)
			}
			if err := opts.emit(cmd, reports, lines...); err != nil {
				return err
			}
			if drift {
				return errDrift
			}
			return nil
		},
	}
	flags.bind(cmd, "product")
	return cmd
}

func newReconcilePointsCommand(opts *rootOptions) *cobra.Command {
	flags := &reconcileFlags{}
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Reconcile client points balances against the points movements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, targetID, err := flags.ids("client")
			if err != nil {
				return err
			}
			b, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			var reports []loyalty.ReconcileReport
			if targetID == uuid.Nil {
				reports, err = b.Loyalty.ReconcileTenant(cmd.Context(), tenantID, flags.repair)
			} else {
				var report *loyalty.ReconcileReport
				report, err = b.Loyalty.Reconcile(cmd.Context(), tenantID, targetID, flags.repair)
				if report != nil {
					reports = append(reports, *report)
				}
			}
			if err != nil {
				return err
			}

			lines := make([]string, 0, len(reports))
			drift := false
			for _, r := range reports {
				lines = append(lines, fmt.Sprintf("client %s: cached=%d replayed=%d movements=%d %s",
					r.ClientID, r.Cached, r.Replayed, r.Movements, verdict(r.Drift, r.ChainBroken, r.Repaired)))
				drift = drift || (r.Drift && !r.Repaired)
			}
			if err := opts.emit(cmd, reports, lines...); err != nil {
				return err
			}
			if drift {
				return errDrift
			}
			return nil
		},
	}
	flags.bind(cmd, "client")
	return cmd
}

func (f *reconcileFlags) bind(cmd *cobra.Command, target string) {
	cmd.Flags().StringVar(&f.tenant, "tenant", "", "tenant id (required)")
	cmd.Flags().StringVar(&f.target, target, "", target+" id; all of the tenant's when omitted")
	cmd.Flags().BoolVar(&f.repair, "repair", false, "overwrite the cached value with the replayed one")
	_ = cmd.MarkFlagRequired("tenant")
}

func (f *reconcileFlags) ids(target string) (uuid.UUID, uuid.UUID, error) {
	tenantID, err := parseID("tenant", f.tenant)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if f.target == "" {
		return tenantID, uuid.Nil, nil
	}
	targetID, err := parseID(target, f.target)
	return tenantID, targetID, err
}

func parseID(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid --%s %q", name, raw)
	}
	return id, nil
}

func verdict(drift, chainBroken, repaired bool) string {
	switch {
	case repaired:
		return "REPAIRED"
	case drift:
		return "DRIFT"
	case chainBroken:
		return "CHAIN-BROKEN"
	default:
		return "OK"
	}
}
