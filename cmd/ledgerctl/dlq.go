package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newDLQCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and replay notifications the publisher gave up on",
	}
	cmd.AddCommand(newDLQListCommand(opts), newDLQRequeueCommand(opts))
	return cmd
}

func newDLQListCommand(opts *rootOptions) *cobra.Command {
	var (
		tenant string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest dead letters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var tenantID *uuid.UUID
			if tenant != "" {
				id, err := parseID("tenant", tenant)
				if err != nil {
					return err
				}
				tenantID = &id
			}
			b, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			rows, err := b.DeadLetters.List(cmd.Context(), tenantID, limit)
			if err != nil {
				return err
			}
			lines := make([]string, 0, len(rows))
			for _, row := range rows {
				msg := ""
				if row.ErrorMessage != nil {
					msg = *row.ErrorMessage
				}
				lines = append(lines, fmt.Sprintf("%s %s %s attempts=%d %s",
					row.EventID, row.EventType, row.ErrorReason, row.AttemptCount, msg))
			}
			return opts.emit(cmd, rows, lines...)
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "only this tenant's dead letters")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to print")
	return cmd
}

func newDLQRequeueCommand(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "requeue EVENT_ID",
		Short: "Hand a dead letter back to the outbox publisher",
		Long: `Removes the dead letter and resets the outbox row so the next publisher
batch retries it with a fresh attempt budget. Rows dead-lettered as
non_retryable are refused unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := parseID("event", args[0])
			if err != nil {
				return err
			}
			b, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			if !force {
				reason, err := b.DeadLetters.Reason(cmd.Context(), eventID)
				if err != nil {
					return err
				}
				if !reason.Requeueable() {
					return fmt.Errorf("event %s was dead-lettered as %s; use --force to replay it anyway", eventID, reason)
				}
			}
			if err := b.DeadLetters.Requeue(cmd.Context(), eventID); err != nil {
				return err
			}
			return opts.emit(cmd, map[string]string{"event_id": eventID.String(), "status": "requeued"},
				"requeued "+eventID.String())
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "requeue even when the failure is not retryable")
	return cmd
}
