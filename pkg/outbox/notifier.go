package outbox

import (
	"context"

	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

// Notifier queues notifications after the ledger change they describe has
// committed. Delivery is best-effort: a failure is logged and swallowed, never
// surfaced to the caller of the ledger operation.
type Notifier struct {
	tx   txRunner
	out  emitter
	logg *logger.Logger
}

func NewNotifier(tx txRunner, out emitter, logg *logger.Logger) *Notifier {
	return &Notifier{tx: tx, out: out, logg: logg}
}

// Notify writes event in its own transaction.
func (n *Notifier) Notify(ctx context.Context, event DomainEvent) {
	if n == nil || n.tx == nil || n.out == nil {
		return
	}
	err := n.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return n.out.Emit(ctx, tx, event)
	})
	if err != nil && n.logg != nil {
		logCtx := n.logg.WithFields(ctx, map[string]any{
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID.String(),
			"error":        err.Error(),
		})
		n.logg.Warn(logCtx, "notification not queued")
	}
}
