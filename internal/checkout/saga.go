package checkout

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
)

type reversal struct {
	name string
	undo func(ctx context.Context) error
}

// saga tracks the committed steps of one checkout and how to undo them.
type saga struct {
	completed []enums.CheckoutStep
	reversals []reversal
}

func (s *saga) done(step enums.CheckoutStep) {
	s.completed = append(s.completed, step)
}

func (s *saga) onFailure(name string, undo func(ctx context.Context) error) {
	s.reversals = append(s.reversals, reversal{name: name, undo: undo})
}

func (s *saga) hasReversals() bool {
	return len(s.reversals) > 0
}

// compensate runs every reversal newest-first. A failing reversal does not
// stop the ones registered before it.
func (s *saga) compensate(ctx context.Context) error {
	// Undo must outlive a cancelled request.
	ctx = context.WithoutCancel(ctx)
	var errs error
	for i := len(s.reversals) - 1; i >= 0; i-- {
		r := s.reversals[i]
		if err := r.undo(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", r.name, err))
		}
	}
	return errs
}

func (s *saga) completedJSON() json.RawMessage {
	steps := s.completed
	if steps == nil {
		steps = []enums.CheckoutStep{}
	}
	raw, err := json.Marshal(steps)
	if err != nil {
		return json.RawMessage("[]")
	}
	return raw
}

// CompletedSteps decodes the steps a session recorded. A malformed column
// reads as no steps.
func CompletedSteps(session *models.CheckoutSession) []string {
	out := []string{}
	if session == nil || len(session.CompletedSteps) == 0 {
		return out
	}
	if err := json.Unmarshal(session.CompletedSteps, &out); err != nil {
		return []string{}
	}
	return out
}
