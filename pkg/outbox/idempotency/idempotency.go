// Package idempotency guards outbox delivery against double publishing when a
// publisher crashes between the broker ack and the database commit.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/redis"
)

const deliveredScope = "evt:delivered"

// Options configure a Manager. Holder is written as the claim value so a
// release from another publisher never drops someone else's claim.
type Options struct {
	Store  redis.IdempotencyStore
	TTL    time.Duration
	Holder string
}

// Manager records, per sink, which outbox events were handed to the broker.
// Keys look like <namespace>:idempotency:evt:delivered:<sink>:<event_id>.
type Manager struct {
	store  redis.IdempotencyStore
	ttl    time.Duration
	holder string
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if opts.TTL < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	holder := strings.TrimSpace(opts.Holder)
	if holder == "" {
		holder = "publisher"
	}
	return &Manager{store: opts.Store, ttl: opts.TTL, holder: holder}, nil
}

// Claim marks eventID as delivered to sink. It reports true when an earlier
// claim already exists, in which case the caller must not publish again.
func (m *Manager) Claim(ctx context.Context, sink string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(sink, eventID)
	if err != nil {
		return false, err
	}
	created, err := m.store.SetNX(ctx, key, m.holder, m.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", eventID, err)
	}
	return !created, nil
}

// Release undoes a claim after a failed publish so the retry can go out. A
// claim held by another publisher is left alone.
func (m *Manager) Release(ctx context.Context, sink string, eventID uuid.UUID) error {
	key, err := m.key(sink, eventID)
	if err != nil {
		return err
	}
	owner, err := m.store.Get(ctx, key)
	switch {
	case errors.Is(err, goredis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("read claim %s: %w", eventID, err)
	case owner != m.holder:
		return nil
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(sink string, eventID uuid.UUID) (string, error) {
	sink = strings.TrimSpace(sink)
	if sink == "" {
		return "", errors.New("sink name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey(deliveredScope+":"+sink, eventID.String()), nil
}
