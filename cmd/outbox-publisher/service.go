package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/config"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/metrics"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

const (
	outcomePublished  = "published"
	outcomeDuplicate  = "duplicate"
	outcomeRetry      = "retry"
	outcomeDeadLetter = "dead_letter"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, attempts int, err error) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// deliveryGuard remembers events a topic already received so a crash between
// publish and commit does not publish twice.
type deliveryGuard interface {
	Claim(ctx context.Context, sink string, eventID uuid.UUID) (bool, error)
	Release(ctx context.Context, sink string, eventID uuid.UUID) error
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// ServiceParams configure the publisher. Guard and Metrics are optional.
type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	DLQRepository    dlqRepository
	Guard            deliveryGuard
	Metrics          *metrics.OutboxMetrics
	PublisherFactory publisherFactory
}

// Service drains outbox_events to Pub/Sub in commit order, one locked batch
// per transaction.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	repo         outboxRepository
	pubsub       pubSubClient
	registry     registryResolver
	dlq          dlqRepository
	guard        deliveryGuard
	metrics      *metrics.OutboxMetrics
	publishers   publisherFactory
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DLQRepository == nil:
		return nil, errors.New("dlq repository is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		cache := map[string]publisher{}
		factory = func(topic string) publisher {
			if pub, ok := cache[topic]; ok {
				return pub
			}
			raw := params.PubSub.Publisher(topic)
			if raw == nil {
				return nil
			}
			pub := &gcpPublisher{Publisher: raw}
			cache[topic] = pub
			return pub
		}
	}

	outboxCfg := params.Config.Outbox
	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		repo:         params.Repository,
		pubsub:       params.PubSub,
		registry:     params.Registry,
		dlq:          params.DLQRepository,
		guard:        params.Guard,
		metrics:      params.Metrics,
		publishers:   factory,
		batchSize:    positiveOr(outboxCfg.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(outboxCfg.MaxAttempts, defaultMaxAttempts),
		pollInterval: time.Duration(positiveOr(outboxCfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}, nil
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{
		"database": s.db.Ping,
		"pubsub":   s.pubsub.Ping,
	} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	return nil
}

// Run polls until ctx is canceled. A full batch is followed immediately by
// the next one; batch errors back off exponentially up to maxBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	backoff := s.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox publisher context canceled")
			return err
		}

		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox publisher batch error", err)
			backoff = min(backoff*2, maxBackoff)
			if err := sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
		case processed:
			backoff = s.pollInterval
		default:
			backoff = s.pollInterval
			if err := sleep(ctx, withJitter(s.pollInterval)); err != nil {
				return err
			}
		}
	}
}

func (s *Service) processBatch(ctx context.Context) (bool, error) {
	processed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		processed = len(events) > 0
		for _, event := range events {
			if err := s.dispatch(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return processed, err
}

// delivery is one outbox row on its way to a topic.
type delivery struct {
	event    models.OutboxEvent
	resolved *registry.ResolvedEvent
	fields   map[string]any
}

func (d delivery) topic() string {
	if d.resolved == nil {
		return ""
	}
	return d.resolved.Descriptor.Topic
}

// verdict is what happened to a delivery and the error that caused it, if any.
type verdict struct {
	outcome string
	reason  enums.OutboxDLQErrorReason
	cause   error
}

// dispatch publishes one row and records the outcome on it. Only bookkeeping
// failures are returned; publish failures become retries or dead letters.
func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	d := delivery{event: event}
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		d.fields = s.eventFields(event, nil)
		return s.settle(ctx, tx, d, verdict{outcome: outcomeDeadLetter, reason: enums.OutboxDLQReasonNonRetryable, cause: err})
	}
	d.resolved = resolved
	d.fields = s.eventFields(event, resolved)
	return s.settle(ctx, tx, d, s.attempt(ctx, d))
}

// attempt publishes d unless the guard says a previous run already did.
func (s *Service) attempt(ctx context.Context, d delivery) verdict {
	if s.alreadyDelivered(ctx, d) {
		return verdict{outcome: outcomeDuplicate}
	}
	err := s.publish(ctx, d)
	if err == nil {
		return verdict{outcome: outcomePublished}
	}
	s.releaseClaim(ctx, d)

	var nonRetry registry.NonRetryableError
	switch {
	case errors.Is(err, errNoPublisher):
		return verdict{outcome: outcomeDeadLetter, reason: enums.OutboxDLQReasonNoRoute, cause: err}
	case errors.As(err, &nonRetry):
		return verdict{outcome: outcomeDeadLetter, reason: enums.OutboxDLQReasonNonRetryable, cause: err}
	case d.event.AttemptCount+1 >= s.maxAttempts:
		return verdict{
			outcome: outcomeDeadLetter,
			reason:  enums.OutboxDLQReasonMaxAttempts,
			cause:   fmt.Errorf("max publish attempts reached: %w", err),
		}
	default:
		return verdict{outcome: outcomeRetry, cause: err}
	}
}

// settle writes the verdict onto the outbox row inside the batch transaction.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, d delivery, v verdict) error {
	id := d.event.ID
	logCtx := s.logg.WithFields(ctx, d.fields)
	if v.cause != nil {
		logCtx = s.logg.WithField(logCtx, "error", v.cause.Error())
	}

	switch v.outcome {
	case outcomePublished, outcomeDuplicate:
		if err := s.repo.MarkPublishedTx(tx, id); err != nil {
			return fmt.Errorf("mark published %s: %w", id, err)
		}
		if v.outcome == outcomeDuplicate {
			s.logg.Info(logCtx, "outbox event already delivered")
		} else {
			s.logg.Info(logCtx, "outbox event published")
		}
	case outcomeRetry:
		logCtx = s.logg.WithField(logCtx, "attempt_count", d.event.AttemptCount+1)
		s.logg.Warn(logCtx, "outbox publish failed; will retry")
		if err := s.repo.MarkFailedTx(tx, id, v.cause); err != nil {
			return fmt.Errorf("mark failure %s: %w", id, err)
		}
	case outcomeDeadLetter:
		s.logg.Warn(s.logg.WithField(logCtx, "error_reason", v.reason), "outbox event will not be retried")
		if err := s.dlq.InsertTx(tx, deadLetterFor(d.event, v)); err != nil {
			return fmt.Errorf("insert dlq %s: %w", id, err)
		}
		if err := s.repo.MarkTerminalTx(tx, id, s.maxAttempts, v.cause); err != nil {
			return fmt.Errorf("mark terminal %s: %w", id, err)
		}
	default:
		return fmt.Errorf("unknown outcome %q for %s", v.outcome, id)
	}
	s.metrics.Inc(string(d.event.EventType), v.outcome)
	return nil
}

func deadLetterFor(event models.OutboxEvent, v verdict) models.OutboxDLQ {
	message := v.cause.Error()
	return models.OutboxDLQ{
		EventID:       event.ID,
		TenantID:      event.TenantID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   v.reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
}

// alreadyDelivered fails open: an unreachable guard never blocks publishing.
func (s *Service) alreadyDelivered(ctx context.Context, d delivery) bool {
	if s.guard == nil {
		return false
	}
	delivered, err := s.guard.Claim(ctx, d.topic(), d.event.ID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(s.logg.WithFields(ctx, d.fields), "error", err.Error()), "delivery guard unavailable")
		return false
	}
	return delivered
}

func (s *Service) releaseClaim(ctx context.Context, d delivery) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(context.WithoutCancel(ctx), d.topic(), d.event.ID); err != nil {
		s.logg.Warn(s.logg.WithField(s.logg.WithFields(ctx, d.fields), "error", err.Error()), "delivery guard release failed")
	}
}

var errNoPublisher = errors.New("no publisher for topic")

func (s *Service) publish(ctx context.Context, d delivery) error {
	topic := d.topic()
	pub := s.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("%w %s", errNoPublisher, topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, messageFor(d))
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

// messageFor carries routing metadata as attributes so subscribers can filter
// without decoding the payload.
func messageFor(d delivery) *gcppubsub.Message {
	event := d.event
	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       d.resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"tenant_id":      event.TenantID.String(),
			"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

func (s *Service) eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"tenant_id":      event.TenantID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if resolved != nil {
		fields["topic"] = resolved.Descriptor.Topic
		fields["event_id"] = resolved.Envelope.EventID
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func withJitter(d time.Duration) time.Duration {
	return d + rand.N(jitterWindow)
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
