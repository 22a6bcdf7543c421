package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/config"
	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
	"github.com/foodrelief/relief-backend/pkg/logger"
	"github.com/foodrelief/relief-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
)

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type topicSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetterWriter interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDeadLetter) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publishMetrics interface {
	IncPublished(eventType string)
	IncFailed(eventType string)
	IncDeadLettered(eventType, reason string)
	ObserveLatency(eventType string, duration time.Duration)
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// outcome is what a single publish attempt did to its outbox row.
type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLettered
)

type DispatcherParams struct {
	Outbox     config.OutboxConfig
	Logger     *logger.Logger
	DB         txRunner
	Topics     topicSource
	Repository outboxRepository
	DeadLetter deadLetterWriter
	Resolver   eventResolver
	Metrics    publishMetrics
	// Publishers overrides topic lookup; tests inject fakes here.
	Publishers func(topic string) publisher
}

// Dispatcher drains the transactional outbox into Pub/Sub. Phase events are
// published with the aggregate id as ordering key so subscribers see a
// phase's transitions in commit order.
type Dispatcher struct {
	logg         *logger.Logger
	db           txRunner
	topics       topicSource
	repo         outboxRepository
	dlq          deadLetterWriter
	resolver     eventResolver
	metrics      publishMetrics
	publishers   func(topic string) publisher
	cached       map[string]*gcppubsub.Publisher
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	jitter       *rand.Rand
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.Topics == nil:
		return nil, errors.New("pubsub client is required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository is required")
	case params.DeadLetter == nil:
		return nil, errors.New("dead letter repository is required")
	case params.Resolver == nil:
		return nil, errors.New("event registry is required")
	}

	d := &Dispatcher{
		logg:         params.Logger,
		db:           params.DB,
		topics:       params.Topics,
		repo:         params.Repository,
		dlq:          params.DeadLetter,
		resolver:     params.Resolver,
		metrics:      params.Metrics,
		publishers:   params.Publishers,
		cached:       map[string]*gcppubsub.Publisher{},
		batchSize:    params.Outbox.BatchSize,
		maxAttempts:  params.Outbox.MaxAttempts,
		pollInterval: time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond,
		jitter:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if d.publishers == nil {
		d.publishers = d.topicPublisher
	}
	if d.batchSize <= 0 {
		d.batchSize = defaultBatchSize
	}
	if d.maxAttempts <= 0 {
		d.maxAttempts = defaultMaxAttempts
	}
	if d.pollInterval <= 0 {
		d.pollInterval = defaultPollInterval
	}
	return d, nil
}

// Run polls until ctx is cancelled. Batch errors back off exponentially up to
// maxBackoff; an empty batch waits one poll interval.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := d.topics.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}

	backoff := d.pollInterval
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		drained, err := d.drainBatch(ctx)
		wait := d.pollInterval
		switch {
		case err != nil:
			d.logg.Error(ctx, "outbox batch failed", err)
			backoff = nextBackoff(backoff, d.pollInterval, maxBackoff)
			wait = backoff
		case drained > 0:
			backoff = d.pollInterval
			continue
		default:
			backoff = d.pollInterval
		}

		if err := sleep(ctx, d.withJitter(wait)); err != nil {
			return err
		}
	}
}

// drainBatch publishes one locked batch and returns how many rows it handled.
func (d *Dispatcher) drainBatch(ctx context.Context) (int, error) {
	handled := 0
	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := d.repo.FetchUnpublishedForPublish(tx, d.batchSize, d.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		for _, event := range events {
			if _, err := d.dispatch(ctx, tx, event); err != nil {
				return err
			}
			handled++
		}
		return nil
	})
	return handled, err
}

// dispatch publishes one row and records the outcome. The returned error is
// only set when the row bookkeeping itself failed.
func (d *Dispatcher) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	eventType := string(event.EventType)
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     eventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	})

	resolved, err := d.resolver.Resolve(event)
	if err != nil {
		return outcomeDeadLettered, d.deadLetter(logCtx, tx, event, enums.DeadLetterNonRetryable, err)
	}
	logCtx = d.logg.WithFields(logCtx, map[string]any{
		"event_id": resolved.Envelope.EventID,
		"topic":    resolved.Descriptor.Topic,
	})

	start := time.Now()
	pubErr := d.publish(ctx, event, resolved)
	if d.metrics != nil {
		d.metrics.ObserveLatency(eventType, time.Since(start))
	}
	if pubErr == nil {
		if err := d.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		if d.metrics != nil {
			d.metrics.IncPublished(eventType)
		}
		d.logg.Info(logCtx, "outbox event published")
		return outcomePublished, nil
	}

	if d.metrics != nil {
		d.metrics.IncFailed(eventType)
	}
	var nonRetryable registry.NonRetryableError
	if errors.As(pubErr, &nonRetryable) {
		return outcomeDeadLettered, d.deadLetter(logCtx, tx, event, enums.DeadLetterNonRetryable, pubErr)
	}
	if event.AttemptCount+1 >= d.maxAttempts {
		return outcomeDeadLettered, d.deadLetter(logCtx, tx, event, enums.DeadLetterMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", pubErr))
	}

	d.logg.Warn(d.logg.WithField(logCtx, "error", pubErr.Error()), "outbox publish failed, will retry")
	if err := d.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return outcomeRetry, fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

func (d *Dispatcher) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := d.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"occurred_at":    resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned no result for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func (d *Dispatcher) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.DeadLetterReason, cause error) error {
	d.logg.Warn(d.logg.WithFields(ctx, map[string]any{
		"error_reason": reason,
		"error":        cause.Error(),
	}), "outbox event moved to dead letter table")

	msg := cause.Error()
	if err := d.dlq.InsertTx(tx, models.OutboxDeadLetter{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("insert dead letter %s: %w", event.ID, err)
	}
	if err := d.repo.MarkTerminalTx(tx, event.ID, cause, d.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	if d.metrics != nil {
		d.metrics.IncDeadLettered(string(event.EventType), string(reason))
	}
	return nil
}

func (d *Dispatcher) withJitter(wait time.Duration) time.Duration {
	if wait <= 0 {
		return 0
	}
	return wait + time.Duration(d.jitter.Int63n(int64(jitterWindow)))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, limit time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	if next := current * 2; next < limit {
		return next
	}
	return limit
}

// topicPublisher reuses one ordered publisher per topic.
func (d *Dispatcher) topicPublisher(topic string) publisher {
	p, ok := d.cached[topic]
	if !ok {
		p = d.topics.Publisher(topic)
		if p == nil {
			return nil
		}
		p.EnableMessageOrdering = true
		d.cached[topic] = p
	}
	return &gcpPublisher{Publisher: p}
}

// Stop flushes and releases the cached topic publishers.
func (d *Dispatcher) Stop() {
	for topic, p := range d.cached {
		p.Stop()
		delete(d.cached, topic)
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	res := p.Publisher.Publish(ctx, msg)
	if res == nil {
		return nil
	}
	return &orderedResult{PublishResult: res, pub: p.Publisher, key: msg.OrderingKey}
}

// orderedResult resumes the ordering key after a failure; otherwise every
// later message for the same aggregate would be rejected.
type orderedResult struct {
	*gcppubsub.PublishResult
	pub *gcppubsub.Publisher
	key string
}

func (r *orderedResult) Get(ctx context.Context) (string, error) {
	id, err := r.PublishResult.Get(ctx)
	if err != nil && r.key != "" {
		r.pub.ResumePublish(r.key)
	}
	return id, err
}
