package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/config"
	"github.com/foodrelief/relief-backend/pkg/db/models"
	"github.com/foodrelief/relief-backend/pkg/enums"
	"github.com/foodrelief/relief-backend/pkg/logger"
	"github.com/foodrelief/relief-backend/pkg/outbox"
	"github.com/foodrelief/relief-backend/pkg/outbox/payloads"
	"github.com/foodrelief/relief-backend/pkg/outbox/registry"
)

func TestDrainBatchContinuesAfterTransientFailure(t *testing.T) {
	first, second := phaseEvent(t, 0), phaseEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{results: []publishResult{
		fakeResult{err: errors.New("transient")},
		fakeResult{},
	}}
	stats := &fakeMetrics{}
	d := newTestDispatcher(t, repo, pub, resolverFor(t), &fakeDLQ{}, stats, config.OutboxConfig{MaxAttempts: 5})

	handled, err := d.drainBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, handled)
	assert.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, repo.published)
	assert.Equal(t, 1, stats.published)
	assert.Equal(t, 1, stats.failed)
	assert.Equal(t, 2, stats.observed)
}

func TestDispatchSetsOrderingKeyAndAttributes(t *testing.T) {
	event := phaseEvent(t, 0)
	pub := &fakePublisher{results: []publishResult{fakeResult{}}}
	d := newTestDispatcher(t, &fakeRepo{}, pub, resolverFor(t), &fakeDLQ{}, nil, config.OutboxConfig{})

	got, err := d.dispatch(context.Background(), nil, event)
	require.NoError(t, err)
	assert.Equal(t, outcomePublished, got)
	require.Len(t, pub.sent, 1)
	msg := pub.sent[0]
	assert.Equal(t, event.AggregateID.String(), msg.OrderingKey)
	assert.Equal(t, string(enums.EventPhaseStatusChanged), msg.Attributes["event_type"])
	assert.Equal(t, string(enums.AggregatePhase), msg.Attributes["aggregate_type"])
	assert.NotEmpty(t, msg.Attributes["event_id"])
	assert.JSONEq(t, string(event.Payload), string(msg.Data))
	assert.Equal(t, []string{"phase-events"}, pub.topics)
}

func TestDispatchDeadLettersUndecodableRows(t *testing.T) {
	event := phaseEvent(t, 0)
	event.EventType = enums.OutboxEventType("unknown_event")
	repo := &fakeRepo{}
	dlq := &fakeDLQ{}
	d := newTestDispatcher(t, repo, &fakePublisher{}, resolverFor(t), dlq, nil, config.OutboxConfig{})

	got, err := d.dispatch(context.Background(), nil, event)
	require.NoError(t, err)
	assert.Equal(t, outcomeDeadLettered, got)
	require.Len(t, dlq.entries, 1)
	entry := dlq.entries[0]
	assert.Equal(t, event.ID, entry.EventID)
	assert.Equal(t, enums.DeadLetterNonRetryable, entry.ErrorReason)
	assert.Equal(t, event.Payload, entry.Payload)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "unsupported event type")
	assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
}

func TestDispatchDeadLettersAfterMaxAttempts(t *testing.T) {
	event := phaseEvent(t, 2)
	pub := &fakePublisher{results: []publishResult{fakeResult{err: errors.New("unavailable")}}}
	repo := &fakeRepo{}
	dlq := &fakeDLQ{}
	stats := &fakeMetrics{}
	d := newTestDispatcher(t, repo, pub, resolverFor(t), dlq, stats, config.OutboxConfig{MaxAttempts: 3})

	got, err := d.dispatch(context.Background(), nil, event)
	require.NoError(t, err)
	assert.Equal(t, outcomeDeadLettered, got)
	assert.Equal(t, 1, stats.deadLettered)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.DeadLetterMaxAttempts, dlq.entries[0].ErrorReason)
	assert.Empty(t, repo.failed)
	assert.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
}

func TestDispatchMissingPublisherIsTerminal(t *testing.T) {
	event := phaseEvent(t, 0)
	dlq := &fakeDLQ{}
	d := newTestDispatcher(t, &fakeRepo{}, nil, resolverFor(t), dlq, nil, config.OutboxConfig{})

	got, err := d.dispatch(context.Background(), nil, event)
	require.NoError(t, err)
	assert.Equal(t, outcomeDeadLettered, got)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.DeadLetterNonRetryable, dlq.entries[0].ErrorReason)
}

func TestDispatchSurfacesBookkeepingErrors(t *testing.T) {
	event := phaseEvent(t, 0)
	repo := &fakeRepo{markErr: errors.New("db down")}
	pub := &fakePublisher{results: []publishResult{fakeResult{}}}
	d := newTestDispatcher(t, repo, pub, resolverFor(t), &fakeDLQ{}, nil, config.OutboxConfig{})

	_, err := d.dispatch(context.Background(), nil, event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mark published")
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	d := newTestDispatcher(t, &fakeRepo{}, &fakePublisher{}, resolverFor(t), &fakeDLQ{}, nil, config.OutboxConfig{PollIntervalMS: 10})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := d.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewDispatcherDefaultsAndRequirements(t *testing.T) {
	d := newTestDispatcher(t, &fakeRepo{}, &fakePublisher{}, resolverFor(t), &fakeDLQ{}, nil, config.OutboxConfig{})
	assert.Equal(t, defaultBatchSize, d.batchSize)
	assert.Equal(t, defaultMaxAttempts, d.maxAttempts)
	assert.Equal(t, defaultPollInterval, d.pollInterval)

	_, err := NewDispatcher(DispatcherParams{Logger: testLogger()})
	assert.Error(t, err)
}

func TestNextBackoffCaps(t *testing.T) {
	base := 500 * time.Millisecond
	assert.Equal(t, time.Second, nextBackoff(base, base, maxBackoff))
	assert.Equal(t, time.Second, nextBackoff(0, base, maxBackoff))
	assert.Equal(t, maxBackoff, nextBackoff(8*time.Second, base, maxBackoff))
}

func newTestDispatcher(t *testing.T, repo *fakeRepo, pub *fakePublisher, resolver eventResolver, dlq *fakeDLQ, stats *fakeMetrics, cfg config.OutboxConfig) *Dispatcher {
	t.Helper()
	params := DispatcherParams{
		Outbox:     cfg,
		Logger:     testLogger(),
		DB:         fakeDB{},
		Topics:     fakeTopics{},
		Repository: repo,
		DeadLetter: dlq,
		Resolver:   resolver,
		Publishers: func(topic string) publisher {
			if pub == nil {
				return nil
			}
			pub.topics = append(pub.topics, topic)
			return pub
		},
	}
	if stats != nil {
		params.Metrics = stats
	}
	d, err := NewDispatcher(params)
	require.NoError(t, err)
	return d
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard})
}

func resolverFor(t *testing.T) *registry.EventRegistry {
	t.Helper()
	reg, err := registry.NewEventRegistry(config.PubSubConfig{
		PhaseEventsTopic:  "phase-events",
		DisbursementTopic: "disbursements",
	})
	require.NoError(t, err)
	return reg
}

func phaseEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	phaseID := uuid.New()
	data, err := json.Marshal(payloads.PhaseStatusChangedEvent{
		PhaseID:    phaseID,
		CampaignID: uuid.New(),
		From:       enums.PhaseStatusPlanning,
		To:         enums.PhaseStatusAwaitingIngredientDisbursement,
		Version:    2,
		ChangedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPhaseStatusChanged,
		AggregateType: enums.AggregatePhase,
		AggregateID:   phaseID,
		Payload:       envelope,
		AttemptCount:  attempts,
	}
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	markErr   error
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDLQ struct {
	entries []models.OutboxDeadLetter
}

func (f *fakeDLQ) InsertTx(_ *gorm.DB, entry models.OutboxDeadLetter) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakeTopics struct{}

func (fakeTopics) Ping(context.Context) error { return nil }

func (fakeTopics) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results []publishResult
	sent    []*gcppubsub.Message
	topics  []string
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.sent = append(f.sent, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakeResult struct {
	err error
}

func (f fakeResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "server-id", nil
}

type fakeMetrics struct {
	published, failed, deadLettered, observed int
}

func (m *fakeMetrics) IncPublished(string) { m.published++ }

func (m *fakeMetrics) IncFailed(string) { m.failed++ }

func (m *fakeMetrics) IncDeadLettered(string, string) { m.deadLettered++ }

func (m *fakeMetrics) ObserveLatency(string, time.Duration) { m.observed++ }
