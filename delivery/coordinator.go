package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/pipeline"
)

// EventNormalizer turns a raw webhook document into at most one event.
type EventNormalizer interface {
	Normalize(ctx context.Context, raw []byte) (core.Event, error)
}

type Outcome string

const (
	OutcomeDropped   Outcome = "dropped"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeQueued    Outcome = "queued"
	OutcomeCompleted Outcome = "completed"
)

type ReceiveResult struct {
	Outcome Outcome
	Event   core.Event
	Key     core.DedupeKey
}

type ProcessResult struct {
	Outcome Outcome
	Event   core.Event
	Key     core.DedupeKey
	ClaimID string
}

type Dependencies struct {
	Normalizer     EventNormalizer
	Queue          core.JobEnqueuer
	Store          core.DedupeStore
	Pipeline       pipeline.Handler
	Reader         core.ReadMarker
	LoggerProvider core.LoggerProvider
	Logger         core.Logger
	Metrics        core.MetricsRecorder
}

type Option func(*Coordinator)

// WithClaimLease bounds how long a claimed event stays invisible to other
// workers when the store supports atomic claims.
func WithClaimLease(lease time.Duration) Option {
	return func(c *Coordinator) {
		if c != nil && lease > 0 {
			c.claimLease = lease
		}
	}
}

// Coordinator moves webhook documents from ingress through the queue to the
// handler pipeline, writing a dedupe record once per logical event.
type Coordinator struct {
	normalizer EventNormalizer
	queue      core.JobEnqueuer
	store      core.DedupeStore
	claimer    core.DedupeClaimer
	handler    pipeline.Handler
	reader     core.ReadMarker
	observer   core.Observer
	claimLease time.Duration
}

func NewCoordinator(deps Dependencies, opts ...Option) (*Coordinator, error) {
	if deps.Normalizer == nil {
		return nil, fmt.Errorf("delivery: normalizer is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("delivery: dedupe store is required")
	}
	handler := deps.Pipeline
	if handler == nil {
		built, err := pipeline.NewBuilder(nil).Build()
		if err != nil {
			return nil, err
		}
		handler = built
	}
	coordinator := &Coordinator{
		normalizer: deps.Normalizer,
		queue:      deps.Queue,
		store:      deps.Store,
		handler:    handler,
		reader:     deps.Reader,
		observer:   core.NewObserver("whatsapp.delivery", deps.LoggerProvider, deps.Logger, deps.Metrics),
		claimLease: core.DefaultClaimLease,
	}
	if claimer, ok := deps.Store.(core.DedupeClaimer); ok {
		coordinator.claimer = claimer
	}
	for _, opt := range opts {
		if opt != nil {
			opt(coordinator)
		}
	}
	return coordinator, nil
}

// Receive handles one webhook call: normalize, skip events that already have a
// completion record, enqueue the raw document and mark inbound messages as
// read. Retries that arrive before the first copy is processed are still
// queued; the claim in Process drops them. Only the enqueue decides
// the outcome; mark-read failures are logged.
func (c *Coordinator) Receive(ctx context.Context, raw []byte) (result ReceiveResult, err error) {
	if c == nil {
		return ReceiveResult{}, fmt.Errorf("delivery: coordinator is nil")
	}
	startedAt := time.Now()
	fields := map[string]any{}
	defer func() {
		fields["outcome"] = string(result.Outcome)
		c.observer.Observe(ctx, startedAt, "delivery.receive", err, fields)
	}()
	if c.queue == nil {
		return ReceiveResult{}, fmt.Errorf("delivery: queue is required to receive")
	}

	ev, err := c.normalizer.Normalize(ctx, raw)
	if err != nil {
		return ReceiveResult{}, err
	}
	if ev == nil {
		return ReceiveResult{Outcome: OutcomeDropped}, nil
	}
	mergeFields(fields, core.EventFields(ev))

	key := core.EventKey(ev)
	result = ReceiveResult{Event: ev, Key: key}
	exists, err := c.store.Exists(ctx, key)
	if err != nil {
		return result, deliveryError(err, "delivery: dedupe lookup failed", keyMetadata(key))
	}
	if exists {
		result.Outcome = OutcomeDuplicate
		return result, nil
	}

	if err := c.queue.Enqueue(ctx, c.executionMessage(ev, raw)); err != nil {
		if core.IsCanceled(err) {
			return result, err
		}
		return result, deliveryError(err, "delivery: enqueue failed", keyMetadata(key))
	}
	result.Outcome = OutcomeQueued

	c.markRead(ctx, ev)
	return result, nil
}

// Process handles one dequeued document. A handler error or cancellation
// leaves no completion record so the queue can redeliver it.
func (c *Coordinator) Process(ctx context.Context, raw []byte) (result ProcessResult, err error) {
	if c == nil {
		return ProcessResult{}, fmt.Errorf("delivery: coordinator is nil")
	}
	startedAt := time.Now()
	fields := map[string]any{}
	defer func() {
		fields["outcome"] = string(result.Outcome)
		c.observer.Observe(ctx, startedAt, "delivery.process", err, fields)
	}()

	ev, err := c.normalizer.Normalize(ctx, raw)
	if err != nil {
		return ProcessResult{}, err
	}
	if ev == nil {
		return ProcessResult{Outcome: OutcomeDropped}, nil
	}
	mergeFields(fields, core.EventFields(ev))

	key := core.EventKey(ev)
	result = ProcessResult{Event: ev, Key: key}

	if c.claimer != nil {
		claimID, accepted, err := c.claimer.Claim(ctx, key, c.claimLease)
		if err != nil {
			return result, deliveryError(err, "delivery: dedupe claim failed", keyMetadata(key))
		}
		if !accepted {
			result.Outcome = OutcomeDuplicate
			return result, nil
		}
		result.ClaimID = claimID
	} else {
		exists, err := c.store.Exists(ctx, key)
		if err != nil {
			return result, deliveryError(err, "delivery: dedupe lookup failed", keyMetadata(key))
		}
		if exists {
			result.Outcome = OutcomeDuplicate
			return result, nil
		}
	}

	handleErr := c.handler.Handle(ctx, ev)
	if handleErr == nil && ctx != nil && ctx.Err() != nil {
		handleErr = ctx.Err()
	}
	if handleErr != nil {
		if failErr := c.releaseClaim(ctx, result.ClaimID, handleErr); failErr != nil {
			return result, errors.Join(handleErr, failErr)
		}
		return result, handleErr
	}

	if err := c.recordCompletion(ctx, key, result.ClaimID); err != nil {
		return result, err
	}
	result.Outcome = OutcomeCompleted
	return result, nil
}

func (c *Coordinator) recordCompletion(ctx context.Context, key core.DedupeKey, claimID string) error {
	if c.claimer != nil && claimID != "" {
		if err := c.claimer.Complete(ctx, claimID); err != nil {
			return deliveryError(err, "delivery: complete dedupe claim failed", withClaim(keyMetadata(key), claimID))
		}
		return nil
	}
	if err := c.store.Upsert(ctx, key); err != nil {
		return deliveryError(err, "delivery: write dedupe record failed", keyMetadata(key))
	}
	return nil
}

func (c *Coordinator) releaseClaim(ctx context.Context, claimID string, cause error) error {
	if c.claimer == nil || claimID == "" {
		return nil
	}
	// The handler context may already be canceled.
	if err := c.claimer.Fail(context.WithoutCancel(ctx), claimID, cause); err != nil {
		return deliveryError(err, "delivery: release dedupe claim failed", map[string]any{"claim_id": claimID})
	}
	return nil
}

func (c *Coordinator) markRead(ctx context.Context, ev core.Event) {
	if c.reader == nil {
		return
	}
	switch ev.Kind() {
	case core.EventKindContent, core.EventKindInteractive:
	default:
		return
	}
	header := core.EventHeader(ev)
	if err := c.reader.MarkRead(ctx, header.To.EndpointID, header.ID); err != nil {
		fields := core.EventFields(ev)
		fields["error"] = err.Error()
		c.observer.Log(ctx, "warn", "delivery: mark read failed", fields)
		c.observer.Count(ctx, "delivery.mark_read.failed", 1, map[string]string{
			"endpoint_id": header.To.EndpointID,
		})
	}
}

func (c *Coordinator) executionMessage(ev core.Event, raw []byte) *core.JobExecutionMessage {
	header := core.EventHeader(ev)
	return &core.JobExecutionMessage{
		JobID:      core.JobIDProcessNotification,
		ScriptPath: core.JobScriptNotification,
		Parameters: map[string]any{
			core.JobParamBody:           string(raw),
			core.JobParamEventID:        header.ID,
			core.JobParamEventKind:      string(ev.Kind()),
			core.JobParamNotificationID: header.NotificationID,
			core.JobParamFrom:           header.From.PhoneNumber,
		},
		IdempotencyKey: core.NotificationKey(ev).String(),
	}
}

func keyMetadata(key core.DedupeKey) map[string]any {
	return map[string]any{
		"partition_key": key.PartitionKey,
		"row_key":       key.RowKey,
	}
}

func withClaim(metadata map[string]any, claimID string) map[string]any {
	if strings.TrimSpace(claimID) != "" {
		metadata["claim_id"] = claimID
	}
	return metadata
}

func mergeFields(dst map[string]any, src map[string]any) {
	for key, value := range src {
		dst[key] = value
	}
}
