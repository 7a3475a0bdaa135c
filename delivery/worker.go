package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/ratelimit"
)

// Processor handles one dequeued document. *Coordinator implements it.
type Processor interface {
	Process(ctx context.Context, raw []byte) (ProcessResult, error)
}

type WorkerConfig struct {
	// MaxDeliveries is the attempt after which a failing delivery is dead
	// lettered instead of retried.
	MaxDeliveries int
	PollInterval  time.Duration
	Concurrency   int
	Retry         RetryPolicy
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MaxDeliveries: core.DefaultMaxDeliveries,
		PollInterval:  core.DefaultPollInterval,
		Concurrency:   1,
		Retry:         ExponentialRetryPolicy{Initial: time.Second, Max: 30 * time.Second},
	}
}

type WorkerOption func(*Worker)

func WithWorkerHook(hook core.JobWorkerHook) WorkerOption {
	return func(w *Worker) {
		if w != nil {
			w.hook = hook
		}
	}
}

func WithWorkerLogger(provider core.LoggerProvider, logger core.Logger) WorkerOption {
	return func(w *Worker) {
		if w != nil {
			w.observer = core.NewObserver("whatsapp.worker", provider, logger, w.observer.Metrics)
		}
	}
}

func WithWorkerMetrics(metrics core.MetricsRecorder) WorkerOption {
	return func(w *Worker) {
		if w != nil && metrics != nil {
			w.observer.Metrics = metrics
		}
	}
}

// Worker drains a queue into a Processor, acking successes and nacking
// failures with backoff until MaxDeliveries is reached.
type Worker struct {
	processor Processor
	dequeuer  core.JobDequeuer
	config    WorkerConfig
	hook      core.JobWorkerHook
	observer  core.Observer
}

func NewWorker(processor Processor, dequeuer core.JobDequeuer, config WorkerConfig, opts ...WorkerOption) (*Worker, error) {
	if processor == nil {
		return nil, fmt.Errorf("delivery: processor is required")
	}
	if dequeuer == nil {
		return nil, fmt.Errorf("delivery: dequeuer is required")
	}
	defaults := DefaultWorkerConfig()
	if config.MaxDeliveries <= 0 {
		config.MaxDeliveries = defaults.MaxDeliveries
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.Retry == nil {
		config.Retry = defaults.Retry
	}
	worker := &Worker{
		processor: processor,
		dequeuer:  dequeuer,
		config:    config,
		observer:  core.NewObserver("whatsapp.worker", nil, nil, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(worker)
		}
	}
	return worker, nil
}

// Run polls until ctx is done. It returns nil on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return fmt.Errorf("delivery: worker is nil")
	}
	var wg sync.WaitGroup
	errs := make(chan error, w.config.Concurrency)
	for range w.config.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.loop(ctx); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	var joined error
	for err := range errs {
		joined = errors.Join(joined, err)
	}
	return joined
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		processed, err := w.ProcessNext(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			w.observer.Log(ctx, "error", "delivery: worker iteration failed", map[string]any{"error": err.Error()})
		}
		if processed && err == nil {
			continue
		}
		timer := time.NewTimer(w.config.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// ProcessNext handles at most one delivery. It reports false when the queue
// had nothing visible.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	if w == nil {
		return false, fmt.Errorf("delivery: worker is nil")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		if errors.Is(err, core.ErrJobQueueEmpty) {
			return false, nil
		}
		return false, deliveryError(err, "delivery: dequeue failed", nil)
	}
	if delivery == nil {
		return false, nil
	}
	return true, w.handle(ctx, delivery)
}

func (w *Worker) handle(ctx context.Context, delivery core.JobDelivery) error {
	startedAt := time.Now()
	msg := delivery.Message()
	attempt := deliveryAttempt(delivery)
	event := core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt}
	settleCtx := context.WithoutCancel(ctx)

	body, ok := messageBody(msg)
	if !ok {
		err := deliveryBadInput("delivery: queued message has no body", nil)
		event.Err = err
		w.onFailure(ctx, event, startedAt)
		return w.nack(settleCtx, delivery, core.JobNackOptions{DeadLetter: true, Reason: "missing body"})
	}

	w.onStart(ctx, event)
	result, err := w.processor.Process(ctx, body)
	event.Duration = time.Since(startedAt)
	fields := map[string]any{
		"attempt": attempt,
		"outcome": string(result.Outcome),
	}
	if result.Event != nil {
		mergeFields(fields, core.EventFields(result.Event))
	}

	if err == nil {
		w.observer.Observe(ctx, startedAt, "delivery.worker", nil, fields)
		if w.hook != nil {
			w.hook.OnSuccess(ctx, event)
		}
		if ackErr := delivery.Ack(settleCtx); ackErr != nil {
			return deliveryError(ackErr, "delivery: ack failed", fields)
		}
		return nil
	}

	event.Err = err
	opts := w.nackOptions(err, attempt)
	event.Delay = opts.Delay
	fields["dead_letter"] = opts.DeadLetter
	w.observer.Observe(ctx, startedAt, "delivery.worker", err, fields)
	if opts.DeadLetter {
		w.onFailure(ctx, event, startedAt)
	} else if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
	return w.nack(settleCtx, delivery, opts)
}

func (w *Worker) nackOptions(err error, attempt int) core.JobNackOptions {
	switch {
	case core.IsCanceled(err):
		return core.JobNackOptions{Requeue: true, Reason: "canceled"}
	case core.IsConfigError(err), core.HasTextCode(err, core.ErrorNormalizerDefect):
		return core.JobNackOptions{DeadLetter: true, Reason: err.Error()}
	case attempt >= w.config.MaxDeliveries:
		return core.JobNackOptions{DeadLetter: true, Reason: "max deliveries reached: " + err.Error()}
	default:
		delay := w.config.Retry.NextDelay(attempt)
		if hint, ok := ratelimit.RetryAfter(err); ok && hint > delay {
			delay = hint
		}
		return core.JobNackOptions{Requeue: true, Delay: delay, Reason: err.Error()}
	}
}

func (w *Worker) nack(ctx context.Context, delivery core.JobDelivery, opts core.JobNackOptions) error {
	if err := delivery.Nack(ctx, opts); err != nil {
		return deliveryError(err, "delivery: nack failed", map[string]any{"reason": opts.Reason})
	}
	if opts.DeadLetter {
		w.observer.Count(ctx, "delivery.poison.total", 1, nil)
	}
	return nil
}

func (w *Worker) onStart(ctx context.Context, event core.JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *Worker) onFailure(ctx context.Context, event core.JobWorkerEvent, startedAt time.Time) {
	event.Duration = time.Since(startedAt)
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func deliveryAttempt(delivery core.JobDelivery) int {
	if attempter, ok := delivery.(core.JobAttempter); ok {
		if attempt := attempter.Attempt(); attempt > 0 {
			return attempt
		}
	}
	return 1
}

func messageBody(msg *core.JobExecutionMessage) ([]byte, bool) {
	if msg == nil || msg.Parameters == nil {
		return nil, false
	}
	var body []byte
	switch value := msg.Parameters[core.JobParamBody].(type) {
	case string:
		body = []byte(value)
	case []byte:
		body = value
	case json.RawMessage:
		body = value
	default:
		return nil, false
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil, false
	}
	return body, true
}

var _ Processor = (*Coordinator)(nil)
