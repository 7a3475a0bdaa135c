package core

import (
	"context"
	"errors"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// DedupeStore is the key-existence table backing idempotent delivery.
type DedupeStore interface {
	Exists(ctx context.Context, key DedupeKey) (bool, error)
	Upsert(ctx context.Context, key DedupeKey) error
}

// DedupeClaimer is implemented by stores that can insert-if-absent atomically.
// Claim returns accepted=false when the key is completed or leased by another
// worker.
type DedupeClaimer interface {
	Claim(ctx context.Context, key DedupeKey, lease time.Duration) (claimID string, accepted bool, err error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error) error
}

type DedupeReader interface {
	Get(ctx context.Context, key DedupeKey) (DedupeRecord, error)
}

// ReadMarker marks an inbound message as read at the provider.
type ReadMarker interface {
	MarkRead(ctx context.Context, endpointID string, messageID string) error
}

// Sender posts a message payload on behalf of a business number.
type Sender interface {
	Send(ctx context.Context, endpointID string, payload any) (string, error)
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

// JobAttempter is implemented by deliveries that know how many times the
// queue has handed them out.
type JobAttempter interface {
	Attempt() int
}

// ErrJobQueueEmpty is returned by dequeuers with nothing visible to hand out.
var ErrJobQueueEmpty = errors.New("job queue is empty")

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

const (
	JobIDProcessNotification = "whatsapp.process"
	JobScriptNotification    = "whatsapp.notification"
	JobParamBody             = "body"
	JobParamEventID          = "event_id"
	JobParamEventKind        = "event_kind"
	JobParamNotificationID   = "notification_id"
	JobParamFrom             = "from"
)
