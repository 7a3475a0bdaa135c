package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-whatsapp/core"
)

type MemoryQueueConfig struct {
	Name              string
	MaxDeliveries     int
	VisibilityTimeout time.Duration
}

type queueItem struct {
	id           int
	message      *job.ExecutionMessage
	dequeueCount int
	visibleAt    time.Time
	lease        int
}

// MemoryQueue is an at-least-once queue with visibility timeouts. A leased
// item that is neither acked nor nacked becomes visible again once the
// timeout passes; items handed out MaxDeliveries times move to the dead
// letter list.
type MemoryQueue struct {
	mu         sync.Mutex
	config     MemoryQueueConfig
	items      []*queueItem
	deadLetter []*job.ExecutionMessage
	nextID     int
	nextLease  int
	Now        func() time.Time
}

func NewMemoryQueue(config MemoryQueueConfig) *MemoryQueue {
	if config.Name == "" {
		config.Name = core.DefaultQueueName
	}
	if config.MaxDeliveries <= 0 {
		config.MaxDeliveries = core.DefaultMaxDeliveries
	}
	if config.VisibilityTimeout <= 0 {
		config.VisibilityTimeout = core.DefaultVisibilityTimeout
	}
	return &MemoryQueue{
		config: config,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (q *MemoryQueue) Name() string {
	return q.config.Name
}

func (q *MemoryQueue) PoisonName() string {
	return q.config.Name + core.PoisonQueueSuffix
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if q == nil {
		return fmt.Errorf("delivery: memory queue is nil")
	}
	if msg == nil {
		return fmt.Errorf("delivery: execution message is required")
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.items = append(q.items, &queueItem{
		id:        q.nextID,
		message:   cloneExecutionMessage(msg),
		visibleAt: q.now(),
	})
	return nil
}

// Dequeue returns core.ErrJobQueueEmpty when nothing is visible.
func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if q == nil {
		return nil, fmt.Errorf("delivery: memory queue is nil")
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	now := q.now()
	q.mu.Lock()
	defer q.mu.Unlock()

	for index := 0; index < len(q.items); {
		item := q.items[index]
		if now.Before(item.visibleAt) {
			index++
			continue
		}
		if item.dequeueCount >= q.config.MaxDeliveries {
			q.removeLocked(index)
			q.deadLetter = append(q.deadLetter, item.message)
			continue
		}
		item.dequeueCount++
		q.nextLease++
		item.lease = q.nextLease
		item.visibleAt = now.Add(q.config.VisibilityTimeout)
		return &memoryDelivery{
			queue:   q,
			itemID:  item.id,
			lease:   item.lease,
			attempt: item.dequeueCount,
			message: cloneExecutionMessage(item.message),
		}, nil
	}
	return nil, core.ErrJobQueueEmpty
}

// Len counts items still owned by the queue, leased ones included.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *MemoryQueue) DeadLetters() []*job.ExecutionMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*job.ExecutionMessage, 0, len(q.deadLetter))
	for _, msg := range q.deadLetter {
		out = append(out, cloneExecutionMessage(msg))
	}
	return out
}

func (q *MemoryQueue) settle(itemID int, lease int, fn func(index int, item *queueItem)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for index, item := range q.items {
		if item.id != itemID {
			continue
		}
		if item.lease != lease {
			return fmt.Errorf("delivery: lease for message %d has expired", itemID)
		}
		fn(index, item)
		return nil
	}
	return fmt.Errorf("delivery: message %d is no longer queued", itemID)
}

func (q *MemoryQueue) removeLocked(index int) {
	q.items = append(q.items[:index], q.items[index+1:]...)
}

func (q *MemoryQueue) now() time.Time {
	if q.Now != nil {
		return q.Now().UTC()
	}
	return time.Now().UTC()
}

type memoryDelivery struct {
	queue   *MemoryQueue
	itemID  int
	lease   int
	attempt int
	message *job.ExecutionMessage
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.message
}

func (d *memoryDelivery) Attempt() int {
	return d.attempt
}

func (d *memoryDelivery) Ack(context.Context) error {
	return d.queue.settle(d.itemID, d.lease, func(index int, _ *queueItem) {
		d.queue.removeLocked(index)
	})
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	return d.queue.settle(d.itemID, d.lease, func(index int, item *queueItem) {
		if opts.DeadLetter {
			d.queue.removeLocked(index)
			d.queue.deadLetter = append(d.queue.deadLetter, item.message)
			return
		}
		delay := opts.Delay
		if delay < 0 {
			delay = 0
		}
		item.lease = 0
		item.visibleAt = d.queue.now().Add(delay)
	})
}

func cloneExecutionMessage(msg *job.ExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	copied := *msg
	copied.Parameters = make(map[string]any, len(msg.Parameters))
	for key, value := range msg.Parameters {
		copied.Parameters[key] = value
	}
	return &copied
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)
