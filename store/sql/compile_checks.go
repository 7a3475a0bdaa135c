package sqlstore

import (
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-whatsapp/core"
)

var (
	_ core.DedupeStore    = (*DedupeStore)(nil)
	_ core.DedupeClaimer  = (*DedupeStore)(nil)
	_ core.DedupeReader   = (*DedupeStore)(nil)
	_ ClaimingDedupeStore = (*CachedDedupeStore)(nil)
	_ queue.Enqueuer      = (*QueueStore)(nil)
	_ queue.Dequeuer      = (*QueueStore)(nil)
	_ queue.Delivery      = (*storeDelivery)(nil)
	_ core.JobAttempter   = (*storeDelivery)(nil)
)
