package notify

import (
	"context"

	"github.com/warp/booking-engine/booking"
)

// Queue is the write side of the outbox; *sqlite.Outbox implements it.
type Queue interface {
	Enqueue(ctx context.Context, n booking.Notification) error
}

// Outbox persists requests for later delivery.
type Outbox struct {
	queue Queue
}

func NewOutbox(q Queue) *Outbox {
	return &Outbox{queue: q}
}

func (o *Outbox) Notify(ctx context.Context, n booking.Notification) error {
	return o.queue.Enqueue(ctx, Stamp(n))
}
