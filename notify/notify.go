/*
Package notify delivers booking notification requests.

PURPOSE:
  The booking workflow only states what happened (booking.Notification).
  The sinks here decide where it goes:

    Log    - structured log line (always on)
    Outbox - SQLite table drained by an external mailer
    AMQP   - topic exchange, routing key = notification kind
    Multi  - fan-out to several sinks, errors joined

  Every request gets a UUID before it reaches a sink, so the same request
  seen in the log, the outbox and the broker carries one id.

SEE ALSO:
  - booking/notification.go: the request type
  - store/sqlite: the outbox table
*/
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/warp/booking-engine/booking"
)

// Stamp assigns an id and a request time when missing.
func Stamp(n booking.Notification) booking.Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.RequestedAt.IsZero() {
		n.RequestedAt = time.Now()
	}
	return n
}

// =============================================================================
// MULTI - fan-out
// =============================================================================

// Multi sends to every sink even when one fails.
type Multi []booking.Notifier

func (m Multi) Notify(ctx context.Context, n booking.Notification) error {
	n = Stamp(n)
	var errs []error
	for _, sink := range m {
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
