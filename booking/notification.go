package booking

import (
	"context"
	"time"
)

// NotificationKind is also the routing key when published to a broker.
type NotificationKind string

const (
	KindReservationCreated  NotificationKind = "reservation.created"
	KindReservationReminder NotificationKind = "reservation.reminder"
	KindStaffDigest         NotificationKind = "reservation.digest"
)

// Notification is a structured delivery request. Formatting and transport
// belong to the Notifier; the engine only says what happened.
type Notification struct {
	ID           string           `json:"id"`
	Kind         NotificationKind `json:"kind"`
	Recipients   []string         `json:"recipients,omitempty"`
	Reservation  *Reservation     `json:"reservation,omitempty"`
	TargetDate   string           `json:"target_date,omitempty"`
	Reservations []Reservation    `json:"reservations,omitempty"` // digest only
	RequestedAt  time.Time        `json:"requested_at"`
}

// Notifier receives notification requests. Retries, if any, are its own business.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }
