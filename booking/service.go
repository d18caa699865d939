package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// BOOKING SERVICE - create = validate -> policy -> store -> notify
// =============================================================================

type Service struct {
	Reservations ReservationStore
	Blocked      BlockedDateStore
	Notifier     Notifier // optional
	Policy       Policy

	// AdminRecipients receive a copy of every reservation.created request.
	AdminRecipients []string

	// BlockReservedDates also blocks a date once it is booked. The two writes
	// are independent: a crash in between leaves the stores out of step until
	// the date is blocked or unblocked again.
	BlockReservedDates bool

	Location *time.Location
	Clock    func() time.Time
	Logger   *zap.Logger
}

// NewService uses the default policy, UTC, the wall clock and a no-op
// logger. Override fields as needed.
func NewService(reservations ReservationStore, blocked BlockedDateStore, notifier Notifier) *Service {
	return &Service{
		Reservations: reservations,
		Blocked:      blocked,
		Notifier:     notifier,
		Policy:       DefaultPolicy(),
		Location:     time.UTC,
		Clock:        time.Now,
		Logger:       zap.NewNop(),
	}
}

// Today is the reference date for the lead-time rule.
func (s *Service) Today() Date {
	return Today(s.Clock, s.Location)
}

// Book places a reservation if the policy allows it. The reserved-date half
// of the check runs under the reservation store lock, so a concurrent
// booking for the same date is seen before the row is appended.
func (s *Service) Book(ctx context.Context, in NewReservation) (int, error) {
	in, err := ValidateNewReservation(in)
	if err != nil {
		return 0, err
	}

	target, _ := ParseDate(in.Date)
	blocked, err := s.Blocked.Dates(ctx)
	if err != nil {
		return 0, fmt.Errorf("load blocked dates: %w", err)
	}

	id, err := s.Reservations.CreateIf(ctx, in, func(existing []Reservation) error {
		reserved := NewDateSet()
		for _, r := range existing {
			if d, ok := r.Day(); ok {
				reserved.Add(d)
			}
		}
		decision := s.Policy.Evaluate(AvailabilityInput{
			Target:   target,
			Today:    s.Today(),
			Blocked:  blocked,
			Reserved: reserved,
		})
		if !decision.Bookable {
			return &NotBookableError{Date: target, Reason: decision.Reason}
		}
		return nil
	})
	if err != nil {
		var nb *NotBookableError
		if errors.As(err, &nb) {
			s.Logger.Info("booking rejected",
				zap.String("date", in.Date),
				zap.String("reason", string(nb.Reason)),
			)
		}
		return 0, err
	}

	s.created(ctx, id, in)
	return id, nil
}

// ForceBook is the administrative override: it skips the policy check, so
// it may place a second reservation on an already reserved date.
func (s *Service) ForceBook(ctx context.Context, in NewReservation) (int, error) {
	in, err := ValidateNewReservation(in)
	if err != nil {
		return 0, err
	}
	s.Logger.Warn("policy check bypassed", zap.String("date", in.Date))
	return s.create(ctx, in)
}

func (s *Service) create(ctx context.Context, in NewReservation) (int, error) {
	id, err := s.Reservations.Create(ctx, in)
	if err != nil {
		return 0, err
	}
	s.created(ctx, id, in)
	return id, nil
}

// created runs the follow-ups of a stored reservation.
func (s *Service) created(ctx context.Context, id int, in NewReservation) {
	s.Logger.Info("reservation created", zap.Int("id", id), zap.String("date", in.Date))

	if s.BlockReservedDates {
		if err := s.Blocked.Add(ctx, in.Date, "予約済み"); err != nil {
			s.Logger.Error("failed to block reserved date",
				zap.Int("id", id),
				zap.String("date", in.Date),
				zap.Error(err),
			)
		}
	}

	s.notifyCreated(ctx, id, in)
}

// notifyCreated hands the request to the notifier. A failed notification
// never fails the booking.
func (s *Service) notifyCreated(ctx context.Context, id int, in NewReservation) {
	if s.Notifier == nil {
		return
	}
	now := s.Clock().In(s.Location)
	r := Reservation{
		ID:          id,
		Date:        in.Date,
		Time:        in.Time,
		CompanyName: in.Name,
		Contact:     in.Contact,
		Anonymous:   in.Anonymous,
		Category:    in.Category,
		Note:        in.Note,
		CreatedAt:   now,
	}
	recipients := append([]string(nil), s.AdminRecipients...)
	if ValidEmail(in.Contact) {
		recipients = append(recipients, in.Contact)
	}
	n := Notification{
		Kind:        KindReservationCreated,
		Recipients:  recipients,
		Reservation: &r,
		TargetDate:  in.Date,
		RequestedAt: now,
	}
	if err := s.Notifier.Notify(ctx, n); err != nil {
		s.Logger.Error("notification failed", zap.Int("id", id), zap.Error(err))
	}
}

// Check evaluates one date against live snapshots of both stores.
func (s *Service) Check(ctx context.Context, target Date) (Decision, error) {
	in, err := s.snapshot(ctx)
	if err != nil {
		return Decision{}, err
	}
	in.Target = target
	return s.Policy.Evaluate(in), nil
}

// Calendar evaluates every day in [from, to].
func (s *Service) Calendar(ctx context.Context, from, to Date) ([]DayStatus, error) {
	if to.Before(from) {
		return nil, InvalidField("to", fmt.Sprintf("range end %s is before start %s", to, from))
	}
	in, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.Policy.Calendar(in, from, to), nil
}

func (s *Service) snapshot(ctx context.Context) (AvailabilityInput, error) {
	reserved, err := s.Reservations.ReservedDates(ctx)
	if err != nil {
		return AvailabilityInput{}, fmt.Errorf("load reserved dates: %w", err)
	}
	blocked, err := s.Blocked.Dates(ctx)
	if err != nil {
		return AvailabilityInput{}, fmt.Errorf("load blocked dates: %w", err)
	}
	return AvailabilityInput{
		Today:    s.Today(),
		Blocked:  blocked,
		Reserved: reserved,
	}, nil
}
