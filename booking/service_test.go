package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/store"
)

var jst = time.FixedZone("JST", 9*60*60)

// recorder captures notifications.
type recorder struct {
	mu   sync.Mutex
	sent []booking.Notification
	err  error
}

func (r *recorder) Notify(_ context.Context, n booking.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func newTestService(t *testing.T) (*booking.Service, *recorder) {
	t.Helper()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, jst) // Monday
	opts := store.Options{Location: jst, Clock: func() time.Time { return now }}
	mem := store.NewMemory()
	rec := &recorder{}

	svc := booking.NewService(
		store.NewReservations(mem, store.ReservationsFile, opts),
		store.NewBlockedDates(mem, store.BlockedDatesFile, opts),
		rec,
	)
	svc.Location = jst
	svc.Clock = opts.Clock
	return svc, rec
}

func request(date string) booking.NewReservation {
	return booking.NewReservation{
		Name: "ACME", Contact: "guest@example.com", Date: date, Time: "午前", Category: "見学",
	}
}

func TestBook_HappyPath(t *testing.T) {
	ctx := context.Background()
	svc, rec := newTestService(t)
	svc.AdminRecipients = []string{"admin@example.com"}

	id, err := svc.Book(ctx, request("2025-03-12"))

	require.NoError(t, err)
	assert.Equal(t, 1, id)
	require.Len(t, rec.sent, 1)
	n := rec.sent[0]
	assert.Equal(t, booking.KindReservationCreated, n.Kind)
	assert.Equal(t, []string{"admin@example.com", "guest@example.com"}, n.Recipients)
	require.NotNil(t, n.Reservation)
	assert.Equal(t, 1, n.Reservation.ID)
	assert.Equal(t, "2025-03-12", n.TargetDate)
}

func TestBook_SecondBookingOnSameDateIsRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Book(ctx, request("2025-03-12"))
	require.NoError(t, err)

	_, err = svc.Book(ctx, request("2025-03-12"))

	var nb *booking.NotBookableError
	require.ErrorAs(t, err, &nb)
	assert.Equal(t, booking.ReasonAlreadyReserved, nb.Reason)
	assert.True(t, booking.IsClientError(err))
}

func TestBook_TomorrowIsLeadTime(t *testing.T) {
	svc, rec := newTestService(t)

	_, err := svc.Book(context.Background(), request("2025-03-11"))

	var nb *booking.NotBookableError
	require.ErrorAs(t, err, &nb)
	assert.Equal(t, booking.ReasonLeadTime, nb.Reason)
	assert.Empty(t, rec.sent)
}

func TestBook_BlockedDate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	require.NoError(t, svc.Blocked.Add(ctx, "2025-03-13", "休業日"))

	_, err := svc.Book(ctx, request("2025-03-13"))

	assert.ErrorIs(t, err, booking.ErrNotBookable)
}

func TestBook_ValidationBeforeIO(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Book(context.Background(), booking.NewReservation{Name: "a"})

	assert.ErrorIs(t, err, booking.ErrValidation)
}

func TestBook_NotifierFailureDoesNotFailBooking(t *testing.T) {
	svc, rec := newTestService(t)
	rec.err = errors.New("smtp down")

	id, err := svc.Book(context.Background(), request("2025-03-12"))

	require.NoError(t, err)
	assert.Equal(t, 1, id)
}

func TestBook_BlockReservedDates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	svc.BlockReservedDates = true

	_, err := svc.Book(ctx, request("2025-03-12"))
	require.NoError(t, err)

	dates, err := svc.Blocked.Dates(ctx)
	require.NoError(t, err)
	assert.True(t, dates.Contains(booking.NewDate(2025, time.March, 12)))
}

func TestForceBook_SkipsPolicy(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.Book(ctx, request("2025-03-12"))
	require.NoError(t, err)

	id, err := svc.ForceBook(ctx, request("2025-03-12"))

	require.NoError(t, err)
	assert.Equal(t, 2, id)
	rows, err := svc.Reservations.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestCheckAndCalendar(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.Book(ctx, request("2025-03-12"))
	require.NoError(t, err)

	d, err := svc.Check(ctx, booking.NewDate(2025, time.March, 12))
	require.NoError(t, err)
	assert.Equal(t, booking.Decision{Reason: booking.ReasonAlreadyReserved}, d)

	days, err := svc.Calendar(ctx, booking.NewDate(2025, time.March, 10), booking.NewDate(2025, time.March, 14))
	require.NoError(t, err)
	require.Len(t, days, 5)
	assert.True(t, days[3].Bookable)

	_, err = svc.Calendar(ctx, booking.NewDate(2025, time.March, 14), booking.NewDate(2025, time.March, 10))
	assert.ErrorIs(t, err, booking.ErrValidation)
}

// gatedBlocked holds every Dates caller until all expected callers arrived.
type gatedBlocked struct {
	booking.BlockedDateStore
	gate *sync.WaitGroup
}

func (g gatedBlocked) Dates(ctx context.Context) (booking.DateSet, error) {
	g.gate.Done()
	g.gate.Wait()
	return g.BlockedDateStore.Dates(ctx)
}

func TestBook_ConcurrentBookingsForOneDate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	// GIVEN: Two bookings that both finish reading blocked dates before
	// either one writes
	gate := &sync.WaitGroup{}
	gate.Add(2)
	svc.Blocked = gatedBlocked{BlockedDateStore: svc.Blocked, gate: gate}

	// WHEN: Both book 2025-03-12 at once
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Book(ctx, request("2025-03-12"))
		}(i)
	}
	wg.Wait()

	// THEN: Exactly one wins, the other sees the date as reserved
	var ok, rejected int
	for _, err := range errs {
		var nb *booking.NotBookableError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &nb) && nb.Reason == booking.ReasonAlreadyReserved:
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)

	rows, err := svc.Reservations.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestBook_StoreReadFailureSurfaces(t *testing.T) {
	// GIVEN: A reservation file that cannot be read
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, jst)
	opts := store.Options{Location: jst, Clock: func() time.Time { return now }}
	mem := store.NewMemory()
	mem.Fail = func(op, name string) error {
		if name == store.ReservationsFile {
			return errors.New("disk gone")
		}
		return nil
	}
	svc := booking.NewService(
		store.NewReservations(mem, store.ReservationsFile, opts),
		store.NewBlockedDates(store.NewMemory(), store.BlockedDatesFile, opts),
		nil,
	)
	svc.Location = jst
	svc.Clock = opts.Clock

	// WHEN
	_, err := svc.Book(context.Background(), request("2025-03-12"))

	// THEN: A storage error
	assert.ErrorIs(t, err, booking.ErrStorageIO)
}
