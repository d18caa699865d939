package store

import (
	"context"
	"errors"
	"io/fs"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/record"
)

// Default file names inside the data directory.
const (
	ReservationsFile = "reservations.csv"
	BlockedDatesFile = "blocked_dates.csv"
	CredentialsFile  = "auth.json"
)

// Options are shared by every store.
type Options struct {
	Location *time.Location   // created_at zone; default UTC
	Clock    func() time.Time // default time.Now
	Logger   *zap.Logger      // default no-op
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

func (o Options) now() time.Time {
	return o.Clock().In(o.Location).Truncate(time.Second)
}

// =============================================================================
// RESERVATIONS - one CSV file, append on create, atomic rewrite otherwise
// =============================================================================

type Reservations struct {
	backend Backend
	name    string
	codec   record.Codec[booking.Reservation]
	opts    Options
}

var _ booking.ReservationStore = (*Reservations)(nil)

func NewReservations(backend Backend, name string, opts Options) *Reservations {
	opts = opts.withDefaults()
	return &Reservations{
		backend: backend,
		name:    name,
		codec:   record.NewReservationCodec(opts.Location),
		opts:    opts,
	}
}

// List returns every decodable row in file order. The first call on a
// missing file creates it with a header only.
func (s *Reservations) List(ctx context.Context) ([]booking.Reservation, error) {
	data, err := readOrInit(ctx, s.backend, s.name, record.EmptyFile(s.codec))
	if err != nil {
		return nil, err
	}
	return s.decode(data)
}

func (s *Reservations) Create(ctx context.Context, in booking.NewReservation) (int, error) {
	return s.CreateIf(ctx, in, nil)
}

// CreateIf is Create with admit run over the current rows under the file
// lock. A non-nil error from admit aborts the append and is returned as is.
func (s *Reservations) CreateIf(ctx context.Context, in booking.NewReservation, admit func([]booking.Reservation) error) (int, error) {
	in, err := booking.ValidateNewReservation(in)
	if err != nil {
		return 0, err
	}

	unlock, err := s.backend.Lock(ctx, s.name)
	if err != nil {
		return 0, err
	}
	defer unlock()

	data, err := readOrInitLocked(s.backend, s.name, record.EmptyFile(s.codec))
	if err != nil {
		return 0, err
	}
	rows, err := s.decode(data)
	if err != nil {
		return 0, err
	}
	if admit != nil {
		if err := admit(rows); err != nil {
			return 0, err
		}
	}

	r := booking.Reservation{
		ID:          nextID(rows),
		Date:        in.Date,
		Time:        in.Time,
		CompanyName: in.Name,
		Contact:     in.Contact,
		Anonymous:   in.Anonymous,
		Category:    in.Category,
		Note:        in.Note,
		CreatedAt:   s.opts.now(),
	}
	line, err := record.AppendRow(s.codec, r)
	if err != nil {
		return 0, &booking.StorageError{Op: "encode", Path: s.name, Err: err}
	}
	// A crash mid-append leaves a line without its newline. Terminate it so
	// the new row is not glued onto the broken one.
	if n := len(data); n > 0 && data[n-1] != '\n' {
		line = append([]byte("\n"), line...)
	}
	if err := s.backend.Append(s.name, line); err != nil {
		return 0, err
	}

	s.opts.Logger.Debug("reservation appended", zap.Int("id", r.ID), zap.String("date", r.Date))
	return r.ID, nil
}

func (s *Reservations) Update(ctx context.Context, id int, patch booking.ReservationPatch) error {
	if id <= 0 {
		return booking.InvalidField("id", "id must be a positive integer")
	}
	if patch.Date != nil {
		if _, err := booking.ValidateDate("date", *patch.Date); err != nil {
			return err
		}
	}

	return s.rewrite(ctx, func(rows []booking.Reservation) ([]booking.Reservation, error) {
		for i := range rows {
			if rows[i].ID == id {
				patch.Apply(&rows[i])
				return rows, nil
			}
		}
		return nil, notFound(id)
	})
}

func (s *Reservations) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return booking.InvalidField("id", "id must be a positive integer")
	}

	return s.rewrite(ctx, func(rows []booking.Reservation) ([]booking.Reservation, error) {
		for i := range rows {
			if rows[i].ID == id {
				return append(rows[:i], rows[i+1:]...), nil
			}
		}
		return nil, notFound(id)
	})
}

// ReservedDates skips rows whose date is not YYYY-MM-DD.
func (s *Reservations) ReservedDates(ctx context.Context) (booking.DateSet, error) {
	rows, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	set := booking.NewDateSet()
	for _, r := range rows {
		if d, ok := r.Day(); ok {
			set.Add(d)
		}
	}
	return set, nil
}

// OnDate returns the reservations for one date, in file order.
func (s *Reservations) OnDate(ctx context.Context, date booking.Date) ([]booking.Reservation, error) {
	rows, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []booking.Reservation
	for _, r := range rows {
		if d, ok := r.Day(); ok && d == date {
			out = append(out, r)
		}
	}
	return out, nil
}

// rewrite runs fn over the current rows under the file lock and atomically
// replaces the file with the result.
func (s *Reservations) rewrite(ctx context.Context, fn func([]booking.Reservation) ([]booking.Reservation, error)) error {
	unlock, err := s.backend.Lock(ctx, s.name)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := readOrInitLocked(s.backend, s.name, record.EmptyFile(s.codec))
	if err != nil {
		return err
	}
	rows, err := s.decode(data)
	if err != nil {
		return err
	}
	rows, err = fn(rows)
	if err != nil {
		return err
	}
	out, err := record.Encode(s.codec, rows)
	if err != nil {
		return &booking.StorageError{Op: "encode", Path: s.name, Err: err}
	}
	if err := s.backend.Replace(s.name, out); err != nil {
		return err
	}
	s.opts.Logger.Debug("reservations rewritten", zap.Int("rows", len(rows)))
	return nil
}

func (s *Reservations) decode(data []byte) ([]booking.Reservation, error) {
	rows, err := record.Decode(data, s.codec)
	if err != nil {
		return nil, &booking.StorageError{Op: "decode", Path: s.name, Err: err}
	}
	return rows, nil
}

// nextID is one more than the largest id present, so a deleted maximum id
// is handed out again.
func nextID(rows []booking.Reservation) int {
	top := 0
	for _, r := range rows {
		if r.ID > top {
			top = r.ID
		}
	}
	return top + 1
}

func notFound(id int) error {
	return &booking.NotFoundError{Kind: "reservation", Key: strconv.Itoa(id)}
}

// =============================================================================
// FILE BOOTSTRAP
// =============================================================================

// readOrInit reads name without locking. A missing file is created with
// initial under the lock and initial is returned.
func readOrInit(ctx context.Context, b Backend, name string, initial []byte) ([]byte, error) {
	data, err := b.ReadFile(name)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	unlock, err := b.Lock(ctx, name)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return readOrInitLocked(b, name, initial)
}

// readOrInitLocked is readOrInit for a caller already holding the lock.
func readOrInitLocked(b Backend, name string, initial []byte) ([]byte, error) {
	data, err := b.ReadFile(name)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := b.WriteNew(name, initial); err != nil {
		return nil, err
	}
	return b.ReadFile(name)
}
