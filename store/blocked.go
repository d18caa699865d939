package store

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/record"
)

// =============================================================================
// BLOCKED DATES - idempotent set, every write is an atomic rewrite
// =============================================================================

type BlockedDates struct {
	backend Backend
	name    string
	codec   record.Codec[booking.BlockedDate]
	opts    Options
}

var _ booking.BlockedDateStore = (*BlockedDates)(nil)

func NewBlockedDates(backend Backend, name string, opts Options) *BlockedDates {
	opts = opts.withDefaults()
	return &BlockedDates{
		backend: backend,
		name:    name,
		codec:   record.NewBlockedDateCodec(opts.Location),
		opts:    opts,
	}
}

func (s *BlockedDates) List(ctx context.Context) ([]booking.BlockedDate, error) {
	data, err := readOrInit(ctx, s.backend, s.name, record.EmptyFile(s.codec))
	if err != nil {
		return nil, err
	}
	return s.decode(data)
}

// Add blocks date. An already blocked date is left as is, reason included.
// Duplicate rows left by hand edits are collapsed on the rewrite.
func (s *BlockedDates) Add(ctx context.Context, date, reason string) error {
	d, err := booking.ValidateDate("date", date)
	if err != nil {
		return err
	}
	key := d.String()

	unlock, err := s.backend.Lock(ctx, s.name)
	if err != nil {
		return err
	}
	defer unlock()

	rows, err := s.loadLocked()
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.Date == key {
			return nil
		}
	}

	rows = append(dedupe(rows), booking.BlockedDate{
		Date:      key,
		Reason:    strings.TrimSpace(reason),
		CreatedAt: s.opts.now(),
	})
	if err := s.replaceLocked(rows); err != nil {
		return err
	}
	s.opts.Logger.Info("date blocked", zap.String("date", key))
	return nil
}

// Remove unblocks date. Removing a date that is not blocked succeeds.
func (s *BlockedDates) Remove(ctx context.Context, date string) error {
	d, err := booking.ValidateDate("date", date)
	if err != nil {
		return err
	}
	key := d.String()

	unlock, err := s.backend.Lock(ctx, s.name)
	if err != nil {
		return err
	}
	defer unlock()

	rows, err := s.loadLocked()
	if err != nil {
		return err
	}
	kept := rows[:0]
	for _, r := range rows {
		if r.Date != key {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(rows) {
		return nil
	}
	if err := s.replaceLocked(kept); err != nil {
		return err
	}
	s.opts.Logger.Info("date unblocked", zap.String("date", key))
	return nil
}

// Dates skips rows whose date is not YYYY-MM-DD.
func (s *BlockedDates) Dates(ctx context.Context) (booking.DateSet, error) {
	rows, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	set := booking.NewDateSet()
	for _, r := range rows {
		if d, err := booking.ParseDate(r.Date); err == nil {
			set.Add(d)
		}
	}
	return set, nil
}

func (s *BlockedDates) loadLocked() ([]booking.BlockedDate, error) {
	data, err := readOrInitLocked(s.backend, s.name, record.EmptyFile(s.codec))
	if err != nil {
		return nil, err
	}
	return s.decode(data)
}

func (s *BlockedDates) replaceLocked(rows []booking.BlockedDate) error {
	out, err := record.Encode(s.codec, rows)
	if err != nil {
		return &booking.StorageError{Op: "encode", Path: s.name, Err: err}
	}
	return s.backend.Replace(s.name, out)
}

func (s *BlockedDates) decode(data []byte) ([]booking.BlockedDate, error) {
	rows, err := record.Decode(data, s.codec)
	if err != nil {
		return nil, &booking.StorageError{Op: "decode", Path: s.name, Err: err}
	}
	return rows, nil
}

// dedupe keeps the first row for each date.
func dedupe(rows []booking.BlockedDate) []booking.BlockedDate {
	seen := make(map[string]bool, len(rows))
	out := make([]booking.BlockedDate, 0, len(rows)+1)
	for _, r := range rows {
		if seen[r.Date] {
			continue
		}
		seen[r.Date] = true
		out = append(out, r)
	}
	return out
}
