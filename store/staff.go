package store

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/record"
)

// StaffEmailsFile is the default staff mail list name.
const StaffEmailsFile = "admin_mail.csv"

// =============================================================================
// STAFF MAIL LIST - unique by address, every write is an atomic rewrite
// =============================================================================

type StaffEmails struct {
	backend Backend
	name    string
	codec   record.Codec[booking.StaffContact]
	opts    Options
}

var _ booking.StaffEmailStore = (*StaffEmails)(nil)

func NewStaffEmails(backend Backend, name string, opts Options) *StaffEmails {
	return &StaffEmails{
		backend: backend,
		name:    name,
		codec:   record.NewStaffCodec(),
		opts:    opts.withDefaults(),
	}
}

func (s *StaffEmails) List(ctx context.Context) ([]booking.StaffContact, error) {
	data, err := readOrInit(ctx, s.backend, s.name, record.EmptyFile(s.codec))
	if err != nil {
		return nil, err
	}
	return s.decode(data)
}

// Add appends c unless its address is already listed. The stored name of an
// existing entry is kept.
func (s *StaffEmails) Add(ctx context.Context, c booking.StaffContact) error {
	c, err := booking.ValidateStaffContact(c)
	if err != nil {
		return err
	}

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
		if strings.EqualFold(r.Email, c.Email) {
			return nil
		}
	}

	if err := s.replaceLocked(append(rows, c)); err != nil {
		return err
	}
	s.opts.Logger.Info("staff address added", zap.String("email", c.Email))
	return nil
}

// Remove drops every row for email. An unlisted address succeeds.
func (s *StaffEmails) Remove(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &booking.ValidationError{Missing: []string{"email"}}
	}

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
		if !strings.EqualFold(r.Email, email) {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(rows) {
		return nil
	}
	if err := s.replaceLocked(kept); err != nil {
		return err
	}
	s.opts.Logger.Info("staff address removed", zap.String("email", email))
	return nil
}

// Addresses skips malformed addresses and repeats, keeping file order.
func (s *StaffEmails) Addresses(ctx context.Context) ([]string, error) {
	rows, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(rows))
	var out []string
	for _, r := range rows {
		key := strings.ToLower(r.Email)
		if seen[key] || !booking.ValidEmail(r.Email) {
			continue
		}
		seen[key] = true
		out = append(out, r.Email)
	}
	return out, nil
}

func (s *StaffEmails) loadLocked() ([]booking.StaffContact, error) {
	data, err := readOrInitLocked(s.backend, s.name, record.EmptyFile(s.codec))
	if err != nil {
		return nil, err
	}
	return s.decode(data)
}

func (s *StaffEmails) replaceLocked(rows []booking.StaffContact) error {
	out, err := record.Encode(s.codec, rows)
	if err != nil {
		return &booking.StorageError{Op: "encode", Path: s.name, Err: err}
	}
	return s.backend.Replace(s.name, out)
}

func (s *StaffEmails) decode(data []byte) ([]booking.StaffContact, error) {
	rows, err := record.Decode(data, s.codec)
	if err != nil {
		return nil, &booking.StorageError{Op: "decode", Path: s.name, Err: err}
	}
	return rows, nil
}
