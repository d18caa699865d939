package store

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/booking-engine/booking"
)

// =============================================================================
// CREDENTIALS - JSON object keyed by role
// =============================================================================

// Credentials stores the login pair of each role as plaintext JSON:
//
//	{"admin": {"id": "admin", "password": "admin123"}, "user": {...}}
//
// A missing file is created with the defaults. A role missing from the file
// reads as its default until the next write persists it.
type Credentials struct {
	backend Backend
	name    string
	opts    Options
}

var _ booking.CredentialStore = (*Credentials)(nil)

func NewCredentials(backend Backend, name string, opts Options) *Credentials {
	return &Credentials{backend: backend, name: name, opts: opts.withDefaults()}
}

type credentialFile map[booking.Role]booking.Credential

func defaultCredentials() credentialFile {
	out := make(credentialFile, len(booking.Roles))
	for _, r := range booking.Roles {
		out[r] = booking.DefaultCredential(r)
	}
	return out
}

func (s *Credentials) Get(ctx context.Context, role booking.Role) (booking.Credential, error) {
	role, err := booking.ParseRole(string(role))
	if err != nil {
		return booking.Credential{}, err
	}
	creds, err := s.load(ctx)
	if err != nil {
		return booking.Credential{}, err
	}
	return creds[role], nil
}

// Verify compares the password in constant time. A mismatch is (false, nil).
func (s *Credentials) Verify(ctx context.Context, role booking.Role, password string) (bool, error) {
	c, err := s.Get(ctx, role)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(c.Password), []byte(password)) == 1, nil
}

func (s *Credentials) SetPassword(ctx context.Context, role booking.Role, password string) error {
	if password == "" {
		return booking.InvalidField("password", "password must not be empty")
	}
	return s.update(ctx, role, func(c *booking.Credential) { c.Password = password })
}

func (s *Credentials) SetID(ctx context.Context, role booking.Role, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return booking.InvalidField("id", "id must not be empty")
	}
	return s.update(ctx, role, func(c *booking.Credential) { c.ID = id })
}

// IDs returns the login id of every role.
func (s *Credentials) IDs(ctx context.Context) (map[booking.Role]string, error) {
	creds, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[booking.Role]string, len(creds))
	for role, c := range creds {
		out[role] = c.ID
	}
	return out, nil
}

func (s *Credentials) update(ctx context.Context, role booking.Role, fn func(*booking.Credential)) error {
	role, err := booking.ParseRole(string(role))
	if err != nil {
		return err
	}

	unlock, err := s.backend.Lock(ctx, s.name)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := readOrInitLocked(s.backend, s.name, s.encode(defaultCredentials()))
	if err != nil {
		return err
	}
	creds, err := s.decode(data)
	if err != nil {
		return err
	}
	c := creds[role]
	fn(&c)
	creds[role] = c

	if err := s.backend.Replace(s.name, s.encode(creds)); err != nil {
		return err
	}
	s.opts.Logger.Info("credential updated", zap.String("role", string(role)))
	return nil
}

func (s *Credentials) load(ctx context.Context) (credentialFile, error) {
	data, err := readOrInit(ctx, s.backend, s.name, s.encode(defaultCredentials()))
	if err != nil {
		return nil, err
	}
	return s.decode(data)
}

// decode fills missing roles with their defaults. Unknown keys are dropped.
// A file that is not valid JSON is a storage error and is never reset.
func (s *Credentials) decode(data []byte) (credentialFile, error) {
	raw := make(map[string]booking.Credential)
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, &booking.StorageError{Op: "decode", Path: s.name, Err: err}
		}
	}
	out := defaultCredentials()
	for _, role := range booking.Roles {
		if c, ok := raw[string(role)]; ok {
			c.Role = role
			out[role] = c
		}
	}
	return out, nil
}

func (s *Credentials) encode(creds credentialFile) []byte {
	data, _ := json.MarshalIndent(creds, "", "  ")
	return append(data, '\n')
}
