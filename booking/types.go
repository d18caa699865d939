/*
Package booking provides the core of the reservation engine.

PURPOSE:
  Domain types, the availability policy and the booking workflow. The
  package owns no files: persistence lives behind the store interfaces in
  store.go and is implemented by package store.

KEY CONCEPTS IN THIS FILE (types.go):
  - Reservation: one booking against a calendar date
  - BlockedDate: a date an operator marked unavailable
  - Credential: login id/password for one of two fixed roles
  - NewReservation / ReservationPatch: create and partial-update inputs

LAYERING:
  The store does NOT enforce one reservation per date. That decision is
  made by Policy.Evaluate at creation time only, so an administrative
  override (Service.ForceBook) may place a second reservation on a date.

SEE ALSO:
  - policy.go: availability rules
  - service.go: create = validate -> policy -> store -> notify
  - record/: file encoding of these types
*/
package booking

import (
	"strings"
	"time"
)

// =============================================================================
// RESERVATION
// =============================================================================

// AnonymousLabel is shown in place of the company name for anonymous bookings.
const AnonymousLabel = "匿名"

type Reservation struct {
	ID          int       `json:"id"`
	Date        string    `json:"date"` // ISO YYYY-MM-DD as stored; legacy rows may hold other text
	Time        string    `json:"time"` // slot label: "午前", "午後", or any custom text
	CompanyName string    `json:"name"`
	Contact     string    `json:"contact,omitempty"` // optional email
	Anonymous   bool      `json:"anonymous"`
	Category    string    `json:"category"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // set once by Create, never mutated

	// CreatedAtText holds a created_at cell that is not a recognized
	// timestamp. It is written back unchanged.
	CreatedAtText string `json:"-"`
}

// DisplayName returns the name to show publicly.
func (r Reservation) DisplayName() string {
	if r.Anonymous {
		return AnonymousLabel
	}
	return r.CompanyName
}

// Day parses the stored date. ok is false for legacy rows with free text.
func (r Reservation) Day() (Date, bool) {
	d, err := ParseDate(r.Date)
	return d, err == nil
}

// NewReservation is the input of a create. Field names in validation
// errors follow the json tags.
type NewReservation struct {
	Name      string `json:"name" validate:"required"`
	Contact   string `json:"contact"`
	Date      string `json:"date" validate:"required"`
	Time      string `json:"time" validate:"required"`
	Anonymous bool   `json:"anonymous"`
	Category  string `json:"category" validate:"required"`
	Note      string `json:"note"`
}

// Normalize trims every text field.
func (n NewReservation) Normalize() NewReservation {
	n.Name = strings.TrimSpace(n.Name)
	n.Contact = strings.TrimSpace(n.Contact)
	n.Date = strings.TrimSpace(n.Date)
	n.Time = strings.TrimSpace(n.Time)
	n.Category = strings.TrimSpace(n.Category)
	n.Note = strings.TrimSpace(n.Note)
	return n
}

// StaffContact is one entry of the staff mail list. Staff receive the
// reminder digest.
type StaffContact struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// ReservationPatch carries the fields an update may change.
// A nil pointer leaves the stored value untouched.
type ReservationPatch struct {
	Date     *string `json:"date,omitempty"`
	Time     *string `json:"time,omitempty"`
	Category *string `json:"category,omitempty"`
	Note     *string `json:"note,omitempty"`
}

// Apply writes the present fields onto r. ID and CreatedAt are never touched.
func (p ReservationPatch) Apply(r *Reservation) {
	if p.Date != nil {
		r.Date = strings.TrimSpace(*p.Date)
	}
	if p.Time != nil {
		r.Time = strings.TrimSpace(*p.Time)
	}
	if p.Category != nil {
		r.Category = strings.TrimSpace(*p.Category)
	}
	if p.Note != nil {
		r.Note = strings.TrimSpace(*p.Note)
	}
}

// =============================================================================
// BLOCKED DATE
// =============================================================================

type BlockedDate struct {
	Date      string    `json:"date"` // unique key within the store
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`

	CreatedAtText string `json:"-"` // see Reservation.CreatedAtText
}

// =============================================================================
// CREDENTIAL - two fixed roles, plaintext (known weakness, kept for compatibility)
// =============================================================================

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Roles is the closed set of roles.
var Roles = []Role{RoleAdmin, RoleUser}

// ParseRole rejects anything outside Roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.TrimSpace(s)); r {
	case RoleAdmin, RoleUser:
		return r, nil
	default:
		return "", &UnknownRoleError{Role: s}
	}
}

type Credential struct {
	Role     Role   `json:"-"`
	ID       string `json:"id"`
	Password string `json:"password"`
}

// DefaultCredential is the published factory credential for a role.
// It is not a secret.
func DefaultCredential(role Role) Credential {
	return Credential{Role: role, ID: string(role), Password: string(role) + "123"}
}
