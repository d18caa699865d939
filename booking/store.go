/*
store.go - Persistence interfaces for reservations, blocked dates and credentials

PURPOSE:
  Defines the contract between the booking workflow and storage. Each store
  exclusively owns one backing file; nothing else writes it.

KEY INTERFACES:
  ReservationStore: CRUD over reservations, id allocation
  BlockedDateStore: idempotent set of excluded dates
  CredentialStore:  two fixed roles, self-initializing
  StaffEmailStore:  digest recipients, unique by address

ATOMICITY:
  Update/Delete/Add/Remove rewrite the whole file to a temp path and rename
  it over the original. Create appends one row: fast, but a crash mid-append
  can leave a truncated trailing line, which readers drop.

BOOKING RACE:
  Book re-evaluates the policy inside CreateIf, so two concurrent bookings
  for one date cannot both pass the ALREADY_RESERVED rule.

NO CROSS-STORE TRANSACTIONS:
  Reservations and blocked dates are separate lock domains. A workflow that
  writes both performs two independent atomic operations.

IMPLEMENTATIONS:
  - store/reservations.go, store/blocked.go, store/credentials.go over a
    store.Backend (Disk in production, Memory in tests)

SEE ALSO:
  - service.go: uses these interfaces
*/
package booking

import "context"

// ReservationStore persists reservations in insertion order.
type ReservationStore interface {
	// List returns every decodable row in file order.
	List(ctx context.Context) ([]Reservation, error)

	// Create validates, allocates id = max+1 and appends. Returns the id.
	Create(ctx context.Context, in NewReservation) (int, error)

	// CreateIf is Create guarded by admit, which sees the current rows while
	// the store is locked against other writers. An admit error aborts.
	CreateIf(ctx context.Context, in NewReservation, admit func(existing []Reservation) error) (int, error)

	// Update applies the present patch fields. ErrNotFound if id is absent.
	Update(ctx context.Context, id int, patch ReservationPatch) error

	// Delete removes exactly one row. ErrNotFound if id is absent.
	Delete(ctx context.Context, id int) error

	// ReservedDates returns the dates holding at least one reservation.
	ReservedDates(ctx context.Context) (DateSet, error)
}

// BlockedDateStore persists the dates an operator made unavailable.
type BlockedDateStore interface {
	List(ctx context.Context) ([]BlockedDate, error)

	// Add is idempotent: an existing date is a successful no-op.
	Add(ctx context.Context, date, reason string) error

	// Remove is idempotent: an absent date succeeds silently.
	Remove(ctx context.Context, date string) error

	// Dates returns the blocked dates as a set.
	Dates(ctx context.Context) (DateSet, error)
}

// CredentialStore holds the login pair for each role.
type CredentialStore interface {
	Get(ctx context.Context, role Role) (Credential, error)
	Verify(ctx context.Context, role Role, password string) (bool, error)
	SetPassword(ctx context.Context, role Role, password string) error
	SetID(ctx context.Context, role Role, id string) error
	IDs(ctx context.Context) (map[Role]string, error)
}

// StaffEmailStore persists the staff mail list.
type StaffEmailStore interface {
	List(ctx context.Context) ([]StaffContact, error)

	// Add is idempotent by address (case-insensitive).
	Add(ctx context.Context, c StaffContact) error

	// Remove is idempotent: an absent address succeeds silently.
	Remove(ctx context.Context, email string) error

	// Addresses returns the valid addresses, each once.
	Addresses(ctx context.Context) ([]string, error)
}
