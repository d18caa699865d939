/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes of the booking API. They decouple the file-backed domain
  types from the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Small response wrappers

TYPES:
  Reservations:
    ReservationDTO, CreateReservationRequest, UpdateReservationRequest,
    DeleteReservationRequest, CreatedResponse

  Blocked dates:
    BlockedDateDTO, BlockedDateRequest

  Availability:
    AvailabilityDTO

  Auth:
    LoginRequest, ChangePasswordRequest, UpdateAccountRequest, AccountIDDTO

  Staff mail list:
    StaffEmailDTO (request and response)

ANONYMOUS FLAG:
  Responses always carry a JSON bool. Requests also accept the strings
  stored in files ("はい", "いいえ", "true", "1", ...).

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/record"
)

// =============================================================================
// RESERVATIONS
// =============================================================================

// ReservationDTO represents a reservation in API responses.
type ReservationDTO struct {
	ID        int    `json:"id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Name      string `json:"name"`
	Contact   string `json:"contact"`
	Anonymous bool   `json:"anonymous"`
	Category  string `json:"category"`
	Note      string `json:"note"`
	CreatedAt string `json:"created_at"`
}

// FlexBool decodes a JSON bool, number or string.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*b = FlexBool(t)
	case float64:
		*b = t != 0
	case string:
		*b = FlexBool(record.ParseAnonymous(t))
	default:
		*b = false
	}
	return nil
}

// CreateReservationRequest is the body of a create.
type CreateReservationRequest struct {
	Name      string   `json:"name"`
	Contact   string   `json:"contact"`
	Date      string   `json:"date"`
	Time      string   `json:"time"`
	Anonymous FlexBool `json:"anonymous"`
	Category  string   `json:"category"`
	Note      string   `json:"note"`
}

func (r CreateReservationRequest) toDomain() booking.NewReservation {
	return booking.NewReservation{
		Name:      r.Name,
		Contact:   r.Contact,
		Date:      r.Date,
		Time:      r.Time,
		Anonymous: bool(r.Anonymous),
		Category:  r.Category,
		Note:      r.Note,
	}
}

// UpdateReservationRequest carries the id (action API only) and the fields
// to change. Absent fields are left untouched.
type UpdateReservationRequest struct {
	ID       int     `json:"id"`
	Date     *string `json:"date"`
	Time     *string `json:"time"`
	Category *string `json:"category"`
	Note     *string `json:"note"`
}

func (r UpdateReservationRequest) patch() booking.ReservationPatch {
	return booking.ReservationPatch{Date: r.Date, Time: r.Time, Category: r.Category, Note: r.Note}
}

// DeleteReservationRequest is the body of the delete action.
type DeleteReservationRequest struct {
	ID int `json:"id"`
}

// CreatedResponse returns the allocated id.
type CreatedResponse struct {
	ID int `json:"id"`
}

// =============================================================================
// BLOCKED DATES
// =============================================================================

type BlockedDateDTO struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

type BlockedDateRequest struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

// =============================================================================
// STAFF MAIL LIST
// =============================================================================

// StaffEmailDTO is one staff address. mail_delete only reads Email.
type StaffEmailDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// =============================================================================
// AVAILABILITY
// =============================================================================

// AvailabilityDTO is the policy decision for one date.
type AvailabilityDTO struct {
	Date     string `json:"date"`
	Bookable bool   `json:"bookable"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
}

// =============================================================================
// AUTH
// =============================================================================

type LoginRequest struct {
	Role     string `json:"role"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	Role        string `json:"role"`
	NewPassword string `json:"new_password"`
}

type UpdateAccountRequest struct {
	Role     string  `json:"role"`
	ID       *string `json:"id"`
	Password *string `json:"password"`
}

type AccountIDDTO struct {
	ID string `json:"id"`
}

// =============================================================================
// GENERIC RESPONSES
// =============================================================================

// OKResponse is the success marker.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toReservationDTO(r booking.Reservation, loc *time.Location) ReservationDTO {
	return ReservationDTO{
		ID:        r.ID,
		Date:      r.Date,
		Time:      r.Time,
		Name:      r.CompanyName,
		Contact:   r.Contact,
		Anonymous: r.Anonymous,
		Category:  r.Category,
		Note:      r.Note,
		CreatedAt: createdAtString(r, loc),
	}
}

func createdAtString(r booking.Reservation, loc *time.Location) string {
	if r.CreatedAt.IsZero() {
		return r.CreatedAtText
	}
	return record.FormatTimestamp(r.CreatedAt, loc)
}

func toReservationDTOs(rs []booking.Reservation, loc *time.Location) []ReservationDTO {
	out := make([]ReservationDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toReservationDTO(r, loc))
	}
	return out
}

func toBlockedDateDTOs(bs []booking.BlockedDate) []BlockedDateDTO {
	out := make([]BlockedDateDTO, 0, len(bs))
	for _, b := range bs {
		out = append(out, BlockedDateDTO{Date: b.Date, Reason: b.Reason})
	}
	return out
}

func toAvailabilityDTO(d booking.Date, dec booking.Decision) AvailabilityDTO {
	return AvailabilityDTO{
		Date:     d.String(),
		Bookable: dec.Bookable,
		Reason:   string(dec.Reason),
		Message:  dec.Reason.Message(),
	}
}

func toStaffEmailDTOs(cs []booking.StaffContact) []StaffEmailDTO {
	out := make([]StaffEmailDTO, 0, len(cs))
	for _, c := range cs {
		out = append(out, StaffEmailDTO{Name: c.Name, Email: c.Email})
	}
	return out
}
