/*
handlers.go - HTTP API handlers for the booking engine

PURPOSE:
  Exposes reservations, blocked dates, availability and credentials over
  HTTP. Handles request/response encoding and maps domain errors to status
  codes; every decision is delegated to booking.Service and the stores.

ENDPOINTS:
  Action API (one URL, operation in ?action=):
    GET|POST /api?action=list            List reservations
    POST     /api?action=create          Book (policy enforced)  -> {id}
    POST     /api?action=update          Partial update {id, ...}
    POST     /api?action=delete          Delete {id}
    GET      /api?action=blocked_list    List blocked dates
    POST     /api?action=blocked_add     Block {date, reason}
    POST     /api?action=blocked_delete  Unblock {date}
    GET      /api?action=check&date=     Availability of one date
    GET      /api?action=mail_list       Staff mail list       (admin)
    POST     /api?action=mail_add        Add {name, email}     (admin)
    POST     /api?action=mail_delete     Remove {email}        (admin)

  REST:
    GET    /api/reservations              List
    POST   /api/reservations              Book
    PATCH  /api/reservations/{id}         Partial update
    DELETE /api/reservations/{id}         Delete
    GET    /api/blocked-dates             List
    POST   /api/blocked-dates             Block
    DELETE /api/blocked-dates/{date}      Unblock
    GET    /api/availability?date=        One date
    GET    /api/availability?from=&to=    Every date in range

  Auth:
    POST /api/auth?action=login|get_ids|change_password|update_account

  Admin (basic auth, admin role):
    POST   /api/admin/reservations          Book without the policy check
    GET    /api/admin/staff-emails          Staff mail list
    POST   /api/admin/staff-emails          Add
    DELETE /api/admin/staff-emails/{email}  Remove

ERROR HANDLING:
  Errors are returned as {"ok": false, "error": ..., "details": ...}:
  - 400: Validation errors, unknown role, unknown action
  - 401: Bad credentials
  - 404: Reservation not found
  - 409: Date not bookable
  - 500: Storage failures

SECURITY NOTE:
  The action and REST APIs are public, as are login and get_ids. Changing
  a credential needs basic auth as that role or as admin. The staff mail
  list needs admin basic auth on every route.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/booking-engine/booking"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service     *booking.Service
	Credentials booking.CredentialStore
	Staff       booking.StaffEmailStore // optional; mail_* actions need it
	Location    *time.Location
	Logger      *zap.Logger
}

// NewHandler creates a handler over the service and credential store.
func NewHandler(svc *booking.Service, creds booking.CredentialStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := svc.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{Service: svc, Credentials: creds, Location: loc, Logger: logger}
}

// apiFunc produces a response body or an error.
type apiFunc func(r *http.Request) (any, error)

// serve adapts an apiFunc: success writes status, failure goes through writeDomainError.
func (h *Handler) serve(status int, fn apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := fn(r)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, status, data)
	}
}

// =============================================================================
// ACTION API
// =============================================================================

// Action dispatches /api?action=<name>.
func (h *Handler) Action(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimSpace(r.URL.Query().Get("action"))

	var fn apiFunc
	switch action {
	case "list":
		fn = h.listReservations
	case "create":
		fn = h.createReservation
	case "update":
		fn = h.updateFromBody
	case "delete":
		fn = h.deleteFromBody
	case "blocked_list":
		fn = h.listBlocked
	case "blocked_add":
		fn = h.addBlocked
	case "blocked_delete":
		fn = h.removeBlockedFromBody
	case "check":
		fn = h.checkDate
	case "mail_list":
		fn = h.adminOnly(h.listStaff)
	case "mail_add":
		fn = h.adminOnly(h.addStaff)
	case "mail_delete":
		fn = h.adminOnly(h.removeStaffFromBody)
	default:
		h.writeDomainError(w, r, &booking.UnknownActionError{Action: action})
		return
	}
	if strings.HasPrefix(action, "mail_") && h.Staff == nil {
		h.writeDomainError(w, r, &booking.UnknownActionError{Action: action})
		return
	}
	h.serve(http.StatusOK, fn)(w, r)
}

// =============================================================================
// RESERVATION ENDPOINTS
// =============================================================================

func (h *Handler) listReservations(r *http.Request) (any, error) {
	rows, err := h.Service.Reservations.List(r.Context())
	if err != nil {
		return nil, err
	}
	return toReservationDTOs(rows, h.Location), nil
}

func (h *Handler) createReservation(r *http.Request) (any, error) {
	var req CreateReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	id, err := h.Service.Book(r.Context(), req.toDomain())
	if err != nil {
		return nil, err
	}
	return CreatedResponse{ID: id}, nil
}

func (h *Handler) forceCreateReservation(r *http.Request) (any, error) {
	var req CreateReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	id, err := h.Service.ForceBook(r.Context(), req.toDomain())
	if err != nil {
		return nil, err
	}
	return CreatedResponse{ID: id}, nil
}

func (h *Handler) updateFromBody(r *http.Request) (any, error) {
	var req UpdateReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return h.update(r.Context(), req.ID, req.patch())
}

func (h *Handler) updateFromPath(r *http.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	var req UpdateReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return h.update(r.Context(), id, req.patch())
}

func (h *Handler) update(ctx context.Context, id int, patch booking.ReservationPatch) (any, error) {
	if err := h.Service.Reservations.Update(ctx, id, patch); err != nil {
		return nil, err
	}
	h.Logger.Info("reservation updated", zap.Int("id", id))
	return OKResponse{OK: true}, nil
}

func (h *Handler) deleteFromBody(r *http.Request) (any, error) {
	var req DeleteReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return h.delete(r.Context(), req.ID)
}

func (h *Handler) deleteFromPath(r *http.Request) (any, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}
	return h.delete(r.Context(), id)
}

func (h *Handler) delete(ctx context.Context, id int) (any, error) {
	if err := h.Service.Reservations.Delete(ctx, id); err != nil {
		return nil, err
	}
	h.Logger.Info("reservation deleted", zap.Int("id", id))
	return OKResponse{OK: true}, nil
}

// =============================================================================
// BLOCKED DATE ENDPOINTS
// =============================================================================

func (h *Handler) listBlocked(r *http.Request) (any, error) {
	rows, err := h.Service.Blocked.List(r.Context())
	if err != nil {
		return nil, err
	}
	return toBlockedDateDTOs(rows), nil
}

func (h *Handler) addBlocked(r *http.Request) (any, error) {
	var req BlockedDateRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	if err := h.Service.Blocked.Add(r.Context(), req.Date, req.Reason); err != nil {
		return nil, err
	}
	return OKResponse{OK: true}, nil
}

func (h *Handler) removeBlockedFromBody(r *http.Request) (any, error) {
	var req BlockedDateRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return h.removeBlocked(r.Context(), req.Date)
}

func (h *Handler) removeBlockedFromPath(r *http.Request) (any, error) {
	return h.removeBlocked(r.Context(), chi.URLParam(r, "date"))
}

func (h *Handler) removeBlocked(ctx context.Context, date string) (any, error) {
	if err := h.Service.Blocked.Remove(ctx, date); err != nil {
		return nil, err
	}
	return OKResponse{OK: true}, nil
}

// =============================================================================
// STAFF MAIL LIST ENDPOINTS
// =============================================================================

func (h *Handler) listStaff(r *http.Request) (any, error) {
	rows, err := h.Staff.List(r.Context())
	if err != nil {
		return nil, err
	}
	return toStaffEmailDTOs(rows), nil
}

func (h *Handler) addStaff(r *http.Request) (any, error) {
	var req StaffEmailDTO
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	if err := h.Staff.Add(r.Context(), booking.StaffContact{Name: req.Name, Email: req.Email}); err != nil {
		return nil, err
	}
	return OKResponse{OK: true}, nil
}

func (h *Handler) removeStaffFromBody(r *http.Request) (any, error) {
	var req StaffEmailDTO
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return h.removeStaff(r.Context(), req.Email)
}

func (h *Handler) removeStaffFromPath(r *http.Request) (any, error) {
	return h.removeStaff(r.Context(), chi.URLParam(r, "email"))
}

func (h *Handler) removeStaff(ctx context.Context, email string) (any, error) {
	if err := h.Staff.Remove(ctx, email); err != nil {
		return nil, err
	}
	return OKResponse{OK: true}, nil
}

// =============================================================================
// AVAILABILITY ENDPOINTS
// =============================================================================

func (h *Handler) checkDate(r *http.Request) (any, error) {
	d, err := booking.ValidateDate("date", r.URL.Query().Get("date"))
	if err != nil {
		return nil, err
	}
	dec, err := h.Service.Check(r.Context(), d)
	if err != nil {
		return nil, err
	}
	return toAvailabilityDTO(d, dec), nil
}

// maxCalendarDays bounds a from/to query.
const maxCalendarDays = 366

// availability answers ?date= for one day or ?from=&to= for a range.
func (h *Handler) availability(r *http.Request) (any, error) {
	q := r.URL.Query()
	if q.Get("date") != "" {
		return h.checkDate(r)
	}

	from, err := booking.ValidateDate("from", q.Get("from"))
	if err != nil {
		return nil, err
	}
	to, err := booking.ValidateDate("to", q.Get("to"))
	if err != nil {
		return nil, err
	}
	if booking.DaysBetween(from, to) >= maxCalendarDays {
		return nil, booking.InvalidField("to", fmt.Sprintf("range must not exceed %d days", maxCalendarDays))
	}

	days, err := h.Service.Calendar(r.Context(), from, to)
	if err != nil {
		return nil, err
	}
	out := make([]AvailabilityDTO, 0, len(days))
	for _, d := range days {
		out = append(out, toAvailabilityDTO(d.Date, d.Decision))
	}
	return out, nil
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"status": "healthy",
		"time":   time.Now().In(h.Location).Format(time.RFC3339),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, ErrorResponse{OK: false, Error: message, Details: details})
}

// writeDomainError maps an error to its status. Server-side failures are
// logged with the request id; client errors are not.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, details := classify(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="booking"`)
	}
	if status >= 500 {
		h.Logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, status, ErrorResponse{OK: false, Error: "storage failure, try again later", Code: code})
		return
	}
	writeJSON(w, status, ErrorResponse{OK: false, Error: err.Error(), Code: code, Details: details})
}

func classify(err error) (status int, code string, details any) {
	var (
		verr *booking.ValidationError
		nb   *booking.NotBookableError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation", map[string][]string{
			"missing": verr.Missing,
			"invalid": verr.Invalid,
		}
	case errors.As(err, &nb):
		return http.StatusConflict, "not_bookable", AvailabilityDTO{
			Date:    nb.Date.String(),
			Reason:  string(nb.Reason),
			Message: nb.Reason.Message(),
		}
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "unauthorized", nil
	case errors.Is(err, booking.ErrNotFound):
		return http.StatusNotFound, "not_found", nil
	case errors.Is(err, booking.ErrUnknownRole):
		return http.StatusBadRequest, "unknown_role", nil
	case errors.Is(err, booking.ErrUnknownAction):
		return http.StatusBadRequest, "unknown_action", nil
	case errors.Is(err, booking.ErrStorageIO):
		return http.StatusInternalServerError, "storage", nil
	default:
		return http.StatusInternalServerError, "internal", nil
	}
}

// decodeJSON reads a JSON object body. An empty or malformed body is a
// validation error.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil {
		return booking.InvalidField("body", "request body must be a JSON object")
	}
	return nil
}

func pathID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, booking.InvalidField("id", "id must be a positive integer")
	}
	return id, nil
}
