package api

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/booking-engine/booking"
)

// =============================================================================
// AUTH ACTIONS - /api/auth?action=
// =============================================================================

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	OK   bool   `json:"ok"`
	Role string `json:"role"`
	ID   string `json:"id"`
}

// Auth dispatches /api/auth?action=<name>.
func (h *Handler) Auth(w http.ResponseWriter, r *http.Request) {
	switch action := strings.TrimSpace(r.URL.Query().Get("action")); action {
	case "login":
		h.login(w, r)
	case "get_ids":
		h.serve(http.StatusOK, h.accountIDs)(w, r)
	case "change_password":
		h.serve(http.StatusOK, h.changePassword)(w, r)
	case "update_account":
		h.serve(http.StatusOK, h.updateAccount)(w, r)
	case "ping":
		writeJSON(w, http.StatusOK, OKResponse{OK: true})
	default:
		h.writeDomainError(w, r, &booking.UnknownActionError{Action: action})
	}
}

// login answers 401 on a mismatch so clients can tell it from bad input.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	var missing []string
	if strings.TrimSpace(req.Role) == "" {
		missing = append(missing, "role")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		h.writeDomainError(w, r, &booking.ValidationError{Missing: missing})
		return
	}

	role, err := booking.ParseRole(req.Role)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	ok, err := h.Credentials.Verify(r.Context(), role, req.Password)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if !ok {
		h.Logger.Warn("login rejected", zap.String("role", string(role)))
		writeError(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	cred, err := h.Credentials.Get(r.Context(), role)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{OK: true, Role: string(role), ID: cred.ID})
}

func (h *Handler) accountIDs(r *http.Request) (any, error) {
	ids, err := h.Credentials.IDs(r.Context())
	if err != nil {
		return nil, err
	}
	out := make(map[string]AccountIDDTO, len(ids))
	for role, id := range ids {
		out[string(role)] = AccountIDDTO{ID: id}
	}
	return out, nil
}

func (h *Handler) changePassword(r *http.Request) (any, error) {
	var req ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	role, err := h.authorizeFor(r, req.Role)
	if err != nil {
		return nil, err
	}
	if req.NewPassword == "" {
		return nil, &booking.ValidationError{Missing: []string{"new_password"}}
	}
	if err := h.Credentials.SetPassword(r.Context(), role, req.NewPassword); err != nil {
		return nil, err
	}
	h.Logger.Info("password changed", zap.String("role", string(role)))
	return OKResponse{OK: true}, nil
}

func (h *Handler) updateAccount(r *http.Request) (any, error) {
	var req UpdateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	role, err := h.authorizeFor(r, req.Role)
	if err != nil {
		return nil, err
	}
	if req.ID == nil && req.Password == nil {
		return nil, &booking.ValidationError{Missing: []string{"id", "password"}, Message: "nothing to update"}
	}
	if req.ID != nil {
		if err := h.Credentials.SetID(r.Context(), role, *req.ID); err != nil {
			return nil, err
		}
	}
	if req.Password != nil {
		if err := h.Credentials.SetPassword(r.Context(), role, *req.Password); err != nil {
			return nil, err
		}
	}
	h.Logger.Info("account updated", zap.String("role", string(role)))
	return OKResponse{OK: true}, nil
}

// =============================================================================
// BASIC AUTH
// =============================================================================

// errUnauthorized is mapped to 401 by writeDomainError.
var errUnauthorized = errors.New("authentication required")

// authenticate checks basic auth where the username is the role.
func (h *Handler) authenticate(r *http.Request) (booking.Role, error) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return "", errUnauthorized
	}
	role, err := booking.ParseRole(user)
	if err != nil {
		return "", errUnauthorized
	}
	valid, err := h.Credentials.Verify(r.Context(), role, pass)
	if err != nil {
		return "", err
	}
	if !valid {
		return "", errUnauthorized
	}
	return role, nil
}

// authorizeFor resolves the target role and requires the caller to be that
// role or admin.
func (h *Handler) authorizeFor(r *http.Request, target string) (booking.Role, error) {
	role, err := booking.ParseRole(target)
	if err != nil {
		return "", err
	}
	caller, err := h.authenticate(r)
	if err != nil {
		return "", err
	}
	if caller != role && caller != booking.RoleAdmin {
		return "", errUnauthorized
	}
	return role, nil
}

// requireAdmin fails unless the request carries admin basic auth.
func (h *Handler) requireAdmin(r *http.Request) error {
	role, err := h.authenticate(r)
	if err != nil {
		return err
	}
	if role != booking.RoleAdmin {
		return errUnauthorized
	}
	return nil
}

// adminOnly guards one action of a dispatcher that also serves public ones.
func (h *Handler) adminOnly(fn apiFunc) apiFunc {
	return func(r *http.Request) (any, error) {
		if err := h.requireAdmin(r); err != nil {
			return nil, err
		}
		return fn(r)
	}
}

// RequireAdmin rejects requests without admin basic auth.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.requireAdmin(r); err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
