package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alecgard/cascade/internal/apperr"
	"github.com/alecgard/cascade/internal/company"
	"github.com/alecgard/cascade/internal/role"
	"github.com/go-chi/chi/v5"
)

type contextKey int

const payloadContextKey contextKey = iota

// ContextWithPayload returns a new context carrying the caller's snapshot.
func ContextWithPayload(ctx context.Context, p *Payload) context.Context {
	return context.WithValue(ctx, payloadContextKey, p)
}

// PayloadFromContext extracts the caller's snapshot, or nil if not present.
func PayloadFromContext(ctx context.Context) *Payload {
	p, _ := ctx.Value(payloadContextKey).(*Payload)
	return p
}

// RoleLookup resolves a role id to its current record.
type RoleLookup interface {
	GetByID(ctx context.Context, id string) (*role.Role, error)
}

// DepartmentLookup resolves a department id to its current record.
type DepartmentLookup interface {
	GetByID(ctx context.Context, id string) (*company.Department, error)
}

// Allow-lists for the role-gated routes.
var (
	TaskManagers      = []role.Level{role.LevelManager, role.LevelTopLevelManager, role.LevelCompanyAdmin}
	ObjectiveManagers = []role.Level{role.LevelTopLevelManager, role.LevelCompanyAdmin}
)

const (
	msgBadRequest    = "Bad request. Please check your request again."
	msgUnexpected    = "An unexpected error occurred. Please try again later."
	msgAccessDenied  = "Access denied."
	msgInvalidAccess = "Invalid or expired access token."
)

// Middleware authenticates requests with access tokens and enforces the
// hierarchy-level gates. Levels are always resolved from the role store;
// the token only says which roles the caller holds.
type Middleware struct {
	tokens      *TokenService
	roles       RoleLookup
	departments DepartmentLookup
}

func NewMiddleware(tokens *TokenService, roles RoleLookup, departments DepartmentLookup) *Middleware {
	return &Middleware{tokens: tokens, roles: roles, departments: departments}
}

// Authenticate verifies the bearer access token and injects its payload.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			m.tokens.observer.IncAuthFailure("missing_header")
			writeError(w, http.StatusBadRequest, msgBadRequest, "The authorization header is missing.")
			return
		}
		token, ok := parseBearer(header)
		if !ok {
			m.tokens.observer.IncAuthFailure("malformed_header")
			writeError(w, http.StatusBadRequest, msgBadRequest,
				"The authorization is not a Bearer type or token is missing.")
			return
		}

		claims, err := m.tokens.VerifyAccessToken(token)
		if err != nil {
			m.tokens.observer.IncAuthFailure("invalid_token")
			detail := err.Error()
			if ae, ok := apperr.As(err); ok && ae.Detail != "" {
				detail = ae.Detail
			}
			writeError(w, http.StatusUnauthorized, msgInvalidAccess, detail)
			return
		}
		if claims.UserID == "" || claims.WebAppRole == "" || claims.CompanyRoles == nil {
			m.tokens.observer.IncAuthFailure("missing_claims")
			writeError(w, http.StatusForbidden, "Forbidden access. Authorization failed.",
				"Invalid token. Missing values from the token payload.")
			return
		}

		m.tokens.observer.IncAuthSuccess("access")
		next.ServeHTTP(w, r.WithContext(ContextWithPayload(r.Context(), claims.Payload())))
	})
}

// RequireRoleLevel admits callers holding the role named by the roleParam
// URL parameter when that role's level is one of allowed.
func (m *Middleware) RequireRoleLevel(roleParam string, allowed ...role.Level) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PayloadFromContext(r.Context())
			roleID := chi.URLParam(r, roleParam)
			if p == nil {
				writeError(w, http.StatusForbidden, msgAccessDenied, "Role not found for the user.")
				return
			}
			if _, ok := p.Membership(roleID); !ok {
				writeError(w, http.StatusForbidden, msgAccessDenied, "Role not found for the user.")
				return
			}

			rl, err := m.roles.GetByID(r.Context(), roleID)
			if err != nil {
				if errors.Is(err, role.ErrNotFound) {
					writeError(w, http.StatusForbidden, msgAccessDenied, "Role not found for the user.")
					return
				}
				slog.Error("resolving role level", "role_id", roleID, "error", err)
				writeError(w, http.StatusInternalServerError, msgUnexpected, err.Error())
				return
			}
			if !levelIn(rl.HierarchyLevel, allowed) {
				writeError(w, http.StatusForbidden, msgAccessDenied, "Insufficient permissions.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoleHolder admits callers whose token carries a membership for the
// role named by the roleParam URL parameter, whatever its level.
func (m *Middleware) RequireRoleHolder(roleParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PayloadFromContext(r.Context())
			if p == nil {
				writeError(w, http.StatusForbidden, msgAccessDenied, "Role not found for the user.")
				return
			}
			if _, ok := p.Membership(chi.URLParam(r, roleParam)); !ok {
				writeError(w, http.StatusForbidden, msgAccessDenied, "Role not found for the user.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCompanyAdmin admits callers holding a COMPANY_ADMIN role in the
// company that owns the department named by the departmentId URL parameter.
func (m *Middleware) RequireCompanyAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		departmentID := chi.URLParam(r, "departmentId")
		dept, err := m.departments.GetByID(r.Context(), departmentID)
		if err != nil {
			if errors.Is(err, company.ErrDepartmentNotFound) {
				writeError(w, http.StatusNotFound, "Department not found", "Department ID is not valid")
				return
			}
			slog.Error("resolving department", "department_id", departmentID, "error", err)
			writeError(w, http.StatusInternalServerError, msgUnexpected, err.Error())
			return
		}
		m.admitCompanyAdmin(w, r, next, dept.CompanyID)
	})
}

// RequireCompanyAdminOf admits callers holding a COMPANY_ADMIN role in the
// company named by the companyParam URL parameter.
func (m *Middleware) RequireCompanyAdminOf(companyParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.admitCompanyAdmin(w, r, next, chi.URLParam(r, companyParam))
		})
	}
}

func (m *Middleware) admitCompanyAdmin(w http.ResponseWriter, r *http.Request, next http.Handler, companyID string) {
	p := PayloadFromContext(r.Context())
	if p != nil && companyID != "" {
		for _, ms := range p.MembershipsIn(companyID) {
			rl, err := m.roles.GetByID(r.Context(), ms.RoleID)
			if err != nil {
				if errors.Is(err, role.ErrNotFound) {
					continue
				}
				slog.Error("resolving role level", "role_id", ms.RoleID, "error", err)
				writeError(w, http.StatusInternalServerError, msgUnexpected, err.Error())
				return
			}
			if rl.HierarchyLevel == role.LevelCompanyAdmin {
				next.ServeHTTP(w, r)
				return
			}
		}
	}
	writeError(w, http.StatusForbidden, msgAccessDenied, "Not a company admin or in the same company.")
}

// parseBearer accepts exactly "Bearer <token>".
func parseBearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" || token == "" || strings.Contains(token, " ") {
		return "", false
	}
	return token, true
}

func levelIn(l role.Level, allowed []role.Level) bool {
	for _, a := range allowed {
		if a == l {
			return true
		}
	}
	return false
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Status:  "error",
		Message: message,
		Error:   detail,
	})
}
