package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alecgard/cascade/internal/role"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMiddleware(t *testing.T) (*Middleware, *TokenService, *clock) {
	t.Helper()
	svc, c := newTestService(t, newFakeAccounts())
	roles := fakeRoles{
		"role-admin":    {ID: "role-admin", DepartmentID: "dep-1", HierarchyLevel: role.LevelCompanyAdmin},
		"role-top":      {ID: "role-top", DepartmentID: "dep-1", HierarchyLevel: role.LevelTopLevelManager},
		"role-manager":  {ID: "role-manager", DepartmentID: "dep-1", HierarchyLevel: role.LevelManager},
		"role-employee": {ID: "role-employee", DepartmentID: "dep-1", HierarchyLevel: role.LevelEmployee},
		"role-other":    {ID: "role-other", DepartmentID: "dep-2", HierarchyLevel: role.LevelCompanyAdmin},
	}
	departments := fakeDepartments{
		"dep-1": {ID: "dep-1", CompanyID: "co-1", Name: "Cascade"},
		"dep-2": {ID: "dep-2", CompanyID: "co-2", Name: "Elsewhere"},
	}
	return NewMiddleware(svc, roles, departments), svc, c
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "error", resp.Status)
	return resp
}

func TestAuthenticate(t *testing.T) {
	mw, svc, _ := newTestMiddleware(t)

	valid, err := svc.IssueAccessToken(samplePayload())
	require.NoError(t, err)
	noUser, err := svc.IssueAccessToken(&Payload{WebAppRole: "USER"})
	require.NoError(t, err)
	noRoles, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId":     "user-1",
		"webAppRole": "USER",
		"iss":        issuer,
		"exp":        time.Date(2030, 1, 1, 13, 0, 0, 0, time.UTC).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantError  string
	}{
		{
			name:       "valid token",
			authHeader: "Bearer " + valid,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			wantStatus: http.StatusBadRequest,
			wantError:  "The authorization header is missing.",
		},
		{
			name:       "wrong scheme",
			authHeader: "Token " + valid,
			wantStatus: http.StatusBadRequest,
			wantError:  "The authorization is not a Bearer type or token is missing.",
		},
		{
			name:       "bearer without token",
			authHeader: "Bearer",
			wantStatus: http.StatusBadRequest,
			wantError:  "The authorization is not a Bearer type or token is missing.",
		},
		{
			name:       "lowercase bearer",
			authHeader: "bearer " + valid,
			wantStatus: http.StatusBadRequest,
			wantError:  "The authorization is not a Bearer type or token is missing.",
		},
		{
			name:       "bad signature",
			authHeader: "Bearer " + valid + "x",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing userId",
			authHeader: "Bearer " + noUser,
			wantStatus: http.StatusForbidden,
			wantError:  "Invalid token. Missing values from the token payload.",
		},
		{
			name:       "missing companyRoles",
			authHeader: "Bearer " + noRoles,
			wantStatus: http.StatusForbidden,
			wantError:  "Invalid token. Missing values from the token payload.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *Payload
			handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = PayloadFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, "user-1", seen.UserID)
				return
			}
			resp := decodeError(t, rr)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, resp.Error)
			}
		})
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	mw, svc, c := newTestMiddleware(t)

	token, err := svc.IssueAccessToken(samplePayload())
	require.NoError(t, err)
	c.Advance(time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	})).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func serveGate(t *testing.T, gate func(http.Handler) http.Handler, pattern, path string, p *Payload) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if p != nil {
				req = req.WithContext(ContextWithPayload(req.Context(), p))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.With(gate).Post(pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, path, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func holding(roleIDs ...string) *Payload {
	p := &Payload{UserID: "user-1", WebAppRole: "USER", CompanyRoles: []Membership{}}
	for _, id := range roleIDs {
		p.CompanyRoles = append(p.CompanyRoles, Membership{ID: "m-" + id, CompanyID: "co-1", DepartmentID: "dep-1", RoleID: id})
	}
	return p
}

func TestRequireRoleLevel(t *testing.T) {
	mw, _, _ := newTestMiddleware(t)

	tests := []struct {
		name       string
		allowed    []role.Level
		roleID     string
		payload    *Payload
		wantStatus int
		wantError  string
	}{
		{name: "manager manages tasks", allowed: TaskManagers, roleID: "role-manager", payload: holding("role-manager"), wantStatus: http.StatusNoContent},
		{name: "admin manages tasks", allowed: TaskManagers, roleID: "role-admin", payload: holding("role-admin"), wantStatus: http.StatusNoContent},
		{name: "employee cannot manage tasks", allowed: TaskManagers, roleID: "role-employee", payload: holding("role-employee"), wantStatus: http.StatusForbidden, wantError: "Insufficient permissions."},
		{name: "manager cannot manage objectives", allowed: ObjectiveManagers, roleID: "role-manager", payload: holding("role-manager"), wantStatus: http.StatusForbidden, wantError: "Insufficient permissions."},
		{name: "top level manages objectives", allowed: ObjectiveManagers, roleID: "role-top", payload: holding("role-top"), wantStatus: http.StatusNoContent},
		{name: "role not held", allowed: TaskManagers, roleID: "role-admin", payload: holding("role-employee"), wantStatus: http.StatusForbidden, wantError: "Role not found for the user."},
		{name: "held role deleted", allowed: TaskManagers, roleID: "role-gone", payload: holding("role-gone"), wantStatus: http.StatusForbidden, wantError: "Role not found for the user."},
		{name: "no payload", allowed: TaskManagers, roleID: "role-admin", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serveGate(t, mw.RequireRoleLevel("roleId", tt.allowed...),
				"/roles/{roleId}/tasks", "/roles/"+tt.roleID+"/tasks", tt.payload)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, rr).Error)
			}
		})
	}
}

func TestRequireRoleLevel_UsesStoredLevel(t *testing.T) {
	mw, _, _ := newTestMiddleware(t)
	// A token cannot raise its own level: the membership only names the role.
	mw.roles.(fakeRoles)["role-manager"] = &role.Role{ID: "role-manager", HierarchyLevel: role.LevelEmployee}

	rr := serveGate(t, mw.RequireRoleLevel("roleId", TaskManagers...),
		"/roles/{roleId}/tasks", "/roles/role-manager/tasks", holding("role-manager"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireCompanyAdmin(t *testing.T) {
	mw, _, _ := newTestMiddleware(t)

	otherCompanyAdmin := &Payload{UserID: "user-1", WebAppRole: "USER", CompanyRoles: []Membership{
		{ID: "m-1", CompanyID: "co-2", DepartmentID: "dep-2", RoleID: "role-other"},
	}}

	tests := []struct {
		name         string
		departmentID string
		payload      *Payload
		wantStatus   int
		wantError    string
	}{
		{name: "company admin", departmentID: "dep-1", payload: holding("role-employee", "role-admin"), wantStatus: http.StatusNoContent},
		{name: "not an admin", departmentID: "dep-1", payload: holding("role-manager"), wantStatus: http.StatusForbidden, wantError: "Not a company admin or in the same company."},
		{name: "admin of another company", departmentID: "dep-1", payload: otherCompanyAdmin, wantStatus: http.StatusForbidden, wantError: "Not a company admin or in the same company."},
		{name: "unknown department", departmentID: "dep-9", payload: holding("role-admin"), wantStatus: http.StatusNotFound, wantError: "Department ID is not valid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serveGate(t, mw.RequireCompanyAdmin,
				"/departments/{departmentId}/roles", "/departments/"+tt.departmentID+"/roles", tt.payload)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, rr).Error)
			}
		})
	}
}

func TestRequireCompanyAdminOf(t *testing.T) {
	mw, _, _ := newTestMiddleware(t)

	tests := []struct {
		name       string
		companyID  string
		payload    *Payload
		wantStatus int
	}{
		{name: "company admin", companyID: "co-1", payload: holding("role-admin"), wantStatus: http.StatusNoContent},
		{name: "member without admin role", companyID: "co-1", payload: holding("role-top", "role-manager"), wantStatus: http.StatusForbidden},
		{name: "admin of another company", companyID: "co-2", payload: holding("role-admin"), wantStatus: http.StatusForbidden},
		{name: "no payload", companyID: "co-1", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serveGate(t, mw.RequireCompanyAdminOf("companyId"),
				"/companies/{companyId}", "/companies/"+tt.companyID, tt.payload)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.Equal(t, "Not a company admin or in the same company.", decodeError(t, rr).Error)
			}
		})
	}
}

func TestRequireRoleHolder(t *testing.T) {
	mw, _, _ := newTestMiddleware(t)
	gate := mw.RequireRoleHolder("roleId")

	rr := serveGate(t, gate, "/roles/{roleId}/tasks", "/roles/role-employee/tasks", holding("role-employee"))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = serveGate(t, gate, "/roles/{roleId}/tasks", "/roles/role-manager/tasks", holding("role-employee"))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Role not found for the user.", decodeError(t, rr).Error)

	rr = serveGate(t, gate, "/roles/{roleId}/tasks", "/roles/role-employee/tasks", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"Bearer", "", false},
		{"Bearer a b", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := parseBearer(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}
