package api

import (
	"context"
	"net/http"
	"time"

	"github.com/alecgard/cascade/internal/auth"
	"github.com/alecgard/cascade/internal/cascade"
	"github.com/alecgard/cascade/internal/company"
	"github.com/alecgard/cascade/internal/metrics"
	"github.com/alecgard/cascade/internal/ratelimit"
	"github.com/alecgard/cascade/internal/role"
	"github.com/alecgard/cascade/internal/storage"
	"github.com/alecgard/cascade/internal/user"
	"github.com/alecgard/cascade/internal/work"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UserStore is the account persistence used by the auth and user handlers.
type UserStore interface {
	Create(ctx context.Context, in user.CreateUserInput) (*user.User, error)
	GetByID(ctx context.Context, id string) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	Update(ctx context.Context, id string, in user.UpdateUserInput) (*user.User, error)
	Delete(ctx context.Context, id string) error
}

type CompanyStore interface {
	GetByID(ctx context.Context, id string) (*company.Company, error)
	ListByIDs(ctx context.Context, ids []string) ([]*company.Company, error)
	Update(ctx context.Context, id string, in company.UpdateCompanyInput) (*company.Company, error)
}

// DepartmentStore also backs the company-admin gate, which resolves a
// department by id alone.
type DepartmentStore interface {
	GetByID(ctx context.Context, id string) (*company.Department, error)
	GetInCompany(ctx context.Context, companyID, id string) (*company.Department, error)
	ListByCompany(ctx context.Context, companyID string) ([]*company.Department, error)
}

// RoleStore also backs the level gates.
type RoleStore interface {
	GetByID(ctx context.Context, id string) (*role.Role, error)
	GetInDepartment(ctx context.Context, departmentID, id string) (*role.Role, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]*role.Role, error)
}

type TaskStore interface {
	Create(ctx context.Context, ownerRoleID string, in work.TaskInput) (*work.Task, error)
	GetByID(ctx context.Context, id string) (*work.Task, error)
	ListOwned(ctx context.Context, roleID string) ([]*work.Task, error)
	ListAssigned(ctx context.Context, roleID string) ([]*work.Task, error)
	Update(ctx context.Context, ownerRoleID, id string, in work.TaskPatch) (*work.Task, error)
	AddFile(ctx context.Context, id string, kind work.FileKind, name string) error
	RemoveFile(ctx context.Context, id string, kind work.FileKind, name string) error
	Delete(ctx context.Context, ownerRoleID, id string) error
}

type ObjectiveStore interface {
	Create(ctx context.Context, ownerRoleID string, in work.ObjectiveInput) (*work.Objective, error)
	GetByID(ctx context.Context, id string) (*work.Objective, error)
	ListOwned(ctx context.Context, roleID string) ([]*work.Objective, error)
	ListAssigned(ctx context.Context, roleID string) ([]*work.Objective, error)
	Update(ctx context.Context, ownerRoleID, id string, in work.ObjectivePatch) (*work.Objective, error)
	Delete(ctx context.Context, ownerRoleID, id string) error
}

// RoleService keeps the supervision graph and memberships consistent.
type RoleService interface {
	CreateRole(ctx context.Context, departmentID string, in role.CreateRoleInput) (*role.Role, error)
	UpdateRole(ctx context.Context, departmentID, roleID string, patch role.UpdateRoleInput) (*role.Role, error)
	DeleteRole(ctx context.Context, departmentID, roleID string) error
}

// CompanyService runs the multi-entity company and department mutations.
type CompanyService interface {
	CreateCompany(ctx context.Context, userID string, in company.CreateCompanyInput) (*cascade.CreatedCompany, error)
	DeleteCompany(ctx context.Context, actingUserID, companyID string) (*cascade.DeletedCompany, error)
	CreateDepartment(ctx context.Context, companyID string, in company.CreateDepartmentInput) (*company.Department, error)
	UpdateDepartment(ctx context.Context, companyID, departmentID string, in company.UpdateDepartmentInput) (*company.Department, error)
	DeleteDepartment(ctx context.Context, companyID, departmentID string) error
}

// CookieConfig controls the refresh-token cookie.
type CookieConfig struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Users       UserStore
	Companies   CompanyStore
	Departments DepartmentStore
	Roles       RoleStore
	Tasks       TaskStore
	Objectives  ObjectiveStore
	Hierarchy   RoleService
	Cascade     CompanyService
	Tokens      *auth.TokenService
	Files       storage.ObjectStore
	Limiter     *ratelimit.Limiter
	Metrics     *metrics.Metrics
	Cookie      CookieConfig

	AllowedOrigins []string
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(slogRequestLogger)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(secureHeaders)

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// A store that serves its own objects, the in-memory one, answers the
	// URLs it signs under /files.
	if h, ok := deps.Files.(http.Handler); ok {
		r.Handle("/files/*", http.StripPrefix("/files", h))
	}

	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry(), promhttp.HandlerOpts{}))
		r.Get("/metrics/summary", deps.Metrics.Handler())
	}

	if deps.Tokens == nil {
		return r
	}

	// Handlers.
	authH := newAuthHandler(deps.Users, deps.Tokens, deps.Cookie)
	users := newUsersHandler(deps.Users, deps.Files)
	companies := newCompaniesHandler(deps.Companies, deps.Cascade)
	departments := newDepartmentsHandler(deps.Companies, deps.Departments, deps.Cascade)
	roles := newRolesHandler(deps.Roles, deps.Hierarchy)
	tasks := newTasksHandler(deps.Tasks, deps.Files)
	objectives := newObjectivesHandler(deps.Objectives)

	gate := auth.NewMiddleware(deps.Tokens, deps.Roles, deps.Departments)
	taskGate := gate.RequireRoleLevel("roleId", auth.TaskManagers...)
	objectiveGate := gate.RequireRoleLevel("roleId", auth.ObjectiveManagers...)
	holderGate := gate.RequireRoleHolder("roleId")
	companyAdmin := gate.RequireCompanyAdminOf("companyId")

	// Public auth routes, rate limited per client.
	r.Route("/auth", func(ar chi.Router) {
		if deps.Limiter != nil {
			var onReject []func()
			if deps.Metrics != nil {
				onReject = append(onReject, func() { deps.Metrics.IncRateLimitRejection("auth") })
			}
			ar.Use(ratelimit.Middleware(deps.Limiter, onReject...))
		}

		ar.Post("/register", authH.Register)
		ar.Post("/login", authH.Login)
		ar.Post("/refreshtokens", authH.Refresh)
		ar.Post("/logout", authH.Logout)
	})

	// Bearer-authenticated routes.
	r.Group(func(pr chi.Router) {
		pr.Use(gate.Authenticate)

		pr.Route("/users", func(ur chi.Router) {
			ur.Get("/search", users.Search)
			ur.Get("/me", users.GetMe)
			ur.Put("/me", users.UpdateMe)
			ur.Delete("/me", users.DeleteMe)
			ur.Get("/me/image", users.GetImage)
			ur.Put("/me/image", users.UploadImage)
			ur.Delete("/me/image", users.DeleteImage)
		})

		pr.Route("/companies", func(cr chi.Router) {
			cr.Post("/", companies.Create)
			cr.Get("/", companies.List)
			cr.Get("/{companyId}", companies.Get)
			cr.With(companyAdmin).Put("/{companyId}", companies.Update)
			cr.With(companyAdmin).Delete("/{companyId}", companies.Delete)

			cr.Route("/{companyId}/departments", func(dr chi.Router) {
				dr.With(companyAdmin).Post("/", departments.Create)
				dr.Get("/", departments.List)
				dr.Get("/{departmentId}", departments.Get)
				dr.With(companyAdmin).Put("/{departmentId}", departments.Update)
				dr.With(companyAdmin).Delete("/{departmentId}", departments.Delete)
			})
		})

		pr.Route("/departments/{departmentId}/roles", func(rr chi.Router) {
			rr.With(gate.RequireCompanyAdmin).Post("/", roles.Create)
			rr.Get("/", roles.List)
			rr.Get("/{roleId}", roles.Get)
			rr.With(gate.RequireCompanyAdmin).Put("/{roleId}", roles.Update)
			rr.With(gate.RequireCompanyAdmin).Delete("/{roleId}", roles.Delete)
		})

		pr.Route("/roles/{roleId}", func(rr chi.Router) {
			rr.With(holderGate).Get("/tasks", tasks.List)
			rr.With(holderGate).Get("/tasks/{taskId}", tasks.Get)
			rr.With(taskGate).Post("/tasks", tasks.Create)
			rr.With(taskGate).Put("/tasks/{taskId}", tasks.Update)
			rr.With(taskGate).Delete("/tasks/{taskId}", tasks.Delete)

			rr.With(holderGate).Get("/tasks/{taskId}/{fileKind}/{fileName}", tasks.DownloadFile)
			rr.With(taskGate).Post("/tasks/{taskId}/{fileKind}", tasks.UploadFiles)
			rr.With(taskGate).Delete("/tasks/{taskId}/{fileKind}/{fileName}", tasks.DeleteFile)

			rr.With(holderGate).Get("/objectives", objectives.List)
			rr.With(holderGate).Get("/objectives/{objectiveId}", objectives.Get)
			rr.With(objectiveGate).Post("/objectives", objectives.Create)
			rr.With(objectiveGate).Put("/objectives/{objectiveId}", objectives.Update)
			rr.With(objectiveGate).Delete("/objectives/{objectiveId}", objectives.Delete)
		})
	})

	return r
}
