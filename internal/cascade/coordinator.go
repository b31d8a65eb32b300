// Package cascade owns the company and department lifecycles: creating a
// company with its default department and admin role, and removing companies
// and departments together with everything that depends on them.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alecgard/cascade/internal/apperr"
	"github.com/alecgard/cascade/internal/auth"
	"github.com/alecgard/cascade/internal/company"
	"github.com/alecgard/cascade/internal/role"
	"github.com/alecgard/cascade/internal/user"
	"github.com/google/uuid"
)

const (
	adminJobTitle       = "Company Admin"
	adminJobDescription = "Responsible for managing the company in Cascade."
)

type CompanyStore interface {
	Create(ctx context.Context, in company.CreateCompanyInput) (*company.Company, error)
	GetByID(ctx context.Context, id string) (*company.Company, error)
	AddDepartmentRef(ctx context.Context, companyID string, ref company.DepartmentRef) error
	RemoveDepartmentRef(ctx context.Context, companyID, departmentID string) error
	RenameDepartmentRef(ctx context.Context, companyID, departmentID, name string) error
	Delete(ctx context.Context, id string) error
}

type DepartmentStore interface {
	Create(ctx context.Context, in company.CreateDepartmentInput) (*company.Department, error)
	GetInCompany(ctx context.Context, companyID, id string) (*company.Department, error)
	ListByCompany(ctx context.Context, companyID string) ([]*company.Department, error)
	Rename(ctx context.Context, companyID, id, name string) (*company.Department, error)
	AddRole(ctx context.Context, id, roleID string) error
	RemoveRole(ctx context.Context, id, roleID string) error
	Delete(ctx context.Context, companyID, id string) error
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

type RoleStore interface {
	Create(ctx context.Context, in role.CreateRoleInput) (*role.Role, error)
	ListByCompany(ctx context.Context, companyID string) ([]*role.Role, error)
	ListByDepartments(ctx context.Context, departmentIDs []string) ([]*role.Role, error)
	ListByIDs(ctx context.Context, ids []string) ([]*role.Role, error)
	SetDepartment(ctx context.Context, ids []string, departmentID string) error
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// WorkStore deletes the tasks or objectives tied to a set of roles.
type WorkStore interface {
	DeleteByRoles(ctx context.Context, roleIDs []string) (int64, error)
}

// UserStore reads users with a row lock, since every read is followed by a
// rewrite of their memberships.
type UserStore interface {
	GetByIDForUpdate(ctx context.Context, id string) (*user.User, error)
	ListByRoleForUpdate(ctx context.Context, roleID string) ([]*user.User, error)
	SetCompanyRoles(ctx context.Context, id string, roles []user.CompanyRole) error
}

// Stores groups the stores bound to one unit of work.
type Stores struct {
	Companies   CompanyStore
	Departments DepartmentStore
	Roles       RoleStore
	Tasks       WorkStore
	Objectives  WorkStore
	Users       UserStore
}

// Transactor runs fn with stores that share one transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(Stores) error) error
}

// AccessIssuer signs access tokens.
type AccessIssuer interface {
	IssueAccessToken(p *auth.Payload) (string, error)
}

// Observer receives the number of records removed per entity.
type Observer interface {
	ObserveCascadeDeletion(entity string, n int64)
}

type noopObserver struct{}

func (noopObserver) ObserveCascadeDeletion(string, int64) {}

// Coordinator runs the multi-step company and department mutations, each in
// a single transaction.
type Coordinator struct {
	tx       Transactor
	tokens   AccessIssuer
	observer Observer
}

func NewCoordinator(tx Transactor, tokens AccessIssuer) *Coordinator {
	return &Coordinator{tx: tx, tokens: tokens, observer: noopObserver{}}
}

// SetObserver installs a deletion observer.
func (c *Coordinator) SetObserver(o Observer) {
	if o != nil {
		c.observer = o
	}
}

// CreatedCompany is the result of CreateCompany.
type CreatedCompany struct {
	Company     *company.Company `json:"company"`
	AccessToken string           `json:"accessToken"`
}

// DeletedCompany is the result of DeleteCompany.
type DeletedCompany struct {
	AccessToken string `json:"accessToken"`
	Departments int64  `json:"-"`
	Roles       int64  `json:"-"`
	Tasks       int64  `json:"-"`
	Objectives  int64  `json:"-"`
}

var (
	errCompanyNotFound = apperr.New(apperr.NotFound, "Company not found.", "Invalid company ID.")
	errActorNotFound   = apperr.New(apperr.NotFound, "User not found.", "Invalid user ID.")
)

// CreateCompany creates the company, its default department and a
// COMPANY_ADMIN role held by userID, appends the membership to the user and
// signs an access token carrying it.
func (c *Coordinator) CreateCompany(ctx context.Context, userID string, in company.CreateCompanyInput) (*CreatedCompany, error) {
	var out CreatedCompany
	err := c.tx.WithinTx(ctx, func(s Stores) error {
		u, err := s.Users.GetByIDForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return errActorNotFound
			}
			return fmt.Errorf("loading user: %w", err)
		}

		co, err := s.Companies.Create(ctx, in)
		if err != nil {
			return err
		}
		dept, err := s.Departments.Create(ctx, company.CreateDepartmentInput{
			CompanyID: co.ID,
			Name:      company.DefaultDepartmentName,
			Roles:     []string{},
		})
		if err != nil {
			return err
		}
		if err := s.Companies.AddDepartmentRef(ctx, co.ID, company.DepartmentRef{
			DepartmentID:   dept.ID,
			DepartmentName: dept.Name,
		}); err != nil {
			return err
		}

		admin, err := s.Roles.Create(ctx, role.CreateRoleInput{
			CompanyID:      co.ID,
			DepartmentID:   dept.ID,
			UserID:         u.ID,
			HierarchyLevel: role.LevelCompanyAdmin,
			JobTitle:       adminJobTitle,
			JobDescription: adminJobDescription,
		})
		if err != nil {
			return err
		}
		if err := s.Departments.AddRole(ctx, dept.ID, admin.ID); err != nil {
			return err
		}

		u.CompanyRoles = append(u.CompanyRoles, user.CompanyRole{
			ID:           uuid.NewString(),
			CompanyID:    co.ID,
			DepartmentID: dept.ID,
			RoleID:       admin.ID,
		})
		if err := s.Users.SetCompanyRoles(ctx, u.ID, u.CompanyRoles); err != nil {
			return err
		}

		token, err := c.tokens.IssueAccessToken(user.PayloadOf(u))
		if err != nil {
			return err
		}

		if out.Company, err = s.Companies.GetByID(ctx, co.ID); err != nil {
			return err
		}
		out.AccessToken = token
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("company created", "company_id", out.Company.ID, "user_id", userID)
	return &out, nil
}

// DeleteCompany removes the company and everything beneath it, children
// first: tasks and objectives of its roles, the roles, the departments. Roles
// left without a department still belong to the company and go too. The
// acting user's memberships in the company are dropped and a new access token
// is signed for them before the company record itself goes. Other users keep
// their memberships.
func (c *Coordinator) DeleteCompany(ctx context.Context, actingUserID, companyID string) (*DeletedCompany, error) {
	var out DeletedCompany
	err := c.tx.WithinTx(ctx, func(s Stores) error {
		if _, err := s.Companies.GetByID(ctx, companyID); err != nil {
			if errors.Is(err, company.ErrNotFound) {
				return errCompanyNotFound
			}
			return fmt.Errorf("loading company: %w", err)
		}

		departments, err := s.Departments.ListByCompany(ctx, companyID)
		if err != nil {
			return err
		}
		departmentIDs := make([]string, 0, len(departments))
		for _, d := range departments {
			departmentIDs = append(departmentIDs, d.ID)
		}

		roles, err := s.Roles.ListByDepartments(ctx, departmentIDs)
		if err != nil {
			return err
		}
		detached, err := s.Roles.ListByCompany(ctx, companyID)
		if err != nil {
			return err
		}
		roleIDs := make([]string, 0, len(roles)+len(detached))
		for _, r := range append(roles, detached...) {
			roleIDs = append(roleIDs, r.ID)
		}
		roleIDs = role.Dedupe(roleIDs)

		if out.Tasks, err = s.Tasks.DeleteByRoles(ctx, roleIDs); err != nil {
			return err
		}
		if out.Objectives, err = s.Objectives.DeleteByRoles(ctx, roleIDs); err != nil {
			return err
		}
		if out.Roles, err = s.Roles.DeleteByIDs(ctx, roleIDs); err != nil {
			return err
		}
		if out.Departments, err = s.Departments.DeleteByIDs(ctx, departmentIDs); err != nil {
			return err
		}

		actor, err := s.Users.GetByIDForUpdate(ctx, actingUserID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return errActorNotFound
			}
			return fmt.Errorf("loading user: %w", err)
		}
		actor.CompanyRoles = user.WithoutCompany(actor.CompanyRoles, companyID)
		if err := s.Users.SetCompanyRoles(ctx, actor.ID, actor.CompanyRoles); err != nil {
			return err
		}

		if out.AccessToken, err = c.tokens.IssueAccessToken(user.PayloadOf(actor)); err != nil {
			return err
		}

		if err := s.Companies.Delete(ctx, companyID); err != nil {
			if errors.Is(err, company.ErrNotFound) {
				return errCompanyNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.observer.ObserveCascadeDeletion("task", out.Tasks)
	c.observer.ObserveCascadeDeletion("objective", out.Objectives)
	c.observer.ObserveCascadeDeletion("role", out.Roles)
	c.observer.ObserveCascadeDeletion("department", out.Departments)
	c.observer.ObserveCascadeDeletion("company", 1)

	slog.Info("company deleted",
		"company_id", companyID,
		"user_id", actingUserID,
		"departments", out.Departments,
		"roles", out.Roles,
		"tasks", out.Tasks,
		"objectives", out.Objectives,
	)
	return &out, nil
}

// CreateDepartment adds a department to the company and moves the listed
// roles into it. Every listed role must exist.
func (c *Coordinator) CreateDepartment(ctx context.Context, companyID string, in company.CreateDepartmentInput) (*company.Department, error) {
	var created *company.Department
	err := c.tx.WithinTx(ctx, func(s Stores) error {
		if _, err := s.Companies.GetByID(ctx, companyID); err != nil {
			if errors.Is(err, company.ErrNotFound) {
				return apperr.New(apperr.NotFound, "Company not found.", "Company ID is not valid.")
			}
			return fmt.Errorf("loading company: %w", err)
		}

		roleIDs := role.Dedupe(in.Roles)
		existing, err := s.Roles.ListByIDs(ctx, roleIDs)
		if err != nil {
			return err
		}
		if len(existing) != len(roleIDs) {
			return apperr.New(apperr.NotFound, "One or more roles not found.", "Invalid role ID was detected.")
		}

		dept, err := s.Departments.Create(ctx, company.CreateDepartmentInput{
			CompanyID: companyID,
			Name:      in.Name,
			Roles:     roleIDs,
		})
		if err != nil {
			return err
		}
		if err := s.Companies.AddDepartmentRef(ctx, companyID, company.DepartmentRef{
			DepartmentID:   dept.ID,
			DepartmentName: dept.Name,
		}); err != nil {
			return err
		}

		if err := s.Roles.SetDepartment(ctx, roleIDs, dept.ID); err != nil {
			return err
		}
		for _, r := range existing {
			if err := moveRole(ctx, s, r, dept); err != nil {
				return err
			}
		}

		created = dept
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("department created", "company_id", companyID, "department_id", created.ID,
		"roles", len(created.Roles))
	return created, nil
}

// moveRole detaches r from its previous department and points its holders'
// memberships at dept.
func moveRole(ctx context.Context, s Stores, r *role.Role, dept *company.Department) error {
	if r.DepartmentID != "" && r.DepartmentID != dept.ID {
		if err := s.Departments.RemoveRole(ctx, r.DepartmentID, r.ID); err != nil {
			return err
		}
	}
	holders, err := s.Users.ListByRoleForUpdate(ctx, r.ID)
	if err != nil {
		return err
	}
	for _, u := range holders {
		memberships := make([]user.CompanyRole, len(u.CompanyRoles))
		copy(memberships, u.CompanyRoles)
		for i := range memberships {
			if memberships[i].RoleID == r.ID {
				memberships[i].CompanyID = dept.CompanyID
				memberships[i].DepartmentID = dept.ID
			}
		}
		if err := s.Users.SetCompanyRoles(ctx, u.ID, memberships); err != nil {
			return err
		}
	}
	return nil
}

// UpdateDepartment renames a department and keeps the company's mirrored
// department list in sync.
func (c *Coordinator) UpdateDepartment(ctx context.Context, companyID, departmentID string, in company.UpdateDepartmentInput) (*company.Department, error) {
	var updated *company.Department
	err := c.tx.WithinTx(ctx, func(s Stores) error {
		var err error
		if in.Name == nil {
			updated, err = s.Departments.GetInCompany(ctx, companyID, departmentID)
		} else {
			updated, err = s.Departments.Rename(ctx, companyID, departmentID, *in.Name)
		}
		if err != nil {
			if errors.Is(err, company.ErrDepartmentNotFound) {
				return apperr.New(apperr.NotFound, "Updating the Department data has failed.",
					"Invalid ID for Department or Company.")
			}
			return err
		}
		if in.Name != nil {
			return s.Companies.RenameDepartmentRef(ctx, companyID, departmentID, *in.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteDepartment removes the department and its entry in the company's
// department list. Its roles stay in the company with no department, and
// users holding one of them keep the membership with the department cleared.
func (c *Coordinator) DeleteDepartment(ctx context.Context, companyID, departmentID string) error {
	var repaired int
	err := c.tx.WithinTx(ctx, func(s Stores) error {
		dept, err := s.Departments.GetInCompany(ctx, companyID, departmentID)
		if err != nil {
			if errors.Is(err, company.ErrDepartmentNotFound) {
				return apperr.New(apperr.NotFound, "Company or Department are not found.",
					"Invalid Company or Department ID.")
			}
			return err
		}

		if err := s.Departments.Delete(ctx, companyID, departmentID); err != nil {
			return err
		}
		if err := s.Roles.SetDepartment(ctx, dept.Roles, ""); err != nil {
			return err
		}

		for _, roleID := range dept.Roles {
			holders, err := s.Users.ListByRoleForUpdate(ctx, roleID)
			if err != nil {
				return err
			}
			for _, u := range holders {
				if err := s.Users.SetCompanyRoles(ctx, u.ID, user.WithoutDepartment(u.CompanyRoles, roleID)); err != nil {
					return err
				}
				repaired++
			}
		}

		if err := s.Companies.RemoveDepartmentRef(ctx, companyID, departmentID); err != nil {
			if errors.Is(err, company.ErrNotFound) {
				return errCompanyNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.observer.ObserveCascadeDeletion("department", 1)
	slog.Info("department deleted", "company_id", companyID, "department_id", departmentID,
		"memberships_repaired", repaired)
	return nil
}
