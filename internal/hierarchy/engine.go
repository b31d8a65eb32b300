// Package hierarchy keeps the role supervision graph and the users'
// company-role memberships consistent while roles are created, updated and
// deleted.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alecgard/cascade/internal/apperr"
	"github.com/alecgard/cascade/internal/company"
	"github.com/alecgard/cascade/internal/role"
	"github.com/alecgard/cascade/internal/user"
	"github.com/google/uuid"
)

// RoleStore is the role persistence the engine needs.
type RoleStore interface {
	Create(ctx context.Context, in role.CreateRoleInput) (*role.Role, error)
	GetByID(ctx context.Context, id string) (*role.Role, error)
	GetInDepartmentForUpdate(ctx context.Context, departmentID, id string) (*role.Role, error)
	Update(ctx context.Context, departmentID, id string, in role.UpdateRoleInput) (*role.Role, error)
	AddSupervisedBy(ctx context.Context, roleID, supervisorID string) error
	RemoveSupervisedBy(ctx context.Context, roleID, supervisorID string) error
	AddSupervises(ctx context.Context, roleID, subordinateID string) error
	RemoveSupervises(ctx context.Context, roleID, subordinateID string) error
	Delete(ctx context.Context, departmentID, id string) error
}

// DepartmentStore is the department persistence the engine needs.
type DepartmentStore interface {
	GetByID(ctx context.Context, id string) (*company.Department, error)
	AddRole(ctx context.Context, id, roleID string) error
	RemoveRole(ctx context.Context, id, roleID string) error
}

// UserStore is the membership persistence the engine needs. Users whose
// memberships get rewritten are read with a row lock.
type UserStore interface {
	GetByIDForUpdate(ctx context.Context, id string) (*user.User, error)
	ListByRoleForUpdate(ctx context.Context, roleID string) ([]*user.User, error)
	SetCompanyRoles(ctx context.Context, id string, roles []user.CompanyRole) error
}

// Stores groups the stores bound to one unit of work.
type Stores struct {
	Roles       RoleStore
	Departments DepartmentStore
	Users       UserStore
}

// Transactor runs fn with stores that share one transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(Stores) error) error
}

// Engine applies role mutations together with every edge and membership
// change they imply. Each call is one transaction. The mutated role and the
// users whose memberships are rewritten are locked as they are read.
type Engine struct {
	tx Transactor
}

func NewEngine(tx Transactor) *Engine {
	return &Engine{tx: tx}
}

var (
	errDepartmentNotFound = apperr.New(apperr.NotFound, "Department not found.", "Invalid department ID.")
	errUserNotFound       = apperr.New(apperr.NotFound, "User not found.", "Invalid user ID.")
	errRolesNotFound      = apperr.New(apperr.NotFound, "One or more roles not found.", "Invalid role ID was detected.")
	errSelfSupervision    = apperr.New(apperr.BadRequest, "Bad request. Please check your request again.",
		"A role cannot supervise itself.")
)

// CreateRole persists a role in departmentID, links the counterpart sides of
// its initial edges, registers it on the department and, when a user is named,
// appends the matching membership to that user. Nothing is written when the
// department, the user or any referenced role is missing.
func (e *Engine) CreateRole(ctx context.Context, departmentID string, in role.CreateRoleInput) (*role.Role, error) {
	var created *role.Role
	err := e.tx.WithinTx(ctx, func(s Stores) error {
		dept, err := s.Departments.GetByID(ctx, departmentID)
		if err != nil {
			if errors.Is(err, company.ErrDepartmentNotFound) {
				return errDepartmentNotFound
			}
			return fmt.Errorf("loading department: %w", err)
		}

		var holder *user.User
		if in.UserID != "" {
			holder, err = s.Users.GetByIDForUpdate(ctx, in.UserID)
			if err != nil {
				if errors.Is(err, user.ErrNotFound) {
					return errUserNotFound
				}
				return fmt.Errorf("loading user: %w", err)
			}
		}

		in.CompanyID = dept.CompanyID
		in.DepartmentID = dept.ID
		in.SupervisedBy = role.Dedupe(in.SupervisedBy)
		in.Supervises = role.Dedupe(in.Supervises)
		if err := requireRoles(ctx, s.Roles, append(append([]string{}, in.SupervisedBy...), in.Supervises...)); err != nil {
			return err
		}

		r, err := s.Roles.Create(ctx, in)
		if err != nil {
			return fmt.Errorf("creating role: %w", err)
		}
		for _, supervisorID := range r.SupervisedBy {
			if err := s.Roles.AddSupervises(ctx, supervisorID, r.ID); err != nil {
				return err
			}
		}
		for _, subordinateID := range r.Supervises {
			if err := s.Roles.AddSupervisedBy(ctx, subordinateID, r.ID); err != nil {
				return err
			}
		}
		if err := s.Departments.AddRole(ctx, dept.ID, r.ID); err != nil {
			return err
		}

		if holder != nil {
			if err := grantMembership(ctx, s.Users, holder, dept, r.ID); err != nil {
				return err
			}
		}

		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("role created", "role_id", created.ID, "department_id", departmentID,
		"hierarchy_level", created.HierarchyLevel)
	return created, nil
}

// UpdateRole applies a partial update. Changed supervision lists are diffed
// against the stored ones and only the counterpart roles that gained or lost
// an edge are touched. A users list is diffed against the current holders of
// the role. Scalar fields are written last.
func (e *Engine) UpdateRole(ctx context.Context, departmentID, roleID string, patch role.UpdateRoleInput) (*role.Role, error) {
	var updated *role.Role
	err := e.tx.WithinTx(ctx, func(s Stores) error {
		current, err := s.Roles.GetInDepartmentForUpdate(ctx, departmentID, roleID)
		if err != nil {
			if errors.Is(err, role.ErrNotFound) {
				return apperr.New(apperr.NotFound, "Role not found.", "Invalid Department or Role ID.")
			}
			return fmt.Errorf("loading role: %w", err)
		}

		if patch.Supervises != nil {
			next := role.Dedupe(*patch.Supervises)
			if err := e.syncEdges(ctx, s.Roles, roleID, current.Supervises, next,
				s.Roles.AddSupervisedBy, s.Roles.RemoveSupervisedBy); err != nil {
				return err
			}
			patch.Supervises = &next
		}

		if patch.SupervisedBy != nil {
			next := role.Dedupe(*patch.SupervisedBy)
			if err := e.syncEdges(ctx, s.Roles, roleID, current.SupervisedBy, next,
				s.Roles.AddSupervises, s.Roles.RemoveSupervises); err != nil {
				return err
			}
			patch.SupervisedBy = &next
		}

		if patch.UserID != nil && *patch.UserID != "" && *patch.UserID != current.UserID {
			if err := e.syncHolders(ctx, s, departmentID, roleID, []string{*patch.UserID}, false); err != nil {
				return err
			}
		}

		if patch.Users != nil {
			if err := e.syncHolders(ctx, s, departmentID, roleID, role.Dedupe(*patch.Users), true); err != nil {
				return err
			}
		}

		updated, err = s.Roles.Update(ctx, departmentID, roleID, patch)
		if err != nil {
			if errors.Is(err, role.ErrNotFound) {
				return apperr.New(apperr.NotFound, "Updating the Role data has failed.",
					"Invalid ID for Department or Role.")
			}
			return fmt.Errorf("updating role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("role updated", "role_id", roleID, "department_id", departmentID)
	return updated, nil
}

// syncEdges diffs one adjacency list of roleID and mirrors the change on the
// counterpart roles with add and remove.
func (e *Engine) syncEdges(
	ctx context.Context,
	roles RoleStore,
	roleID string,
	current, next []string,
	add, remove func(ctx context.Context, counterpartID, roleID string) error,
) error {
	for _, id := range next {
		if id == roleID {
			return errSelfSupervision
		}
	}
	added, removed := role.Diff(current, next)
	if err := requireRoles(ctx, roles, added); err != nil {
		return err
	}
	for _, id := range added {
		if err := add(ctx, id, roleID); err != nil {
			return err
		}
	}
	for _, id := range removed {
		if err := remove(ctx, id, roleID); err != nil {
			return err
		}
	}
	return nil
}

// syncHolders grants a membership for roleID to every user in next. With
// exact set, holders missing from next lose theirs.
func (e *Engine) syncHolders(ctx context.Context, s Stores, departmentID, roleID string, next []string, exact bool) error {
	dept, err := s.Departments.GetByID(ctx, departmentID)
	if err != nil {
		if errors.Is(err, company.ErrDepartmentNotFound) {
			return errDepartmentNotFound
		}
		return fmt.Errorf("loading department: %w", err)
	}

	holders, err := s.Users.ListByRoleForUpdate(ctx, roleID)
	if err != nil {
		return err
	}
	byID := make(map[string]*user.User, len(holders))
	current := make([]string, 0, len(holders))
	for _, u := range holders {
		byID[u.ID] = u
		current = append(current, u.ID)
	}

	added, removed := role.Diff(current, next)
	if !exact {
		removed = nil
	}
	for _, userID := range added {
		u, err := s.Users.GetByIDForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return errUserNotFound
			}
			return fmt.Errorf("loading user: %w", err)
		}
		if err := grantMembership(ctx, s.Users, u, dept, roleID); err != nil {
			return err
		}
	}
	for _, userID := range removed {
		u := byID[userID]
		if err := s.Users.SetCompanyRoles(ctx, u.ID, user.WithoutRole(u.CompanyRoles, roleID)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteRole removes the role, detaches it from its counterpart roles and its
// department, and drops the membership from every user holding it.
func (e *Engine) DeleteRole(ctx context.Context, departmentID, roleID string) error {
	var repaired int
	err := e.tx.WithinTx(ctx, func(s Stores) error {
		r, err := s.Roles.GetInDepartmentForUpdate(ctx, departmentID, roleID)
		if err != nil {
			if errors.Is(err, role.ErrNotFound) {
				return apperr.New(apperr.NotFound, "Department or Role were not found.", "Invalid Department or Role ID.")
			}
			return fmt.Errorf("loading role: %w", err)
		}

		for _, supervisorID := range r.SupervisedBy {
			if err := s.Roles.RemoveSupervises(ctx, supervisorID, roleID); err != nil {
				return err
			}
		}
		for _, subordinateID := range r.Supervises {
			if err := s.Roles.RemoveSupervisedBy(ctx, subordinateID, roleID); err != nil {
				return err
			}
		}

		if err := s.Roles.Delete(ctx, departmentID, roleID); err != nil {
			if errors.Is(err, role.ErrNotFound) {
				return apperr.New(apperr.NotFound, "Department or Role were not found.", "Invalid Department or Role ID.")
			}
			return err
		}
		if err := s.Departments.RemoveRole(ctx, departmentID, roleID); err != nil {
			return err
		}

		holders, err := s.Users.ListByRoleForUpdate(ctx, roleID)
		if err != nil {
			return err
		}
		for _, u := range holders {
			if err := s.Users.SetCompanyRoles(ctx, u.ID, user.WithoutRole(u.CompanyRoles, roleID)); err != nil {
				return err
			}
		}
		repaired = len(holders)
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("role deleted", "role_id", roleID, "department_id", departmentID, "users_repaired", repaired)
	return nil
}

// grantMembership appends a membership for roleID unless u already has one.
func grantMembership(ctx context.Context, users UserStore, u *user.User, dept *company.Department, roleID string) error {
	if user.HasRole(u.CompanyRoles, roleID) {
		return nil
	}
	roles := append(append([]user.CompanyRole{}, u.CompanyRoles...), user.CompanyRole{
		ID:           uuid.NewString(),
		CompanyID:    dept.CompanyID,
		DepartmentID: dept.ID,
		RoleID:       roleID,
	})
	if err := users.SetCompanyRoles(ctx, u.ID, roles); err != nil {
		return fmt.Errorf("granting membership: %w", err)
	}
	return nil
}

// requireRoles fails with NotFound unless every id resolves to a role.
func requireRoles(ctx context.Context, roles RoleStore, ids []string) error {
	for _, id := range ids {
		if _, err := roles.GetByID(ctx, id); err != nil {
			if errors.Is(err, role.ErrNotFound) {
				return errRolesNotFound
			}
			return fmt.Errorf("loading role %s: %w", id, err)
		}
	}
	return nil
}
