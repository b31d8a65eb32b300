package role

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alecgard/cascade/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrNotFound = errors.New("role: not found")

const roleColumns = `id, COALESCE(company_id, ''), COALESCE(department_id, ''), COALESCE(user_id, ''), hierarchy_level, job_title,
	job_description, supervised_by, supervises, permissions, created_at, updated_at`

// edge columns that may be used with the set helpers.
const (
	columnSupervisedBy = "supervised_by"
	columnSupervises   = "supervises"
)

// Store provides database operations for roles.
type Store struct {
	db database.Querier
}

// NewStore creates a role store on a pool or a transaction.
func NewStore(db database.Querier) *Store {
	return &Store{db: db}
}

func scanRole(scan func(dest ...any) error) (*Role, error) {
	r := &Role{}
	err := scan(&r.ID, &r.CompanyID, &r.DepartmentID, &r.UserID, &r.HierarchyLevel, &r.JobTitle,
		&r.JobDescription, &r.SupervisedBy, &r.Supervises, &r.Permissions, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if r.SupervisedBy == nil {
		r.SupervisedBy = []string{}
	}
	if r.Supervises == nil {
		r.Supervises = []string{}
	}
	if r.Permissions == nil {
		r.Permissions = []string{}
	}
	return r, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// Create inserts a new role.
func (s *Store) Create(ctx context.Context, in CreateRoleInput) (*Role, error) {
	r, err := scanRole(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`INSERT INTO roles (id, company_id, department_id, user_id, hierarchy_level, job_title, job_description,
			                    supervised_by, supervises, permissions)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING `+roleColumns,
			uuid.NewString(), nullable(in.CompanyID), nullable(in.DepartmentID), nullable(in.UserID), in.HierarchyLevel, in.JobTitle,
			in.JobDescription, nonNil(Dedupe(in.SupervisedBy)), nonNil(Dedupe(in.Supervises)), nonNil(in.Permissions),
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating role: %w", err)
	}
	return r, nil
}

// GetByID retrieves a role by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Role, error) {
	r, err := scanRole(func(dest ...any) error {
		return s.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting role: %w", err)
	}
	return r, nil
}

// GetInDepartment retrieves a role scoped to its department.
func (s *Store) GetInDepartment(ctx context.Context, departmentID, id string) (*Role, error) {
	r, err := scanRole(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`SELECT `+roleColumns+` FROM roles WHERE id = $1 AND department_id = $2`, id, departmentID,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting department role: %w", err)
	}
	return r, nil
}

// GetInDepartmentForUpdate retrieves a role scoped to its department and locks
// the row until the surrounding transaction ends.
func (s *Store) GetInDepartmentForUpdate(ctx context.Context, departmentID, id string) (*Role, error) {
	r, err := scanRole(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`SELECT `+roleColumns+` FROM roles WHERE id = $1 AND department_id = $2 FOR UPDATE`, id, departmentID,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("locking department role: %w", err)
	}
	return r, nil
}

// ListByCompany returns every role created for the company, including roles
// whose department has been deleted.
func (s *Store) ListByCompany(ctx context.Context, companyID string) ([]*Role, error) {
	return s.list(ctx, "listing company roles",
		`SELECT `+roleColumns+` FROM roles WHERE company_id = $1 ORDER BY created_at`, companyID)
}

// ListByDepartment returns the roles of one department.
func (s *Store) ListByDepartment(ctx context.Context, departmentID string) ([]*Role, error) {
	return s.list(ctx, "listing department roles",
		`SELECT `+roleColumns+` FROM roles WHERE department_id = $1 ORDER BY created_at`, departmentID)
}

// ListByDepartments returns the roles of all given departments.
func (s *Store) ListByDepartments(ctx context.Context, departmentIDs []string) ([]*Role, error) {
	if len(departmentIDs) == 0 {
		return nil, nil
	}
	return s.list(ctx, "listing roles by departments",
		`SELECT `+roleColumns+` FROM roles WHERE department_id = ANY($1) ORDER BY created_at`, departmentIDs)
}

// ListByIDs returns the roles that exist among ids.
func (s *Store) ListByIDs(ctx context.Context, ids []string) ([]*Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.list(ctx, "listing roles by ids",
		`SELECT `+roleColumns+` FROM roles WHERE id = ANY($1) ORDER BY created_at`, ids)
}

func (s *Store) list(ctx context.Context, op, query string, args ...any) ([]*Role, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		r, err := scanRole(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning role row: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// Update applies the scalar and list fields of in to the role. Users is
// ignored; memberships live on the user records.
func (s *Store) Update(ctx context.Context, departmentID, id string, in UpdateRoleInput) (*Role, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	add := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if in.UserID != nil {
		add("user_id", nullable(*in.UserID))
	}
	if in.HierarchyLevel != nil {
		add("hierarchy_level", *in.HierarchyLevel)
	}
	if in.JobTitle != nil {
		add("job_title", *in.JobTitle)
	}
	if in.JobDescription != nil {
		add("job_description", *in.JobDescription)
	}
	if in.SupervisedBy != nil {
		add(columnSupervisedBy, nonNil(Dedupe(*in.SupervisedBy)))
	}
	if in.Supervises != nil {
		add(columnSupervises, nonNil(Dedupe(*in.Supervises)))
	}
	if in.Permissions != nil {
		add("permissions", nonNil(*in.Permissions))
	}

	if len(setClauses) == 0 {
		return s.GetInDepartment(ctx, departmentID, id)
	}

	args = append(args, id, departmentID)
	query := fmt.Sprintf(
		`UPDATE roles SET %s, updated_at = now() WHERE id = $%d AND department_id = $%d
		 RETURNING `+roleColumns,
		strings.Join(setClauses, ", "), argIdx, argIdx+1,
	)

	r, err := scanRole(func(dest ...any) error {
		return s.db.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("updating role: %w", err)
	}
	return r, nil
}

// AddSupervisedBy records that supervisorID supervises roleID on roleID's
// side. Adding an id that is already present is a no-op.
func (s *Store) AddSupervisedBy(ctx context.Context, roleID, supervisorID string) error {
	return s.addToSet(ctx, columnSupervisedBy, roleID, supervisorID)
}

// RemoveSupervisedBy drops supervisorID from roleID's supervisors.
func (s *Store) RemoveSupervisedBy(ctx context.Context, roleID, supervisorID string) error {
	return s.removeFromSet(ctx, columnSupervisedBy, roleID, supervisorID)
}

// AddSupervises records that roleID supervises subordinateID on roleID's side.
func (s *Store) AddSupervises(ctx context.Context, roleID, subordinateID string) error {
	return s.addToSet(ctx, columnSupervises, roleID, subordinateID)
}

// RemoveSupervises drops subordinateID from roleID's subordinates.
func (s *Store) RemoveSupervises(ctx context.Context, roleID, subordinateID string) error {
	return s.removeFromSet(ctx, columnSupervises, roleID, subordinateID)
}

func (s *Store) addToSet(ctx context.Context, column, roleID, value string) error {
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`UPDATE roles SET %[1]s = array_append(%[1]s, $2), updated_at = now()
		             WHERE id = $1 AND NOT ($2 = ANY(%[1]s))`, column),
		roleID, value)
	if err != nil {
		return fmt.Errorf("adding to %s: %w", column, err)
	}
	return nil
}

func (s *Store) removeFromSet(ctx context.Context, column, roleID, value string) error {
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`UPDATE roles SET %[1]s = array_remove(%[1]s, $2), updated_at = now()
		             WHERE id = $1 AND $2 = ANY(%[1]s)`, column),
		roleID, value)
	if err != nil {
		return fmt.Errorf("removing from %s: %w", column, err)
	}
	return nil
}

// SetDepartment moves the given roles into departmentID and takes over that
// department's company. An empty departmentID detaches the roles and keeps
// their company.
func (s *Store) SetDepartment(ctx context.Context, ids []string, departmentID string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`UPDATE roles
		 SET department_id = $1,
		     company_id = COALESCE((SELECT company_id FROM departments WHERE id = $1), company_id),
		     updated_at = now()
		 WHERE id = ANY($2)`, nullable(departmentID), ids)
	if err != nil {
		return fmt.Errorf("setting role department: %w", err)
	}
	return nil
}

// Delete removes a role scoped to its department.
func (s *Store) Delete(ctx context.Context, departmentID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM roles WHERE id = $1 AND department_id = $2`, id, departmentID)
	if err != nil {
		return fmt.Errorf("deleting role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByIDs removes every role in ids and returns the number removed.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM roles WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("deleting roles: %w", err)
	}
	return tag.RowsAffected(), nil
}
