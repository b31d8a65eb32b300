package company

import (
	"context"
	"errors"
	"fmt"

	"github.com/alecgard/cascade/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const departmentColumns = `id, company_id, name, role_ids, created_at, updated_at`

// DepartmentStore provides database operations for departments.
type DepartmentStore struct {
	db database.Querier
}

// NewDepartmentStore creates a department store on a pool or a transaction.
func NewDepartmentStore(db database.Querier) *DepartmentStore {
	return &DepartmentStore{db: db}
}

func scanDepartment(scan func(dest ...any) error) (*Department, error) {
	d := &Department{}
	if err := scan(&d.ID, &d.CompanyID, &d.Name, &d.Roles, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepartmentNotFound
		}
		return nil, err
	}
	if d.Roles == nil {
		d.Roles = []string{}
	}
	return d, nil
}

// Create inserts a new department.
func (s *DepartmentStore) Create(ctx context.Context, in CreateDepartmentInput) (*Department, error) {
	roles := in.Roles
	if roles == nil {
		roles = []string{}
	}
	d, err := scanDepartment(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`INSERT INTO departments (id, company_id, name, role_ids)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+departmentColumns,
			uuid.NewString(), in.CompanyID, in.Name, roles,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating department: %w", err)
	}
	return d, nil
}

// GetByID retrieves a department by primary key.
func (s *DepartmentStore) GetByID(ctx context.Context, id string) (*Department, error) {
	d, err := scanDepartment(func(dest ...any) error {
		return s.db.QueryRow(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id = $1`, id).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting department: %w", err)
	}
	return d, nil
}

// GetInCompany retrieves a department scoped to its company.
func (s *DepartmentStore) GetInCompany(ctx context.Context, companyID, id string) (*Department, error) {
	d, err := scanDepartment(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`SELECT `+departmentColumns+` FROM departments WHERE id = $1 AND company_id = $2`, id, companyID,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting company department: %w", err)
	}
	return d, nil
}

// ListByCompany returns the departments of a company.
func (s *DepartmentStore) ListByCompany(ctx context.Context, companyID string) ([]*Department, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+departmentColumns+` FROM departments WHERE company_id = $1 ORDER BY created_at`, companyID)
	if err != nil {
		return nil, fmt.Errorf("listing departments: %w", err)
	}
	defer rows.Close()

	departments := []*Department{}
	for rows.Next() {
		d, err := scanDepartment(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning department row: %w", err)
		}
		departments = append(departments, d)
	}
	return departments, rows.Err()
}

// Rename changes a department's name.
func (s *DepartmentStore) Rename(ctx context.Context, companyID, id, name string) (*Department, error) {
	d, err := scanDepartment(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`UPDATE departments SET name = $1, updated_at = now()
			 WHERE id = $2 AND company_id = $3
			 RETURNING `+departmentColumns,
			name, id, companyID,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("renaming department: %w", err)
	}
	return d, nil
}

// AddRole appends roleID to the department's role list if absent.
func (s *DepartmentStore) AddRole(ctx context.Context, id, roleID string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE departments SET role_ids = array_append(role_ids, $2), updated_at = now()
		 WHERE id = $1 AND NOT ($2 = ANY(role_ids))`, id, roleID)
	if err != nil {
		return fmt.Errorf("adding department role: %w", err)
	}
	return nil
}

// RemoveRole drops roleID from the department's role list.
func (s *DepartmentStore) RemoveRole(ctx context.Context, id, roleID string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE departments SET role_ids = array_remove(role_ids, $2), updated_at = now()
		 WHERE id = $1`, id, roleID)
	if err != nil {
		return fmt.Errorf("removing department role: %w", err)
	}
	return nil
}

// Delete removes a department scoped to its company.
func (s *DepartmentStore) Delete(ctx context.Context, companyID, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM departments WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("deleting department: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDepartmentNotFound
	}
	return nil
}

// DeleteByIDs removes every department in ids.
func (s *DepartmentStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM departments WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("deleting departments: %w", err)
	}
	return tag.RowsAffected(), nil
}
