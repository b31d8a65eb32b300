package company

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/alecgard/cascade/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound           = errors.New("company: not found")
	ErrDepartmentNotFound = errors.New("company: department not found")
)

const companyColumns = `id, name, subscription_plan, company_departments, created_at, updated_at`

// Store provides database operations for companies.
type Store struct {
	db database.Querier
}

// NewStore creates a company store on a pool or a transaction.
func NewStore(db database.Querier) *Store {
	return &Store{db: db}
}

// scanCompany scans a company row, handling the JSONB department list.
func scanCompany(scan func(dest ...any) error) (*Company, error) {
	c := &Company{}
	var refsJSON []byte
	if err := scan(&c.ID, &c.Name, &c.SubscriptionPlan, &refsJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(refsJSON) > 0 {
		if err := json.Unmarshal(refsJSON, &c.CompanyDepartments); err != nil {
			return nil, fmt.Errorf("unmarshaling company departments: %w", err)
		}
	}
	if c.CompanyDepartments == nil {
		c.CompanyDepartments = []DepartmentRef{}
	}
	return c, nil
}

// Create inserts a new company with an empty department list.
func (s *Store) Create(ctx context.Context, in CreateCompanyInput) (*Company, error) {
	plan := in.SubscriptionPlan
	if plan == "" {
		plan = PlanFree
	}
	c, err := scanCompany(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`INSERT INTO companies (id, name, subscription_plan)
			 VALUES ($1, $2, $3)
			 RETURNING `+companyColumns,
			uuid.NewString(), in.Name, plan,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("creating company: %w", err)
	}
	return c, nil
}

// GetByID retrieves a company by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*Company, error) {
	c, err := scanCompany(func(dest ...any) error {
		return s.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting company: %w", err)
	}
	return c, nil
}

// ListByIDs returns the companies that exist among ids.
func (s *Store) ListByIDs(ctx context.Context, ids []string) ([]*Company, error) {
	if len(ids) == 0 {
		return []*Company{}, nil
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = ANY($1) ORDER BY created_at`, ids)
	if err != nil {
		return nil, fmt.Errorf("listing companies: %w", err)
	}
	defer rows.Close()

	companies := []*Company{}
	for rows.Next() {
		c, err := scanCompany(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning company row: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// Update performs a partial update on the company.
func (s *Store) Update(ctx context.Context, id string, in UpdateCompanyInput) (*Company, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	if in.Name != nil {
		setClauses = append(setClauses, fmt.Sprintf("name = $%d", argIdx))
		args = append(args, *in.Name)
		argIdx++
	}
	if in.SubscriptionPlan != nil {
		setClauses = append(setClauses, fmt.Sprintf("subscription_plan = $%d", argIdx))
		args = append(args, *in.SubscriptionPlan)
		argIdx++
	}

	if len(setClauses) == 0 {
		return s.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE companies SET %s, updated_at = now() WHERE id = $%d RETURNING `+companyColumns,
		strings.Join(setClauses, ", "), argIdx,
	)
	c, err := scanCompany(func(dest ...any) error {
		return s.db.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("updating company: %w", err)
	}
	return c, nil
}

// AddDepartmentRef appends a department to the company's mirror list.
func (s *Store) AddDepartmentRef(ctx context.Context, companyID string, ref DepartmentRef) error {
	return s.execOne(ctx, "adding company department",
		`UPDATE companies
		 SET company_departments = company_departments ||
		     jsonb_build_array(jsonb_build_object('departmentId', $2::text, 'departmentName', $3::text)),
		     updated_at = now()
		 WHERE id = $1`,
		companyID, ref.DepartmentID, ref.DepartmentName)
}

// RemoveDepartmentRef drops a department from the company's mirror list.
func (s *Store) RemoveDepartmentRef(ctx context.Context, companyID, departmentID string) error {
	return s.execOne(ctx, "removing company department",
		`UPDATE companies
		 SET company_departments = COALESCE(
		     (SELECT jsonb_agg(e ORDER BY i)
		      FROM jsonb_array_elements(company_departments) WITH ORDINALITY AS t(e, i)
		      WHERE e->>'departmentId' <> $2), '[]'::jsonb),
		     updated_at = now()
		 WHERE id = $1`,
		companyID, departmentID)
}

// RenameDepartmentRef keeps the mirrored department name in sync.
func (s *Store) RenameDepartmentRef(ctx context.Context, companyID, departmentID, name string) error {
	return s.execOne(ctx, "renaming company department",
		`UPDATE companies
		 SET company_departments = COALESCE(
		     (SELECT jsonb_agg(
		          CASE WHEN e->>'departmentId' = $2
		               THEN jsonb_set(e, '{departmentName}', to_jsonb($3::text))
		               ELSE e END ORDER BY i)
		      FROM jsonb_array_elements(company_departments) WITH ORDINALITY AS t(e, i)), '[]'::jsonb),
		     updated_at = now()
		 WHERE id = $1`,
		companyID, departmentID, name)
}

// Delete removes a company by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.execOne(ctx, "deleting company", `DELETE FROM companies WHERE id = $1`, id)
}

func (s *Store) execOne(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
