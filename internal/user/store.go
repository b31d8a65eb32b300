package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alecgard/cascade/internal/database"
	"github.com/jackc/pgx/v5"
)

var (
	ErrNotFound   = errors.New("user: not found")
	ErrEmailTaken = errors.New("user: email already registered")
)

const userColumns = `id, first_name, last_name, email, password_hash, web_app_role, company_roles,
	image, refresh_token_hash, refresh_token_expires_at, created_at, updated_at`

// Store provides database operations for users and their memberships.
type Store struct {
	db database.Querier
}

// NewStore creates a user store on a pool or a transaction.
func NewStore(db database.Querier) *Store {
	return &Store{db: db}
}

// scanUser scans a user row, handling the JSONB company_roles column.
func scanUser(scan func(dest ...any) error) (*User, error) {
	u := &User{}
	var rolesJSON []byte
	var refreshHash *string
	err := scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.WebAppRole, &rolesJSON,
		&u.Image, &refreshHash, &u.RefreshTokenExpiresAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if refreshHash != nil {
		u.RefreshTokenHash = *refreshHash
	}
	if len(rolesJSON) > 0 {
		if err := json.Unmarshal(rolesJSON, &u.CompanyRoles); err != nil {
			return nil, fmt.Errorf("unmarshaling company roles: %w", err)
		}
	}
	if u.CompanyRoles == nil {
		u.CompanyRoles = []CompanyRole{}
	}
	return u, nil
}

// marshalCompanyRoles converts memberships to JSON for storage.
func marshalCompanyRoles(roles []CompanyRole) ([]byte, error) {
	if roles == nil {
		roles = []CompanyRole{}
	}
	return json.Marshal(roles)
}

// Create inserts a new user. A duplicate email yields ErrEmailTaken.
func (s *Store) Create(ctx context.Context, in CreateUserInput) (*User, error) {
	role := in.WebAppRole
	if role == "" {
		role = RegularUser
	}

	u, err := scanUser(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`INSERT INTO users (first_name, last_name, email, password_hash, web_app_role, image)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING `+userColumns,
			in.FirstName, in.LastName, strings.ToLower(in.Email), in.PasswordHash, role, DefaultImage,
		).Scan(dest...)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email address.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email),
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// GetByIDForUpdate retrieves a user and locks the row until the surrounding
// transaction ends. Callers that rewrite company_roles read through it.
func (s *Store) GetByIDForUpdate(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(func(dest ...any) error {
		return s.db.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id,
		).Scan(dest...)
	})
	if err != nil {
		return nil, fmt.Errorf("locking user: %w", err)
	}
	return u, nil
}

// ListByRoleForUpdate returns every user holding a membership for roleID and
// locks their rows until the surrounding transaction ends.
func (s *Store) ListByRoleForUpdate(ctx context.Context, roleID string) ([]*User, error) {
	return s.list(ctx, "listing users by role",
		`SELECT `+userColumns+` FROM users
		 WHERE company_roles @> jsonb_build_array(jsonb_build_object('roleId', $1::text))
		 ORDER BY id
		 FOR UPDATE`, roleID)
}

func (s *Store) list(ctx context.Context, op, query string, args ...any) ([]*User, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update performs a partial update on the user with the given id.
func (s *Store) Update(ctx context.Context, id string, in UpdateUserInput) (*User, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	add := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if in.FirstName != nil {
		add("first_name", *in.FirstName)
	}
	if in.LastName != nil {
		add("last_name", *in.LastName)
	}
	if in.Email != nil {
		add("email", strings.ToLower(*in.Email))
	}
	if in.PasswordHash != nil {
		add("password_hash", *in.PasswordHash)
	}
	if in.Image != nil {
		add("image", *in.Image)
	}

	if len(setClauses) == 0 {
		return s.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE users SET %s, updated_at = now() WHERE id = $%d
		 RETURNING `+userColumns,
		strings.Join(setClauses, ", "), argIdx,
	)

	u, err := scanUser(func(dest ...any) error {
		return s.db.QueryRow(ctx, query, args...).Scan(dest...)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("updating user: %w", err)
	}
	return u, nil
}

// SetCompanyRoles replaces the user's membership list.
func (s *Store) SetCompanyRoles(ctx context.Context, id string, roles []CompanyRole) error {
	rolesJSON, err := marshalCompanyRoles(roles)
	if err != nil {
		return fmt.Errorf("marshaling company roles: %w", err)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET company_roles = $1, updated_at = now() WHERE id = $2`, rolesJSON, id)
	if err != nil {
		return fmt.Errorf("setting company roles: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRefreshToken stores the digest and expiry of the user's refresh token.
func (s *Store) SetRefreshToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET refresh_token_hash = $1, refresh_token_expires_at = $2 WHERE id = $3`,
		tokenHash, expiresAt, id)
	if err != nil {
		return fmt.Errorf("setting refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearRefreshToken nulls the stored refresh token and expiry.
func (s *Store) ClearRefreshToken(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET refresh_token_hash = NULL, refresh_token_expires_at = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clearing refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
