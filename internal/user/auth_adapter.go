package user

import (
	"context"
	"errors"
	"time"

	"github.com/alecgard/cascade/internal/auth"
)

// AuthAdapter adapts user.Store to the auth.AccountStore interface.
type AuthAdapter struct {
	store *Store
}

// NewAuthAdapter creates a new AuthAdapter wrapping the given user store.
func NewAuthAdapter(store *Store) *AuthAdapter {
	return &AuthAdapter{store: store}
}

// LookupAccount loads the user and projects it to an auth.Account.
func (a *AuthAdapter) LookupAccount(ctx context.Context, userID string) (*auth.Account, error) {
	u, err := a.store.GetByID(ctx, userID)
	if err != nil {
		return nil, translate(err)
	}
	return &auth.Account{
		Payload:               *PayloadOf(u),
		RefreshTokenHash:      u.RefreshTokenHash,
		RefreshTokenExpiresAt: u.RefreshTokenExpiresAt,
	}, nil
}

// SaveRefreshToken stores the refresh token digest on the user.
func (a *AuthAdapter) SaveRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return translate(a.store.SetRefreshToken(ctx, userID, tokenHash, expiresAt))
}

// ClearRefreshToken removes the user's refresh token.
func (a *AuthAdapter) ClearRefreshToken(ctx context.Context, userID string) error {
	return translate(a.store.ClearRefreshToken(ctx, userID))
}

// PayloadOf builds the authorization snapshot for u.
func PayloadOf(u *User) *auth.Payload {
	memberships := make([]auth.Membership, len(u.CompanyRoles))
	for i, cr := range u.CompanyRoles {
		memberships[i] = auth.Membership{
			ID:           cr.ID,
			CompanyID:    cr.CompanyID,
			DepartmentID: cr.DepartmentID,
			RoleID:       cr.RoleID,
		}
	}
	return &auth.Payload{
		UserID:       u.ID,
		WebAppRole:   string(u.WebAppRole),
		CompanyRoles: memberships,
	}
}

func translate(err error) error {
	if errors.Is(err, ErrNotFound) {
		return auth.ErrAccountNotFound
	}
	return err
}
