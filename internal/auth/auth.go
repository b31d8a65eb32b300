package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrAccountNotFound is returned by an AccountStore when no user matches.
var ErrAccountNotFound = errors.New("auth: account not found")

// Membership is the token-side copy of a user's company role.
type Membership struct {
	ID           string `json:"id"`
	CompanyID    string `json:"companyId"`
	DepartmentID string `json:"departmentId,omitempty"`
	RoleID       string `json:"roleId"`
}

// Payload is the authorization snapshot embedded in every access token.
type Payload struct {
	UserID       string       `json:"userId"`
	WebAppRole   string       `json:"webAppRole"`
	CompanyRoles []Membership `json:"companyRoles"`
}

// Membership returns the caller's membership for roleID.
func (p *Payload) Membership(roleID string) (Membership, bool) {
	for _, m := range p.CompanyRoles {
		if m.RoleID == roleID {
			return m, true
		}
	}
	return Membership{}, false
}

// MembershipsIn returns the caller's memberships inside companyID.
func (p *Payload) MembershipsIn(companyID string) []Membership {
	var out []Membership
	for _, m := range p.CompanyRoles {
		if m.CompanyID == companyID {
			out = append(out, m)
		}
	}
	return out
}

// Account is what the token service needs to know about a stored user.
type Account struct {
	Payload
	RefreshTokenHash      string
	RefreshTokenExpiresAt *time.Time
}

// AccountStore is the credential store behind the refresh protocol.
type AccountStore interface {
	LookupAccount(ctx context.Context, userID string) (*Account, error)
	SaveRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	ClearRefreshToken(ctx context.Context, userID string) error
}

// HashToken returns the hex-encoded SHA-256 digest of an opaque token.
func HashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

// generateOpaqueToken returns n random bytes, hex-encoded.
func generateOpaqueToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
