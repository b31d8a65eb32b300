package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alecgard/cascade/internal/apperr"
)

// RefreshResult is the outcome of a successful refresh.
type RefreshResult struct {
	AccessToken           string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	Rotated               bool
}

// PersistRefreshToken stores the token digest and expiry on the user record.
func (s *TokenService) PersistRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	if userID == "" || token == "" || expiresAt.IsZero() {
		return apperr.New(apperr.Persistence, msgMissingArgument, "")
	}
	if err := s.store.SaveRefreshToken(ctx, userID, HashToken(token), expiresAt); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return apperr.Wrap(apperr.Persistence, "Saving refresh token has failed.", err)
		}
		return fmt.Errorf("saving refresh token: %w", err)
	}
	return nil
}

// ValidateRefreshToken reports whether presented is the user's current,
// unexpired refresh token. Only missing arguments produce an error.
func (s *TokenService) ValidateRefreshToken(ctx context.Context, userID, presented string) (bool, error) {
	if userID == "" || presented == "" {
		return false, apperr.New(apperr.InvalidArgument, msgMissingArgument, "")
	}
	_, ok, err := s.checkRefresh(ctx, userID, presented)
	return ok, err
}

// InvalidateRefreshToken clears the stored token and expiry.
func (s *TokenService) InvalidateRefreshToken(ctx context.Context, userID string) error {
	if userID == "" {
		return apperr.New(apperr.InvalidArgument, msgMissingArgument, "")
	}
	if err := s.store.ClearRefreshToken(ctx, userID); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return apperr.Wrap(apperr.Persistence, "Invalidating refresh token has failed.", err)
		}
		return fmt.Errorf("clearing refresh token: %w", err)
	}
	return nil
}

// Login issues a pair for the stored account and persists the refresh token,
// replacing whatever pair was active before.
func (s *TokenService) Login(ctx context.Context, userID string) (*TokenPair, error) {
	acct, err := s.lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	pair, err := s.IssueTokenPair(&acct.Payload)
	if err != nil {
		return nil, err
	}
	if err := s.PersistRefreshToken(ctx, userID, pair.RefreshToken, pair.RefreshTokenExpiresAt); err != nil {
		return nil, err
	}
	return pair, nil
}

// ReissueAccessToken signs a new access token from the stored account so the
// snapshot reflects the latest memberships.
func (s *TokenService) ReissueAccessToken(ctx context.Context, userID string) (string, error) {
	acct, err := s.lookup(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.IssueAccessToken(&acct.Payload)
}

// Refresh runs the refresh protocol. An invalid token yields Forbidden and
// the caller must clear the cookie. The new access token is derived from the
// stored account, not from the old token. The refresh token is rotated only
// when its remaining lifetime is below the rotation buffer.
func (s *TokenService) Refresh(ctx context.Context, userID, presented string) (*RefreshResult, error) {
	if userID == "" || presented == "" {
		return nil, apperr.New(apperr.Forbidden, "Forbidden access.", "Refresh token or user is missing.")
	}

	acct, ok, err := s.checkRefresh(ctx, userID, presented)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.observer.IncAuthFailure("refresh")
		return nil, apperr.New(apperr.Forbidden, "Forbidden access.", "Invalid or expired refresh token.")
	}

	access, err := s.IssueAccessToken(&acct.Payload)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{
		AccessToken:           access,
		RefreshToken:          presented,
		RefreshTokenExpiresAt: *acct.RefreshTokenExpiresAt,
	}

	if acct.RefreshTokenExpiresAt.Sub(s.now()) < s.rotationBuffer {
		token, expiresAt, err := s.IssueRefreshToken()
		if err != nil {
			return nil, err
		}
		if err := s.PersistRefreshToken(ctx, userID, token, expiresAt); err != nil {
			return nil, err
		}
		result.RefreshToken = token
		result.RefreshTokenExpiresAt = expiresAt
		result.Rotated = true
		slog.Info("refresh token rotated", "user_id", userID)
	}

	s.observer.IncAuthSuccess("refresh")
	return result, nil
}

func (s *TokenService) lookup(ctx context.Context, userID string) (*Account, error) {
	if userID == "" {
		return nil, apperr.New(apperr.InvalidArgument, msgMissingArgument, "")
	}
	acct, err := s.store.LookupAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, "User not found.", err)
		}
		return nil, fmt.Errorf("looking up account: %w", err)
	}
	return acct, nil
}

func (s *TokenService) checkRefresh(ctx context.Context, userID, presented string) (*Account, bool, error) {
	acct, err := s.store.LookupAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("looking up account: %w", err)
	}
	if acct.RefreshTokenHash == "" || acct.RefreshTokenExpiresAt == nil {
		return acct, false, nil
	}
	if subtle.ConstantTimeCompare([]byte(HashToken(presented)), []byte(acct.RefreshTokenHash)) != 1 {
		return acct, false, nil
	}
	if s.now().After(*acct.RefreshTokenExpiresAt) {
		return acct, false, nil
	}
	return acct, true, nil
}
