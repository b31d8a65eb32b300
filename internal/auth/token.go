package auth

import (
	"time"

	"github.com/alecgard/cascade/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer = "cascade"

	// refreshTokenBytes gives refresh tokens 256 bits of entropy.
	refreshTokenBytes = 32
)

const msgMissingArgument = "One of the arguments is missing."

// Claims is the JWT body of an access token.
type Claims struct {
	UserID       string       `json:"userId"`
	WebAppRole   string       `json:"webAppRole"`
	CompanyRoles []Membership `json:"companyRoles"`
	jwt.RegisteredClaims
}

// Payload returns the authorization snapshot carried by the claims.
func (c *Claims) Payload() *Payload {
	return &Payload{
		UserID:       c.UserID,
		WebAppRole:   c.WebAppRole,
		CompanyRoles: c.CompanyRoles,
	}
}

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Secret         string
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	RotationBuffer time.Duration
}

// TokenPair is returned on login and registration flows.
type TokenPair struct {
	AccessToken           string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// Observer receives token lifecycle events. The metrics package implements it.
type Observer interface {
	IncTokenIssued(kind string)
	IncAuthFailure(reason string)
	IncAuthSuccess(kind string)
}

type noopObserver struct{}

func (noopObserver) IncTokenIssued(string) {}
func (noopObserver) IncAuthFailure(string) {}
func (noopObserver) IncAuthSuccess(string) {}

// TokenService issues and verifies access tokens and runs the refresh-token
// protocol against an AccountStore.
type TokenService struct {
	secret         []byte
	accessTTL      time.Duration
	refreshTTL     time.Duration
	rotationBuffer time.Duration
	method         jwt.SigningMethod
	store          AccountStore
	observer       Observer
	now            func() time.Time
}

// NewTokenService creates a token service signing with HS256.
func NewTokenService(cfg TokenConfig, store AccountStore) *TokenService {
	return &TokenService{
		secret:         []byte(cfg.Secret),
		accessTTL:      cfg.AccessTTL,
		refreshTTL:     cfg.RefreshTTL,
		rotationBuffer: cfg.RotationBuffer,
		method:         jwt.SigningMethodHS256,
		store:          store,
		observer:       noopObserver{},
		now:            time.Now,
	}
}

// SetObserver installs an event observer.
func (s *TokenService) SetObserver(o Observer) {
	if o != nil {
		s.observer = o
	}
}

// Observer returns the installed observer.
func (s *TokenService) Observer() Observer {
	return s.observer
}

// IssueAccessToken signs a short-lived token embedding the full snapshot. It
// does not check the payload's shape beyond presence.
func (s *TokenService) IssueAccessToken(p *Payload) (string, error) {
	if p == nil {
		return "", apperr.New(apperr.InvalidArgument, msgMissingArgument, "payload is required")
	}
	if s.accessTTL <= 0 {
		return "", apperr.New(apperr.Configuration, "Expiration period of the access token is missing.", "")
	}
	if len(s.secret) == 0 {
		return "", apperr.New(apperr.Configuration, "Signing secret is missing.", "")
	}

	roles := p.CompanyRoles
	if roles == nil {
		roles = []Membership{}
	}

	now := s.now().UTC()
	claims := Claims{
		UserID:       p.UserID,
		WebAppRole:   p.WebAppRole,
		CompanyRoles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", apperr.Wrap(apperr.Signing, "Access token generation failed", err)
	}
	s.observer.IncTokenIssued("access")
	return signed, nil
}

// IssueRefreshToken generates an opaque token and its absolute expiry.
func (s *TokenService) IssueRefreshToken() (string, time.Time, error) {
	if s.refreshTTL <= 0 {
		return "", time.Time{}, apperr.New(apperr.Configuration, "Expiration period of the refresh token is missing.", "")
	}
	token, err := generateOpaqueToken(refreshTokenBytes)
	if err != nil {
		return "", time.Time{}, apperr.Wrap(apperr.Internal, "Refresh token generation failed", err)
	}
	s.observer.IncTokenIssued("refresh")
	return token, s.now().Add(s.refreshTTL), nil
}

// IssueTokenPair issues an access token and a fresh refresh token.
func (s *TokenService) IssueTokenPair(p *Payload) (*TokenPair, error) {
	if p == nil {
		return nil, apperr.New(apperr.InvalidArgument, msgMissingArgument, "payload is required")
	}
	access, err := s.IssueAccessToken(p)
	if err != nil {
		return nil, err
	}
	refresh, expiresAt, err := s.IssueRefreshToken()
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:           access,
		RefreshToken:          refresh,
		RefreshTokenExpiresAt: expiresAt,
	}, nil
}

// VerifyAccessToken checks signature, issuer and expiry.
func (s *TokenService) VerifyAccessToken(token string) (*Claims, error) {
	return s.parse(token)
}

// ParseExpiredAccessToken checks the signature only, so a client whose
// access token has lapsed can still identify itself on refresh.
func (s *TokenService) ParseExpiredAccessToken(token string) (*Claims, error) {
	return s.parse(token, jwt.WithoutClaimsValidation())
}

func (s *TokenService) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, "Invalid or expired access token.", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, apperr.New(apperr.Unauthorized, "Invalid or expired access token.", "unexpected claims type")
	}
	return claims, nil
}
