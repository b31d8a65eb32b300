package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/alecgard/cascade/internal/apperr"
	"github.com/alecgard/cascade/internal/auth"
	"github.com/alecgard/cascade/internal/user"
)

const minPasswordLength = 8

// authHandler groups authentication HTTP handlers.
type authHandler struct {
	users  UserStore
	tokens *auth.TokenService
	cookie CookieConfig
}

func newAuthHandler(users UserStore, tokens *auth.TokenService, cookie CookieConfig) *authHandler {
	if cookie.Name == "" {
		cookie.Name = "refreshToken"
	}
	return &authHandler{users: users, tokens: tokens, cookie: cookie}
}

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (req *registerRequest) validate() string {
	if n := utf8.RuneCountInString(strings.TrimSpace(req.FirstName)); n < 2 || n > 50 {
		return "First name must be between 2 and 50 characters long."
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(req.LastName)); n < 2 || n > 50 {
		return "Last name must be between 2 and 50 characters long."
	}
	if !validEmail(req.Email) {
		return "Email must be valid."
	}
	if len(req.Password) < minPasswordLength {
		return "Password must be at least 8 characters long."
	}
	return ""
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// Register handles POST /auth/register.
func (h *authHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error occured. Registration failed.", "failed to parse request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, "Validation error occured. Registration failed.", msg)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	u, err := h.users.Create(r.Context(), user.CreateUserInput{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        req.Email,
		PasswordHash: hash,
		WebAppRole:   user.RegularUser,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "Registration failed.", "User already exists.")
			return
		}
		writeAppError(w, r, err)
		return
	}

	auditLog(r, "register", "user", u.ID)
	writeSuccess(w, http.StatusCreated, nil, "User was registered successfully.")
}

// Login handles POST /auth/login. The refresh token only travels in the
// cookie; the access token is returned in the body.
func (h *authHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error occured. Login failed.", "failed to parse request body")
		return
	}
	if !validEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "Validation error occured. Login failed.", "Email must be valid.")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "Validation error occured. Login failed.", "Password must be at least 8 characters long.")
		return
	}

	u, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			h.tokens.Observer().IncAuthFailure("login")
			writeError(w, http.StatusBadRequest, "Login failed. Check your credentials again.", "User does not exist.")
			return
		}
		writeAppError(w, r, err)
		return
	}

	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		h.tokens.Observer().IncAuthFailure("login")
		writeError(w, http.StatusBadRequest, "Login failed. Check your credentials again.", "Password is wrong.")
		return
	}

	pair, err := h.tokens.Login(r.Context(), u.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	h.tokens.Observer().IncAuthSuccess("login")

	h.setRefreshCookie(w, pair.RefreshToken)
	writeSuccess(w, http.StatusOK, map[string]string{"accessToken": pair.AccessToken}, "User has logged in successfully.")
}

type refreshRequest struct {
	UserID              string `json:"userId"`
	CurrentRefreshToken string `json:"currentRefreshToken"`
}

// Refresh handles POST /auth/refreshtokens. The refresh token comes from the
// cookie, falling back to the body. The user id comes from the body or from
// the signature-checked, possibly expired, bearer token.
func (h *authHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength > 0 {
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, msgBadRequest, "failed to parse request body")
			return
		}
	}

	presented := req.CurrentRefreshToken
	if c, err := r.Cookie(h.cookie.Name); err == nil && c.Value != "" {
		presented = c.Value
	}

	userID := req.UserID
	if userID == "" {
		userID = h.userFromBearer(r)
	}

	res, err := h.tokens.Refresh(r.Context(), userID, presented)
	if err != nil {
		if apperr.Is(err, apperr.Forbidden) {
			h.clearRefreshCookie(w)
		}
		writeAppError(w, r, err)
		return
	}

	if res.Rotated {
		h.setRefreshCookie(w, res.RefreshToken)
	}
	writeSuccess(w, http.StatusOK, map[string]string{"accessToken": res.AccessToken}, "Access token refreshed successfully.")
}

// Logout handles POST /auth/logout. The stored refresh token is cleared only
// for a caller proven by a signature-checked bearer token, or by a body userId
// paired with that user's current refresh token. The cookie is cleared either
// way.
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if r.ContentLength > 0 {
		_ = readJSON(r, &req)
	}

	userID := h.userFromBearer(r)
	if userID == "" && req.UserID != "" {
		presented := req.CurrentRefreshToken
		if c, err := r.Cookie(h.cookie.Name); err == nil && c.Value != "" {
			presented = c.Value
		}
		if presented != "" {
			if ok, err := h.tokens.ValidateRefreshToken(r.Context(), req.UserID, presented); err == nil && ok {
				userID = req.UserID
			}
		}
	}

	if userID != "" {
		err := h.tokens.InvalidateRefreshToken(r.Context(), userID)
		if err != nil && !apperr.Is(err, apperr.Persistence) {
			writeAppError(w, r, err)
			return
		}
		auditLog(r, "logout", "user", userID)
	}

	h.clearRefreshCookie(w)
	writeSuccess(w, http.StatusOK, nil, "User has logged out successfully.")
}

func (h *authHandler) userFromBearer(r *http.Request) string {
	token := extractBearerToken(r)
	if token == "" {
		return ""
	}
	claims, err := h.tokens.ParseExpiredAccessToken(token)
	if err != nil {
		return ""
	}
	return claims.UserID
}

func (h *authHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookie.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *authHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// extractBearerToken extracts the bearer token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	return ""
}
