package handler

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/ewhall/parley/internal/auth"
	"github.com/ewhall/parley/internal/registry"
	"github.com/ewhall/parley/internal/service"
)

const maxDisplayNameLen = 20

// AuthHandler issues bearer tokens: the no-password identity flow, the
// username/password flow, and Google OAuth when configured.
type AuthHandler struct {
	registry *registry.Registry
	tokens   *auth.TokenManager
	google   *auth.OAuthProvider
}

// NewAuthHandler creates an AuthHandler. google may be nil.
func NewAuthHandler(reg *registry.Registry, tokens *auth.TokenManager, google *auth.OAuthProvider) *AuthHandler {
	return &AuthHandler{registry: reg, tokens: tokens, google: google}
}

// UsernameFor derives the stable account name from a display name.
func UsernameFor(displayName string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(displayName)), " ", "_")
}

// Identity handles POST /api/auth/identity. No password: the account is
// keyed on the derived username and created on first sight.
func (h *AuthHandler) Identity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		writeErrMsg(w, http.StatusBadRequest, "display_name is required")
		return
	}
	if utf8.RuneCountInString(req.DisplayName) > maxDisplayNameLen {
		writeErrMsg(w, http.StatusBadRequest, "display_name must be at most 20 characters")
		return
	}

	username := UsernameFor(req.DisplayName)
	token, err := h.issueFor(r, username, username)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"token":        token,
		"username":     username,
		"display_name": req.DisplayName,
	})
}

// Login handles POST /api/auth/login. The account is created on first
// use; a wrong password on an existing account is rejected.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeErrMsg(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if h.registry.HasUsername(req.Username) && !h.registry.HasUser(req.Username, req.Password) {
		writeErrMsg(w, http.StatusUnauthorized, "wrong password")
		return
	}
	token, err := h.issueFor(r, req.Username, req.Password)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"token":        token,
		"username":     req.Username,
		"display_name": req.Username,
	})
}

// Logout handles POST /api/auth/logout, revoking the bearer token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if _, err := h.registry.Username(token); err != nil {
		writeErrMsg(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	if err := h.registry.DisconnectToken(r.Context(), token); err != nil {
		writeErr(w, service.Wrap(service.KindInternal, "revoke token", err))
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// GoogleLogin redirects to Google's OAuth2 consent screen.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeErrMsg(w, http.StatusNotFound, "google sign-in is not configured")
		return
	}
	// In production, store state in a short-lived cookie or cache for CSRF protection
	http.Redirect(w, r, h.google.LoginURL(randomState()), http.StatusTemporaryRedirect)
}

// GoogleCallback handles the OAuth2 callback, creating the account from
// the Google profile name and issuing a standard bearer token.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		writeErrMsg(w, http.StatusNotFound, "google sign-in is not configured")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeErrMsg(w, http.StatusBadRequest, "missing code parameter")
		return
	}

	info, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		writeErrMsg(w, http.StatusUnauthorized, "oauth exchange failed")
		return
	}

	displayName := info.Name
	if utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		// Cut on rune boundaries so a multi-byte name stays valid UTF-8.
		displayName = string([]rune(displayName)[:maxDisplayNameLen])
	}
	username := UsernameFor(displayName)
	token, err := h.issueFor(r, username, username)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"token":        token,
		"username":     username,
		"display_name": displayName,
	})
}

// issueFor creates the account if missing and mints a bearer token.
func (h *AuthHandler) issueFor(r *http.Request, username, password string) (string, error) {
	if !h.registry.HasUsername(username) {
		hash, err := auth.HashPassword(password)
		if err != nil {
			return "", service.Wrap(service.KindInternal, "hash password", err)
		}
		err = h.registry.AddUser(r.Context(), username, hash)
		if err != nil && err != registry.ErrUserExists {
			return "", service.Wrap(service.KindInternal, "create account", err)
		}
		log.Info().Str("username", username).Msg("account created")
	}
	token, err := h.tokens.Mint(username, auth.DefaultTokenLifetime)
	if err != nil {
		return "", service.Wrap(service.KindInternal, "mint token", err)
	}
	return token, nil
}

func randomState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
