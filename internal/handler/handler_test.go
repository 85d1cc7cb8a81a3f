package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhall/parley/internal/auth"
	"github.com/ewhall/parley/internal/lobby"
	"github.com/ewhall/parley/internal/middleware"
	"github.com/ewhall/parley/internal/playerlog"
	"github.com/ewhall/parley/internal/registry"
	"github.com/ewhall/parley/internal/service"
)

type stack struct {
	tokens  *auth.TokenManager
	reg     *registry.Registry
	svc     *service.GameService
	lobbies *lobby.Coordinator
	handler http.Handler

	adminToken string
}

func newStack(t *testing.T) *stack {
	t.Helper()
	tokens := auth.NewTokenManager("test-secret")
	reg, err := registry.New(tokens, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	logs, err := playerlog.NewStore(t.TempDir())
	require.NoError(t, err)
	svc := service.NewGameService(reg, logs, zerolog.Nop())
	lobbies := lobby.NewCoordinator(svc, reg, tokens, 2, zerolog.Nop())

	mux := NewRouter(Deps{
		Registry: reg,
		Tokens:   tokens,
		Games:    svc,
		Lobbies:  lobbies,
		Hub:      NewHub(),
	})

	s := &stack{
		tokens:  tokens,
		reg:     reg,
		svc:     svc,
		lobbies: lobbies,
		handler: middleware.Chain(mux, middleware.CORS("*"), middleware.JSON),
	}

	hash, err := auth.HashPassword("admin-pass")
	require.NoError(t, err)
	require.NoError(t, reg.AddUser(context.Background(), "admin", hash))
	require.NoError(t, reg.AddAdmin(context.Background(), "admin"))
	s.adminToken, err = tokens.Mint("admin", time.Hour)
	require.NoError(t, err)
	return s
}

// do sends a JSON request through the full middleware chain and decodes
// the envelope.
func (s *stack) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var envelope map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), "body: %s", rec.Body.String())
	}
	return rec.Code, envelope
}

func (s *stack) identity(t *testing.T, displayName string) (token, username string) {
	t.Helper()
	code, env := s.do(t, http.MethodPost, "/api/auth/identity", "", map[string]string{"display_name": displayName})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, env["ok"])
	return env["token"].(string), env["username"].(string)
}

func TestHealthz(t *testing.T) {
	s := newStack(t)
	code, env := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, env["ok"])
}

func TestNotFoundEnvelope(t *testing.T) {
	s := newStack(t)
	code, env := s.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, env["ok"])
	assert.NotEmpty(t, env["error"])
}

func TestCORSPreflight(t *testing.T) {
	s := newStack(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/games", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestIdentity(t *testing.T) {
	s := newStack(t)

	token, username := s.identity(t, "Alice Smith")
	assert.NotEmpty(t, token)
	assert.Equal(t, "alice_smith", username)

	// Same display name maps to the same account and a fresh token.
	token2, username2 := s.identity(t, "Alice Smith")
	assert.Equal(t, "alice_smith", username2)
	assert.NotEqual(t, token, token2)

	code, env := s.do(t, http.MethodPost, "/api/auth/identity", "", map[string]string{"display_name": ""})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, env["ok"])

	code, _ = s.do(t, http.MethodPost, "/api/auth/identity", "", map[string]string{"display_name": "this name is way too long"})
	assert.Equal(t, http.StatusBadRequest, code)

	// Length is counted in runes: 20 two-byte characters are fine,
	// 21 are not.
	_, username3 := s.identity(t, strings.Repeat("é", 20))
	assert.Equal(t, strings.Repeat("é", 20), username3)

	code, _ = s.do(t, http.MethodPost, "/api/auth/identity", "", map[string]string{"display_name": strings.Repeat("é", 21)})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLogin(t *testing.T) {
	s := newStack(t)

	code, env := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "bob", "password": "hunter2"})
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, env["token"])

	code, env = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "bob", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, env["ok"])

	code, _ = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "bob", "password": "hunter2"})
	assert.Equal(t, http.StatusOK, code)
}

func TestTokenRevocation(t *testing.T) {
	s := newStack(t)
	token, _ := s.identity(t, "Alice")

	code, _ := s.do(t, http.MethodGet, "/api/games", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)

	// The token is not yet expired but must no longer authenticate.
	code, env := s.do(t, http.MethodGet, "/api/games", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, env["ok"])
}

func TestMissingToken(t *testing.T) {
	s := newStack(t)
	code, env := s.do(t, http.MethodGet, "/api/games", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, false, env["ok"])
}

func TestOrderSubmission(t *testing.T) {
	s := newStack(t)
	alice, _ := s.identity(t, "Alice")
	bob, _ := s.identity(t, "Bob")

	code, _ := s.do(t, http.MethodPost, "/api/games", s.adminToken, map[string]any{
		"game_id":    "game_AAAA",
		"rules":      []string{"NO_TALK", "POWER_CHOICE"},
		"n_controls": 2,
	})
	require.Equal(t, http.StatusCreated, code)

	code, env := s.do(t, http.MethodPost, "/api/games/game_AAAA/join", alice, map[string]string{"power": "FRANCE"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "FRANCE", env["power"])
	code, _ = s.do(t, http.MethodPost, "/api/games/game_AAAA/join", bob, map[string]string{"power": "GERMANY"})
	require.Equal(t, http.StatusOK, code)

	// One illegal order rejects the whole submission with reasons and
	// suggestions, leaving the game unchanged.
	code, env = s.do(t, http.MethodPost, "/api/games/game_AAAA/orders", alice, map[string]any{
		"orders": []string{"A PAR - BUR", "A PAR - XYZ"},
	})
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, false, env["ok"])

	details, ok := env["details"].(map[string]any)
	require.True(t, ok, "details: %#v", env["details"])
	accepted, ok := details["valid_orders_accepted"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"A PAR - BUR"}, accepted)
	invalid, ok := details["invalid_orders"].([]any)
	require.True(t, ok)
	require.Len(t, invalid, 1)
	first := invalid[0].(map[string]any)
	assert.Equal(t, "A PAR - XYZ", first["order"])
	assert.NotEmpty(t, first["reason"])

	code, env = s.do(t, http.MethodGet, "/api/games/game_AAAA/orders", alice, nil)
	require.Equal(t, http.StatusOK, code)
	oc := env["orders"].(map[string]any)
	assert.Empty(t, oc["orders"])

	// The fully legal set goes through.
	code, env = s.do(t, http.MethodPost, "/api/games/game_AAAA/orders", alice, map[string]any{
		"orders": []string{"A PAR - BUR"},
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "FRANCE", env["power"])

	code, env = s.do(t, http.MethodGet, "/api/games/game_AAAA/orders", alice, nil)
	require.Equal(t, http.StatusOK, code)
	oc = env["orders"].(map[string]any)
	assert.Equal(t, []any{"A PAR - BUR"}, oc["orders"])
}

func TestProcessEndpoint(t *testing.T) {
	s := newStack(t)
	alice, _ := s.identity(t, "Alice")

	code, _ := s.do(t, http.MethodPost, "/api/games", s.adminToken, map[string]any{
		"game_id":    "game_AAAA",
		"rules":      []string{"NO_TALK", "POWER_CHOICE"},
		"n_controls": 1,
	})
	require.Equal(t, http.StatusCreated, code)
	code, _ = s.do(t, http.MethodPost, "/api/games/game_AAAA/join", alice, map[string]string{"power": "FRANCE"})
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(t, http.MethodPost, "/api/games/game_AAAA/process", alice, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := s.do(t, http.MethodPost, "/api/games/game_AAAA/process", s.adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, env["advanced"])
	prev := env["previous"].(map[string]any)
	assert.Equal(t, "S1901M", prev["name"])

	code, env = s.do(t, http.MethodGet, "/api/games/game_AAAA/history", alice, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), env["count"])
}

func TestLobbyFlow(t *testing.T) {
	s := newStack(t)
	host, _ := s.identity(t, "Alice")
	bob, _ := s.identity(t, "Bob")
	carol, _ := s.identity(t, "Carol")

	code, env := s.do(t, http.MethodPost, "/api/lobby/create", host, map[string]string{"display_name": "Alice"})
	require.Equal(t, http.StatusCreated, code)
	lobbyCode := env["code"].(string)
	require.Len(t, lobbyCode, 4)

	for name, token := range map[string]string{"Bob": bob, "Carol": carol} {
		code, _ = s.do(t, http.MethodPost, "/api/lobby/join", token, map[string]string{
			"code":         lobbyCode,
			"display_name": name,
		})
		require.Equal(t, http.StatusOK, code)
	}

	// The poll endpoint needs no auth.
	code, env = s.do(t, http.MethodGet, "/api/lobby/"+lobbyCode, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "waiting", env["status"])
	assert.Equal(t, float64(3), env["player_count"])

	code, _ = s.do(t, http.MethodPost, "/api/lobby/"+lobbyCode+"/start", bob, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(t, http.MethodPost, "/api/lobby/"+lobbyCode+"/start", host, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "game_"+lobbyCode, env["game_id"])

	l := env["lobby"].(map[string]any)
	powers := map[string]bool{"AUSTRIA": true, "ENGLAND": true, "FRANCE": true,
		"GERMANY": true, "ITALY": true, "RUSSIA": true, "TURKEY": true}
	for _, p := range l["players"].(map[string]any) {
		power := p.(map[string]any)["power"].(string)
		assert.True(t, powers[power], "power %s", power)
	}

	// Joining after start is rejected for new players.
	dave, _ := s.identity(t, "Dave")
	code, env = s.do(t, http.MethodPost, "/api/lobby/join", dave, map[string]string{
		"code":         lobbyCode,
		"display_name": "Dave",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, env["ok"])

	code, env = s.do(t, http.MethodGet, "/api/lobby/"+lobbyCode+"/game", host, nil)
	require.Equal(t, http.StatusOK, code)
	game := env["game"].(map[string]any)
	assert.Equal(t, "game_"+lobbyCode, game["game_id"])
	assert.Equal(t, "active", game["status"])
}

func TestLobbyProcessAndLog(t *testing.T) {
	s := newStack(t)
	host, _ := s.identity(t, "Alice")

	code, env := s.do(t, http.MethodPost, "/api/lobby/create", host, map[string]string{"display_name": "Alice"})
	require.Equal(t, http.StatusCreated, code)
	lobbyCode := env["code"].(string)

	code, _ = s.do(t, http.MethodPost, "/api/lobby/"+lobbyCode+"/start", host, nil)
	require.Equal(t, http.StatusOK, code)

	// Default games open in a talk phase: two rounds and an orders window
	// are worked through before the first movement resolution. The single
	// seated player must signal ready in each sub-state.
	code, env = s.do(t, http.MethodPost, "/api/lobby/"+lobbyCode+"/process", host, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, env["advanced"])

	for _, state := range []string{"round_open", "round_open", "orders_open"} {
		code, _ = s.do(t, http.MethodPost, "/api/lobby/"+lobbyCode+"/ready", host, map[string]string{"state": state})
		require.Equal(t, http.StatusOK, code)
		code, env = s.do(t, http.MethodPost, "/api/lobby/"+lobbyCode+"/process", host, nil)
		require.Equal(t, http.StatusOK, code)
	}
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, env["advanced"])
	assert.Equal(t, "S1901T", env["previous"].(map[string]any)["name"])

	code, env = s.do(t, http.MethodGet, "/api/lobby/"+lobbyCode+"/log?limit=10", host, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), env["count"])
}

func TestDocs(t *testing.T) {
	s := newStack(t)
	req := httptest.NewRequest(http.MethodGet, "/api/docs", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/lobby/create")
}
