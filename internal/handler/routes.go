package handler

import (
	"net/http"

	"github.com/ewhall/parley/internal/auth"
	"github.com/ewhall/parley/internal/lobby"
	"github.com/ewhall/parley/internal/registry"
	"github.com/ewhall/parley/internal/service"
)

// Deps bundles everything the HTTP surface is built from. Google may be
// nil, which disables the OAuth routes.
type Deps struct {
	Registry *registry.Registry
	Tokens   *auth.TokenManager
	Games    *service.GameService
	Lobbies  *lobby.Coordinator
	Google   *auth.OAuthProvider
	Hub      *Hub
}

// NewRouter builds the full route table. Unknown paths get the JSON
// failure envelope instead of the default HTML error page.
func NewRouter(d Deps) *http.ServeMux {
	authH := NewAuthHandler(d.Registry, d.Tokens, d.Google)
	lobbyH := NewLobbyHandler(d.Lobbies, d.Games, d.Registry, d.Hub)
	gameH := NewGameHandler(d.Games, d.Registry, d.Hub)
	wsH := NewWSHandler(d.Hub, d.Registry)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	mux.HandleFunc("GET /api/docs", Docs)

	mux.HandleFunc("POST /api/auth/identity", authH.Identity)
	mux.HandleFunc("POST /api/auth/login", authH.Login)
	mux.HandleFunc("POST /api/auth/logout", authH.Logout)
	mux.HandleFunc("GET /auth/google/login", authH.GoogleLogin)
	mux.HandleFunc("GET /auth/google/callback", authH.GoogleCallback)

	mux.HandleFunc("POST /api/lobby/create", lobbyH.Create)
	mux.HandleFunc("POST /api/lobby/join", lobbyH.Join)
	mux.HandleFunc("GET /api/lobby/{code}", lobbyH.Get)
	mux.HandleFunc("POST /api/lobby/{code}/start", lobbyH.Start)
	mux.HandleFunc("GET /api/lobby/{code}/game", lobbyH.Game)
	mux.HandleFunc("GET /api/lobby/{code}/orders", lobbyH.Orders)
	mux.HandleFunc("POST /api/lobby/{code}/orders", lobbyH.SubmitOrders)
	mux.HandleFunc("POST /api/lobby/{code}/ready", lobbyH.Ready)
	mux.HandleFunc("POST /api/lobby/{code}/message", lobbyH.Message)
	mux.HandleFunc("POST /api/lobby/{code}/process", lobbyH.Process)
	mux.HandleFunc("GET /api/lobby/{code}/log", lobbyH.Log)

	mux.HandleFunc("GET /api/games", gameH.List)
	mux.HandleFunc("POST /api/games", gameH.Create)
	mux.HandleFunc("GET /api/games/{id}", gameH.Get)
	mux.HandleFunc("DELETE /api/games/{id}", gameH.Delete)
	mux.HandleFunc("POST /api/games/{id}/join", gameH.Join)
	mux.HandleFunc("POST /api/games/{id}/leave", gameH.Leave)
	mux.HandleFunc("GET /api/games/{id}/orders", gameH.Orders)
	mux.HandleFunc("POST /api/games/{id}/orders", gameH.SubmitOrders)
	mux.HandleFunc("POST /api/games/{id}/ready", gameH.Ready)
	mux.HandleFunc("POST /api/games/{id}/message", gameH.Message)
	mux.HandleFunc("POST /api/games/{id}/process", gameH.Process)
	mux.HandleFunc("GET /api/games/{id}/history", gameH.History)

	mux.HandleFunc("GET /api/ws", wsH.ServeWS)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeErrMsg(w, http.StatusNotFound, "not found")
	})

	return mux
}
