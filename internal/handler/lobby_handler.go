package handler

import (
	"net/http"
	"strconv"

	"github.com/ewhall/parley/internal/lobby"
	"github.com/ewhall/parley/internal/notify"
	"github.com/ewhall/parley/internal/registry"
	"github.com/ewhall/parley/internal/service"
)

// LobbyHandler is the player-facing surface: everything is addressed by
// lobby code and authorized with the player's own token.
type LobbyHandler struct {
	lobbies  *lobby.Coordinator
	games    *service.GameService
	registry *registry.Registry
	hub      *Hub
}

// NewLobbyHandler creates a LobbyHandler.
func NewLobbyHandler(lobbies *lobby.Coordinator, games *service.GameService, reg *registry.Registry, hub *Hub) *LobbyHandler {
	return &LobbyHandler{lobbies: lobbies, games: games, registry: reg, hub: hub}
}

func (h *LobbyHandler) caller(r *http.Request) (username, token string, err error) {
	token = bearerToken(r)
	username, uerr := h.registry.Username(token)
	if uerr != nil {
		return "", "", service.Wrap(service.KindUnauthenticated, "invalid or expired token", uerr)
	}
	return username, token, nil
}

// gameID resolves a lobby code to its started game.
func (h *LobbyHandler) gameID(code string) (string, error) {
	l, err := h.lobbies.Get(code)
	if err != nil {
		return "", err
	}
	if l.GameID == "" {
		return "", service.Ef(service.KindPrecondition, "lobby %s has not started", lobby.NormalizeCode(code))
	}
	return l.GameID, nil
}

// Create handles POST /api/lobby/create.
func (h *LobbyHandler) Create(w http.ResponseWriter, r *http.Request) {
	username, token, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req struct {
		DisplayName string `json:"display_name"`
		MapName     string `json:"map_name"`
		Assignment  string `json:"assignment"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DisplayName == "" {
		writeErrMsg(w, http.StatusBadRequest, "display_name is required")
		return
	}

	l, player, err := h.lobbies.Create(username, req.DisplayName, token, req.MapName, req.Assignment)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"code": l.Code, "player": player, "lobby": l})
}

// Join handles POST /api/lobby/join.
func (h *LobbyHandler) Join(w http.ResponseWriter, r *http.Request) {
	username, token, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req struct {
		Code        string `json:"code"`
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" || req.DisplayName == "" {
		writeErrMsg(w, http.StatusBadRequest, "code and display_name are required")
		return
	}

	l, player, err := h.lobbies.Join(req.Code, username, req.DisplayName, token)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.hub.BroadcastToGame(l.Code, WSEvent{Type: notify.KindPlayerJoined, GameID: l.Code, Data: map[string]any{
		"display_name": player.DisplayName,
		"player_count": l.PlayerCount(),
	}})
	writeOK(w, http.StatusOK, map[string]any{"code": l.Code, "player": player, "lobby": l})
}

// Get handles GET /api/lobby/{code}. No auth: this is the poll target
// for clients waiting on a code.
func (h *LobbyHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.lobbies.Get(r.PathValue("code"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{
		"lobby":        l,
		"status":       l.Status,
		"player_count": l.PlayerCount(),
	})
}

// Start handles POST /api/lobby/{code}/start. Host only.
func (h *LobbyHandler) Start(w http.ResponseWriter, r *http.Request) {
	username, _, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	l, err := h.lobbies.Start(r.Context(), r.PathValue("code"), username)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.hub.BroadcastToGame(l.Code, WSEvent{Type: notify.KindGameStarted, GameID: l.GameID, Data: map[string]any{
		"game_id": l.GameID,
	}})
	writeOK(w, http.StatusOK, map[string]any{"lobby": l, "game_id": l.GameID})
}

// Game handles GET /api/lobby/{code}/game.
func (h *LobbyHandler) Game(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.caller(r); err != nil {
		writeErr(w, err)
		return
	}
	gameID, err := h.gameID(r.PathValue("code"))
	if err != nil {
		writeErr(w, err)
		return
	}
	snapshot, err := h.games.Snapshot(gameID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"game": snapshot})
}

// Orders handles GET /api/lobby/{code}/orders, returning the caller's
// order context.
func (h *LobbyHandler) Orders(w http.ResponseWriter, r *http.Request) {
	_, token, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	gameID, err := h.gameID(r.PathValue("code"))
	if err != nil {
		writeErr(w, err)
		return
	}
	oc, err := h.games.Orders(token, gameID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"orders": oc})
}

// SubmitOrders handles POST /api/lobby/{code}/orders. The submission is
// all-or-nothing: any illegal order rejects the whole set with reasons
// and suggestions, leaving the game unchanged.
func (h *LobbyHandler) SubmitOrders(w http.ResponseWriter, r *http.Request) {
	_, token, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	gameID, err := h.gameID(r.PathValue("code"))
	if err != nil {
		writeErr(w, err)
		return
	}
	submitOrders(w, r, h.games, token, gameID)
}

// Ready handles POST /api/lobby/{code}/ready, a talk-round ready signal
// tagged with the sub-state the client last observed.
func (h *LobbyHandler) Ready(w http.ResponseWriter, r *http.Request) {
	_, token, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	gameID, err := h.gameID(r.PathValue("code"))
	if err != nil {
		writeErr(w, err)
		return
	}
	var req struct {
		State string `json:"state"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.games.SetTalkReady(token, gameID, req.State); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// Message handles POST /api/lobby/{code}/message.
func (h *LobbyHandler) Message(w http.ResponseWriter, r *http.Request) {
	_, token, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	gameID, err := h.gameID(r.PathValue("code"))
	if err != nil {
		writeErr(w, err)
		return
	}
	var req struct {
		Recipient string `json:"recipient"`
		Message   string `json:"message"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.games.SendMessage(token, gameID, req.Recipient, req.Message); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// Process handles POST /api/lobby/{code}/process. Host only; the actual
// engine call runs under the coordinator's system token.
func (h *LobbyHandler) Process(w http.ResponseWriter, r *http.Request) {
	username, _, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	code := r.PathValue("code")
	prev, cur, kicked, err := h.lobbies.Process(r.Context(), code, username)
	if err != nil {
		writeErr(w, err)
		return
	}
	if prev == nil {
		// Tick consumed by the talk sub-machine.
		writeOK(w, http.StatusOK, map[string]any{"advanced": false})
		return
	}
	if gameID, gerr := h.gameID(code); gerr == nil {
		h.hub.BroadcastToGame(gameID, WSEvent{Type: notify.KindPhaseChanged, GameID: gameID, Data: map[string]any{
			"previous": prev.Name,
			"current":  cur.Name,
			"kicked":   kicked,
		}})
	}
	writeOK(w, http.StatusOK, map[string]any{
		"advanced": true,
		"previous": prev,
		"current":  cur,
		"kicked":   kicked,
	})
}

// Log handles GET /api/lobby/{code}/log with limit/offset pagination.
func (h *LobbyHandler) Log(w http.ResponseWriter, r *http.Request) {
	_, token, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	gameID, err := h.gameID(r.PathValue("code"))
	if err != nil {
		writeErr(w, err)
		return
	}
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)
	entries, err := h.games.PlayerLog(token, gameID, limit, offset)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// submitOrders is the shared all-or-nothing order submission used by the
// lobby and direct game surfaces.
func submitOrders(w http.ResponseWriter, r *http.Request, games *service.GameService, token, gameID string) {
	var req struct {
		Orders []string `json:"orders"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accepted, invalid, err := games.ValidateOrders(token, gameID, req.Orders)
	if err != nil {
		writeErr(w, err)
		return
	}
	if len(invalid) > 0 {
		writeErr(w, service.E(service.KindValidation, "one or more orders are not legal").
			WithDetails(map[string]any{
				"invalid_orders":        invalid,
				"valid_orders_accepted": accepted,
			}))
		return
	}

	power, err := games.SetOrders(token, gameID, accepted)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"power": power, "orders": accepted})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
