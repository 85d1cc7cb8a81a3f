package handler

import (
	"net/http"

	"github.com/ewhall/parley/internal/notify"
	"github.com/ewhall/parley/internal/registry"
	"github.com/ewhall/parley/internal/service"
)

// GameHandler is the direct game surface, addressed by game id. Creation,
// deletion, and processing are admin operations; the rest authorize like
// the lobby surface.
type GameHandler struct {
	games    *service.GameService
	registry *registry.Registry
	hub      *Hub
}

// NewGameHandler creates a GameHandler.
func NewGameHandler(games *service.GameService, reg *registry.Registry, hub *Hub) *GameHandler {
	return &GameHandler{games: games, registry: reg, hub: hub}
}

func (h *GameHandler) caller(r *http.Request) (string, error) {
	token := bearerToken(r)
	if _, err := h.registry.Username(token); err != nil {
		return "", service.Wrap(service.KindUnauthenticated, "invalid or expired token", err)
	}
	return token, nil
}

// List handles GET /api/games.
func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, err := h.caller(r); err != nil {
		writeErr(w, err)
		return
	}
	ids := h.games.GameIDs()
	writeOK(w, http.StatusOK, map[string]any{"games": ids, "count": len(ids)})
}

// Create handles POST /api/games. Admin only.
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	token, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req struct {
		GameID     string   `json:"game_id"`
		MapName    string   `json:"map_name"`
		Rules      []string `json:"rules"`
		NControls  int      `json:"n_controls"`
		TalkRounds int      `json:"talk_rounds"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}

	g, err := h.games.CreateGame(token, req.GameID, req.MapName, req.Rules, req.NControls, req.TalkRounds)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"game_id": g.ID, "status": g.Status})
}

// Get handles GET /api/games/{id}.
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, err := h.caller(r); err != nil {
		writeErr(w, err)
		return
	}
	snapshot, err := h.games.Snapshot(r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"game": snapshot})
}

// Delete handles DELETE /api/games/{id}. Admin only.
func (h *GameHandler) Delete(w http.ResponseWriter, r *http.Request) {
	token, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := h.games.DeleteGame(token, r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// Join handles POST /api/games/{id}/join. Empty power means a random
// free one.
func (h *GameHandler) Join(w http.ResponseWriter, r *http.Request) {
	token, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req struct {
		Power string `json:"power"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeErrMsg(w, http.StatusBadRequest, "invalid request body")
		return
	}
	gameID := r.PathValue("id")
	power, err := h.games.JoinGame(token, gameID, req.Power)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"power": power})
}

// Leave handles POST /api/games/{id}/leave.
func (h *GameHandler) Leave(w http.ResponseWriter, r *http.Request) {
	token, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := h.games.LeaveGame(token, r.PathValue("id")); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// Orders handles GET /api/games/{id}/orders.
func (h *GameHandler) Orders(w http.ResponseWriter, r *http.Request) {
	token, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	oc, err := h.games.Orders(token, r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"orders": oc})
}

// SubmitOrders handles POST /api/games/{id}/orders.
func (h *GameHandler) SubmitOrders(w http.ResponseWriter, r *http.Request) {
	token, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	submitOrders(w, r, h.games, token, r.PathValue("id"))
}

// Ready handles POST /api/games/{id}/ready.
func (h *GameHandler) Ready(w http.ResponseWriter, r *http.Request) {
	token, err := h.caller(r)
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
	if err := h.games.SetTalkReady(token, r.PathValue("id"), req.State); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// Message handles POST /api/games/{id}/message.
func (h *GameHandler) Message(w http.ResponseWriter, r *http.Request) {
	token, err := h.caller(r)
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
	if err := h.games.SendMessage(token, r.PathValue("id"), req.Recipient, req.Message); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// Process handles POST /api/games/{id}/process. Admin only.
func (h *GameHandler) Process(w http.ResponseWriter, r *http.Request) {
	token, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	gameID := r.PathValue("id")
	prev, cur, kicked, err := h.games.Process(token, gameID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if prev == nil {
		writeOK(w, http.StatusOK, map[string]any{"advanced": false})
		return
	}
	h.hub.BroadcastToGame(gameID, WSEvent{Type: notify.KindPhaseChanged, GameID: gameID, Data: map[string]any{
		"previous": prev.Name,
		"current":  cur.Name,
		"kicked":   kicked,
	}})
	writeOK(w, http.StatusOK, map[string]any{
		"advanced": true,
		"previous": prev,
		"current":  cur,
		"kicked":   kicked,
	})
}

// History handles GET /api/games/{id}/history?from=&to=, filtered for
// the caller's role.
func (h *GameHandler) History(w http.ResponseWriter, r *http.Request) {
	token, err := h.caller(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	phases, err := h.games.History(token, r.PathValue("id"), r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"phases": phases, "count": len(phases)})
}
