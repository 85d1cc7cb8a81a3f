// Package service is the request-manager façade over the engine: it owns
// the process-wide game table, serializes all mutation per game, funnels
// engine errors into the boundary error taxonomy, and projects every
// processed phase into the per-player logs.
package service

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ewhall/parley/internal/engine"
	"github.com/ewhall/parley/internal/notify"
	"github.com/ewhall/parley/internal/playerlog"
	"github.com/ewhall/parley/internal/registry"
)

// GameService owns every live game. All mutating calls on one game are
// serialized through its per-game mutex; the games map itself has its own
// lock so cross-game operations never contend.
type GameService struct {
	mu    sync.RWMutex
	games map[string]*engine.Game

	gameLocks sync.Map // game_id -> *sync.Mutex

	registry *registry.Registry
	logs     *playerlog.Store
	log      zerolog.Logger
}

// NewGameService creates the game service.
func NewGameService(reg *registry.Registry, logs *playerlog.Store, log zerolog.Logger) *GameService {
	return &GameService{
		games:    make(map[string]*engine.Game),
		registry: reg,
		logs:     logs,
		log:      log,
	}
}

func (s *GameService) lockGame(gameID string) func() {
	v, _ := s.gameLocks.LoadOrStore(gameID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *GameService) username(token string) (string, error) {
	username, err := s.registry.Username(token)
	if err != nil {
		return "", Wrap(KindUnauthenticated, "invalid or expired token", err)
	}
	return username, nil
}

func (s *GameService) get(gameID string) (*engine.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[gameID]
	if !ok {
		return nil, Ef(KindNotFound, "game %s not found", gameID)
	}
	return g, nil
}

// CreateGame registers a new game. Admin only: engine games are minted by
// the lobby coordinator (under its system token) or by operators.
func (s *GameService) CreateGame(token, gameID, mapName string, rules []string, nControls, talkRounds int) (*engine.Game, error) {
	if _, err := s.username(token); err != nil {
		return nil, err
	}
	if !s.registry.TokenIsAdmin(token) {
		return nil, E(KindForbidden, "game creation requires an administrator token")
	}
	if gameID == "" {
		return nil, E(KindValidation, "game_id is required")
	}
	if _, ok := engine.MapByName(mapName); !ok {
		return nil, Ef(KindValidation, "unknown map %q", mapName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.games[gameID]; exists {
		return nil, Ef(KindConflict, "game %s already exists", gameID)
	}
	g := engine.NewGame(gameID, mapName, rules, nControls, talkRounds)
	s.games[gameID] = g
	s.log.Info().Str("gameId", gameID).Str("map", g.MapName).Int("nControls", nControls).Msg("game created")
	return g, nil
}

// DeleteGame removes a game. Admin only.
func (s *GameService) DeleteGame(token, gameID string) error {
	if _, err := s.username(token); err != nil {
		return err
	}
	if !s.registry.TokenIsAdmin(token) {
		return E(KindForbidden, "game deletion requires an administrator token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[gameID]; !ok {
		return Ef(KindNotFound, "game %s not found", gameID)
	}
	delete(s.games, gameID)
	s.gameLocks.Delete(gameID)
	s.log.Info().Str("gameId", gameID).Msg("game deleted")
	return nil
}

// GameIDs lists every live game ID.
func (s *GameService) GameIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.games))
	for id := range s.games {
		ids = append(ids, id)
	}
	return ids
}

// JoinGame binds the caller to a power. Empty power means random among
// the free ones.
func (s *GameService) JoinGame(token, gameID, power string) (string, error) {
	username, err := s.username(token)
	if err != nil {
		return "", err
	}
	g, err := s.get(gameID)
	if err != nil {
		return "", err
	}

	defer s.lockGame(gameID)()
	assigned, err := g.Join(username, power)
	if err != nil {
		switch err {
		case engine.ErrUnknownPower:
			return "", Wrap(KindValidation, "unknown power", err)
		case engine.ErrPowerTaken:
			return "", Wrap(KindConflict, "power already controlled", err)
		}
		return "", Wrap(KindInternal, "join failed", err)
	}

	s.registry.NotifyUser(username, notify.Notification{
		Kind:    notify.KindPowerAssigned,
		GameID:  gameID,
		Payload: map[string]string{"power": assigned},
	})
	return assigned, nil
}

// LeaveGame releases the caller's power back to dummy control.
func (s *GameService) LeaveGame(token, gameID string) error {
	username, err := s.username(token)
	if err != nil {
		return err
	}
	g, err := s.get(gameID)
	if err != nil {
		return err
	}

	defer s.lockGame(gameID)()
	if !g.Leave(username) {
		return Ef(KindPrecondition, "%s controls no power in game %s", username, gameID)
	}
	return nil
}

// SetOrders replaces the caller's full order set for the current phase.
func (s *GameService) SetOrders(token, gameID string, orders []string) (string, error) {
	username, err := s.username(token)
	if err != nil {
		return "", err
	}
	g, err := s.get(gameID)
	if err != nil {
		return "", err
	}

	defer s.lockGame(gameID)()
	power, ok := g.PowerOf(username)
	if !ok {
		return "", Ef(KindForbidden, "%s controls no power in game %s", username, gameID)
	}
	if err := g.SetOrders(power, orders); err != nil {
		return "", Wrap(KindInternal, "set orders", err)
	}
	s.registry.NotifyUser(username, notify.Notification{
		Kind:    notify.KindOrdersSet,
		GameID:  gameID,
		Payload: map[string]any{"power": power, "orders": orders},
	})
	return power, nil
}

// ValidateOrders checks submitted orders against the legal order sets
// for the caller's power. It reports which orders were accepted and, for
// each rejected one, a reason and up to five suggestions from the same
// origin location.
type InvalidOrder struct {
	Order       string   `json:"order"`
	Reason      string   `json:"reason"`
	Suggestions []string `json:"suggestions"`
}

func (s *GameService) ValidateOrders(token, gameID string, orders []string) (accepted []string, invalid []InvalidOrder, err error) {
	username, err := s.username(token)
	if err != nil {
		return nil, nil, err
	}
	g, err := s.get(gameID)
	if err != nil {
		return nil, nil, err
	}

	defer s.lockGame(gameID)()
	power, ok := g.PowerOf(username)
	if !ok {
		return nil, nil, Ef(KindForbidden, "%s controls no power in game %s", username, gameID)
	}
	possible := g.AllPossibleOrders()
	orderable := map[string]bool{}
	for _, loc := range g.OrderableLocations()[power] {
		orderable[loc] = true
	}

	for _, raw := range orders {
		parsed, perr := engine.ParseOrder(raw)
		if perr != nil {
			invalid = append(invalid, InvalidOrder{Order: raw, Reason: "unparseable order", Suggestions: []string{}})
			continue
		}
		if parsed.Kind == engine.OrderWaive {
			accepted = append(accepted, parsed.Raw)
			continue
		}
		if !orderable[parsed.Loc] {
			invalid = append(invalid, InvalidOrder{
				Order:       parsed.Raw,
				Reason:      "no orderable unit at " + parsed.Loc,
				Suggestions: []string{},
			})
			continue
		}
		if !containsOrder(possible[parsed.Loc], parsed.Raw) {
			invalid = append(invalid, InvalidOrder{
				Order:       parsed.Raw,
				Reason:      "order is not legal at " + parsed.Loc,
				Suggestions: suggestions(possible[parsed.Loc], 5),
			})
			continue
		}
		accepted = append(accepted, parsed.Raw)
	}
	return accepted, invalid, nil
}

func containsOrder(list []string, order string) bool {
	for _, o := range list {
		if o == order {
			return true
		}
	}
	return false
}

func suggestions(list []string, max int) []string {
	if len(list) > max {
		list = list[:max]
	}
	return append([]string{}, list...)
}

// OrderContext describes the caller's orderable state for the current
// phase: the orders already on file and everything legal at each of
// their locations.
type OrderContext struct {
	Power    string              `json:"power"`
	Phase    string              `json:"phase"`
	Orders   []string            `json:"orders"`
	Possible map[string][]string `json:"possible"`
}

// Orders returns the caller's order context for a game.
func (s *GameService) Orders(token, gameID string) (*OrderContext, error) {
	username, err := s.username(token)
	if err != nil {
		return nil, err
	}
	g, err := s.get(gameID)
	if err != nil {
		return nil, err
	}

	defer s.lockGame(gameID)()
	power, ok := g.PowerOf(username)
	if !ok {
		return nil, Ef(KindForbidden, "%s controls no power in game %s", username, gameID)
	}
	all := g.AllPossibleOrders()
	possible := make(map[string][]string)
	for _, loc := range g.OrderableLocations()[power] {
		possible[loc] = all[loc]
	}
	return &OrderContext{
		Power:    power,
		Phase:    g.CurrentPhase().Abbr(),
		Orders:   append([]string{}, g.Powers[power].Orders...),
		Possible: possible,
	}, nil
}

// SendMessage posts a press message from the caller's power. During an
// open talk round, non-global press is held until the round closes.
func (s *GameService) SendMessage(token, gameID, recipient, body string) error {
	username, err := s.username(token)
	if err != nil {
		return err
	}
	g, err := s.get(gameID)
	if err != nil {
		return err
	}
	if body == "" {
		return E(KindValidation, "message is required")
	}

	defer s.lockGame(gameID)()
	power, ok := g.PowerOf(username)
	if !ok {
		return Ef(KindForbidden, "%s controls no power in game %s", username, gameID)
	}
	if recipient != engine.GlobalRecipient {
		valid := false
		for _, name := range g.PowerNames() {
			if name == recipient {
				valid = true
				break
			}
		}
		if !valid {
			return Ef(KindValidation, "unknown recipient %s", recipient)
		}
	}
	g.AddMessage(engine.Message{Sender: power, Recipient: recipient, Message: body})
	if recipient == engine.GlobalRecipient {
		n := notify.Notification{
			Kind:    notify.KindMessage,
			GameID:  gameID,
			Payload: map[string]string{"sender": power, "recipient": recipient},
		}
		for _, name := range g.PowerNames() {
			if controller := g.Powers[name].Controller; controller != "" && controller != username {
				s.registry.NotifyUser(controller, n)
			}
		}
	} else if controller := g.Powers[recipient].Controller; controller != "" {
		s.registry.NotifyUser(controller, notify.Notification{
			Kind:    notify.KindMessage,
			GameID:  gameID,
			Payload: map[string]string{"sender": power, "recipient": recipient},
		})
	}
	return nil
}

// SetTalkReady marks the caller's power ready in the claimed talk
// sub-state.
func (s *GameService) SetTalkReady(token, gameID, claimedState string) error {
	username, err := s.username(token)
	if err != nil {
		return err
	}
	g, err := s.get(gameID)
	if err != nil {
		return err
	}

	defer s.lockGame(gameID)()
	power, ok := g.PowerOf(username)
	if !ok {
		return Ef(KindForbidden, "%s controls no power in game %s", username, gameID)
	}
	if err := g.SetTalkReady(power, claimedState); err != nil {
		switch err {
		case engine.ErrStaleReady:
			return Wrap(KindValidation, "talk state changed, re-read and retry", err)
		case engine.ErrNotTalkPhase:
			return Wrap(KindPrecondition, "game is not in a talk phase", err)
		}
		return Wrap(KindInternal, "talk ready", err)
	}
	return nil
}

// Process advances a game by one tick under its lock. It returns only
// after the tick is fully applied and every participant's player log is
// written, so callers can read back the new state immediately.
//
// Admin only: lobby-driven games are processed through the coordinator's
// system token.
func (s *GameService) Process(token, gameID string) (prev, cur *engine.PhaseData, kicked []string, err error) {
	if _, err := s.username(token); err != nil {
		return nil, nil, nil, err
	}
	if !s.registry.TokenIsAdmin(token) {
		return nil, nil, nil, E(KindForbidden, "processing requires an administrator token")
	}
	g, err := s.get(gameID)
	if err != nil {
		return nil, nil, nil, err
	}

	defer s.lockGame(gameID)()
	if g.Status != engine.StatusActive {
		return nil, nil, nil, Ef(KindPrecondition, "game %s is %s", gameID, g.Status)
	}

	prev, cur, kicked = g.Process()
	if prev == nil {
		// Tick consumed by the talk sub-machine; nothing to archive.
		return nil, nil, nil, nil
	}

	s.appendPlayerLogs(g, prev)

	payload := map[string]any{"previous": prev.Name, "current": cur.Name}
	if len(kicked) > 0 {
		payload["kicked"] = kicked
	}
	n := notify.Notification{Kind: notify.KindPhaseChanged, GameID: gameID, Payload: payload}
	for _, power := range g.PowerNames() {
		if controller := g.Powers[power].Controller; controller != "" {
			s.registry.NotifyUser(controller, n)
		}
	}
	if g.Status == engine.StatusCompleted {
		s.log.Info().Str("gameId", gameID).Msg("game completed")
	}
	return prev, cur, kicked, nil
}

// appendPlayerLogs writes one filtered projection of the archived phase
// per participant: controlled powers, observers, and omniscients.
func (s *GameService) appendPlayerLogs(g *engine.Game, prev *engine.PhaseData) {
	append1 := func(username string, pd *engine.PhaseData) {
		if err := s.logs.Append(username, g.ID, pd); err != nil {
			s.log.Error().Err(err).Str("gameId", g.ID).Str("username", username).Msg("player log append failed")
		}
	}

	logged := make(map[string]bool)
	for _, power := range g.PowerNames() {
		controller := g.Powers[power].Controller
		if controller == "" || logged[controller] {
			continue
		}
		logged[controller] = true
		append1(controller, prev.FilterFor(power))
	}
	for token := range g.ObserverTokens {
		username, err := s.registry.Username(token)
		if err != nil || logged[username] {
			continue
		}
		logged[username] = true
		append1(username, prev.FilterFor(engine.RoleObserver))
	}
	for token := range g.OmniscientTokens {
		username, err := s.registry.Username(token)
		if err != nil || logged[username] {
			continue
		}
		logged[username] = true
		append1(username, prev.FilterFor(engine.RoleOmniscient))
	}
}

// Snapshot returns the serialized state of a game under its lock.
func (s *GameService) Snapshot(gameID string) (json.RawMessage, error) {
	g, err := s.get(gameID)
	if err != nil {
		return nil, err
	}
	defer s.lockGame(gameID)()
	data, err := json.Marshal(g)
	if err != nil {
		return nil, Wrap(KindInternal, "serialize game", err)
	}
	return data, nil
}

// History returns the archived phases of a game filtered for the
// caller's role: their power if they control one, omniscient for admins,
// observer otherwise.
func (s *GameService) History(token, gameID, from, to string) ([]*engine.PhaseData, error) {
	username, err := s.username(token)
	if err != nil {
		return nil, err
	}
	g, err := s.get(gameID)
	if err != nil {
		return nil, err
	}

	defer s.lockGame(gameID)()
	role := engine.RoleObserver
	if power, ok := g.PowerOf(username); ok {
		role = power
	} else if s.registry.TokenIsAdmin(token) || g.HasOmniscientToken(token) {
		role = engine.RoleOmniscient
	}
	history, err := g.PhaseHistory(from, to, role)
	if err != nil {
		return nil, Wrap(KindValidation, "bad phase range", err)
	}
	return history, nil
}

// PlayerLog reads the caller's own paginated log for a game.
func (s *GameService) PlayerLog(token, gameID string, limit, offset int) ([]json.RawMessage, error) {
	username, err := s.username(token)
	if err != nil {
		return nil, err
	}
	entries, err := s.logs.Read(username, gameID, limit, offset)
	if err != nil {
		return nil, Wrap(KindInternal, "read player log", err)
	}
	return entries, nil
}
