// Package lobby pairs stable player identities with engine games through
// short human-typable codes: create, join by code, host-driven start with
// random power assignment.
package lobby

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewhall/parley/internal/auth"
	"github.com/ewhall/parley/internal/engine"
	"github.com/ewhall/parley/internal/notify"
	"github.com/ewhall/parley/internal/registry"
	"github.com/ewhall/parley/internal/service"
)

// codeAlphabet omits 0/O/1/I/L so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	codeLength       = 4
	maxCodeAttempts  = 100
	systemUsername   = "#admin"
	AssignmentRandom = "random"
)

// Lobby statuses.
const (
	StatusWaiting = "waiting"
	StatusStarted = "started"
)

// Player is one seat in a lobby.
type Player struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Token       string    `json:"-"`
	IsHost      bool      `json:"is_host"`
	Power       string    `json:"power,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Lobby groups players waiting to start (or playing) one game.
type Lobby struct {
	Code         string             `json:"code"`
	MapName      string             `json:"map_name"`
	Assignment   string             `json:"assignment"`
	NPowers      int                `json:"n_powers"`
	Status       string             `json:"status"`
	Players      map[string]*Player `json:"players"`
	PlayerOrder  []string           `json:"player_order"`
	HostUsername string             `json:"host_username"`
	GameID       string             `json:"game_id,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// PlayerCount returns the number of seated players.
func (l *Lobby) PlayerCount() int {
	return len(l.Players)
}

// Coordinator owns the code → lobby table. One mutex guards the table and
// every lobby mutation; game interactions go through the game service.
type Coordinator struct {
	mu      sync.Mutex
	lobbies map[string]*Lobby

	games      *service.GameService
	registry   *registry.Registry
	tokens     *auth.TokenManager
	talkRounds int

	adminToken string

	log zerolog.Logger
}

// NewCoordinator creates the lobby coordinator.
func NewCoordinator(games *service.GameService, reg *registry.Registry, tokens *auth.TokenManager, talkRounds int, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		lobbies:    make(map[string]*Lobby),
		games:      games,
		registry:   reg,
		tokens:     tokens,
		talkRounds: talkRounds,
		log:        log,
	}
}

// bindToken registers a seated player's token as a connection, with a
// no-op sink until a live notification channel replaces it.
func (c *Coordinator) bindToken(token string) {
	if c.registry.SinkFor(token) == nil {
		c.registry.Attach(token, notify.NoopSink{})
	}
}

// NormalizeCode upper-cases and trims a submitted code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create opens a new lobby with the caller as host.
func (c *Coordinator) Create(username, displayName, token, mapName, assignment string) (*Lobby, *Player, error) {
	if mapName == "" {
		mapName = "standard"
	}
	if assignment == "" {
		assignment = AssignmentRandom
	}
	if assignment != AssignmentRandom {
		return nil, nil, service.Ef(service.KindValidation, "unknown assignment %q", assignment)
	}
	m, ok := engine.MapByName(mapName)
	if !ok {
		return nil, nil, service.Ef(service.KindValidation, "unknown map %q", mapName)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	code, err := c.newCodeLocked()
	if err != nil {
		return nil, nil, err
	}
	c.bindToken(token)
	player := &Player{
		Username:    username,
		DisplayName: displayName,
		Token:       token,
		IsHost:      true,
		JoinedAt:    time.Now().UTC(),
	}
	l := &Lobby{
		Code:         code,
		MapName:      m.Name,
		Assignment:   assignment,
		NPowers:      len(m.Powers()),
		Status:       StatusWaiting,
		Players:      map[string]*Player{username: player},
		PlayerOrder:  []string{username},
		HostUsername: username,
		CreatedAt:    time.Now().UTC(),
	}
	c.lobbies[code] = l
	c.log.Info().Str("code", code).Str("host", username).Str("map", m.Name).Msg("lobby created")
	return l, player, nil
}

func (c *Coordinator) newCodeLocked() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}
		code := string(b)
		if _, taken := c.lobbies[code]; !taken {
			return code, nil
		}
	}
	return "", service.E(service.KindInternal, "could not allocate a lobby code")
}

// Join seats a player by code. Rejoining with the same username refreshes
// the stored token instead of adding a seat.
func (c *Coordinator) Join(code, username, displayName, token string) (*Lobby, *Player, error) {
	code = NormalizeCode(code)

	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.lobbies[code]
	if !ok {
		return nil, nil, service.Ef(service.KindNotFound, "no lobby with code %s", code)
	}
	if l.Status != StatusWaiting {
		return nil, nil, service.Ef(service.KindPrecondition, "lobby %s has already started", code)
	}
	if existing, ok := l.Players[username]; ok {
		c.bindToken(token)
		existing.Token = token
		existing.DisplayName = displayName
		return l, existing, nil
	}
	if l.PlayerCount() >= l.NPowers {
		return nil, nil, service.Ef(service.KindConflict, "lobby %s is full", code)
	}
	for _, p := range l.Players {
		if strings.EqualFold(p.DisplayName, displayName) {
			return nil, nil, service.Ef(service.KindConflict, "display name %q is taken in lobby %s", displayName, code)
		}
	}

	c.bindToken(token)
	player := &Player{
		Username:    username,
		DisplayName: displayName,
		Token:       token,
		JoinedAt:    time.Now().UTC(),
	}
	l.Players[username] = player
	l.PlayerOrder = append(l.PlayerOrder, username)
	c.log.Info().Str("code", code).Str("username", username).Int("players", l.PlayerCount()).Msg("player joined lobby")
	return l, player, nil
}

// Start creates the engine game and seats every player on a randomly
// assigned power. Only the host may start. Any engine failure is rolled
// back and the lobby stays in waiting.
func (c *Coordinator) Start(ctx context.Context, code, username string) (*Lobby, error) {
	code = NormalizeCode(code)

	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.lobbies[code]
	if !ok {
		return nil, service.Ef(service.KindNotFound, "no lobby with code %s", code)
	}
	if username != l.HostUsername {
		return nil, service.E(service.KindForbidden, "only the host may start the game")
	}
	if l.Status != StatusWaiting {
		return nil, service.Ef(service.KindPrecondition, "lobby %s has already started", code)
	}
	if l.PlayerCount() < 1 {
		return nil, service.E(service.KindPrecondition, "lobby has no players")
	}

	adminToken, err := c.systemToken(ctx)
	if err != nil {
		return nil, err
	}

	m, _ := engine.MapByName(l.MapName)
	powers := m.Powers()
	perm := rand.Perm(len(powers))
	assignment := make(map[string]string, l.PlayerCount())
	for i, uname := range l.PlayerOrder {
		assignment[uname] = powers[perm[i]]
	}

	gameID := "game_" + code
	rules := []string{engine.RulePowerChoice}
	if _, err := c.games.CreateGame(adminToken, gameID, l.MapName, rules, l.PlayerCount(), c.talkRounds); err != nil {
		return nil, err
	}

	for _, uname := range l.PlayerOrder {
		p := l.Players[uname]
		if _, err := c.games.JoinGame(p.Token, gameID, assignment[uname]); err != nil {
			// Roll back so the lobby can be started again.
			if derr := c.games.DeleteGame(adminToken, gameID); derr != nil {
				c.log.Error().Err(derr).Str("gameId", gameID).Msg("rollback of failed start left a game behind")
			}
			return nil, err
		}
	}

	for uname, power := range assignment {
		l.Players[uname].Power = power
	}
	l.Status = StatusStarted
	l.GameID = gameID
	c.log.Info().Str("code", code).Str("gameId", gameID).Msg("lobby started")
	return l, nil
}

// Process advances the lobby's game by one tick. Host only; the engine
// call runs under the coordinator's system token.
func (c *Coordinator) Process(ctx context.Context, code, username string) (prev, cur *engine.PhaseData, kicked []string, err error) {
	code = NormalizeCode(code)

	c.mu.Lock()
	l, ok := c.lobbies[code]
	if !ok {
		c.mu.Unlock()
		return nil, nil, nil, service.Ef(service.KindNotFound, "no lobby with code %s", code)
	}
	if username != l.HostUsername {
		c.mu.Unlock()
		return nil, nil, nil, service.E(service.KindForbidden, "only the host may process the game")
	}
	if l.Status != StatusStarted {
		c.mu.Unlock()
		return nil, nil, nil, service.Ef(service.KindPrecondition, "lobby %s has not started", code)
	}
	gameID := l.GameID
	adminToken, err := c.systemToken(ctx)
	c.mu.Unlock()
	if err != nil {
		return nil, nil, nil, err
	}

	return c.games.Process(adminToken, gameID)
}

// Get returns a lobby by code.
func (c *Coordinator) Get(code string) (*Lobby, error) {
	code = NormalizeCode(code)
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lobbies[code]
	if !ok {
		return nil, service.Ef(service.KindNotFound, "no lobby with code %s", code)
	}
	return l, nil
}

// GetForToken finds the lobby holding the player seated with this token.
func (c *Coordinator) GetForToken(token string) (*Lobby, *Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lobbies {
		for _, p := range l.Players {
			if p.Token == token {
				return l, p, true
			}
		}
	}
	return nil, nil, false
}

// systemToken returns the process-wide admin token, minting it lazily and
// re-minting whenever the cached one no longer revalidates.
func (c *Coordinator) systemToken(ctx context.Context) (string, error) {
	if c.adminToken != "" && c.registry.HasValidToken(c.adminToken) {
		return c.adminToken, nil
	}

	if !c.registry.HasUsername(systemUsername) {
		secret, err := auth.GenerateSecretKey()
		if err != nil {
			return "", service.Wrap(service.KindInternal, "mint system credentials", err)
		}
		hash, err := auth.HashPassword(secret)
		if err != nil {
			return "", service.Wrap(service.KindInternal, "mint system credentials", err)
		}
		if err := c.registry.AddUser(ctx, systemUsername, hash); err != nil && err != registry.ErrUserExists {
			return "", service.Wrap(service.KindInternal, "register system user", err)
		}
	}
	if err := c.registry.AddAdmin(ctx, systemUsername); err != nil {
		return "", service.Wrap(service.KindInternal, "promote system user", err)
	}

	token, err := c.tokens.Mint(systemUsername, 0)
	if err != nil {
		return "", service.Wrap(service.KindInternal, "mint system token", err)
	}
	c.adminToken = token
	c.log.Debug().Msg("system token minted")
	return token, nil
}
