// Package engine implements the game state machine: the phase calendar,
// the talk-round sub-machine, order adjudication on the standard map, and
// role-filtered phase histories.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// Game statuses.
const (
	StatusForming   = "forming"
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

// Rule flags.
const (
	RuleNoTalk         = "NO_TALK"
	RuleDontSkipPhases = "DONT_SKIP_PHASES"
	RulePowerChoice    = "POWER_CHOICE"
)

// Participant roles beyond power names.
const (
	RoleObserver   = "observer"
	RoleOmniscient = "omniscient"
)

// GlobalRecipient addresses a message to every participant.
const GlobalRecipient = "GLOBAL"

// WinCenters is the supply-center count that ends the game.
const WinCenters = 18

const firstYear = 1901

var (
	ErrGameNotActive = errors.New("game is not active")
	ErrUnknownPower  = errors.New("unknown power")
	ErrPowerTaken    = errors.New("power already controlled")
)

// Power is one playable nation within a game.
type Power struct {
	Name       string              `json:"name"`
	Controller string              `json:"controller,omitempty"`
	Units      []string            `json:"units"`
	Centers    []string            `json:"centers"`
	Homes      []string            `json:"homes"`
	Orders     []string            `json:"orders"`
	OrderIsSet bool                `json:"order_is_set"`
	Wait       bool                `json:"wait"`
	Retreats   map[string][]string `json:"retreats"`
	Influence  []string            `json:"influence"`
}

// Message is one piece of in-game correspondence.
type Message struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Phase     string `json:"phase"`
	TimeSent  int64  `json:"time_sent"`
	Message   string `json:"message"`
}

// PhaseData is the archived snapshot of one processed phase.
type PhaseData struct {
	Name     string              `json:"name"`
	State    map[string]any      `json:"state"`
	Orders   map[string][]string `json:"orders,omitempty"`
	Results  map[string][]string `json:"results,omitempty"`
	Messages []Message           `json:"messages,omitempty"`
}

// Game owns all state for one game instance. It is not safe for
// concurrent use; the service layer serializes access per game.
type Game struct {
	ID        string
	MapName   string
	Rules     []string
	Status    string
	Phase     Phase
	NControls int

	Powers     map[string]*Power
	powerNames []string

	TalkRound        int
	TalkRoundState   string
	TalkReady        map[string]bool
	TalkHeldMessages []Message
	TalkNumRounds    int

	Messages []Message
	History  []*PhaseData

	ObserverTokens   map[string]bool
	OmniscientTokens map[string]bool

	calendar Calendar
	gameMap  *GameMap
}

// NewGame creates a game in forming status at its opening phase.
func NewGame(id, mapName string, rules []string, nControls, talkRounds int) *Game {
	// Map names are validated at the boundary; unknown ones fall back
	// to standard here.
	m, ok := MapByName(mapName)
	if !ok {
		m = standardMap
	}
	if talkRounds < 1 {
		talkRounds = DefaultTalkRounds
	}
	g := &Game{
		ID:               id,
		MapName:          m.Name,
		Rules:            append([]string(nil), rules...),
		Status:           StatusForming,
		NControls:        nControls,
		Powers:           make(map[string]*Power),
		TalkReady:        make(map[string]bool),
		TalkNumRounds:    talkRounds,
		ObserverTokens:   make(map[string]bool),
		OmniscientTokens: make(map[string]bool),
		gameMap:          m,
	}
	g.calendar = NewCalendar(g.HasRule(RuleNoTalk))
	g.Phase = g.calendar.First(firstYear)
	for _, name := range m.Powers() {
		homes := append([]string(nil), m.Homes(name)...)
		p := &Power{
			Name:     name,
			Units:    append([]string(nil), m.StartingUnits(name)...),
			Centers:  append([]string(nil), homes...),
			Homes:    homes,
			Retreats: make(map[string][]string),
		}
		sort.Strings(p.Centers)
		p.buildInfluence()
		g.Powers[name] = p
		g.powerNames = append(g.powerNames, name)
	}
	if nControls <= 0 {
		// Solitaire: no controllers expected, playable immediately.
		g.NControls = 0
		g.Status = StatusActive
	}
	return g
}

// HasRule reports whether the rule flag is set on this game.
func (g *Game) HasRule(rule string) bool {
	for _, r := range g.Rules {
		if r == rule {
			return true
		}
	}
	return false
}

// PowerNames returns the power names in canonical order.
func (g *Game) PowerNames() []string {
	return append([]string(nil), g.powerNames...)
}

// Join binds a username to a power. When power is empty a free power is
// picked at random (POWER_CHOICE games pass an explicit power). The game
// activates once NControls powers are controlled.
func (g *Game) Join(username, power string) (string, error) {
	if power == "" {
		var free []string
		for _, name := range g.powerNames {
			if g.Powers[name].Controller == "" {
				free = append(free, name)
			}
		}
		if len(free) == 0 {
			return "", ErrPowerTaken
		}
		power = free[rand.Intn(len(free))]
	}
	p, ok := g.Powers[power]
	if !ok {
		return "", ErrUnknownPower
	}
	if p.Controller != "" && p.Controller != username {
		return "", ErrPowerTaken
	}
	p.Controller = username

	if g.Status == StatusForming && g.controlledCount() >= g.NControls && g.NControls > 0 {
		g.Status = StatusActive
	}
	return power, nil
}

// Leave releases a power back to dummy control.
func (g *Game) Leave(username string) bool {
	for _, name := range g.powerNames {
		if g.Powers[name].Controller == username {
			g.Powers[name].Controller = ""
			return true
		}
	}
	return false
}

func (g *Game) controlledCount() int {
	n := 0
	for _, name := range g.powerNames {
		if g.Powers[name].Controller != "" {
			n++
		}
	}
	return n
}

// IsControlledBy reports whether the username controls the power.
func (g *Game) IsControlledBy(power, username string) bool {
	p, ok := g.Powers[power]
	return ok && p.Controller != "" && p.Controller == username
}

// PowerOf returns the power a username controls, if any.
func (g *Game) PowerOf(username string) (string, bool) {
	for _, name := range g.powerNames {
		if g.Powers[name].Controller == username {
			return name, true
		}
	}
	return "", false
}

// HasObserverToken reports observer membership.
func (g *Game) HasObserverToken(token string) bool { return g.ObserverTokens[token] }

// HasOmniscientToken reports omniscient membership.
func (g *Game) HasOmniscientToken(token string) bool { return g.OmniscientTokens[token] }

// AddObserverToken grants a token the observer role.
func (g *Game) AddObserverToken(token string) { g.ObserverTokens[token] = true }

// AddOmniscientToken grants a token the omniscient role.
func (g *Game) AddOmniscientToken(token string) { g.OmniscientTokens[token] = true }

// SetOrders replaces a power's order set for the current phase. The last
// submission wins in full.
func (g *Game) SetOrders(power string, orders []string) error {
	p, ok := g.Powers[power]
	if !ok {
		return ErrUnknownPower
	}
	p.Orders = append([]string(nil), orders...)
	p.OrderIsSet = true
	return nil
}

// AddMessage records a message. During an open talk round, cross-power
// messages are held back and delivered when the round advances.
func (g *Game) AddMessage(m Message) {
	m.Phase = g.Phase.Abbr()
	if m.TimeSent == 0 {
		m.TimeSent = time.Now().UnixNano()
	}
	if g.Phase.Type == Talk && g.TalkRoundState == TalkStateRoundOpen && m.Recipient != GlobalRecipient {
		g.TalkHeldMessages = append(g.TalkHeldMessages, m)
		return
	}
	g.Messages = append(g.Messages, m)
}

// CurrentPhase returns the game's current phase.
func (g *Game) CurrentPhase() Phase {
	return g.Phase
}

// Process advances the game by one tick.
//
// During a TALK phase (talk enabled) the tick is first offered to the talk
// sub-machine; when it is consumed there the returned tuple is all nil and
// the phase clock does not move. Otherwise the current phase is resolved,
// archived, and the clock advances, skipping empty retreat and adjustment
// phases unless DONT_SKIP_PHASES is set. kicked lists powers eliminated by
// this tick.
func (g *Game) Process() (prev, cur *PhaseData, kicked []string) {
	if g.Status != StatusActive {
		return nil, nil, nil
	}
	if g.Phase.Type == Talk && !g.HasRule(RuleNoTalk) {
		if consumed := g.talkTick(); consumed {
			return nil, nil, nil
		}
	}

	eliminatedBefore := g.eliminated()

	stateBefore := g.stateSnapshot()
	orders := g.ordersSnapshot()
	var results map[string][]string
	switch g.Phase.Type {
	case Movement:
		results = g.resolveMovement()
	case Retreats:
		results = g.resolveRetreats()
	case Adjustments:
		results = g.resolveAdjustments()
	default:
		// TALK archives messages only. Orders submitted while
		// orders_open are kept for the movement phase that follows.
		results = map[string][]string{}
		orders = map[string][]string{}
	}
	g.flushHeldMessages()

	prev = &PhaseData{
		Name:     g.Phase.Abbr(),
		State:    stateBefore,
		Orders:   orders,
		Results:  results,
		Messages: g.Messages,
	}
	g.History = append(g.History, prev)
	g.Messages = nil
	g.resetTalk()
	g.advancePhase()

	for name := range g.eliminated() {
		if !eliminatedBefore[name] {
			kicked = append(kicked, name)
		}
	}
	g.checkVictory()

	cur = &PhaseData{Name: g.Phase.Abbr(), State: g.stateSnapshot()}
	return prev, cur, kicked
}

// advancePhase moves the clock forward, applying the skip policy and
// transferring center ownership when the fall season closes.
func (g *Game) advancePhase() {
	for {
		next := g.calendar.Next(g.Phase, "")
		if next.Type == Adjustments {
			g.updateCenters()
			for _, name := range g.powerNames {
				g.Powers[name].buildInfluence()
			}
		}
		g.Phase = next
		if g.HasRule(RuleDontSkipPhases) {
			return
		}
		switch next.Type {
		case Retreats:
			if g.hasRetreats() {
				return
			}
		case Adjustments:
			if g.hasAdjustments() {
				return
			}
		default:
			return
		}
	}
}

func (g *Game) checkVictory() {
	for _, name := range g.powerNames {
		if len(g.Powers[name].Centers) >= WinCenters {
			g.Status = StatusCompleted
			return
		}
	}
}

func (g *Game) eliminated() map[string]bool {
	out := make(map[string]bool)
	for _, name := range g.powerNames {
		p := g.Powers[name]
		if len(p.Units) == 0 && len(p.Centers) == 0 {
			out[name] = true
		}
	}
	return out
}

func (g *Game) stateSnapshot() map[string]any {
	units := make(map[string][]string)
	centers := make(map[string][]string)
	retreats := make(map[string]map[string][]string)
	homes := make(map[string][]string)
	influence := make(map[string][]string)
	for _, name := range g.powerNames {
		p := g.Powers[name]
		units[name] = append([]string(nil), p.Units...)
		centers[name] = append([]string(nil), p.Centers...)
		homes[name] = append([]string(nil), p.Homes...)
		influence[name] = append([]string(nil), p.Influence...)
		r := make(map[string][]string, len(p.Retreats))
		for unit, opts := range p.Retreats {
			r[unit] = append([]string(nil), opts...)
		}
		retreats[name] = r
	}
	return map[string]any{
		"units":     units,
		"centers":   centers,
		"retreats":  retreats,
		"homes":     homes,
		"influence": influence,
	}
}

func (g *Game) ordersSnapshot() map[string][]string {
	out := make(map[string][]string)
	for _, name := range g.powerNames {
		out[name] = append([]string(nil), g.Powers[name].Orders...)
	}
	return out
}

// PhaseHistory returns archived phases within [from, to] (phase
// abbreviations, empty bounds mean unbounded), each filtered for role.
func (g *Game) PhaseHistory(from, to, role string) ([]*PhaseData, error) {
	var fromPhase, toPhase *Phase
	if from != "" {
		p, err := ParsePhase(from)
		if err != nil {
			return nil, err
		}
		fromPhase = &p
	}
	if to != "" {
		p, err := ParsePhase(to)
		if err != nil {
			return nil, err
		}
		toPhase = &p
	}

	var out []*PhaseData
	for _, pd := range g.History {
		p, err := ParsePhase(pd.Name)
		if err != nil {
			continue
		}
		if fromPhase != nil && Compare(p, *fromPhase) < 0 {
			continue
		}
		if toPhase != nil && Compare(p, *toPhase) > 0 {
			continue
		}
		out = append(out, pd.FilterFor(role))
	}
	return out, nil
}

// FilterFor projects the phase snapshot to what a role may see. Orders
// and results of processed phases are public; messages are not.
func (pd *PhaseData) FilterFor(role string) *PhaseData {
	out := &PhaseData{
		Name:    pd.Name,
		State:   pd.State,
		Orders:  pd.Orders,
		Results: pd.Results,
	}
	for _, m := range pd.Messages {
		switch role {
		case RoleOmniscient:
			out.Messages = append(out.Messages, m)
		case RoleObserver:
			if m.Recipient == GlobalRecipient {
				out.Messages = append(out.Messages, m)
			}
		default:
			if m.Recipient == GlobalRecipient || m.Sender == role || m.Recipient == role {
				out.Messages = append(out.Messages, m)
			}
		}
	}
	return out
}

// Units returns current units per power.
func (g *Game) Units() map[string][]string {
	out := make(map[string][]string)
	for _, name := range g.powerNames {
		out[name] = append([]string(nil), g.Powers[name].Units...)
	}
	return out
}

// Centers returns current supply centers per power.
func (g *Game) Centers() map[string][]string {
	out := make(map[string][]string)
	for _, name := range g.powerNames {
		out[name] = append([]string(nil), g.Powers[name].Centers...)
	}
	return out
}

// gameJSON is the serialized shape of a Game. Talk fields survive the
// round trip.
type gameJSON struct {
	ID               string            `json:"game_id"`
	MapName          string            `json:"map_name"`
	Rules            []string          `json:"rules"`
	Status           string            `json:"status"`
	Phase            string            `json:"phase"`
	NControls        int               `json:"n_controls"`
	Powers           map[string]*Power `json:"powers"`
	TalkRound        int               `json:"talk_round"`
	TalkRoundState   string            `json:"talk_round_state"`
	TalkReady        []string          `json:"talk_ready"`
	TalkHeldMessages []Message         `json:"talk_held_messages"`
	TalkNumRounds    int               `json:"talk_num_rounds"`
	Messages         []Message         `json:"messages"`
	History          []*PhaseData      `json:"history"`
	ObserverTokens   []string          `json:"observer_tokens,omitempty"`
	OmniscientTokens []string          `json:"omniscient_tokens,omitempty"`
}

// MarshalJSON serializes the complete game state.
func (g *Game) MarshalJSON() ([]byte, error) {
	ready := make([]string, 0, len(g.TalkReady))
	for power := range g.TalkReady {
		ready = append(ready, power)
	}
	sort.Strings(ready)
	return json.Marshal(gameJSON{
		ID:               g.ID,
		MapName:          g.MapName,
		Rules:            g.Rules,
		Status:           g.Status,
		Phase:            g.Phase.Abbr(),
		NControls:        g.NControls,
		Powers:           g.Powers,
		TalkRound:        g.TalkRound,
		TalkRoundState:   g.TalkRoundState,
		TalkReady:        ready,
		TalkHeldMessages: g.TalkHeldMessages,
		TalkNumRounds:    g.TalkNumRounds,
		Messages:         g.Messages,
		History:          g.History,
		ObserverTokens:   setToSorted(g.ObserverTokens),
		OmniscientTokens: setToSorted(g.OmniscientTokens),
	})
}

// UnmarshalJSON restores a game serialized by MarshalJSON.
func (g *Game) UnmarshalJSON(data []byte) error {
	var gj gameJSON
	if err := json.Unmarshal(data, &gj); err != nil {
		return fmt.Errorf("decode game: %w", err)
	}
	phase, err := ParsePhase(gj.Phase)
	if err != nil {
		return err
	}

	g.ID = gj.ID
	g.MapName = gj.MapName
	g.Rules = gj.Rules
	g.Status = gj.Status
	g.Phase = phase
	g.NControls = gj.NControls
	g.Powers = gj.Powers
	g.TalkRound = gj.TalkRound
	g.TalkRoundState = gj.TalkRoundState
	g.TalkReady = make(map[string]bool)
	for _, power := range gj.TalkReady {
		g.TalkReady[power] = true
	}
	g.TalkHeldMessages = gj.TalkHeldMessages
	g.TalkNumRounds = gj.TalkNumRounds
	if g.TalkNumRounds < 1 {
		g.TalkNumRounds = DefaultTalkRounds
	}
	g.Messages = gj.Messages
	g.History = gj.History
	g.ObserverTokens = sortedToSet(gj.ObserverTokens)
	g.OmniscientTokens = sortedToSet(gj.OmniscientTokens)

	m, ok := MapByName(g.MapName)
	if !ok {
		return fmt.Errorf("decode game: unknown map %q", g.MapName)
	}
	g.gameMap = m
	g.calendar = NewCalendar(g.HasRule(RuleNoTalk))
	g.powerNames = nil
	for _, name := range g.gameMap.Powers() {
		if p, ok := g.Powers[name]; ok {
			if p.Retreats == nil {
				p.Retreats = make(map[string][]string)
			}
			g.powerNames = append(g.powerNames, name)
		}
	}
	return nil
}

func setToSorted(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedToSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, s := range list {
		set[s] = true
	}
	return set
}
