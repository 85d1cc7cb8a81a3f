package engine

import "errors"

// Talk sub-states within one TALK phase.
const (
	TalkStateNone        = ""
	TalkStateRoundOpen   = "round_open"
	TalkStateRoundClosed = "round_closed"
	TalkStateOrdersOpen  = "orders_open"
)

// DefaultTalkRounds is the number of negotiation rounds per TALK phase
// unless configured otherwise.
const DefaultTalkRounds = 2

var (
	ErrNotTalkPhase = errors.New("not in a talk phase")
	// ErrStaleReady rejects a ready signal tagged with a sub-state the
	// game has already moved past.
	ErrStaleReady = errors.New("ready signal references a stale talk state")
)

// SetTalkReady marks a power ready in the current talk sub-state. The
// caller passes the sub-state it observed; a mismatch means a transition
// happened in between and the signal is rejected rather than silently
// counted toward the new state. Duplicate signals are idempotent.
func (g *Game) SetTalkReady(power, claimedState string) error {
	if g.Phase.Type != Talk || g.HasRule(RuleNoTalk) {
		return ErrNotTalkPhase
	}
	if claimedState != g.TalkRoundState {
		return ErrStaleReady
	}
	if _, ok := g.Powers[power]; !ok {
		return errors.New("unknown power " + power)
	}
	g.TalkReady[power] = true
	return nil
}

// talkTick advances the talk sub-machine by one process call. It returns
// true when the tick was consumed by the sub-machine and the phase clock
// must not advance.
func (g *Game) talkTick() bool {
	switch g.TalkRoundState {
	case TalkStateNone:
		g.TalkRound = 1
		g.TalkRoundState = TalkStateRoundOpen
		g.TalkReady = make(map[string]bool)
		return true
	case TalkStateRoundOpen:
		if !g.roundComplete() {
			return true
		}
		g.flushHeldMessages()
		if g.TalkRound < g.TalkNumRounds {
			g.TalkRound++
			g.TalkRoundState = TalkStateRoundOpen
		} else {
			g.TalkRoundState = TalkStateOrdersOpen
		}
		g.TalkReady = make(map[string]bool)
		return true
	case TalkStateOrdersOpen:
		if !g.roundComplete() {
			return true
		}
		return false
	default:
		return false
	}
}

// roundComplete reports whether every controlled, non-eliminated power has
// signalled ready. With no controlled powers at all (solitaire) it is
// trivially true.
func (g *Game) roundComplete() bool {
	if g.Phase.Type != Talk {
		return false
	}
	if g.TalkRoundState != TalkStateRoundOpen && g.TalkRoundState != TalkStateOrdersOpen {
		return false
	}
	for _, name := range g.powerNames {
		p := g.Powers[name]
		if p.Controller == "" {
			continue // dummy
		}
		if len(p.Units) == 0 && len(p.Centers) == 0 {
			continue // eliminated
		}
		if !g.TalkReady[name] {
			return false
		}
	}
	return true
}

// flushHeldMessages delivers held negotiation messages into the current
// phase's message list. Delivery coincides with round advancement so
// nobody reads a rival's message mid-round.
func (g *Game) flushHeldMessages() {
	g.Messages = append(g.Messages, g.TalkHeldMessages...)
	g.TalkHeldMessages = nil
}

// resetTalk clears all talk state on phase exit.
func (g *Game) resetTalk() {
	g.TalkRound = 0
	g.TalkRoundState = TalkStateNone
	g.TalkReady = make(map[string]bool)
	g.TalkHeldMessages = nil
}
