package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoTalkGameStartsAtMovement(t *testing.T) {
	g := newSolitaireGame(t, RuleNoTalk)
	assert.Equal(t, "S1901M", g.Phase.Abbr())
}

// With nothing dislodged and no builds owed, spring movement jumps
// straight to fall movement.
func TestSkipToFallMovement(t *testing.T) {
	g := newSolitaireGame(t, RuleNoTalk)

	prev, cur, kicked := g.Process()
	require.NotNil(t, prev)
	require.NotNil(t, cur)
	assert.Empty(t, kicked)
	assert.Equal(t, "S1901M", prev.Name)
	assert.Equal(t, "F1901M", g.Phase.Abbr())
}

func TestDontSkipPhasesKeepsEmptyRetreats(t *testing.T) {
	g := newSolitaireGame(t, RuleNoTalk, RuleDontSkipPhases)

	g.Process()
	assert.Equal(t, "S1901R", g.Phase.Abbr())
}

func TestProcessRefusedWhenNotActive(t *testing.T) {
	g := NewGame("game_TEST", "standard", nil, 7, 0)
	require.Equal(t, StatusForming, g.Status)

	prev, cur, kicked := g.Process()
	assert.Nil(t, prev)
	assert.Nil(t, cur)
	assert.Nil(t, kicked)
}

func TestMovementResolution(t *testing.T) {
	g := newSolitaireGame(t, RuleNoTalk)

	require.NoError(t, g.SetOrders("FRANCE", []string{"A PAR - BUR"}))
	prev, _, _ := g.Process()
	require.NotNil(t, prev)

	assert.Contains(t, g.Powers["FRANCE"].Units, "A BUR")
	assert.NotContains(t, g.Powers["FRANCE"].Units, "A PAR")
	assert.Equal(t, []string{}, prev.Results["A PAR"])
}

func TestMovementBounce(t *testing.T) {
	g := newSolitaireGame(t, RuleNoTalk)

	require.NoError(t, g.SetOrders("FRANCE", []string{"A PAR - BUR"}))
	require.NoError(t, g.SetOrders("GERMANY", []string{"A MUN - BUR"}))
	prev, _, _ := g.Process()
	require.NotNil(t, prev)

	assert.Contains(t, g.Powers["FRANCE"].Units, "A PAR")
	assert.Contains(t, g.Powers["GERMANY"].Units, "A MUN")
	assert.Contains(t, prev.Results["A PAR"], ResultBounce)
	assert.Contains(t, prev.Results["A MUN"], ResultBounce)
}

// Supported attack dislodges a holding unit and a retreat phase opens.
// Submitting the retreat then lands on fall talk.
func TestDislodgementAndRetreat(t *testing.T) {
	g := newSolitaireGame(t)
	for _, name := range g.PowerNames() {
		g.Powers[name].Units = nil
	}
	g.Powers["GERMANY"].Units = []string{"A SIL", "A PRU"}
	g.Powers["RUSSIA"].Units = []string{"A WAR"}

	for i := 0; i < 3; i++ {
		g.Process() // talk rounds
	}
	g.Process() // leaves S1901T
	require.Equal(t, "S1901M", g.Phase.Abbr())

	require.NoError(t, g.SetOrders("GERMANY", []string{"A SIL - WAR", "A PRU S A SIL - WAR"}))
	prev, _, _ := g.Process()
	require.NotNil(t, prev)

	require.Equal(t, "S1901R", g.Phase.Abbr())
	retreats := g.Powers["RUSSIA"].Retreats
	require.Contains(t, retreats, "A WAR")
	assert.Contains(t, prev.Results["A WAR"], ResultDislodged)

	// The attacker's origin is not a legal retreat.
	assert.NotContains(t, retreats["A WAR"], "SIL")
	assert.Contains(t, retreats["A WAR"], "MOS")

	require.NoError(t, g.SetOrders("RUSSIA", []string{"A WAR R MOS"}))
	g.Process()
	assert.Equal(t, "F1901T", g.Phase.Abbr())
	assert.Contains(t, g.Powers["RUSSIA"].Units, "A MOS")
}

func TestFallCenterCapture(t *testing.T) {
	g := newSolitaireGame(t, RuleNoTalk)
	for _, name := range g.PowerNames() {
		g.Powers[name].Units = nil
	}
	g.Powers["GERMANY"].Units = []string{"A BUR"}
	g.Phase = Phase{Season: Fall, Year: 1901, Type: Movement}

	require.NoError(t, g.SetOrders("GERMANY", []string{"A BUR - PAR"}))
	g.Process()

	require.Equal(t, "W1901A", g.Phase.Abbr())
	assert.Contains(t, g.Powers["GERMANY"].Centers, "PAR")
	assert.NotContains(t, g.Powers["FRANCE"].Centers, "PAR")
}

// A power whose last center falls in the fall season is reported in
// kicked on that tick, and only on that tick.
func TestEliminationOnLastCenterLoss(t *testing.T) {
	g := newSolitaireGame(t, RuleNoTalk)
	for _, name := range g.PowerNames() {
		g.Powers[name].Units = nil
	}
	g.Powers["GERMANY"].Units = []string{"A BUR"}
	g.Powers["FRANCE"].Centers = []string{"PAR"}
	g.Phase = Phase{Season: Fall, Year: 1901, Type: Movement}

	require.NoError(t, g.SetOrders("GERMANY", []string{"A BUR - PAR"}))
	_, _, kicked := g.Process()

	assert.Equal(t, []string{"FRANCE"}, kicked)
	assert.Empty(t, g.Powers["FRANCE"].Centers)

	// Already-eliminated powers are not reported again.
	_, _, kicked = g.Process()
	assert.Empty(t, kicked)
}

func TestMapByName(t *testing.T) {
	m, ok := MapByName("standard")
	require.True(t, ok)
	assert.Equal(t, "standard", m.Name)

	m, ok = MapByName("")
	require.True(t, ok)
	assert.Equal(t, "standard", m.Name)

	_, ok = MapByName("atlantis")
	assert.False(t, ok)
}

func TestAdjustmentBuild(t *testing.T) {
	g := newSolitaireGame(t, RuleNoTalk)
	g.Powers["FRANCE"].Units = []string{"A MAR", "F BRE"}
	g.Powers["FRANCE"].Centers = []string{"BRE", "MAR", "PAR", "SPA"}
	g.Phase = Phase{Season: Winter, Year: 1901, Type: Adjustments}

	possible := g.AllPossibleOrders()
	require.Contains(t, possible, "PAR")
	assert.Contains(t, possible["PAR"], "A PAR B")

	require.NoError(t, g.SetOrders("FRANCE", []string{"A PAR B"}))
	g.Process()

	assert.Contains(t, g.Powers["FRANCE"].Units, "A PAR")
	assert.Equal(t, "S1902M", g.Phase.Abbr())
}

func TestAdjustmentCivilDisorderDisband(t *testing.T) {
	g := newSolitaireGame(t, RuleNoTalk)
	g.Powers["ITALY"].Units = []string{"A ROM", "A VEN", "F NAP"}
	g.Powers["ITALY"].Centers = []string{"NAP", "ROM"}
	g.Phase = Phase{Season: Winter, Year: 1901, Type: Adjustments}

	g.Process()
	assert.Len(t, g.Powers["ITALY"].Units, 2)
}

func TestOrderableLocationsAndPossibleOrders(t *testing.T) {
	g := newSolitaireGame(t, RuleNoTalk)

	locs := g.OrderableLocations()
	assert.Equal(t, []string{"BRE", "MAR", "PAR"}, locs["FRANCE"])

	possible := g.AllPossibleOrders()
	require.Contains(t, possible, "PAR")
	assert.Contains(t, possible["PAR"], "A PAR H")
	assert.Contains(t, possible["PAR"], "A PAR - BUR")
	assert.NotContains(t, possible["PAR"], "A PAR - XYZ")
	assert.NotContains(t, possible["PAR"], "A PAR - MUN")
}

func TestSetOrdersLastSubmissionWins(t *testing.T) {
	g := newSolitaireGame(t, RuleNoTalk)

	require.NoError(t, g.SetOrders("FRANCE", []string{"A PAR - BUR", "A MAR - SPA"}))
	require.NoError(t, g.SetOrders("FRANCE", []string{"A PAR H"}))

	assert.Equal(t, []string{"A PAR H"}, g.Powers["FRANCE"].Orders)
	assert.True(t, g.Powers["FRANCE"].OrderIsSet)
}

func TestJoinActivatesGame(t *testing.T) {
	g := NewGame("game_TEST", "standard", []string{RulePowerChoice}, 2, 0)
	require.Equal(t, StatusForming, g.Status)

	power, err := g.Join("alice", "FRANCE")
	require.NoError(t, err)
	assert.Equal(t, "FRANCE", power)
	assert.Equal(t, StatusForming, g.Status)

	_, err = g.Join("bob", "FRANCE")
	assert.ErrorIs(t, err, ErrPowerTaken)

	_, err = g.Join("bob", "ATLANTIS")
	assert.ErrorIs(t, err, ErrUnknownPower)

	_, err = g.Join("bob", "GERMANY")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, g.Status)

	assert.True(t, g.IsControlledBy("FRANCE", "alice"))
	power, ok := g.PowerOf("bob")
	assert.True(t, ok)
	assert.Equal(t, "GERMANY", power)
}

func TestGameJSONRoundTrip(t *testing.T) {
	g := newSolitaireGame(t)
	g.Powers["FRANCE"].Controller = "alice"

	g.Process() // round 1 open
	require.NoError(t, g.SetTalkReady("FRANCE", TalkStateRoundOpen))
	g.AddMessage(Message{Sender: "FRANCE", Recipient: "GERMANY", Message: "held"})

	data, err := json.Marshal(g)
	require.NoError(t, err)

	restored := &Game{}
	require.NoError(t, json.Unmarshal(data, restored))

	assert.Equal(t, g.ID, restored.ID)
	assert.Equal(t, g.Status, restored.Status)
	assert.Equal(t, g.Phase, restored.Phase)
	assert.Equal(t, 1, restored.TalkRound)
	assert.Equal(t, TalkStateRoundOpen, restored.TalkRoundState)
	assert.True(t, restored.TalkReady["FRANCE"])
	require.Len(t, restored.TalkHeldMessages, 1)
	assert.Equal(t, 2, restored.TalkNumRounds)
	assert.Equal(t, "alice", restored.Powers["FRANCE"].Controller)

	// The restored game keeps ticking.
	g2 := restored
	g2.Process()
	assert.Equal(t, 2, g2.TalkRound)
}

func TestPhaseHistoryRange(t *testing.T) {
	g := newSolitaireGame(t, RuleNoTalk, RuleDontSkipPhases)

	for i := 0; i < 4; i++ {
		g.Process()
	}
	require.Len(t, g.History, 4)

	all, err := g.PhaseHistory("", "", RoleOmniscient)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	some, err := g.PhaseHistory("S1901R", "F1901M", RoleOmniscient)
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "S1901R", some[0].Name)
	assert.Equal(t, "F1901M", some[1].Name)

	_, err = g.PhaseHistory("junk", "", RoleOmniscient)
	assert.Error(t, err)
}
