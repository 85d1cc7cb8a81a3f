package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhall/parley/internal/auth"
	"github.com/ewhall/parley/internal/engine"
	"github.com/ewhall/parley/internal/playerlog"
	"github.com/ewhall/parley/internal/registry"
)

type fixture struct {
	tokens *auth.TokenManager
	reg    *registry.Registry
	logs   *playerlog.Store
	svc    *GameService

	adminToken string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tokens := auth.NewTokenManager("test-secret")
	reg, err := registry.New(tokens, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	logs, err := playerlog.NewStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		tokens: tokens,
		reg:    reg,
		logs:   logs,
		svc:    NewGameService(reg, logs, zerolog.Nop()),
	}
	f.adminToken = f.addUser(t, "admin")
	require.NoError(t, reg.AddAdmin(context.Background(), "admin"))
	return f
}

func (f *fixture) addUser(t *testing.T, username string) string {
	t.Helper()
	hash, err := auth.HashPassword(username + "-pass")
	require.NoError(t, err)
	err = f.reg.AddUser(context.Background(), username, hash)
	if err != nil && err != registry.ErrUserExists {
		require.NoError(t, err)
	}
	token, err := f.tokens.Mint(username, time.Hour)
	require.NoError(t, err)
	return token
}

func TestCreateGameRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")

	_, err := f.svc.CreateGame(alice, "game_AAAA", "standard", nil, 2, 0)
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.svc.CreateGame("garbage-token", "game_AAAA", "standard", nil, 2, 0)
	assert.Equal(t, KindUnauthenticated, KindOf(err))

	g, err := f.svc.CreateGame(f.adminToken, "game_AAAA", "standard", nil, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusForming, g.Status)

	_, err = f.svc.CreateGame(f.adminToken, "game_AAAA", "standard", nil, 2, 0)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestJoinAndSetOrders(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")

	_, err := f.svc.CreateGame(f.adminToken, "game_AAAA", "standard",
		[]string{engine.RuleNoTalk, engine.RulePowerChoice}, 2, 0)
	require.NoError(t, err)

	power, err := f.svc.JoinGame(alice, "game_AAAA", "FRANCE")
	require.NoError(t, err)
	assert.Equal(t, "FRANCE", power)

	_, err = f.svc.JoinGame(bob, "game_AAAA", "FRANCE")
	assert.Equal(t, KindConflict, KindOf(err))

	_, err = f.svc.JoinGame(bob, "game_AAAA", "GERMANY")
	require.NoError(t, err)

	power, err = f.svc.SetOrders(alice, "game_AAAA", []string{"A PAR - BUR"})
	require.NoError(t, err)
	assert.Equal(t, "FRANCE", power)

	carol := f.addUser(t, "carol")
	_, err = f.svc.SetOrders(carol, "game_AAAA", []string{"A PAR - BUR"})
	assert.Equal(t, KindForbidden, KindOf(err))

	_, err = f.svc.SetOrders(alice, "game_ZZZZ", nil)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestValidateOrders(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")

	_, err := f.svc.CreateGame(f.adminToken, "game_AAAA", "standard",
		[]string{engine.RuleNoTalk, engine.RulePowerChoice}, 2, 0)
	require.NoError(t, err)
	_, err = f.svc.JoinGame(alice, "game_AAAA", "FRANCE")
	require.NoError(t, err)
	_, err = f.svc.JoinGame(bob, "game_AAAA", "GERMANY")
	require.NoError(t, err)

	accepted, invalid, err := f.svc.ValidateOrders(alice, "game_AAAA",
		[]string{"A PAR - BUR", "A PAR - XYZ"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A PAR - BUR"}, accepted)
	require.Len(t, invalid, 1)
	assert.Equal(t, "A PAR - XYZ", invalid[0].Order)
	assert.NotEmpty(t, invalid[0].Reason)
	assert.NotEmpty(t, invalid[0].Suggestions)
	assert.LessOrEqual(t, len(invalid[0].Suggestions), 5)

	// Orders for someone else's unit are rejected too.
	_, invalid, err = f.svc.ValidateOrders(alice, "game_AAAA", []string{"A BER H"})
	require.NoError(t, err)
	require.Len(t, invalid, 1)
}

func TestProcessAppendsPlayerLogs(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")

	_, err := f.svc.CreateGame(f.adminToken, "game_AAAA", "standard",
		[]string{engine.RuleNoTalk, engine.RulePowerChoice}, 2, 0)
	require.NoError(t, err)
	_, err = f.svc.JoinGame(alice, "game_AAAA", "FRANCE")
	require.NoError(t, err)
	_, err = f.svc.JoinGame(bob, "game_AAAA", "GERMANY")
	require.NoError(t, err)

	_, _, _, err = f.svc.Process(alice, "game_AAAA")
	assert.Equal(t, KindForbidden, KindOf(err))

	prev, cur, kicked, err := f.svc.Process(f.adminToken, "game_AAAA")
	require.NoError(t, err)
	require.NotNil(t, prev)
	require.NotNil(t, cur)
	assert.Empty(t, kicked)
	assert.Equal(t, "S1901M", prev.Name)
	assert.Equal(t, "F1901M", cur.Name)

	for _, token := range []string{alice, bob} {
		entries, err := f.svc.PlayerLog(token, "game_AAAA", 0, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	}
}

func TestProcessTalkTickConsumed(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")

	_, err := f.svc.CreateGame(f.adminToken, "game_AAAA", "standard",
		[]string{engine.RulePowerChoice}, 1, 0)
	require.NoError(t, err)
	_, err = f.svc.JoinGame(alice, "game_AAAA", "FRANCE")
	require.NoError(t, err)

	// First tick opens round 1; nothing archived, no log entries.
	prev, cur, _, err := f.svc.Process(f.adminToken, "game_AAAA")
	require.NoError(t, err)
	assert.Nil(t, prev)
	assert.Nil(t, cur)

	entries, err := f.svc.PlayerLog(alice, "game_AAAA", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A stale ready signal is rejected with a validation error.
	err = f.svc.SetTalkReady(alice, "game_AAAA", engine.TalkStateNone)
	assert.Equal(t, KindValidation, KindOf(err))

	require.NoError(t, f.svc.SetTalkReady(alice, "game_AAAA", engine.TalkStateRoundOpen))
}

func TestSnapshotAndHistory(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")

	_, err := f.svc.CreateGame(f.adminToken, "game_AAAA", "standard",
		[]string{engine.RuleNoTalk, engine.RulePowerChoice}, 1, 0)
	require.NoError(t, err)
	_, err = f.svc.JoinGame(alice, "game_AAAA", "FRANCE")
	require.NoError(t, err)

	snap, err := f.svc.Snapshot("game_AAAA")
	require.NoError(t, err)
	assert.Contains(t, string(snap), `"game_id":"game_AAAA"`)

	_, _, _, err = f.svc.Process(f.adminToken, "game_AAAA")
	require.NoError(t, err)

	history, err := f.svc.History(alice, "game_AAAA", "", "")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "S1901M", history[0].Name)

	_, err = f.svc.History(alice, "game_AAAA", "junk", "")
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestDeleteGame(t *testing.T) {
	f := newFixture(t)
	alice := f.addUser(t, "alice")

	_, err := f.svc.CreateGame(f.adminToken, "game_AAAA", "standard", nil, 1, 0)
	require.NoError(t, err)

	err = f.svc.DeleteGame(alice, "game_AAAA")
	assert.Equal(t, KindForbidden, KindOf(err))

	require.NoError(t, f.svc.DeleteGame(f.adminToken, "game_AAAA"))
	assert.Equal(t, KindNotFound, KindOf(f.svc.DeleteGame(f.adminToken, "game_AAAA")))
	assert.Empty(t, f.svc.GameIDs())
}
