// Package registry tracks registered users, administrators, revoked tokens,
// and the bidirectional bindings between live tokens and notification sinks.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ewhall/parley/internal/auth"
	"github.com/ewhall/parley/internal/notify"
	"github.com/ewhall/parley/internal/repository"
)

var (
	ErrUserExists   = errors.New("username already registered")
	ErrUserNotFound = errors.New("user not found")
)

type userEntry struct {
	passwordHash string
}

// Registry is the in-memory source of truth for users and token bindings.
// A single RWMutex guards all maps; persistence stores, when configured,
// are written through under the same lock.
type Registry struct {
	mu     sync.RWMutex
	tokens *auth.TokenManager

	users      map[string]userEntry
	admins     map[string]struct{}
	revoked    map[string]struct{} // token IDs (jti)
	tokenSinks map[string]notify.Sink
	sinkTokens map[notify.Sink]map[string]struct{}

	userStore repository.UserStore
	revStore  repository.RevocationStore
	log       zerolog.Logger
}

// New creates a Registry. userStore and revStore may be nil, in which case
// users and revocations live only in memory.
func New(tokens *auth.TokenManager, userStore repository.UserStore, revStore repository.RevocationStore, log zerolog.Logger) (*Registry, error) {
	r := &Registry{
		tokens:     tokens,
		users:      make(map[string]userEntry),
		admins:     make(map[string]struct{}),
		revoked:    make(map[string]struct{}),
		tokenSinks: make(map[string]notify.Sink),
		sinkTokens: make(map[notify.Sink]map[string]struct{}),
		userStore:  userStore,
		revStore:   revStore,
		log:        log,
	}

	ctx := context.Background()
	if userStore != nil {
		records, err := userStore.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load users: %w", err)
		}
		for _, rec := range records {
			r.users[rec.Username] = userEntry{passwordHash: rec.PasswordHash}
			if rec.IsAdmin {
				r.admins[rec.Username] = struct{}{}
			}
		}
	}
	if revStore != nil {
		ids, err := revStore.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load revocations: %w", err)
		}
		for _, id := range ids {
			r.revoked[id] = struct{}{}
		}
	}
	return r, nil
}

// AddUser registers a new user. Fails if the username is taken.
func (r *Registry) AddUser(ctx context.Context, username, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[username]; ok {
		return ErrUserExists
	}
	r.users[username] = userEntry{passwordHash: passwordHash}
	return r.saveUserLocked(ctx, username)
}

// ReplaceUser registers a user, overwriting any existing entry with the
// same username.
func (r *Registry) ReplaceUser(ctx context.Context, username, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[username] = userEntry{passwordHash: passwordHash}
	return r.saveUserLocked(ctx, username)
}

// RemoveUser unregisters a user: all of their attached tokens are
// disconnected and revoked, and admin status is dropped.
func (r *Registry) RemoveUser(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[username]; !ok {
		return ErrUserNotFound
	}
	for _, token := range r.tokensOfLocked(username) {
		r.detachLocked(token)
		r.revokeLocked(ctx, token)
	}
	delete(r.users, username)
	delete(r.admins, username)

	if r.userStore != nil {
		if err := r.userStore.Delete(ctx, username); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
	}
	return nil
}

// HasUsername reports whether the username is registered.
func (r *Registry) HasUsername(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[username]
	return ok
}

// HasUser reports whether the username is registered with a matching password.
func (r *Registry) HasUser(username, password string) bool {
	r.mu.RLock()
	entry, ok := r.users[username]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return auth.CheckPassword(entry.passwordHash, password)
}

// AddAdmin grants administrator status. The user must be registered.
func (r *Registry) AddAdmin(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[username]; !ok {
		return ErrUserNotFound
	}
	r.admins[username] = struct{}{}
	return r.saveUserLocked(ctx, username)
}

// RemoveAdmin revokes administrator status.
func (r *Registry) RemoveAdmin(ctx context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.admins, username)
	if _, ok := r.users[username]; ok {
		return r.saveUserLocked(ctx, username)
	}
	return nil
}

// IsAdmin reports whether the username has administrator status.
func (r *Registry) IsAdmin(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.admins[username]
	return ok
}

// HasValidToken reports whether a token is cryptographically valid,
// unexpired, unrevoked, and belongs to a registered user.
func (r *Registry) HasValidToken(token string) bool {
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return false
	}

	r.mu.RLock()
	_, ok := r.users[claims.Subject]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return !r.isRevoked(context.Background(), claims.ID)
}

// Username resolves a valid token to its subject. Returns auth.ErrTokenInvalid
// for revoked tokens and tokens of unregistered users.
func (r *Registry) Username(token string) (string, error) {
	claims, err := r.tokens.Verify(token)
	if err != nil {
		return "", err
	}

	r.mu.RLock()
	_, ok := r.users[claims.Subject]
	r.mu.RUnlock()
	if !ok {
		return "", auth.ErrTokenInvalid
	}
	if r.isRevoked(context.Background(), claims.ID) {
		return "", auth.ErrTokenInvalid
	}
	return claims.Subject, nil
}

// isRevoked consults the in-memory set first and falls back to the
// configured store, so revocations recorded by another instance are
// honored. Store hits are cached locally.
func (r *Registry) isRevoked(ctx context.Context, id string) bool {
	r.mu.RLock()
	_, revoked := r.revoked[id]
	store := r.revStore
	r.mu.RUnlock()
	if revoked || store == nil {
		return revoked
	}

	stored, err := store.IsRevoked(ctx, id)
	if err != nil {
		r.log.Warn().Err(err).Msg("revocation store lookup failed")
		return false
	}
	if stored {
		r.mu.Lock()
		r.revoked[id] = struct{}{}
		r.mu.Unlock()
	}
	return stored
}

// TokenIsAdmin reports whether a valid token belongs to an administrator.
func (r *Registry) TokenIsAdmin(token string) bool {
	username, err := r.Username(token)
	if err != nil {
		return false
	}
	return r.IsAdmin(username)
}

// DisconnectToken ends a token's session: it is detached from any sink
// and revoked for all future checks, even before its natural expiry.
func (r *Registry) DisconnectToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.detachLocked(token)
	return r.revokeLocked(ctx, token)
}

// Connect validates the token and attaches it to the sink. It is the
// entry point for a client opening a notification channel.
func (r *Registry) Connect(token string, sink notify.Sink) error {
	username, err := r.Username(token)
	if err != nil {
		return err
	}
	r.Attach(token, sink)
	r.log.Debug().Str("username", username).Msg("connection attached")
	return nil
}

// Attach binds a token to a sink. A token is bound to at most one sink:
// attaching an already-bound token moves it, with a warning, to the new
// sink (latest attach wins).
func (r *Registry) Attach(token string, sink notify.Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.tokenSinks[token]; ok && prev != sink {
		if _, placeholder := prev.(notify.NoopSink); !placeholder {
			r.log.Warn().Msg("token already attached to another connection, rebinding")
		}
		r.detachLocked(token)
	}
	r.tokenSinks[token] = sink
	set, ok := r.sinkTokens[sink]
	if !ok {
		set = make(map[string]struct{})
		r.sinkTokens[sink] = set
	}
	set[token] = struct{}{}
}

// Reattach atomically moves every token bound to oldSink over to newSink.
// Used when a client reconnects and resumes its session.
func (r *Registry) Reattach(oldSink, newSink notify.Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tokens, ok := r.sinkTokens[oldSink]
	if !ok {
		return
	}
	delete(r.sinkTokens, oldSink)
	set, ok := r.sinkTokens[newSink]
	if !ok {
		set = make(map[string]struct{})
		r.sinkTokens[newSink] = set
	}
	for token := range tokens {
		r.tokenSinks[token] = newSink
		set[token] = struct{}{}
	}
}

// DetachToken unbinds a token from its sink without revoking it. Used
// when a client closes one channel but keeps its session.
func (r *Registry) DetachToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachLocked(token)
}

// RemoveConnection unbinds every token attached to the sink. When
// revokeTokens is set the tokens are also revoked, ending their sessions.
func (r *Registry) RemoveConnection(ctx context.Context, sink notify.Sink, revokeTokens bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tokens, ok := r.sinkTokens[sink]
	if !ok {
		return nil
	}
	delete(r.sinkTokens, sink)
	for token := range tokens {
		delete(r.tokenSinks, token)
		if revokeTokens {
			if err := r.revokeLocked(ctx, token); err != nil {
				return err
			}
		}
	}
	return nil
}

// SinkFor returns the sink a token is bound to, or nil.
func (r *Registry) SinkFor(token string) notify.Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tokenSinks[token]
}

// TokensOf returns every attached token whose subject is username.
func (r *Registry) TokensOf(username string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tokensOfLocked(username)
}

// ConnectionCount returns the number of distinct sinks with at least one
// attached token.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinkTokens)
}

// NotifyUser writes a notification to every sink attached to one of the
// user's tokens.
func (r *Registry) NotifyUser(username string, n notify.Notification) {
	r.mu.RLock()
	seen := make(map[notify.Sink]struct{})
	var sinks []notify.Sink
	for _, token := range r.tokensOfLocked(username) {
		sink := r.tokenSinks[token]
		if sink == nil {
			continue
		}
		if _, dup := seen[sink]; dup {
			continue
		}
		seen[sink] = struct{}{}
		sinks = append(sinks, sink)
	}
	r.mu.RUnlock()

	for _, sink := range sinks {
		sink.Write(n)
	}
}

func (r *Registry) tokensOfLocked(username string) []string {
	var tokens []string
	for token := range r.tokenSinks {
		claims, err := r.tokens.Verify(token)
		if err != nil {
			continue
		}
		if claims.Subject == username {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func (r *Registry) detachLocked(token string) {
	sink, ok := r.tokenSinks[token]
	if !ok {
		return
	}
	delete(r.tokenSinks, token)
	if set, ok := r.sinkTokens[sink]; ok {
		delete(set, token)
		if len(set) == 0 {
			delete(r.sinkTokens, sink)
		}
	}
}

func (r *Registry) revokeLocked(ctx context.Context, token string) error {
	id, err := auth.DecodeID(token)
	if err != nil {
		return err
	}
	r.revoked[id] = struct{}{}
	if r.revStore != nil {
		if err := r.revStore.Revoke(ctx, id); err != nil {
			return fmt.Errorf("persist revocation: %w", err)
		}
	}
	return nil
}

func (r *Registry) saveUserLocked(ctx context.Context, username string) error {
	if r.userStore == nil {
		return nil
	}
	entry := r.users[username]
	_, isAdmin := r.admins[username]
	err := r.userStore.Save(ctx, repository.UserRecord{
		Username:     username,
		PasswordHash: entry.passwordHash,
		IsAdmin:      isAdmin,
	})
	if err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	return nil
}
