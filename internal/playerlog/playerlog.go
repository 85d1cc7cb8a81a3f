// Package playerlog persists per-player filtered game phase data.
//
// Each player's view of a game is stored as a JSONL file at
// <data>/player_logs/<username>/<game_id>.jsonl, one JSON line per
// processed phase, containing exactly what the player was allowed to see.
package playerlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store manages per-player game log files. Appends to the same file are
// serialized by a per-file mutex so concurrent writers never interleave
// partial lines.
type Store struct {
	logsPath string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a Store rooted at dataPath/player_logs.
func NewStore(dataPath string) (*Store, error) {
	logsPath := filepath.Join(dataPath, "player_logs")
	if err := os.MkdirAll(logsPath, 0755); err != nil {
		return nil, fmt.Errorf("create player log dir: %w", err)
	}
	return &Store{
		logsPath: logsPath,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// Append writes one phase entry to the (username, gameID) log. The entry
// and its trailing newline are written in a single call so a crash never
// leaves a torn line followed by a complete one.
func (s *Store) Append(username, gameID string, entry any) error {
	path, err := s.gameLogPath(username, gameID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	lock := s.fileLock(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create user log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

// Read returns entries from the (username, gameID) log in chronological
// order, skipping offset entries and returning at most limit (limit <= 0
// means no cap). A missing log reads as empty.
func (s *Store) Read(username, gameID string, limit, offset int) ([]json.RawMessage, error) {
	path, err := s.gameLogPath(username, gameID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	entries := []json.RawMessage{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	i := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if i < offset {
			i++
			continue
		}
		i++
		if limit > 0 && len(entries) >= limit {
			break
		}
		entries = append(entries, json.RawMessage(append([]byte(nil), line...)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}
	return entries, nil
}

// ListGameIDs returns the IDs of every game the user has a log for.
func (s *Store) ListGameIDs(username string) ([]string, error) {
	if err := checkComponent(username); err != nil {
		return nil, err
	}
	userDir := filepath.Join(s.logsPath, username)
	dirEntries, err := os.ReadDir(userDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list game logs: %w", err)
	}

	ids := []string{}
	for _, e := range dirEntries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".jsonl"))
	}
	return ids, nil
}

func (s *Store) gameLogPath(username, gameID string) (string, error) {
	if err := checkComponent(username); err != nil {
		return "", err
	}
	if err := checkComponent(gameID); err != nil {
		return "", err
	}
	return filepath.Join(s.logsPath, username, gameID+".jsonl"), nil
}

func (s *Store) fileLock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[path] = lock
	}
	return lock
}

// checkComponent rejects path components that could escape the log root.
func checkComponent(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid log path component %q", name)
	}
	return nil
}
