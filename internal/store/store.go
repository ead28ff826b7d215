// Package store is the local persistent store collaborator: best-effort
// snapshots keyed by session code, used to hydrate a device's state before a
// sync round-trip completes. It is not part of the relay protocol.
package store

import (
	"errors"

	"fallacypartygo/internal/protocol"
)

var ErrNotFound = errors.New("snapshot not found")

// SessionData is the persisted membership-level snapshot of one session.
type SessionData struct {
	Code           string                `json:"code"`
	Name           string                `json:"name"`
	CreatedAt      string                `json:"createdAt"`
	LastAccessedAt string                `json:"lastAccessedAt"`
	Participants   []protocol.Participant `json:"participants"`
	Teams          []protocol.Team        `json:"teams"`
	GamesState     map[string]GameStatus  `json:"gamesState"`
}

// GameStatus tracks one mini-game's lifecycle within a session.
type GameStatus struct {
	Status      string `json:"status"` // not_started, in_progress, completed
	StartedAt   string `json:"startedAt,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`
}

// Store reads and writes snapshots. Every operation is best-effort: callers
// treat a failed load as a cache miss and a failed save as a shrug.
type Store interface {
	SaveSession(data SessionData) error
	LoadSession(code string) (SessionData, error)
	DeleteSession(code string) error

	SaveGameState(code, gameID string, snap protocol.GameSnapshot) error
	LoadGameState(code, gameID string) (protocol.GameSnapshot, error)
}

// NopStore discards everything; relay-side components that have no device
// state use it.
type NopStore struct{}

func (NopStore) SaveSession(SessionData) error                 { return nil }
func (NopStore) LoadSession(string) (SessionData, error)       { return SessionData{}, ErrNotFound }
func (NopStore) DeleteSession(string) error                    { return nil }
func (NopStore) SaveGameState(string, string, protocol.GameSnapshot) error { return nil }
func (NopStore) LoadGameState(string, string) (protocol.GameSnapshot, error) {
	return protocol.GameSnapshot{}, ErrNotFound
}
