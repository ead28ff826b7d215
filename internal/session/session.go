// Package session holds one device's view of a party-game session: who is
// in it, which mini-game is running, and the reconciliation protocol that
// repairs that view after a connection gap.
package session

import (
	"crypto/rand"
	"sync"

	"github.com/google/uuid"

	"fallacypartygo/internal/protocol"
	"fallacypartygo/internal/store"
)

// codeAlphabet skips easily confused characters (I, O, 0, 1) so codes stay
// shareable out loud.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 3
)

// GenerateCode returns a short human-shareable session code.
func GenerateCode() string {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	code := make([]byte, codeLength)
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code)
}

// State is one device's authoritative-as-far-as-it-knows session copy.
// The host's copy is ground truth for game state; everyone else's converges
// on it through the synchronizer.
type State struct {
	mu       sync.RWMutex
	deviceID string
	role     string

	data     store.SessionData
	route    string
	snapshot *protocol.GameSnapshot
}

// NewState creates a device identity for code with the given role.
func NewState(role, code, name string) *State {
	now := protocol.Now()
	return &State{
		deviceID: uuid.NewString(),
		role:     role,
		data: store.SessionData{
			Code:           code,
			Name:           name,
			CreatedAt:      now,
			LastAccessedAt: now,
			GamesState:     make(map[string]store.GameStatus),
		},
	}
}

func (s *State) DeviceID() string { return s.deviceID }
func (s *State) Role() string     { return s.role }

func (s *State) Code() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Code
}

func (s *State) Route() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.route
}

func (s *State) SetRoute(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route = route
}

// Snapshot returns a copy of the in-progress game snapshot, or nil when no
// game is active.
func (s *State) Snapshot() *protocol.GameSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil
	}
	snap := *s.snapshot
	return &snap
}

// SessionData returns a copy suitable for persisting.
func (s *State) SessionData() store.SessionData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySessionData(s.data)
}

// Hydrate seeds the state from a stored snapshot, used before the first
// sync response arrives.
func (s *State) Hydrate(data store.SessionData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data.Code = s.data.Code
	s.data = copySessionData(data)
}

// ApplySnapshot replaces the local game state wholesale with a sync
// response. There is no merge: the responder's copy wins entirely.
func (s *State) ApplySnapshot(route string, snap *protocol.GameSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if route != "" {
		s.route = route
	}
	if snap == nil {
		s.snapshot = nil
		return
	}
	copied := *snap
	s.snapshot = &copied
}

// StartGame begins a mini-game at its intro phase.
func (s *State) StartGame(gameID string, totalSteps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = &protocol.GameSnapshot{
		GameID:     gameID,
		Phase:      "intro",
		Step:       0,
		TotalSteps: totalSteps,
	}
	status := s.data.GamesState[gameID]
	status.Status = "in_progress"
	if status.StartedAt == "" {
		status.StartedAt = protocol.Now()
	}
	s.data.GamesState[gameID] = status
}

// ApplyAdvance moves phase/step forward for a matching active game.
func (s *State) ApplyAdvance(p protocol.GameAdvancePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil || s.snapshot.GameID != p.GameID {
		return
	}
	s.snapshot.Phase = p.Phase
	s.snapshot.Step = p.Step
	if p.Context != "" {
		s.snapshot.HostContext = p.Context
	}
}

// ApplyStateUpdate applies an incremental state_update frame.
func (s *State) ApplyStateUpdate(p protocol.StateUpdatePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil || s.snapshot.GameID != p.GameID {
		return
	}
	s.snapshot.Phase = p.Phase
	s.snapshot.Step = p.Step
	if p.Context != "" {
		s.snapshot.HostContext = p.Context
	}
	if len(p.Data) > 0 {
		s.snapshot.GameData = p.Data
	}
}

// EndGame discards the snapshot and marks the game completed.
func (s *State) EndGame(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot != nil && s.snapshot.GameID == gameID {
		s.snapshot = nil
	}
	status := s.data.GamesState[gameID]
	status.Status = "completed"
	status.CompletedAt = protocol.Now()
	s.data.GamesState[gameID] = status
}

func copySessionData(data store.SessionData) store.SessionData {
	out := data
	out.Participants = append([]protocol.Participant(nil), data.Participants...)
	out.Teams = make([]protocol.Team, len(data.Teams))
	for i, t := range data.Teams {
		t.MemberIDs = append([]string(nil), t.MemberIDs...)
		out.Teams[i] = t
	}
	out.GamesState = make(map[string]store.GameStatus, len(data.GamesState))
	for k, v := range data.GamesState {
		out.GamesState[k] = v
	}
	return out
}
