package session

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"fallacypartygo/internal/client"
	"fallacypartygo/internal/protocol"
	"fallacypartygo/internal/store"
)

// Synchronizer wires a Transport to a State. The relay retains no history,
// so a device that joins late or drops off can only recover ground truth by
// asking a peer: the host answers game-state requests, any device answers
// membership-level requests. Responses replace local state wholesale.
type Synchronizer struct {
	transport *client.Transport
	state     *State
	store     store.Store

	subs []*client.Subscription
}

func NewSynchronizer(transport *client.Transport, state *State, st store.Store) *Synchronizer {
	if st == nil {
		st = store.NopStore{}
	}
	return &Synchronizer{transport: transport, state: state, store: st}
}

// Start hydrates local state from the store and registers all handlers.
func (s *Synchronizer) Start() {
	if data, err := s.store.LoadSession(s.state.Code()); err == nil {
		s.state.Hydrate(data)
	} else if !errors.Is(err, store.ErrNotFound) {
		zap.L().Debug("sync.hydrate", zap.Error(err))
	}

	on := func(t protocol.EventType, h client.Handler) {
		s.subs = append(s.subs, s.transport.On(t, h))
	}

	on(protocol.EventSessionJoin, s.onJoin)
	on(protocol.EventSessionLeave, s.onLeave)
	on(protocol.EventSessionParticipantJoin, s.onParticipantJoined)
	on(protocol.EventSessionParticipantLeft, s.onParticipantLeft)
	on(protocol.EventSessionTeamsUpdated, s.onTeamsUpdated)
	on(protocol.EventSessionSyncRequest, s.onSessionSyncRequest)

	on(protocol.EventGameStart, s.onGameStart)
	on(protocol.EventGameAdvance, s.onGameAdvance)
	on(protocol.EventGameStateUpdate, s.onGameStateUpdate)
	on(protocol.EventGameEnd, s.onGameEnd)

	on(protocol.EventHostSyncRequest, s.onHostSyncRequest)
	on(protocol.EventHostSyncResponse, s.onHostSyncResponse)
	on(protocol.EventHostNavigate, s.onHostNavigate)
}

// Stop unsubscribes every handler. The transport itself stays up.
func (s *Synchronizer) Stop() {
	for _, sub := range s.subs {
		s.transport.Off(sub)
	}
	s.subs = nil
}

// RequestSync asks peers for ground truth: the host for game state, anyone
// for membership. There is no protocol-level timeout; if nobody answers,
// the hydrated local copy stands until someone does.
func (s *Synchronizer) RequestSync() {
	req := protocol.SyncRequestPayload{
		DeviceID: s.state.DeviceID(),
		Role:     s.state.Role(),
	}
	if s.state.Role() != protocol.RoleHost {
		s.transport.Send(protocol.EventHostSyncRequest, req)
	}
	s.transport.Send(protocol.EventSessionSyncRequest, req)
}

// HandleStatusChange is meant to be wired into the transport's status
// callback: every reconnect triggers a fresh sync round-trip.
func (s *Synchronizer) HandleStatusChange(connected bool) {
	if connected {
		s.RequestSync()
	}
}

// ---------------------------------------------------------------------------
//  Presence handlers
// ---------------------------------------------------------------------------

func (s *Synchronizer) onJoin(env protocol.Envelope) {
	// Only the host registers a raw join. A join without a participant id
	// gets its id assigned here; if other devices registered too, each
	// would mint its own id for the same joiner and hold a duplicate until
	// the next teams_updated. Everyone else waits for the confirmation
	// pair below.
	if s.state.Role() != protocol.RoleHost {
		return
	}
	var p protocol.JoinPayload
	if !decode(env, &p) {
		return
	}
	joined := s.state.AddParticipant(p.ParticipantName, p.ParticipantID)
	s.persistSession()

	s.transport.Send(protocol.EventSessionParticipantJoin, joined)
	s.transport.Send(protocol.EventSessionTeamsUpdated, s.state.MembershipPayload())
}

func (s *Synchronizer) onLeave(env protocol.Envelope) {
	var p protocol.LeavePayload
	if !decode(env, &p) {
		return
	}
	s.state.RemoveParticipant(p.ParticipantID)
	s.persistSession()

	if s.state.Role() == protocol.RoleHost {
		s.transport.Send(protocol.EventSessionParticipantLeft, p)
		s.transport.Send(protocol.EventSessionTeamsUpdated, s.state.MembershipPayload())
	}
}

func (s *Synchronizer) onParticipantJoined(env protocol.Envelope) {
	var p protocol.Participant
	if !decode(env, &p) {
		return
	}
	s.state.AddParticipant(p.Name, p.ID)
	s.persistSession()
}

func (s *Synchronizer) onParticipantLeft(env protocol.Envelope) {
	var p protocol.LeavePayload
	if !decode(env, &p) {
		return
	}
	s.state.SetParticipantConnected(p.ParticipantID, false)
	s.persistSession()
}

func (s *Synchronizer) onTeamsUpdated(env protocol.Envelope) {
	var p protocol.TeamsUpdatedPayload
	if !decode(env, &p) {
		return
	}
	s.state.ApplyTeams(p)
	s.persistSession()
}

func (s *Synchronizer) onSessionSyncRequest(env protocol.Envelope) {
	var p protocol.SyncRequestPayload
	if !decode(env, &p) {
		return
	}
	if p.DeviceID == s.state.DeviceID() {
		return // own request echoed back through the relay
	}
	s.transport.Send(protocol.EventSessionTeamsUpdated, s.state.MembershipPayload())
}

// ---------------------------------------------------------------------------
//  Game handlers: incremental, applied as they arrive. Frames missed while
//  disconnected are never replayed; the next sync round-trip repairs the gap.
// ---------------------------------------------------------------------------

func (s *Synchronizer) onGameStart(env protocol.Envelope) {
	var p protocol.GameStartPayload
	if !decode(env, &p) {
		return
	}
	s.state.StartGame(p.GameID, p.TotalSteps)
	s.persistGame(p.GameID)
}

func (s *Synchronizer) onGameAdvance(env protocol.Envelope) {
	var p protocol.GameAdvancePayload
	if !decode(env, &p) {
		return
	}
	s.state.ApplyAdvance(p)
	s.persistGame(p.GameID)
}

func (s *Synchronizer) onGameStateUpdate(env protocol.Envelope) {
	var p protocol.StateUpdatePayload
	if !decode(env, &p) {
		return
	}
	s.state.ApplyStateUpdate(p)
	s.persistGame(p.GameID)
}

func (s *Synchronizer) onGameEnd(env protocol.Envelope) {
	var p protocol.GameStartPayload
	if !decode(env, &p) {
		return
	}
	s.state.EndGame(p.GameID)
	s.persistSession()
}

// ---------------------------------------------------------------------------
//  Host sync handlers
// ---------------------------------------------------------------------------

func (s *Synchronizer) onHostSyncRequest(env protocol.Envelope) {
	if s.state.Role() != protocol.RoleHost {
		return
	}
	var p protocol.SyncRequestPayload
	if !decode(env, &p) {
		return
	}
	if p.DeviceID == s.state.DeviceID() {
		return
	}
	s.transport.Send(protocol.EventHostSyncResponse, protocol.SyncResponsePayload{
		DeviceID: s.state.DeviceID(),
		Route:    s.state.Route(),
		Snapshot: s.state.Snapshot(),
	})
}

func (s *Synchronizer) onHostSyncResponse(env protocol.Envelope) {
	if s.state.Role() == protocol.RoleHost {
		return
	}
	var p protocol.SyncResponsePayload
	if !decode(env, &p) {
		return
	}
	// Full replace. With more than one responding host (a misconfiguration
	// the protocol does not prevent) the last response to arrive wins.
	s.state.ApplySnapshot(p.Route, p.Snapshot)
	if p.Snapshot != nil {
		s.persistGame(p.Snapshot.GameID)
	}
}

func (s *Synchronizer) onHostNavigate(env protocol.Envelope) {
	var p protocol.NavigatePayload
	if !decode(env, &p) {
		return
	}
	s.state.SetRoute(p.Route)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *Synchronizer) persistSession() {
	if err := s.store.SaveSession(s.state.SessionData()); err != nil {
		zap.L().Debug("sync.persist_session", zap.Error(err))
	}
}

func (s *Synchronizer) persistGame(gameID string) {
	snap := s.state.Snapshot()
	if snap == nil || snap.GameID != gameID {
		return
	}
	if err := s.store.SaveGameState(s.state.Code(), gameID, *snap); err != nil {
		zap.L().Debug("sync.persist_game", zap.Error(err))
	}
}

func decode(env protocol.Envelope, v any) bool {
	if len(env.Payload) == 0 {
		return false
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		zap.L().Warn("sync.payload", zap.String("type", string(env.Type)), zap.Error(err))
		return false
	}
	return true
}
