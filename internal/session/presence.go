package session

import (
	"github.com/google/uuid"

	"fallacypartygo/internal/protocol"
)

// Presence bookkeeping: who is in the session right now. Membership lives
// client-side only; the relay never tracks it.

// AddParticipant registers a new device in the session. An empty id gets a
// fresh one, so rejoining devices keep their identity across reconnects.
func (s *State) AddParticipant(name, id string) protocol.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		for i := range s.data.Participants {
			if s.data.Participants[i].ID == id {
				s.data.Participants[i].IsConnected = true
				return s.data.Participants[i]
			}
		}
	} else {
		id = uuid.NewString()
	}

	p := protocol.Participant{
		ID:          id,
		Name:        name,
		JoinedAt:    protocol.Now(),
		IsConnected: true,
	}
	s.data.Participants = append(s.data.Participants, p)
	return p
}

// RemoveParticipant drops a device and unlinks it from any team.
func (s *State) RemoveParticipant(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.data.Participants[:0]
	for _, p := range s.data.Participants {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.data.Participants = kept

	for i := range s.data.Teams {
		members := s.data.Teams[i].MemberIDs[:0]
		for _, m := range s.data.Teams[i].MemberIDs {
			if m != id {
				members = append(members, m)
			}
		}
		s.data.Teams[i].MemberIDs = members
	}
}

// SetParticipantConnected flips the liveness flag surfaced to the UI.
func (s *State) SetParticipantConnected(id string, connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.Participants {
		if s.data.Participants[i].ID == id {
			s.data.Participants[i].IsConnected = connected
			return
		}
	}
}

// Participants returns a copy of the current membership list.
func (s *State) Participants() []protocol.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]protocol.Participant(nil), s.data.Participants...)
}

// ApplyTeams replaces membership wholesale from a teams_updated frame.
func (s *State) ApplyTeams(p protocol.TeamsUpdatedPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Participants = append([]protocol.Participant(nil), p.Participants...)
	s.data.Teams = make([]protocol.Team, len(p.Teams))
	for i, t := range p.Teams {
		t.MemberIDs = append([]string(nil), t.MemberIDs...)
		s.data.Teams[i] = t
	}
}

// MembershipPayload builds the full membership snapshot any device may use
// to answer a session-level sync request.
func (s *State) MembershipPayload() protocol.TeamsUpdatedPayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := protocol.TeamsUpdatedPayload{
		Participants: append([]protocol.Participant(nil), s.data.Participants...),
		Teams:        make([]protocol.Team, len(s.data.Teams)),
	}
	for i, t := range s.data.Teams {
		t.MemberIDs = append([]string(nil), t.MemberIDs...)
		out.Teams[i] = t
	}
	return out
}
