package session

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fallacypartygo/internal/protocol"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code := GenerateCode()
		require.Len(t, code, codeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c),
				"code %q uses only the unambiguous alphabet", code)
		}
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 50, "codes vary")
}

func TestState_Presence(t *testing.T) {
	s := NewState(protocol.RoleHost, "ABC", "Family night")

	alice := s.AddParticipant("Alice", "")
	bob := s.AddParticipant("Bob", "")
	require.NotEqual(t, alice.ID, bob.ID)
	assert.Len(t, s.Participants(), 2)

	// Rejoin with a known id keeps identity and flips liveness back on.
	s.SetParticipantConnected(alice.ID, false)
	again := s.AddParticipant("Alice", alice.ID)
	assert.Equal(t, alice.ID, again.ID)
	assert.Len(t, s.Participants(), 2)
	for _, p := range s.Participants() {
		if p.ID == alice.ID {
			assert.True(t, p.IsConnected)
		}
	}

	s.RemoveParticipant(bob.ID)
	assert.Len(t, s.Participants(), 1)
}

func TestState_RemoveParticipantUnlinksTeams(t *testing.T) {
	s := NewState(protocol.RoleHost, "ABC", "")
	p := s.AddParticipant("Alice", "")

	s.ApplyTeams(protocol.TeamsUpdatedPayload{
		Participants: s.Participants(),
		Teams: []protocol.Team{
			{ID: "t1", Name: "Team A", MemberIDs: []string{p.ID}, Color: "#ef4444"},
		},
	})

	s.RemoveParticipant(p.ID)

	payload := s.MembershipPayload()
	require.Len(t, payload.Teams, 1)
	assert.Empty(t, payload.Teams[0].MemberIDs)
}

func TestState_ApplySnapshotFullReplace(t *testing.T) {
	s := NewState(protocol.RoleParticipant, "ABC", "")
	s.StartGame("warmup", 5)
	s.ApplyStateUpdate(protocol.StateUpdatePayload{
		GameID: "warmup", Phase: "voting", Step: 2,
		Data: json.RawMessage(`{"votes":["a"]}`),
	})

	incoming := &protocol.GameSnapshot{
		GameID:      "prosecution",
		Phase:       "argument",
		Step:        3,
		TotalSteps:  7,
		HostContext: "round two",
		GameData:    json.RawMessage(`{"round":2}`),
	}
	s.ApplySnapshot("/games/prosecution", incoming)

	got := s.Snapshot()
	require.NotNil(t, got)
	assert.Equal(t, *incoming, *got, "snapshot replaces local state with no merge artifacts")
	assert.Equal(t, "/games/prosecution", s.Route())

	// A nil snapshot clears the game entirely.
	s.ApplySnapshot("", nil)
	assert.Nil(t, s.Snapshot())
}

func TestState_AdvanceIgnoresForeignGame(t *testing.T) {
	s := NewState(protocol.RoleParticipant, "ABC", "")
	s.StartGame("warmup", 5)

	s.ApplyAdvance(protocol.GameAdvancePayload{GameID: "other", Phase: "end", Step: 9})

	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "intro", snap.Phase)
	assert.Zero(t, snap.Step)
}

func TestState_GameLifecycle(t *testing.T) {
	s := NewState(protocol.RoleHost, "ABC", "")

	s.StartGame("warmup", 5)
	data := s.SessionData()
	assert.Equal(t, "in_progress", data.GamesState["warmup"].Status)
	assert.NotEmpty(t, data.GamesState["warmup"].StartedAt)

	s.ApplyAdvance(protocol.GameAdvancePayload{GameID: "warmup", Phase: "reveal", Step: 4, Context: "last quote"})
	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "reveal", snap.Phase)
	assert.Equal(t, 4, snap.Step)
	assert.Equal(t, "last quote", snap.HostContext)

	s.EndGame("warmup")
	assert.Nil(t, s.Snapshot(), "snapshot discarded when the game ends")
	data = s.SessionData()
	assert.Equal(t, "completed", data.GamesState["warmup"].Status)
	assert.NotEmpty(t, data.GamesState["warmup"].CompletedAt)
}
