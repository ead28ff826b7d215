package store

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fallacypartygo/internal/protocol"
)

func TestFileStore_SessionRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	data := SessionData{
		Code:      "ABC",
		Name:      "Family night",
		CreatedAt: protocol.Now(),
		Participants: []protocol.Participant{
			{ID: "p1", Name: "Alice", IsConnected: true},
		},
		Teams: []protocol.Team{
			{ID: "t1", Name: "Team A", MemberIDs: []string{"p1"}, Color: "#ef4444"},
		},
		GamesState: map[string]GameStatus{
			"warmup": {Status: "in_progress", StartedAt: protocol.Now()},
		},
	}
	require.NoError(t, fs.SaveSession(data))

	got, err := fs.LoadSession("ABC")
	require.NoError(t, err)
	assert.Equal(t, data.Code, got.Code)
	assert.Equal(t, data.Name, got.Name)
	assert.Equal(t, data.Participants, got.Participants)
	assert.Equal(t, data.Teams, got.Teams)
	assert.Equal(t, "in_progress", got.GamesState["warmup"].Status)
	assert.NotEmpty(t, got.LastAccessedAt, "save refreshes the access time")
}

func TestFileStore_LoadMissingIsNotFound(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = fs.LoadSession("NOPE")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = fs.LoadGameState("NOPE", "warmup")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFileStore_GameStateRoundTrip(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	snap := protocol.GameSnapshot{
		GameID:      "prosecution",
		Phase:       "argument",
		Step:        3,
		TotalSteps:  7,
		HostContext: "team A argues first",
		GameData:    json.RawMessage(`{"round":2}`),
	}
	require.NoError(t, fs.SaveGameState("ABC", "prosecution", snap))

	got, err := fs.LoadGameState("ABC", "prosecution")
	require.NoError(t, err)
	assert.Equal(t, snap.GameID, got.GameID)
	assert.Equal(t, snap.Phase, got.Phase)
	assert.Equal(t, snap.Step, got.Step)
	assert.JSONEq(t, string(snap.GameData), string(got.GameData))
}

func TestFileStore_Delete(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.SaveSession(SessionData{Code: "ABC"}))
	require.NoError(t, fs.DeleteSession("ABC"))

	_, err = fs.LoadSession("ABC")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.True(t, errors.Is(fs.DeleteSession("ABC"), ErrNotFound))
}
