package protocol

import "encoding/json"

// ──────────────────────── Session payloads ─────────────────────────

// JoinPayload is the body of "session:join".
type JoinPayload struct {
	ParticipantName string `json:"participantName"`
	ParticipantID   string `json:"participantId,omitempty"`
}

// LeavePayload is the body of "session:leave".
type LeavePayload struct {
	ParticipantID string `json:"participantId"`
}

// Participant mirrors one device's membership entry.
type Participant struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	JoinedAt     string  `json:"joinedAt"`
	TeamID       *string `json:"teamId"`
	IsTeamDevice bool    `json:"isTeamDevice"`
	IsConnected  bool    `json:"isConnected"`
}

// Team groups participants; Color is one of the fixed palette picked by the
// host UI.
type Team struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds"`
	Color     string   `json:"color"`
}

// TeamsUpdatedPayload is the body of "session:teams_updated": the full
// membership snapshot, not a delta.
type TeamsUpdatedPayload struct {
	Participants []Participant `json:"participants"`
	Teams        []Team        `json:"teams"`
}

// ────────────────────────── Game payloads ──────────────────────────

// GameStartPayload is the body of "game:start".
type GameStartPayload struct {
	GameID     string `json:"gameId"`
	TotalSteps int    `json:"totalSteps,omitempty"`
}

// GameAdvancePayload is the body of "game:advance".
type GameAdvancePayload struct {
	GameID  string `json:"gameId"`
	Phase   string `json:"phase"`
	Step    int    `json:"step"`
	Context string `json:"context,omitempty"`
}

// VotePayload is the body of "game:vote".
type VotePayload struct {
	GameID        string   `json:"gameId"`
	ParticipantID string   `json:"participantId"`
	TeamID        string   `json:"teamId,omitempty"`
	Vote          []string `json:"vote"`
}

// Submission is the free-text argument a team hands in.
type Submission struct {
	Text       string   `json:"text"`
	Techniques []string `json:"techniques"`
}

// SubmitPayload is the body of "game:submit".
type SubmitPayload struct {
	GameID     string     `json:"gameId"`
	TeamID     string     `json:"teamId"`
	Submission Submission `json:"submission"`
}

// TopicSelectPayload is the body of "game:topic_select".
type TopicSelectPayload struct {
	GameID  string `json:"gameId"`
	TeamID  string `json:"teamId"`
	TopicID string `json:"topicId"`
}

// ReviewSubmitPayload is the body of "game:review_submit".
type ReviewSubmitPayload struct {
	GameID        string   `json:"gameId"`
	ParticipantID string   `json:"participantId"`
	TargetTeamID  string   `json:"targetTeamId"`
	Identified    []string `json:"identified"`
}

// StateUpdatePayload is the body of "game:state_update".
type StateUpdatePayload struct {
	GameID  string          `json:"gameId"`
	Phase   string          `json:"phase"`
	Step    int             `json:"step"`
	Context string          `json:"context,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// TimerTickPayload is the body of "game:timer_tick".
type TimerTickPayload struct {
	Remaining int `json:"remaining"`
	Total     int `json:"total"`
}

// ────────────────────────── Sync payloads ──────────────────────────

// Role of a device in a session.
const (
	RoleHost        = "host"
	RoleParticipant = "participant"
)

// SyncRequestPayload is the body of "host:sync_request" and
// "session:sync_request". DeviceID identifies the requester so responders
// can ignore their own requests echoed back by the relay.
type SyncRequestPayload struct {
	DeviceID string `json:"deviceId"`
	Role     string `json:"role"`
}

// GameSnapshot is the authoritative in-progress game state owned by the host
// device. GameData stays opaque all the way through.
type GameSnapshot struct {
	GameID      string          `json:"gameId"`
	Phase       string          `json:"phase"`
	Step        int             `json:"step"`
	TotalSteps  int             `json:"totalSteps"`
	HostContext string          `json:"hostContext,omitempty"`
	GameData    json.RawMessage `json:"gameData,omitempty"`
}

// SyncResponsePayload is the body of "host:sync_response": a full snapshot
// that replaces the requester's local state wholesale.
type SyncResponsePayload struct {
	DeviceID string        `json:"deviceId"`
	Route    string        `json:"route,omitempty"`
	Snapshot *GameSnapshot `json:"snapshot,omitempty"`
}

// NavigatePayload is the body of "host:navigate".
type NavigatePayload struct {
	Route string `json:"route"`
}
