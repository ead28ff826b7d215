package protocol

import (
	"encoding/json"
	"time"
)

// EventType identifies one kind of wire message. The set is closed: the
// relay rebroadcasts unknown types untouched, but clients only dispatch the
// types listed here.
type EventType string

const (
	EventSessionJoin            EventType = "session:join"
	EventSessionLeave           EventType = "session:leave"
	EventSessionParticipantJoin EventType = "session:participant_joined"
	EventSessionParticipantLeft EventType = "session:participant_left"
	EventSessionTeamsUpdated    EventType = "session:teams_updated"
	EventSessionSyncRequest     EventType = "session:sync_request"

	EventGameStart              EventType = "game:start"
	EventGameAdvance            EventType = "game:advance"
	EventGameEnd                EventType = "game:end"
	EventGameVote               EventType = "game:vote"
	EventGameSubmit             EventType = "game:submit"
	EventGameTopicSelect        EventType = "game:topic_select"
	EventGameReviewSubmit       EventType = "game:review_submit"
	EventGameStateUpdate        EventType = "game:state_update"
	EventGameVoteReceived       EventType = "game:vote_received"
	EventGameSubmissionReceived EventType = "game:submission_received"
	EventGameTopicClaimed       EventType = "game:topic_claimed"
	EventGameTimerTick          EventType = "game:timer_tick"
	EventGameResults            EventType = "game:results"

	EventHostSyncRequest  EventType = "host:sync_request"
	EventHostSyncResponse EventType = "host:sync_response"
	EventHostNavigate     EventType = "host:navigate"

	EventPing EventType = "ping"
	EventPong EventType = "pong"
)

var knownEvents = map[EventType]struct{}{
	EventSessionJoin: {}, EventSessionLeave: {},
	EventSessionParticipantJoin: {}, EventSessionParticipantLeft: {},
	EventSessionTeamsUpdated: {}, EventSessionSyncRequest: {},
	EventGameStart: {}, EventGameAdvance: {}, EventGameEnd: {},
	EventGameVote: {}, EventGameSubmit: {}, EventGameTopicSelect: {},
	EventGameReviewSubmit: {}, EventGameStateUpdate: {},
	EventGameVoteReceived: {}, EventGameSubmissionReceived: {},
	EventGameTopicClaimed: {}, EventGameTimerTick: {}, EventGameResults: {},
	EventHostSyncRequest: {}, EventHostSyncResponse: {}, EventHostNavigate: {},
	EventPing: {}, EventPong: {},
}

// Known reports whether t is part of the closed event enumeration.
func (t EventType) Known() bool {
	_, ok := knownEvents[t]
	return ok
}

// Envelope wraps every frame exchanged over the relay, in both directions.
// Payload stays opaque JSON: the relay never inspects it.
type Envelope struct {
	Type        EventType       `json:"type"`
	SessionCode string          `json:"sessionCode,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
}

// NewEnvelope marshals payload and stamps the envelope with the local clock.
// The relay replaces the timestamp at rebroadcast, so the client-side value
// is only a hint.
func NewEnvelope(t EventType, sessionCode string, payload any) (Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, err
		}
		raw = b
	}
	return Envelope{
		Type:        t,
		SessionCode: sessionCode,
		Payload:     raw,
		Timestamp:   Now(),
	}, nil
}

// Stamp overwrites the timestamp with the current server time, so every
// recipient of a rebroadcast sees the same ordering reference.
func (e *Envelope) Stamp() {
	e.Timestamp = Now()
}

// Now returns the wall clock in the wire format (ISO-8601).
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
