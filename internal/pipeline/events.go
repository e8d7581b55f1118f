package pipeline

import "github.com/devamsheth0806/VeriMeet/internal/session"

// Event payloads published to the broadcast hub. Every payload carries the
// session id so a single observer stream can multiplex sessions.

type TranscriptEvent struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Sequence  int64  `json:"sequence"`
}

type SummaryEvent struct {
	SessionID string `json:"session_id"`
	Summary   string `json:"summary"`
	Segments  int    `json:"segments"`
}

type FactEvent struct {
	SessionID string `json:"session_id"`
	session.Fact
}

type IntentEvent struct {
	SessionID string `json:"session_id"`
	session.Intent
}

type StatusEvent struct {
	SessionID string `json:"session_id,omitempty"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}
