// Package event defines the typed events the pipeline fans out to observers.
package event

import "time"

// Event types delivered over the observer stream.
const (
	TypeTranscript = "transcript"
	TypeFact       = "fact"
	TypeIntent     = "intent"
	TypeSummary    = "summary"
	TypeStatus     = "status"
)

type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

func New(typ string, data any) Event {
	return Event{Type: typ, Data: data, Timestamp: time.Now().UTC()}
}
