// Package session holds the per-meeting state: transcript log, rolling
// summary window, verified facts, detected intents, and the registry that
// owns session lifecycles.
package session

import (
	"sort"
	"strings"
	"time"
)

// Segment is one unit of transcript text. Sequence is monotonic per session;
// zero means the transport did not number the segment and ordering is taken
// from arrival order.
type Segment struct {
	Text       string    `json:"text"`
	Sequence   int64     `json:"sequence"`
	ReceivedAt time.Time `json:"received_at"`
}

type VerificationStatus string

const (
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
	VerificationUnverified VerificationStatus = "unverified"
	VerificationFailed     VerificationStatus = "failed"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence maps free-form model output to a Confidence, defaulting to
// low so an unrecognized value can never trigger an auto-dispatch.
func ParseConfidence(raw string) Confidence {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return ConfidenceHigh
	case "medium", "med":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// SourceRef cites one web source consulted during fact verification.
type SourceRef struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Fact is a factual claim detected in the transcript together with its
// verification outcome. Claims are deduplicated per session by DedupKey.
type Fact struct {
	Claim       string             `json:"claim"`
	Context     string             `json:"context,omitempty"`
	Sequence    int64              `json:"sequence"`
	Status      VerificationStatus `json:"verification"`
	Confidence  Confidence         `json:"confidence,omitempty"`
	Explanation string             `json:"explanation,omitempty"`
	Sources     []SourceRef        `json:"sources,omitempty"`
}

// DedupKey normalizes a claim (trimmed, case-folded, whitespace-collapsed)
// so repeated phrasings of the same claim verify at most once.
func DedupKey(claim string) string {
	return strings.Join(strings.Fields(strings.ToLower(claim)), " ")
}

type IntentType string

const (
	IntentSchedule IntentType = "schedule"
	IntentEmail    IntentType = "email"
	IntentOther    IntentType = "other"
)

func ParseIntentType(raw string) IntentType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "schedule", "calendar", "meeting":
		return IntentSchedule
	case "email", "mail":
		return IntentEmail
	default:
		return IntentOther
	}
}

type DispatchStatus string

const (
	DispatchDetected   DispatchStatus = "detected"
	DispatchDispatched DispatchStatus = "dispatched"
	DispatchCompleted  DispatchStatus = "completed"
	DispatchFailed     DispatchStatus = "failed"
	DispatchSkipped    DispatchStatus = "skipped"
)

// Intent is one actionable request detected in the transcript, tracked
// through the dispatch state machine.
type Intent struct {
	Type       IntentType        `json:"type"`
	Confidence Confidence        `json:"confidence"`
	Action     string            `json:"action"`
	Details    map[string]string `json:"details,omitempty"`
	Context    string            `json:"context,omitempty"`
	Sequence   int64             `json:"sequence"`
	Status     DispatchStatus    `json:"status"`
	Result     string            `json:"result,omitempty"`
}

// Fingerprint identifies an intent across repeated detections: type plus the
// normalized details mapping, independent of confidence. Detail keys are
// sorted so map iteration order cannot split a fingerprint.
func (i Intent) Fingerprint() string {
	keys := make([]string, 0, len(i.Details))
	for k := range i.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(i.Type))
	for _, k := range keys {
		v := strings.Join(strings.Fields(strings.ToLower(i.Details[k])), " ")
		if v == "" {
			continue
		}
		b.WriteString("|")
		b.WriteString(strings.ToLower(strings.TrimSpace(k)))
		b.WriteString("=")
		b.WriteString(v)
	}
	return b.String()
}

// FinalSummary is the immutable artifact compiled when a session finalizes.
type FinalSummary struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Facts     []Fact    `json:"facts"`
	Intents   []Intent  `json:"intents"`
	Segments  int       `json:"segments"`
	NotesURL  string    `json:"notes_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
