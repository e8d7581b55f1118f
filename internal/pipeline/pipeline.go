package pipeline

import (
	"context"

	"github.com/devamsheth0806/VeriMeet/internal/connector"
	"github.com/devamsheth0806/VeriMeet/internal/session"
)

// FactCandidate is a factual claim spotted in transcript text, before
// deduplication and verification.
type FactCandidate struct {
	Claim   string
	Type    string
	Context string
}

// IntentCandidate is an actionable request spotted in transcript text.
type IntentCandidate struct {
	Type       session.IntentType
	Confidence session.Confidence
	Action     string
	Details    map[string]string
	Context    string
}

// Verification is the outcome of checking a claim against web sources.
type Verification struct {
	Verified    bool
	Confidence  string
	Explanation string
	Sources     []session.SourceRef
}

// Summarizer maintains the rolling meeting summary.
type Summarizer interface {
	// Summarize folds the buffered segments into the previous summary.
	Summarize(ctx context.Context, previousSummary string, segments []string) (string, error)
	// FinalizeSummary produces the comprehensive end-of-meeting summary.
	FinalizeSummary(ctx context.Context, transcript []string, facts []session.Fact) (string, error)
}

// FactDetector extracts verifiable claims from a transcript segment.
type FactDetector interface {
	DetectFacts(ctx context.Context, text string) ([]FactCandidate, error)
}

// FactVerifier checks a claim against external sources.
type FactVerifier interface {
	VerifyFact(ctx context.Context, claim, claimContext string) (Verification, error)
}

// IntentDetector extracts actionable requests from a transcript segment.
type IntentDetector interface {
	DetectIntents(ctx context.Context, text string) ([]IntentCandidate, error)
}

// Calendar creates calendar events for schedule intents.
type Calendar interface {
	CreateEvent(ctx context.Context, req connector.EventRequest) (connector.EventResult, error)
}

// Mailer sends summary emails for email intents.
type Mailer interface {
	SendSummary(ctx context.Context, req connector.EmailRequest) (connector.EmailResult, error)
}

// Notes persists the final summary to an external notes service and
// returns the page URL.
type Notes interface {
	CreatePage(ctx context.Context, title, content string) (string, error)
}

// ChatPoster posts messages back into the meeting chat.
type ChatPoster interface {
	SendChatMessage(ctx context.Context, botID, message string) error
}
