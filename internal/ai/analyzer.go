// Package ai implements the language-model stages of the transcript
// pipeline: rolling summaries, fact detection and intent detection.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/devamsheth0806/VeriMeet/internal/pipeline"
	"github.com/devamsheth0806/VeriMeet/internal/session"
	"github.com/devamsheth0806/VeriMeet/pkg/x/llm"
)

const (
	summarizeSystem = "You are a meeting summarization assistant. Create clear, concise summaries focusing on key points and action items."
	finalizeSystem  = "You are a professional meeting summarization assistant. Create well-structured, comprehensive meeting minutes."
	factsSystem     = "You are a fact detection assistant. Identify verifiable factual statements, numerical claims, and statistical assertions. Return valid JSON only."
	intentsSystem   = "You are an intent detection assistant. Identify actionable requests like scheduling meetings or sending emails. Return valid JSON only."
)

// Analyzer runs summary, fact and intent analysis over transcript text
// through a single chat-completion client.
type Analyzer struct {
	client *llm.Client
}

func NewAnalyzer(client *llm.Client) *Analyzer {
	return &Analyzer{client: client}
}

var _ pipeline.Summarizer = (*Analyzer)(nil)
var _ pipeline.FactDetector = (*Analyzer)(nil)
var _ pipeline.IntentDetector = (*Analyzer)(nil)

// Summarize folds the buffered segments into the previous rolling summary.
// With no previous summary it produces a fresh one.
func (a *Analyzer) Summarize(ctx context.Context, previousSummary string, segments []string) (string, error) {
	transcript := strings.Join(segments, "\n")

	var prompt string
	if strings.TrimSpace(previousSummary) != "" {
		prompt = fmt.Sprintf(`Previous meeting summary:
%s

New transcript segment:
%s

Please update the summary to include the new information. Maintain a concise, structured format with key points.`, previousSummary, transcript)
	} else {
		prompt = fmt.Sprintf(`Create a concise summary of this meeting transcript segment:
%s

Include key discussion points, decisions, and action items.`, transcript)
	}

	out, err := a.client.Complete(ctx, summarizeSystem, prompt)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// FinalizeSummary produces the comprehensive end-of-meeting summary from
// the full transcript and the session's fact-check results.
func (a *Analyzer) FinalizeSummary(ctx context.Context, transcript []string, facts []session.Fact) (string, error) {
	combined := strings.Join(transcript, "\n\n")

	factsSection := ""
	if len(facts) > 0 {
		var b strings.Builder
		b.WriteString("\n\nVerified Facts:\n")
		for _, f := range facts {
			fmt.Fprintf(&b, "- %s: %s\n", f.Claim, f.Status)
		}
		factsSection = b.String()
	}

	prompt := fmt.Sprintf(`Create a comprehensive final summary of this meeting:
%s%s

Format the summary with:
1. Meeting Overview
2. Key Discussion Points
3. Decisions Made
4. Action Items
5. Verified Facts (if any)
`, combined, factsSection)

	out, err := a.client.Complete(ctx, finalizeSystem, prompt)
	if err != nil {
		return "", fmt.Errorf("finalize summary: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// DetectFacts extracts verifiable claims from the transcript text.
func (a *Analyzer) DetectFacts(ctx context.Context, text string) ([]pipeline.FactCandidate, error) {
	prompt := fmt.Sprintf(`Analyze the following meeting transcript and identify any factual statements, numerical claims, or verifiable assertions.

Transcript:
%s

Return a JSON object with a "facts" array. Each statement should include:
- "claim": The exact factual statement or numerical claim
- "type": Type of claim (e.g., "statistical", "factual", "numerical", "date")
- "context": Brief context around the claim

Example format:
{
  "facts": [
    {
      "claim": "Revenue increased 20%% this quarter",
      "type": "numerical",
      "context": "Discussed Q3 financial performance"
    }
  ]
}

If no factual statements are found, return {"facts": []}.

Return ONLY valid JSON, no additional text.`, text)

	out, err := a.client.Complete(ctx, factsSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("detect facts: %w", err)
	}
	return parseFactCandidates(out)
}

// DetectIntents extracts actionable requests from the transcript text.
func (a *Analyzer) DetectIntents(ctx context.Context, text string) ([]pipeline.IntentCandidate, error) {
	prompt := fmt.Sprintf(`Analyze the following meeting transcript and identify any actionable intents or requests.

Transcript:
%s

Look for:
1. Scheduling requests: mentions of scheduling meetings, follow-ups, appointments, or calendar events.
   Examples: "schedule a meeting", "let's meet next week", "follow up on Friday", "book a call"
2. Email requests: requests to send summaries, minutes, or information via email.
   Examples: "email the summary", "send me the minutes", "email this to the team"

Return a JSON object with an "intents" array. Each intent should include:
- "type": "schedule" or "email"
- "confidence": "high", "medium", or "low"
- "action": Brief description of the requested action
- "details": Extracted details (dates, times, recipients, etc.)
- "context": Relevant context from the transcript

Example format:
{
  "intents": [
    {
      "type": "schedule",
      "confidence": "high",
      "action": "Schedule a follow-up meeting",
      "details": {
        "date": "next Friday",
        "time": "2pm",
        "topic": "project review"
      },
      "context": "Let's schedule a follow-up meeting next Friday at 2pm to review the project"
    }
  ]
}

If no intents are found, return {"intents": []}.

Return ONLY valid JSON, no additional text.`, text)

	out, err := a.client.Complete(ctx, intentsSystem, prompt)
	if err != nil {
		return nil, fmt.Errorf("detect intents: %w", err)
	}
	return parseIntentCandidates(out)
}
