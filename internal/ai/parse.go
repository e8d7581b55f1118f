package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devamsheth0806/VeriMeet/internal/pipeline"
	"github.com/devamsheth0806/VeriMeet/internal/session"
	"github.com/devamsheth0806/VeriMeet/pkg/x/llm"
)

type rawFact struct {
	Claim   string `json:"claim"`
	Type    string `json:"type"`
	Context string `json:"context"`
}

// parseFactCandidates accepts both {"facts": [...]} and a bare array,
// since models drift between the two even when told otherwise.
func parseFactCandidates(text string) ([]pipeline.FactCandidate, error) {
	cleaned := llm.ExtractJSON(text)
	if cleaned == "" {
		return nil, fmt.Errorf("no JSON in fact response")
	}

	var raws []rawFact
	if strings.HasPrefix(cleaned, "[") {
		if err := json.Unmarshal([]byte(cleaned), &raws); err != nil {
			return nil, fmt.Errorf("parse fact array: %w", err)
		}
	} else {
		var wrapped struct {
			Facts []rawFact `json:"facts"`
		}
		if err := json.Unmarshal([]byte(cleaned), &wrapped); err != nil {
			return nil, fmt.Errorf("parse fact object: %w", err)
		}
		raws = wrapped.Facts
	}

	out := make([]pipeline.FactCandidate, 0, len(raws))
	for _, r := range raws {
		claim := strings.TrimSpace(r.Claim)
		if claim == "" {
			continue
		}
		out = append(out, pipeline.FactCandidate{
			Claim:   claim,
			Type:    strings.TrimSpace(r.Type),
			Context: strings.TrimSpace(r.Context),
		})
	}
	return out, nil
}

type rawIntent struct {
	Type       string         `json:"type"`
	Confidence string         `json:"confidence"`
	Action     string         `json:"action"`
	Details    map[string]any `json:"details"`
	Context    string         `json:"context"`
}

func parseIntentCandidates(text string) ([]pipeline.IntentCandidate, error) {
	cleaned := llm.ExtractJSON(text)
	if cleaned == "" {
		return nil, fmt.Errorf("no JSON in intent response")
	}

	var raws []rawIntent
	if strings.HasPrefix(cleaned, "[") {
		if err := json.Unmarshal([]byte(cleaned), &raws); err != nil {
			return nil, fmt.Errorf("parse intent array: %w", err)
		}
	} else {
		var wrapped struct {
			Intents []rawIntent `json:"intents"`
		}
		if err := json.Unmarshal([]byte(cleaned), &wrapped); err != nil {
			return nil, fmt.Errorf("parse intent object: %w", err)
		}
		raws = wrapped.Intents
	}

	out := make([]pipeline.IntentCandidate, 0, len(raws))
	for _, r := range raws {
		out = append(out, pipeline.IntentCandidate{
			Type:       session.ParseIntentType(r.Type),
			Confidence: session.ParseConfidence(r.Confidence),
			Action:     strings.TrimSpace(r.Action),
			Details:    coerceDetails(r.Details),
			Context:    strings.TrimSpace(r.Context),
		})
	}
	return out, nil
}

// coerceDetails flattens the model's details object to strings. Models
// occasionally emit numbers or nested values for fields like duration.
func coerceDetails(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case string:
			out[k] = val
		case float64:
			// Trim the trailing ".0" JSON gives integers.
			s := fmt.Sprintf("%v", val)
			out[k] = s
		case bool:
			out[k] = fmt.Sprintf("%t", val)
		case nil:
			// skip
		default:
			b, err := json.Marshal(val)
			if err != nil {
				continue
			}
			out[k] = string(b)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
