// Package connector holds the side-effecting collaborators: Google Calendar,
// Gmail, Notion, and the Meetstream meeting-bot API. Every call returns a
// plain error; a missing credential is reported as ErrUnconfigured so the
// pipeline can distinguish "not set up" from a provider failure.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/devamsheth0806/VeriMeet/internal/session"
)

// ErrUnconfigured marks a connector whose credentials are absent. Wrap it
// with a human-readable hint: fmt.Errorf("%w: ...", ErrUnconfigured).
var ErrUnconfigured = errors.New("connector not configured")

func IsUnconfigured(err error) bool { return errors.Is(err, ErrUnconfigured) }

// EventRequest carries the raw intent details for a calendar event. Date and
// Time may be relative expressions ("next friday", "2pm"); the calendar
// connector resolves them.
type EventRequest struct {
	Title           string
	Date            string
	Time            string
	Description     string
	DurationMinutes int
}

type EventResult struct {
	EventID string
	Link    string
	Start   string
	End     string
}

type EmailRequest struct {
	Recipients []string
	Subject    string
	Body       string
	Facts      []session.Fact
}

type EmailResult struct {
	MessageID string
}

type BotInfo struct {
	BotID  string
	Status string
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

// postJSON sends a JSON body and decodes a JSON reply, converting non-2xx
// statuses into errors carrying the response text.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out any) error {
	return doJSON(ctx, client, http.MethodPost, url, headers, payload, out)
}

func doJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
