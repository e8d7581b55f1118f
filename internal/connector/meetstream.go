package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Meetstream drives the meeting-bot platform: creating bots that join a
// meeting and posting messages into the meeting chat.
type Meetstream struct {
	httpClient *http.Client
	apiKey     string
	apiBase    string
	// webhookURL is handed to the platform so transcript callbacks reach
	// this server.
	webhookURL string
}

func NewMeetstream(httpClient *http.Client, apiKey, apiBase, publicURL string) *Meetstream {
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		apiBase = "https://api.meetstream.ai"
	}
	webhookURL := ""
	if u := strings.TrimRight(strings.TrimSpace(publicURL), "/"); u != "" {
		webhookURL = u + "/webhook/meetstream"
	}
	return &Meetstream{
		httpClient: httpClient,
		apiKey:     strings.TrimSpace(apiKey),
		apiBase:    apiBase,
		webhookURL: webhookURL,
	}
}

// CreateBot sends a bot into the meeting at meetingURL.
func (m *Meetstream) CreateBot(ctx context.Context, meetingURL, botName string) (BotInfo, error) {
	if m.apiKey == "" {
		return BotInfo{}, fmt.Errorf("%w: Meetstream (set MEETSTREAM_API_KEY)", ErrUnconfigured)
	}
	if strings.TrimSpace(meetingURL) == "" {
		return BotInfo{}, fmt.Errorf("meeting_url is required")
	}
	if strings.TrimSpace(botName) == "" {
		botName = "VeriMeet Assistant"
	}

	payload := map[string]string{
		"meeting_url": meetingURL,
		"bot_name":    botName,
		"platform":    "google_meet",
	}
	if m.webhookURL != "" {
		payload["webhook_url"] = m.webhookURL
	}

	var out struct {
		BotID  string `json:"bot_id"`
		Status string `json:"status"`
	}
	headers := map[string]string{"Authorization": "Bearer " + m.apiKey}
	if err := postJSON(ctx, m.httpClient, m.apiBase+"/v1/bots", headers, payload, &out); err != nil {
		return BotInfo{}, fmt.Errorf("create bot: %w", err)
	}
	return BotInfo{BotID: out.BotID, Status: out.Status}, nil
}

// SendChatMessage posts a message into the meeting chat through the bot.
func (m *Meetstream) SendChatMessage(ctx context.Context, botID, message string) error {
	if m.apiKey == "" {
		return fmt.Errorf("%w: Meetstream (set MEETSTREAM_API_KEY)", ErrUnconfigured)
	}
	botID = strings.TrimSpace(botID)
	if botID == "" {
		return fmt.Errorf("bot id is required")
	}

	endpoint := fmt.Sprintf("%s/v1/bots/%s/chat", m.apiBase, url.PathEscape(botID))
	headers := map[string]string{"Authorization": "Bearer " + m.apiKey}
	return postJSON(ctx, m.httpClient, endpoint, headers, map[string]string{"message": message}, nil)
}
