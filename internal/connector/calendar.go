package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultCalendarAPIBase = "https://www.googleapis.com/calendar/v3"

// Calendar creates Google Calendar events from schedule intents.
type Calendar struct {
	httpClient *http.Client
	token      string
	calendarID string
	apiBase    string

	// now is swappable in tests.
	now func() time.Time
}

func NewCalendar(httpClient *http.Client, token, calendarID string) *Calendar {
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	if strings.TrimSpace(calendarID) == "" {
		calendarID = "primary"
	}
	return &Calendar{
		httpClient: httpClient,
		token:      strings.TrimSpace(token),
		calendarID: calendarID,
		apiBase:    defaultCalendarAPIBase,
		now:        time.Now,
	}
}

type calendarEventPayload struct {
	Summary     string            `json:"summary"`
	Description string            `json:"description"`
	Start       calendarEventTime `json:"start"`
	End         calendarEventTime `json:"end"`
}

type calendarEventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// CreateEvent resolves the (possibly relative) date and time from the intent
// details and creates the event. Missing date defaults to today, missing
// time to one hour from now, mirroring how the meeting assistant behaves
// when a speaker says only "let's follow up on Friday".
func (c *Calendar) CreateEvent(ctx context.Context, req EventRequest) (EventResult, error) {
	if c.token == "" {
		return EventResult{}, fmt.Errorf("%w: Google Calendar (set GOOGLE_CALENDAR_TOKEN)", ErrUnconfigured)
	}

	now := c.now()

	date, ok := ResolveDate(req.Date, now)
	if !ok {
		date = now.Format("2006-01-02")
	}
	clock, ok := ResolveClock(req.Time)
	if !ok {
		clock = now.Add(time.Hour).Format("15:04")
	}

	start, err := time.Parse("2006-01-02T15:04", date+"T"+clock)
	if err != nil {
		return EventResult{}, fmt.Errorf("invalid date/time %q %q: %w", date, clock, err)
	}
	duration := time.Duration(req.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = time.Hour
	}
	end := start.Add(duration)

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Follow-up meeting"
	}

	payload := calendarEventPayload{
		Summary:     title,
		Description: req.Description,
		Start:       calendarEventTime{DateTime: start.Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
		End:         calendarEventTime{DateTime: end.Format("2006-01-02T15:04:05"), TimeZone: "UTC"},
	}

	var out struct {
		ID       string `json:"id"`
		HTMLLink string `json:"htmlLink"`
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.apiBase, url.PathEscape(c.calendarID))
	headers := map[string]string{"Authorization": "Bearer " + c.token}
	if err := postJSON(ctx, c.httpClient, endpoint, headers, payload, &out); err != nil {
		return EventResult{}, fmt.Errorf("create calendar event: %w", err)
	}

	return EventResult{
		EventID: out.ID,
		Link:    out.HTMLLink,
		Start:   payload.Start.DateTime,
		End:     payload.End.DateTime,
	}, nil
}
