package connector

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

const defaultGmailAPIBase = "https://www.googleapis.com/gmail/v1"

// Mailer sends meeting-summary emails through the Gmail API.
type Mailer struct {
	httpClient *http.Client
	token      string
	sender     string
	apiBase    string
}

func NewMailer(httpClient *http.Client, token, sender string) *Mailer {
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	if strings.TrimSpace(sender) == "" {
		sender = "noreply@verimeet.local"
	}
	return &Mailer{
		httpClient: httpClient,
		token:      strings.TrimSpace(token),
		sender:     sender,
		apiBase:    defaultGmailAPIBase,
	}
}

// SendSummary sends a multipart (plain + HTML) summary email with the
// session's verified facts appended.
func (m *Mailer) SendSummary(ctx context.Context, req EmailRequest) (EmailResult, error) {
	if m.token == "" {
		return EmailResult{}, fmt.Errorf("%w: Gmail (set GOOGLE_GMAIL_TOKEN)", ErrUnconfigured)
	}
	recipients := cleanRecipients(req.Recipients)
	if len(recipients) == 0 {
		return EmailResult{}, fmt.Errorf("no recipients")
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "Meeting Summary"
	}

	raw, err := buildSummaryMessage(m.sender, recipients, subject, req)
	if err != nil {
		return EmailResult{}, err
	}

	payload := map[string]string{"raw": base64.URLEncoding.EncodeToString(raw)}
	var out struct {
		ID string `json:"id"`
	}
	headers := map[string]string{"Authorization": "Bearer " + m.token}
	if err := postJSON(ctx, m.httpClient, m.apiBase+"/users/me/messages/send", headers, payload, &out); err != nil {
		return EmailResult{}, fmt.Errorf("send email: %w", err)
	}
	return EmailResult{MessageID: out.ID}, nil
}

func buildSummaryMessage(sender string, recipients []string, subject string, req EmailRequest) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", sender)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())

	plain, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=UTF-8"}})
	if err != nil {
		return nil, err
	}
	fmt.Fprint(plain, plainBody(req))

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=UTF-8"}})
	if err != nil {
		return nil, err
	}
	fmt.Fprint(htmlPart, htmlBody(req))

	if err := mw.Close(); err != nil {
		return nil, err
	}
	msg.Write(buf.Bytes())
	return msg.Bytes(), nil
}

func plainBody(req EmailRequest) string {
	var b strings.Builder
	b.WriteString(req.Body)
	if len(req.Facts) > 0 {
		b.WriteString("\n\nVerified Facts:\n")
		for _, f := range req.Facts {
			b.WriteString("- " + f.Claim + ": " + factBadge(f) + "\n")
		}
	}
	return b.String()
}

func htmlBody(req EmailRequest) string {
	var b strings.Builder
	b.WriteString("<html><body><h2>Meeting Summary</h2>")
	b.WriteString(`<div style="white-space: pre-wrap; font-family: Arial, sans-serif;">`)
	b.WriteString(html.EscapeString(req.Body))
	b.WriteString("</div>")
	if len(req.Facts) > 0 {
		b.WriteString("<h3>Verified Facts</h3><ul>")
		for _, f := range req.Facts {
			b.WriteString("<li><strong>" + html.EscapeString(f.Claim) + "</strong>: " + factBadge(f) + "</li>")
		}
		b.WriteString("</ul>")
	}
	b.WriteString("</body></html>")
	return b.String()
}

func cleanRecipients(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" || !strings.Contains(r, "@") {
			continue
		}
		out = append(out, r)
	}
	return out
}
