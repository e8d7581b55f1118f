package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	excerptMaxBytes = 512 * 1024
	excerptMaxRunes = 300
)

// ExcerptFetcher pulls a short text excerpt from a web page, used to
// enrich the top verification source beyond the search snippet.
type ExcerptFetcher struct {
	httpClient *http.Client
}

func NewExcerptFetcher(httpClient *http.Client) *ExcerptFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ExcerptFetcher{httpClient: httpClient}
}

// Fetch returns the page's meta description, or its first non-trivial
// paragraphs when there is none.
func (f *ExcerptFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "VeriMeet/1.0 (fact verification)")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("not an HTML page: %s", ct)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, excerptMaxBytes))
	if err != nil {
		return "", err
	}

	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		if desc = strings.TrimSpace(desc); desc != "" {
			return truncate(desc, excerptMaxRunes), nil
		}
	}

	var parts []string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if len(text) < 40 {
			return true
		}
		parts = append(parts, text)
		return len(strings.Join(parts, " ")) < excerptMaxRunes
	})
	if len(parts) == 0 {
		return "", nil
	}
	return truncate(strings.Join(parts, " "), excerptMaxRunes), nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
