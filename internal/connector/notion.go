package connector

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	defaultNotionAPIBase = "https://api.notion.com/v1"
	notionVersion        = "2022-06-28"
	// Notion caps rich_text content at 2000 characters per block.
	notionBlockLimit = 1900
)

// Notes persists final meeting summaries as Notion pages.
type Notes struct {
	httpClient *http.Client
	apiKey     string
	databaseID string
	apiBase    string
}

func NewNotes(httpClient *http.Client, apiKey, databaseID string) *Notes {
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	return &Notes{
		httpClient: httpClient,
		apiKey:     strings.TrimSpace(apiKey),
		databaseID: strings.TrimSpace(databaseID),
		apiBase:    defaultNotionAPIBase,
	}
}

// CreatePage creates a page titled title with the content split into
// paragraph blocks, and returns the page URL.
func (n *Notes) CreatePage(ctx context.Context, title, content string) (string, error) {
	if n.apiKey == "" || n.databaseID == "" {
		return "", fmt.Errorf("%w: Notion (set NOTION_API_KEY and NOTION_DATABASE_ID)", ErrUnconfigured)
	}

	children := make([]map[string]any, 0, len(content)/notionBlockLimit+1)
	for _, chunk := range splitBlocks(content, notionBlockLimit) {
		children = append(children, map[string]any{
			"object": "block",
			"type":   "paragraph",
			"paragraph": map[string]any{
				"rich_text": []map[string]any{
					{"type": "text", "text": map[string]any{"content": chunk}},
				},
			},
		})
	}

	payload := map[string]any{
		"parent": map[string]any{"database_id": n.databaseID},
		"properties": map[string]any{
			"Name": map[string]any{
				"title": []map[string]any{
					{"text": map[string]any{"content": title}},
				},
			},
		},
		"children": children,
	}

	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	headers := map[string]string{
		"Authorization":  "Bearer " + n.apiKey,
		"Notion-Version": notionVersion,
	}
	if err := postJSON(ctx, n.httpClient, n.apiBase+"/pages", headers, payload, &out); err != nil {
		return "", fmt.Errorf("create notion page: %w", err)
	}
	return out.URL, nil
}

func splitBlocks(content string, limit int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return []string{""}
	}
	var out []string
	for len(content) > limit {
		cut := limit
		// Prefer a paragraph or line boundary near the limit.
		if i := strings.LastIndex(content[:limit], "\n"); i > limit/2 {
			cut = i
		}
		out = append(out, strings.TrimSpace(content[:cut]))
		content = strings.TrimSpace(content[cut:])
	}
	if content != "" {
		out = append(out, content)
	}
	return out
}
