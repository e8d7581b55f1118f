// Package search verifies factual claims against web search results.
package search

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/devamsheth0806/VeriMeet/internal/pipeline"
	"github.com/devamsheth0806/VeriMeet/internal/session"
)

const (
	defaultSerperAPIBase = "https://google.serper.dev"
	defaultTavilyAPIBase = "https://api.tavily.com"

	maxResults = 5
)

// Verifier checks claims against web search results, trying Serper first
// and falling back to Tavily. With neither key configured every claim
// fails verification with an explanatory error.
type Verifier struct {
	httpClient *http.Client
	serperKey  string
	tavilyKey  string
	logPrefix  string

	serperBase string
	tavilyBase string

	// excerpts optionally fetches a page excerpt for the top source.
	excerpts *ExcerptFetcher
}

var _ pipeline.FactVerifier = (*Verifier)(nil)

func NewVerifier(httpClient *http.Client, serperKey, tavilyKey string) *Verifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Verifier{
		httpClient: httpClient,
		serperKey:  strings.TrimSpace(serperKey),
		tavilyKey:  strings.TrimSpace(tavilyKey),
		logPrefix:  "[search]",
		serperBase: defaultSerperAPIBase,
		tavilyBase: defaultTavilyAPIBase,
		excerpts:   NewExcerptFetcher(httpClient),
	}
}

// VerifyFact searches for the claim and judges it against the results.
// A claim with matching results is verified at medium confidence; no
// results means unverified at low confidence. The heuristic mirrors a
// human skim of the first results page, not a truth oracle.
func (v *Verifier) VerifyFact(ctx context.Context, claim, claimContext string) (pipeline.Verification, error) {
	if v.serperKey == "" && v.tavilyKey == "" {
		return pipeline.Verification{}, fmt.Errorf("no web search API key configured (set SERPER_API_KEY or TAVILY_API_KEY)")
	}

	query := claim
	if strings.TrimSpace(claimContext) != "" {
		query = claim + " " + claimContext
	}

	results, err := v.search(ctx, query)
	if err != nil {
		return pipeline.Verification{}, err
	}

	if len(results) == 0 {
		return pipeline.Verification{
			Verified:    false,
			Confidence:  "low",
			Explanation: "No relevant results found to verify this claim",
		}, nil
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}

	top := results[0]
	if excerpt := v.fetchExcerpt(ctx, top.URL); excerpt != "" {
		top.Snippet = excerpt
		results[0] = top
	}

	return pipeline.Verification{
		Verified:    true,
		Confidence:  "medium",
		Explanation: fmt.Sprintf("Supported by %d search result(s), top source: %s", len(results), top.Title),
		Sources:     results,
	}, nil
}

func (v *Verifier) search(ctx context.Context, query string) ([]session.SourceRef, error) {
	if v.serperKey != "" {
		results, err := v.searchSerper(ctx, query)
		if err == nil {
			return results, nil
		}
		if v.tavilyKey == "" {
			return nil, err
		}
		log.Printf("%s serper failed, trying tavily: %v", v.logPrefix, err)
	}
	return v.searchTavily(ctx, query)
}

func (v *Verifier) searchSerper(ctx context.Context, query string) ([]session.SourceRef, error) {
	payload := map[string]any{"q": query}
	var out struct {
		Organic []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			Link    string `json:"link"`
		} `json:"organic"`
	}
	headers := map[string]string{"X-API-KEY": v.serperKey}
	if err := postJSON(ctx, v.httpClient, v.serperBase+"/search", headers, payload, &out); err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}
	refs := make([]session.SourceRef, 0, len(out.Organic))
	for _, r := range out.Organic {
		refs = append(refs, session.SourceRef{Title: r.Title, Snippet: r.Snippet, URL: r.Link})
	}
	return refs, nil
}

func (v *Verifier) searchTavily(ctx context.Context, query string) ([]session.SourceRef, error) {
	payload := map[string]any{
		"api_key":     v.tavilyKey,
		"query":       query,
		"max_results": maxResults,
	}
	var out struct {
		Results []struct {
			Title   string `json:"title"`
			Content string `json:"content"`
			URL     string `json:"url"`
		} `json:"results"`
	}
	if err := postJSON(ctx, v.httpClient, v.tavilyBase+"/search", nil, payload, &out); err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	refs := make([]session.SourceRef, 0, len(out.Results))
	for _, r := range out.Results {
		refs = append(refs, session.SourceRef{Title: r.Title, Snippet: r.Content, URL: r.URL})
	}
	return refs, nil
}

func (v *Verifier) fetchExcerpt(ctx context.Context, pageURL string) string {
	if v.excerpts == nil || pageURL == "" {
		return ""
	}
	excerpt, err := v.excerpts.Fetch(ctx, pageURL)
	if err != nil {
		log.Printf("%s excerpt fetch failed for %s: %v", v.logPrefix, pageURL, err)
		return ""
	}
	return excerpt
}
