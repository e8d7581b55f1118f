// Package app wires the configuration, collaborators and HTTP server into a
// runnable service.
package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/devamsheth0806/VeriMeet/internal/ai"
	"github.com/devamsheth0806/VeriMeet/internal/broadcast"
	"github.com/devamsheth0806/VeriMeet/internal/config"
	"github.com/devamsheth0806/VeriMeet/internal/connector"
	"github.com/devamsheth0806/VeriMeet/internal/pipeline"
	"github.com/devamsheth0806/VeriMeet/internal/search"
	"github.com/devamsheth0806/VeriMeet/internal/server"
	"github.com/devamsheth0806/VeriMeet/internal/session"
	"github.com/devamsheth0806/VeriMeet/pkg/x/llm"
	"github.com/devamsheth0806/VeriMeet/pkg/x/syncx"
)

const logPrefix = "[verimeet]"

// Run assembles the service from cfg and serves until ctx is canceled.
func Run(ctx context.Context, cfg config.Config) error {
	client, err := llm.NewClient(llm.Config{
		BaseURL: cfg.OpenAI.BaseURL,
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
	}, nil)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}

	analyzer := ai.NewAnalyzer(client)
	verifier := search.NewVerifier(httpClient, cfg.Search.SerperAPIKey, cfg.Search.TavilyAPIKey)
	calendar := connector.NewCalendar(httpClient, cfg.Google.CalendarToken, cfg.Google.CalendarID)
	mailer := connector.NewMailer(httpClient, cfg.Google.GmailToken, cfg.Google.SenderEmail)
	notes := connector.NewNotes(httpClient, cfg.Notion.APIKey, cfg.Notion.DatabaseID)
	meetstream := connector.NewMeetstream(httpClient, cfg.Meetstream.APIKey, cfg.Meetstream.APIBase, cfg.Meetstream.PublicURL)

	registry := session.NewRegistry()
	hub := broadcast.NewHub(cfg.Pipeline.SubscriberBuffer, "[hub]")

	orch := pipeline.NewOrchestrator(registry, hub, pipeline.Collaborators{
		Summarizer: analyzer,
		Facts:      analyzer,
		Verifier:   verifier,
		Intents:    analyzer,
		Calendar:   calendar,
		Mailer:     mailer,
		Notes:      notes,
		Chat:       meetstream,
	}, pipeline.Options{
		SummaryThreshold: cfg.Pipeline.SummaryThreshold,
		StageTimeout:     cfg.Pipeline.StageTimeout(),
		EmailRecipients:  cfg.Pipeline.EmailRecipients,
		StateDir:         cfg.StateDir,
		LogPrefix:        "[pipeline]",
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(orch, registry, hub, meetstream).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g := syncx.NewGroup(ctx)
	g.Go(func(ctx context.Context) {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("%s shutdown: %v", logPrefix, err)
		}
	})

	log.Printf("%s listening on %s, model=%s", logPrefix, cfg.Addr, client.Model())
	err = srv.ListenAndServe()
	g.Stop()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
