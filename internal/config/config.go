// Package config assembles the service configuration: secrets and endpoints
// from the environment (optionally seeded from .env files), pipeline tuning
// from an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type MeetstreamConfig struct {
	APIKey  string
	APIBase string
	// PublicURL is the externally reachable base of this server, used as the
	// webhook callback when creating bots.
	PublicURL string
}

type NotionConfig struct {
	APIKey     string
	DatabaseID string
}

type SearchConfig struct {
	SerperAPIKey string
	TavilyAPIKey string
}

type GoogleConfig struct {
	CalendarToken string
	CalendarID    string
	GmailToken    string
	SenderEmail   string
}

// PipelineConfig is the YAML-tunable part of the transcript pipeline.
type PipelineConfig struct {
	// SummaryThreshold is the number of buffered segments that triggers a
	// resummarization.
	SummaryThreshold int `yaml:"summary_threshold"`
	// StageTimeoutSeconds bounds every collaborator call (LLM, search,
	// connectors) so a hung upstream cannot hold a session lock forever.
	StageTimeoutSeconds int `yaml:"stage_timeout_seconds"`
	// SubscriberBuffer is the per-observer event queue size.
	SubscriberBuffer int `yaml:"subscriber_buffer"`
	// EmailRecipients is the default recipient list for email-summary
	// intents that do not name recipients themselves.
	EmailRecipients []string `yaml:"email_recipients"`
}

func (p PipelineConfig) StageTimeout() time.Duration {
	return time.Duration(p.StageTimeoutSeconds) * time.Second
}

type Config struct {
	Addr     string
	StateDir string

	OpenAI     OpenAIConfig
	Meetstream MeetstreamConfig
	Notion     NotionConfig
	Search     SearchConfig
	Google     GoogleConfig
	Pipeline   PipelineConfig
}

// LoadDotEnv loads .env.local then .env from the working directory. Existing
// environment variables win, matching godotenv behavior.
func LoadDotEnv(logPrefix string) {
	for _, p := range []string{".env.local", ".env"} {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			log.Fatalf("%s failed to load %s: %v", logPrefix, p, err)
		}
		log.Printf("%s loaded env from %s", logPrefix, p)
	}
}

// Load reads the environment plus the optional YAML tuning file named by
// VERIMEET_CONFIG (default config.yaml if present).
func Load() (Config, error) {
	cfg := Config{
		Addr:     env("VERIMEET_ADDR", ":8000"),
		StateDir: env("VERIMEET_STATE_DIR", ""),
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   os.Getenv("OPENAI_MODEL"),
		},
		Meetstream: MeetstreamConfig{
			APIKey:    os.Getenv("MEETSTREAM_API_KEY"),
			APIBase:   env("MEETSTREAM_API_URL", "https://api.meetstream.ai"),
			PublicURL: os.Getenv("VERIMEET_PUBLIC_URL"),
		},
		Notion: NotionConfig{
			APIKey:     os.Getenv("NOTION_API_KEY"),
			DatabaseID: os.Getenv("NOTION_DATABASE_ID"),
		},
		Search: SearchConfig{
			SerperAPIKey: os.Getenv("SERPER_API_KEY"),
			TavilyAPIKey: os.Getenv("TAVILY_API_KEY"),
		},
		Google: GoogleConfig{
			CalendarToken: os.Getenv("GOOGLE_CALENDAR_TOKEN"),
			CalendarID:    env("GOOGLE_CALENDAR_ID", "primary"),
			GmailToken:    os.Getenv("GOOGLE_GMAIL_TOKEN"),
			SenderEmail:   env("GMAIL_SENDER_EMAIL", "noreply@verimeet.local"),
		},
	}

	path := strings.TrimSpace(os.Getenv("VERIMEET_CONFIG"))
	explicit := path != ""
	if path == "" {
		path = "config.yaml"
	}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg.Pipeline); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// Tuning file is optional unless named explicitly.
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required settings and fills defaults for the rest.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OpenAI.APIKey) == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = ":8000"
	}
	if c.Pipeline.SummaryThreshold <= 0 {
		c.Pipeline.SummaryThreshold = 5
	}
	if c.Pipeline.StageTimeoutSeconds <= 0 {
		c.Pipeline.StageTimeoutSeconds = 30
	}
	if c.Pipeline.SubscriberBuffer <= 0 {
		c.Pipeline.SubscriberBuffer = 64
	}
	return nil
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
