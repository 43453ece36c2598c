package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

// Config holds all application configuration.
// Supports environment variables with sensible defaults.
//
// Environment Variables:
// GitHub Configuration:
// - GITHUB_OWNER: Owner of the hub repository (required)
// - GITHUB_REPO: Name of the hub repository, where review issues live (required)
// - GITHUB_OWNER_ID: Immutable numeric account id of the owner (required for admin operations)
// - GITHUB_TOKEN: API token; reads work unauthenticated, writes do not (optional)
// - GITHUB_API_URL: REST API base URL (default: https://api.github.com)
// - GITHUB_RAW_URL: Raw content base URL (default: https://raw.githubusercontent.com)
// - GITHUB_RPS: Soft request budget in requests per second (default: 1)
//
// Translation Configuration:
// - TRANSLATION_REPO: owner/name of the repository holding the TSV corpora
// - TRANSLATION_BRANCH: branch to read the corpora from (default: dev)
// - SOURCE_FILE: source-language corpus file (default: en.tsv)
// - TARGET_FILE: localized corpus file (default: pt-br.tsv)
// - GLOSSARY_FILE: glossary snapshot path inside the hub site (default: docs/glossary.json)
// - TARGET_LANGUAGE: BCP 47 tag of the target language (default: pt-BR)
// - CRON_EXPR: corpus refresh schedule (default: "*/15 * * * *")
//
// Cache Configuration:
// - CACHE_TTL_MINUTES: default read cache TTL (default: 15)
// - PENDING_TTL_MINUTES: open review request id-scan TTL (default: 5)
// - ADMIN_TTL_MINUTES: admin open-issue list TTL (default: 2)
//
// System Configuration:
// - DATA_DIR: directory for the local SQLite state (default: ./data)
// - HTTP_ADDR: listen address for the JSON API (default: :8080)

type Config struct {
	GitHub      GitHubConfig      `json:"github"`
	Translation TranslationConfig `json:"translation"`
	Cache       CacheConfig       `json:"cache"`
	HTTP        HTTPConfig        `json:"http"`
	Data        DataConfig        `json:"data"`
}

// GitHubConfig holds the hub repository coordinates and API access settings.
type GitHubConfig struct {
	Owner             string  `json:"owner"`
	Repo              string  `json:"repo"`
	OwnerID           int64   `json:"owner_id"`
	Token             string  `json:"-"`
	APIURL            string  `json:"api_url"`
	RawURL            string  `json:"raw_url"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// TranslationConfig holds the corpora location and refresh schedule.
type TranslationConfig struct {
	Repo           string       `json:"repo"`
	Branch         string       `json:"branch"`
	SourceFile     string       `json:"source_file"`
	TargetFile     string       `json:"target_file"`
	GlossaryFile   string       `json:"glossary_file"`
	TargetLanguage language.Tag `json:"target_language"`
	CronExpr       string       `json:"cron_expr"`
}

// CacheConfig holds per-concern cache TTLs.
type CacheConfig struct {
	DefaultTTL time.Duration `json:"default_ttl"`
	PendingTTL time.Duration `json:"pending_ttl"`
	AdminTTL   time.Duration `json:"admin_ttl"`
}

type HTTPConfig struct {
	Addr string `json:"addr"`
}

type DataConfig struct {
	Dir string `json:"dir"`
}

// DBPath returns the SQLite database path inside the data directory.
func (d DataConfig) DBPath() string {
	return filepath.Join(d.Dir, "review-hub.db")
}

// Option is a function type for configuring Config
type Option func(*Config)

// New creates a Config from the environment, loading a .env file when present.
func New(opts ...Option) (*Config, error) {
	_ = godotenv.Load()
	return NewFromEnv(opts...)
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		GitHub: GitHubConfig{
			Owner:             getEnvString("GITHUB_OWNER", "rodrigomiquilino"),
			Repo:              getEnvString("GITHUB_REPO", "wwm_brasileiro"),
			OwnerID:           getEnvInt64("GITHUB_OWNER_ID", 0),
			Token:             getEnvString("GITHUB_TOKEN", ""),
			APIURL:            getEnvString("GITHUB_API_URL", "https://api.github.com"),
			RawURL:            getEnvString("GITHUB_RAW_URL", "https://raw.githubusercontent.com"),
			RequestsPerSecond: getEnvFloat("GITHUB_RPS", 1),
		},
		Translation: TranslationConfig{
			Repo:           getEnvString("TRANSLATION_REPO", "rodrigomiquilino/wwm_brasileiro_auto_path"),
			Branch:         getEnvString("TRANSLATION_BRANCH", "dev"),
			SourceFile:     getEnvString("SOURCE_FILE", "en.tsv"),
			TargetFile:     getEnvString("TARGET_FILE", "pt-br.tsv"),
			GlossaryFile:   getEnvString("GLOSSARY_FILE", "docs/glossary.json"),
			TargetLanguage: getEnvLanguage("TARGET_LANGUAGE", language.BrazilianPortuguese),
			CronExpr:       getEnvString("CRON_EXPR", "*/15 * * * *"),
		},
		Cache: CacheConfig{
			DefaultTTL: time.Duration(getEnvInt("CACHE_TTL_MINUTES", 15)) * time.Minute,
			PendingTTL: time.Duration(getEnvInt("PENDING_TTL_MINUTES", 5)) * time.Minute,
			AdminTTL:   time.Duration(getEnvInt("ADMIN_TTL_MINUTES", 2)) * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: getEnvString("HTTP_ADDR", ":8080"),
		},
		Data: DataConfig{
			Dir: getEnvString("DATA_DIR", "data"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.GitHub.Owner == "" {
		return fmt.Errorf("GITHUB_OWNER is required")
	}
	if c.GitHub.Repo == "" {
		return fmt.Errorf("GITHUB_REPO is required")
	}
	if c.Translation.Repo == "" {
		return fmt.Errorf("TRANSLATION_REPO is required")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvLanguage(key string, defaultValue language.Tag) language.Tag {
	if value := os.Getenv(key); value != "" {
		if tag, err := language.Parse(value); err == nil {
			return tag
		}
	}
	return defaultValue
}
