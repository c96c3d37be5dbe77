// Package config loads the enrichment pipeline's flat environment-variable
// configuration surface, following the teacher's env-var-with-defaults shape
// (see pkg/database.LoadConfigFromEnv) rather than its layered YAML loader,
// since this service's surface is a flat list (spec §6), not agent/chain/MCP
// registries.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prabuddhasl/support-intel-enricher/pkg/database"
)

// Config is the full set of environment-driven settings for cmd/enricher.
type Config struct {
	// Message bus
	Bootstrap   string
	TopicIn     string
	TopicOut    string
	TopicDLQ    string
	GroupID     string
	PollTimeout time.Duration

	// Store
	DatabaseURL string

	// Retrieval
	EmbeddingModel        string
	RerankModel           string
	KBTopK                int
	KBCandidates          int
	RerankEnabled         bool
	HybridSearchEnabled   bool
	HybridKeywordMax      int
	InferenceBaseURL      string

	// LLM
	Model              string
	LLMAPIKey          string
	LLMRequestTimeout  time.Duration
	LLMRequestsPerSec  float64

	// Producer
	ProducerFlushTimeout time.Duration

	// Ambient
	HealthPort int
}

// Load reads Config from the environment, applying defaults and validating
// the result. Callers should load a .env file (godotenv) before calling Load.
func Load() (Config, error) {
	kbTopK, err := atoiEnv("KB_TOP_K", 5)
	if err != nil {
		return Config{}, err
	}
	kbCandidates, err := atoiEnv("KB_CANDIDATES", 20)
	if err != nil {
		return Config{}, err
	}
	hybridKeywordMax, err := atoiEnv("HYBRID_KEYWORD_MAX", 20)
	if err != nil {
		return Config{}, err
	}
	rerankEnabled, err := boolEnv("RERANK_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	hybridSearchEnabled, err := boolEnv("HYBRID_SEARCH_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	healthPort, err := atoiEnv("HEALTH_PORT", 8080)
	if err != nil {
		return Config{}, err
	}
	llmRequestTimeout, err := durationEnv("LLM_REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	producerFlushTimeout, err := durationEnv("PRODUCER_FLUSH_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	pollTimeout, err := durationEnv("POLL_TIMEOUT", 1*time.Second)
	if err != nil {
		return Config{}, err
	}
	llmRPS, err := floatEnv("LLM_REQUESTS_PER_SECOND", 2.0)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Bootstrap:   getEnvOrDefault("BOOTSTRAP", "localhost:9092"),
		TopicIn:     getEnvOrDefault("ENRICHER_TOPIC_IN", "tickets.raw"),
		TopicOut:    getEnvOrDefault("TOPIC_OUT", "tickets.enriched"),
		TopicDLQ:    getEnvOrDefault("TOPIC_DLQ", "tickets.dlq"),
		GroupID:     getEnvOrDefault("GROUP_ID", "support-enricher"),
		PollTimeout: pollTimeout,

		DatabaseURL: os.Getenv("DATABASE_URL"),

		EmbeddingModel:      getEnvOrDefault("EMBEDDING_MODEL", "all-MiniLM-L6-v2"),
		RerankModel:         getEnvOrDefault("RERANK_MODEL", "ms-marco-MiniLM-L-6-v2"),
		KBTopK:              kbTopK,
		KBCandidates:        kbCandidates,
		RerankEnabled:       rerankEnabled,
		HybridSearchEnabled: hybridSearchEnabled,
		HybridKeywordMax:    hybridKeywordMax,
		InferenceBaseURL:    getEnvOrDefault("INFERENCE_BASE_URL", "http://localhost:8000"),

		Model:             getEnvOrDefault("MODEL", "claude-3-5-sonnet-latest"),
		LLMAPIKey:         os.Getenv("ANTHROPIC_API_KEY"),
		LLMRequestTimeout: llmRequestTimeout,
		LLMRequestsPerSec: llmRPS,

		ProducerFlushTimeout: producerFlushTimeout,

		HealthPort: healthPort,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks for required fields and internally-consistent values.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.LLMAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if c.KBTopK < 1 {
		return fmt.Errorf("KB_TOP_K must be at least 1")
	}
	if c.KBCandidates < c.KBTopK {
		return fmt.Errorf("KB_CANDIDATES (%d) cannot be less than KB_TOP_K (%d)", c.KBCandidates, c.KBTopK)
	}
	if c.HybridKeywordMax < 0 {
		return fmt.Errorf("HYBRID_KEYWORD_MAX cannot be negative")
	}
	return nil
}

// DatabaseConfig translates DatabaseURL into the discrete fields pkg/database
// expects, applying the same pool-sizing env vars pkg/database.LoadConfigFromEnv
// reads directly (DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS, ...).
func (c Config) DatabaseConfig() (database.Config, error) {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return database.Config{}, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	port := 5432
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return database.Config{}, fmt.Errorf("invalid DATABASE_URL port: %w", err)
		}
	}

	password, _ := u.User.Password()
	sslMode := "disable"
	if m := u.Query().Get("sslmode"); m != "" {
		sslMode = m
	}

	maxOpen, err := atoiEnv("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return database.Config{}, err
	}
	maxIdle, err := atoiEnv("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return database.Config{}, err
	}
	maxLifetime, err := durationEnv("DB_CONN_MAX_LIFETIME", time.Hour)
	if err != nil {
		return database.Config{}, err
	}
	maxIdleTime, err := durationEnv("DB_CONN_MAX_IDLE_TIME", 15*time.Minute)
	if err != nil {
		return database.Config{}, err
	}

	dbCfg := database.Config{
		Host:            u.Hostname(),
		Port:            port,
		User:            u.User.Username(),
		Password:        password,
		Database:        strings.TrimPrefix(u.Path, "/"),
		SSLMode:         sslMode,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: maxLifetime,
		ConnMaxIdleTime: maxIdleTime,
	}
	return dbCfg, dbCfg.Validate()
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func atoiEnv(key string, defaultVal int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func floatEnv(key string, defaultVal float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func boolEnv(key string, defaultVal bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
