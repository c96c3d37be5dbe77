// Command enricher runs the support-ticket enrichment pipeline: it consumes
// raw ticket events, enriches them with KB retrieval and an LLM call, and
// publishes the result, following TARSy's cmd/tarsy main-wiring shape
// (env config, godotenv, a health endpoint) adapted from an HTTP API
// server to a background consumer process.
package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/prabuddhasl/support-intel-enricher/pkg/bus"
	"github.com/prabuddhasl/support-intel-enricher/pkg/config"
	"github.com/prabuddhasl/support-intel-enricher/pkg/consumer"
	"github.com/prabuddhasl/support-intel-enricher/pkg/database"
	"github.com/prabuddhasl/support-intel-enricher/pkg/dlq"
	"github.com/prabuddhasl/support-intel-enricher/pkg/inference"
	"github.com/prabuddhasl/support-intel-enricher/pkg/llm"
	"github.com/prabuddhasl/support-intel-enricher/pkg/retrieval"
	"github.com/prabuddhasl/support-intel-enricher/pkg/store"
	"github.com/prabuddhasl/support-intel-enricher/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v (continuing with existing environment)", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := slog.Default()
	logger.Info("starting enricher", "version", version.Full(), "group_id", cfg.GroupID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCfg, err := cfg.DatabaseConfig()
	if err != nil {
		log.Fatalf("failed to build database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logger.Error("error closing database client", "error", err)
		}
	}()
	logger.Info("connected to database")

	httpClient := &http.Client{Timeout: 30 * time.Second}
	embedClient := inference.NewHTTPEmbeddingClient(cfg.InferenceBaseURL, httpClient)
	rerankClient := inference.NewHTTPRerankClient(cfg.InferenceBaseURL, httpClient)
	registry := retrieval.NewRegistry(embedClient, rerankClient, cfg.EmbeddingModel, cfg.RerankModel)
	retriever := retrieval.New(dbClient.DB(), registry, retrieval.Config{
		KBCandidates:        cfg.KBCandidates,
		KBTopK:              cfg.KBTopK,
		RerankEnabled:       cfg.RerankEnabled,
		HybridSearchEnabled: cfg.HybridSearchEnabled,
		HybridKeywordMax:    cfg.HybridKeywordMax,
	})

	llmAdapter := llm.New(cfg.LLMAPIKey, cfg.Model, cfg.LLMRequestsPerSec, 4000)

	brokers := []string{cfg.Bootstrap}
	reader, err := bus.NewKafkaReader(brokers, cfg.GroupID, cfg.TopicIn, cfg.PollTimeout)
	if err != nil {
		log.Fatalf("failed to create kafka reader: %v", err)
	}
	defer func() { _ = reader.Close() }()

	outputWriter, err := bus.NewKafkaWriter(brokers)
	if err != nil {
		log.Fatalf("failed to create kafka writer: %v", err)
	}
	defer func() { _ = outputWriter.Close() }()

	dlqWriter, err := bus.NewKafkaWriter(brokers)
	if err != nil {
		log.Fatalf("failed to create kafka dlq writer: %v", err)
	}
	defer func() { _ = dlqWriter.Close() }()
	dlqPublisher := dlq.New(dlqWriter, cfg.TopicDLQ, logger)

	storeWriter := store.New(dbClient.DB())

	c := consumer.New(reader, outputWriter, cfg.TopicOut, dbClient.DB(), storeWriter,
		retriever, llmAdapter, dlqPublisher, cfg.ProducerFlushTimeout, logger)

	c.Start(ctx)
	logger.Info("consumer started", "topic_in", cfg.TopicIn, "topic_out", cfg.TopicOut, "topic_dlq", cfg.TopicDLQ)

	server := newHealthServer(cfg.HealthPort, dbClient, c)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, draining in-flight work")

	c.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", "error", err)
	}

	logger.Info("enricher stopped")
}

func newHealthServer(port int, dbClient *database.Client, c *consumer.Consumer) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		dbHealth, err := database.Health(ctx, dbClient.DB())
		status := c.Status()

		body := map[string]any{
			"database":          dbHealth,
			"consumer_running":  status.Running,
			"records_handled":   status.RecordsHandled,
			"records_failed":    status.RecordsFailed,
			"last_record_state": status.LastRecordState,
			"last_activity":     status.LastActivity,
		}

		w.Header().Set("Content-Type", "application/json")
		if err != nil || dbHealth.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(body)
	})

	return &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: mux,
	}
}
