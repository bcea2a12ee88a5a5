package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/triage-ai/palisade/services/integration_engine/internal/api"
	"github.com/triage-ai/palisade/services/integration_engine/internal/auth"
	"github.com/triage-ai/palisade/services/integration_engine/internal/clone"
	"github.com/triage-ai/palisade/services/integration_engine/internal/mcptools"
	"github.com/triage-ai/palisade/services/integration_engine/internal/remote"
	"github.com/triage-ai/palisade/services/integration_engine/internal/schema"
	"github.com/triage-ai/palisade/services/integration_engine/internal/store"
	"github.com/triage-ai/palisade/services/integration_engine/internal/telemetry"
	"github.com/triage-ai/palisade/services/integration_engine/internal/tools"
	"github.com/triage-ai/palisade/services/integration_engine/internal/trigger"
)

const serviceVersion = "0.1.0"

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Logger
	logger := mustBuildLogger(envOrDefault("INTEGRATION_ENGINE_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("INTEGRATION_ENGINE_PORT", "8080")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	webhookBaseURL := os.Getenv("WEBHOOK_BASE_URL")
	staticWorkspaceID := os.Getenv("STATIC_WORKSPACE_ID")
	pipedreamTimeoutMs := envOrDefaultInt("PIPEDREAM_TIMEOUT_MS", 30000)
	componentCacheTTL := envOrDefaultInt("COMPONENT_CACHE_TTL_S", 300)
	authCacheTTL := envOrDefaultInt("AUTH_CACHE_TTL_S", 30)
	transitiveReload := envOrDefaultBool("TRANSITIVE_RELOAD", false)

	if postgresDSN == "" {
		logger.Fatal("POSTGRES_DSN is required")
	}
	if webhookBaseURL == "" {
		logger.Warn("no WEBHOOK_BASE_URL set, integration triggers will deploy with relative webhook URLs")
	}

	logger.Info("starting integration engine",
		zap.String("http_port", httpPort),
		zap.Int("pipedream_timeout_ms", pipedreamTimeoutMs),
		zap.Int("component_cache_ttl_s", componentCacheTTL),
		zap.Bool("transitive_reload", transitiveReload),
	)

	// Postgres pool
	pool, err := pgxpool.New(context.Background(), postgresDSN)
	if err != nil {
		logger.Fatal("failed to open postgres", zap.Error(err))
	}
	defer pool.Close()
	pgStore := store.NewStore(pool)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := pgStore.Ping(pingCtx); err != nil {
		cancelPing()
		logger.Fatal("failed to ping postgres", zap.Error(err))
	}
	cancelPing()
	logger.Info("postgres connected")

	// Telemetry: ClickHouse or LogWriter fallback
	var writer telemetry.EventWriter
	if clickhouseDSN != "" {
		chWriter, err := telemetry.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer", zap.Error(err))
			writer = telemetry.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = telemetry.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()
	publisher := telemetry.NewPublisher(writer, nil)

	// ClickHouse reader (for execution history endpoints)
	var executions api.ExecutionReader
	if clickhouseDSN != "" {
		reader, err := telemetry.NewReader(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse reader connection failed", zap.Error(err))
		} else {
			defer func() { _ = reader.Close() }()
			executions = reader
			logger.Info("clickhouse reader connected")
		}
	}

	// Component registry
	registry := remote.NewCachedClient(
		remote.NewPipedreamClient(remote.PipedreamConfig{
			BaseURL:      os.Getenv("PIPEDREAM_BASE_URL"),
			ProjectID:    os.Getenv("PIPEDREAM_PROJECT_ID"),
			Environment:  envOrDefault("PIPEDREAM_ENVIRONMENT", "development"),
			ClientID:     os.Getenv("PIPEDREAM_CLIENT_ID"),
			ClientSecret: os.Getenv("PIPEDREAM_CLIENT_SECRET"),
			Timeout:      time.Duration(pipedreamTimeoutMs) * time.Millisecond,
			Logger:       logger,
		}),
		time.Duration(componentCacheTTL)*time.Second,
		logger,
	)

	// Configuration schema and validation
	defaults := map[string]any{}
	if name := os.Getenv("DEFAULT_BOT_NAME"); name != "" {
		defaults["username"] = name
	}
	if icon := os.Getenv("DEFAULT_BOT_ICON_URL"); icon != "" {
		defaults["icon_url"] = icon
	}
	assembler := schema.NewAssembler(registry, defaults, logger)
	var validatorOpts []schema.ValidatorOption
	if transitiveReload {
		validatorOpts = append(validatorOpts, schema.WithTransitiveReload())
	}
	validator := schema.NewValidator(registry, assembler, logger, validatorOpts...)

	// Tools
	mcpSource := mcptools.NewSource("integration-engine", serviceVersion,
		time.Duration(pipedreamTimeoutMs)*time.Millisecond, logger)
	resolver := tools.NewResolver(pgStore, tools.NewSources(registry, mcpSource), publisher, logger)

	// Triggers
	builder := trigger.NewBuilder(nil)
	triggers := trigger.NewService(trigger.ServiceConfig{
		Repository:     pgStore,
		Integrations:   pgStore,
		Validator:      validator,
		Deployer:       registry,
		Builder:        builder,
		WebhookBaseURL: webhookBaseURL,
		Logger:         logger,
	})

	// Auth: Postgres-backed keys, or a fixed workspace for local development
	var authenticator auth.Authenticator
	if staticWorkspaceID != "" {
		authenticator = auth.NewStaticAuthenticator(staticWorkspaceID)
		logger.Warn("STATIC_WORKSPACE_ID set, every wsk_ key maps to one workspace",
			zap.String("workspace_id", staticWorkspaceID))
	} else {
		authenticator = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			Store:    pgStore,
			CacheTTL: time.Duration(authCacheTTL) * time.Second,
			Logger:   logger,
		})
	}

	deps := &api.Dependencies{
		Integrations: pgStore,
		Assembler:    assembler,
		Validator:    validator,
		Resolver:     resolver,
		Triggers:     triggers,
		Cloner:       clone.NewCloner(pgStore, logger),
		Stripper:     builder,
		Executions:   executions,
		Auth:         authenticator,
		Health:       pgStore,
		Logger:       logger,
	}
	httpServer := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("integration engine stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
