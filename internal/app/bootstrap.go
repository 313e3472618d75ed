// Package app wires the whole service into an http.Handler so the same
// runtime serves both the standalone binary and the serverless entrypoint.
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"frota-api/internal/auth"
	"frota-api/internal/cnpj"
	"frota-api/internal/db"
	"frota-api/internal/fipe"
	"frota-api/internal/maintenance"
	"frota-api/internal/observability"
	"frota-api/internal/placas"
	"frota-api/internal/veiculo"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Logger  *observability.Logger
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	// The upstream plate-provider credentials have no fallback: boot fails
	// rather than shipping a default secret.
	placasEmail, err := mustEnv("PLACAS_EMAIL")
	if err != nil {
		return nil, err
	}
	placasPassword, err := mustEnv("PLACAS_PASSWORD")
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	authRepo := auth.NewRepository(database)
	authService := auth.NewService(authRepo, jwtSecret)
	authService.WithSecurityConfig(
		envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		envMinutesOrDefault("LOGIN_LOCK_MINUTES", 15),
		envHoursOrDefault("ACCESS_TOKEN_TTL_HOURS", 24),
	)
	authHandler := auth.NewHandler(authService)

	if err := authService.BootstrapFromEnv(context.Background(), os.Getenv("ADMIN_USUARIO"), os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_SENHA")); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	tokenCache := placas.NewTokenCache()
	placasClient := placas.NewClient(
		envOrDefault("PLACAS_BASE_URL", "https://placas.app.br"),
		placasEmail,
		placasPassword,
		tokenCache,
		logger,
	)
	placasHandler := placas.NewHandler(placasClient)

	cnpjHandler := cnpj.NewHandler(cnpj.NewClient(
		envOrDefault("RECEITAWS_BASE_URL", "https://www.receitaws.com.br/v1"),
	))
	veiculoHandler := veiculo.NewHandler()
	fipeHandler := fipe.NewHandler(fipe.NewClient(
		envOrDefault("FIPE_BASE_URL", "https://fipe.parallelum.com.br/api/v2"),
		os.Getenv("FIPE_SUBSCRIPTION_TOKEN"),
	))

	cleanupHandler := maintenance.NewCleanupHandler(
		authRepo,
		logger,
		os.Getenv("CRON_SECRET"),
		envDaysOrDefault("AUTH_SESSAO_RETENTION_DAYS", 14),
		envDaysOrDefault("AUTH_LOGIN_ATTEMPT_RETENTION_DAYS", 30),
		envIntOrDefault("AUTH_CLEANUP_BATCH_SIZE", 500),
	)

	loginLimiter := auth.NewLoginRateLimiter(
		envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
	)

	mux := http.NewServeMux()
	mux.Handle("POST /login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.Handle("GET /auth/verificar", auth.Middleware(jwtSecret, http.HandlerFunc(authHandler.Verificar)))
	mux.HandleFunc("GET /cnpj/{cnpj}", cnpjHandler.Consultar)
	mux.HandleFunc("GET /consulta-veiculo/{placa}", veiculoHandler.Consultar)
	mux.HandleFunc("GET /consulta-placa/{placa}", placasHandler.Consultar)
	mux.HandleFunc("GET /fipe/references", fipeHandler.References)
	mux.HandleFunc("GET /fipe/{tipo}/brands", fipeHandler.Brands)
	mux.HandleFunc("GET /fipe/{tipo}/brands/{brand}/models", fipeHandler.Models)
	mux.HandleFunc("GET /fipe/{tipo}/brands/{brand}/models/{model}/years", fipeHandler.Years)
	mux.HandleFunc("GET /fipe/{tipo}/brands/{brand}/models/{model}/years/{year}", fipeHandler.Price)
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Logger:  logger,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
