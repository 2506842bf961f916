package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"promptvault/internal/activity"
	"promptvault/internal/auth"
	"promptvault/internal/config"
	"promptvault/internal/handler"
	"promptvault/internal/metrics"
	"promptvault/internal/repository"
	"promptvault/internal/service"
	"promptvault/internal/service/s3"
)

func connectWithRetry(cfg *config.Config, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	dsn := cfg.Database.GetDSN()

	// Сначала подключаемся к системной базе postgres, которая всегда существует
	pgDSN := strings.Replace(dsn, "dbname="+cfg.Database.Name, "dbname=postgres", 1)
	pgDB, err := sqlx.Connect("postgres", pgDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %v", err)
	}
	defer pgDB.Close()

	// Проверяем, существует ли рабочая база данных
	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", cfg.Database.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %v", err)
	}

	// Если базы нет, создаем её
	if !exists {
		log.Info().Str("database", cfg.Database.Name).Msg("database does not exist, creating")
		_, err = pgDB.Exec(fmt.Sprintf("CREATE DATABASE %s", cfg.Database.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	// Теперь пытаемся подключиться к рабочей базе
	var db *sqlx.DB
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Warn().Err(err).Int("attempt", i+1).Int("max", maxAttempts).Msg("failed to connect to database")
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", i+1).Msg("failed to create migrate instance")
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Warn().Uint("version", version).Msg("found dirty database state, forcing version")
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setupLogger(appConfig.Server.LogLevel)

	// Подключаемся к базе данных
	db, err := connectWithRetry(appConfig, 5, time.Second*5)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database after retries")
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	// Настройка проверки токенов
	authConfig, err := auth.NewConfig(".auth.env")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load auth config")
	}
	auth.Init(authConfig)

	// Инициализация репозиториев
	historyRepo := repository.NewHistoryRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	// Журнал активности пишется асинхронно
	activityLog := activity.NewLogger(activityRepo)

	// Инициализация сервисов
	sequencer := service.NewSequencer(historyRepo)
	versionService := service.NewVersionService(historyRepo, sequencer, activityLog)
	compareService := service.NewCompareService(historyRepo)

	// Выгрузка истории в S3 опциональна
	var exportService *service.ExportService
	if exportConfig, err := s3.NewConfig(".export.env"); err != nil {
		log.Warn().Err(err).Msg("history export disabled")
	} else {
		s3Client, err := s3.NewClient(exportConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create S3 client")
		}
		exportService = service.NewExportService(historyRepo, s3Client, activityLog)
	}

	// Метрики
	m := metrics.New(prometheus.DefaultRegisterer)

	// Инициализация хендлеров
	promptHandler := handler.NewPromptHandler(versionService, m)
	versionHandler := handler.NewVersionHandler(versionService, compareService, exportService, m)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(m.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			log.Debug().Str("method", req.Method).Str("path", req.URL.Path).Msg("incoming request")
			next.ServeHTTP(w, req)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	// HTTP маршруты
	r.Route("/v1", func(r chi.Router) {
		r.Post("/prompts", promptHandler.CreatePrompt)
		r.Get("/prompts", promptHandler.ListPrompts)

		r.Route("/prompts/{uuid}", func(r chi.Router) {
			r.Get("/", promptHandler.GetPrompt)
			r.Put("/", promptHandler.UpdatePrompt)
			r.Delete("/", promptHandler.DeletePrompt)
			r.Get("/versions", versionHandler.ListVersions)
			r.Post("/versions/snapshot", versionHandler.CreateSnapshot)
			r.Get("/versions/compare", versionHandler.Compare)
			r.Post("/versions/export", versionHandler.ExportHistory)
			r.Get("/activity", versionHandler.ListActivity)
		})

		r.Route("/versions/{id}", func(r chi.Router) {
			r.Post("/restore", versionHandler.Restore)
			r.Put("/annotation", versionHandler.UpdateAnnotation)
			r.Delete("/", versionHandler.DeleteVersion)
		})
	})

	// Создаем HTTP сервер
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	// Канал для сигналов завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем HTTP сервер
	go func() {
		log.Info().Str("port", appConfig.Server.Port).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start HTTP server")
		}
	}()

	// Ожидаем сигнал завершения
	<-quit
	log.Info().Msg("shutting down server")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server forced to shutdown")
	}

	// Дописываем журнал активности
	activityLog.Close()

	// Закрываем соединение с БД
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("error closing database connection")
	}

	log.Info().Msg("server exited properly")
}
