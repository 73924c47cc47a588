// Package main implements the entry point for the Wortweg API server,
// which plans adaptive vocabulary lessons, generates exercise tasks with an
// LLM and grades learner answers.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/wortweg/wortweg-api/internal/api"
	apimiddleware "github.com/wortweg/wortweg-api/internal/api/middleware"
	"github.com/wortweg/wortweg-api/internal/catalog"
	"github.com/wortweg/wortweg-api/internal/config"
	"github.com/wortweg/wortweg-api/internal/judge"
	"github.com/wortweg/wortweg-api/internal/platform/gemini"
	"github.com/wortweg/wortweg-api/internal/platform/logger"
	"github.com/wortweg/wortweg-api/internal/platform/openai"
	"github.com/wortweg/wortweg-api/internal/platform/postgres"
	"github.com/wortweg/wortweg-api/internal/service/evaluation"
	"github.com/wortweg/wortweg-api/internal/service/lesson"
	"github.com/wortweg/wortweg-api/internal/service/scheduler"
	"github.com/wortweg/wortweg-api/internal/service/taskgen"
	"github.com/wortweg/wortweg-api/migrations"
)

const (
	dbPingTimeout   = 5 * time.Second
	startupTimeout  = 2 * time.Minute
	shutdownTimeout = 10 * time.Second
	judgeRetries    = 3
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// run initializes configuration, logging, the database and all services,
// then serves HTTP until interrupted.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("setting up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"language", cfg.Catalog.Language)

	db, err := openDatabase(cfg.Database.URL)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	if err := applyMigrations(db); err != nil {
		return err
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	// Stores
	userStore := postgres.NewPostgresUserStore(db, appLogger)
	wordStore := postgres.NewPostgresWordStore(db, appLogger)
	masteryStore := postgres.NewPostgresMasteryStore(db, appLogger)
	templateStore := postgres.NewPostgresTemplateStore(db, appLogger)
	taskStore := postgres.NewPostgresTaskStore(db, appLogger)
	lessonStore := postgres.NewPostgresLessonStore(db, appLogger)

	// Reference data
	if err := catalog.Sync(startupCtx, wordStore, cfg.Catalog.CorpusPath, cfg.Catalog.Language, appLogger); err != nil {
		return fmt.Errorf("syncing word catalog: %w", err)
	}
	if err := seedTemplates(startupCtx, templateStore, cfg.Catalog.Language); err != nil {
		return fmt.Errorf("seeding templates: %w", err)
	}

	// LLM integrations
	generator, err := gemini.NewGenerator(startupCtx, appLogger, cfg.LLM)
	if err != nil {
		return fmt.Errorf("creating content generator: %w", err)
	}
	answerJudge := newAnswerJudge(cfg.LLM, appLogger)

	// Services
	callTimeout := time.Duration(cfg.LLM.RequestTimeoutSeconds) * time.Second
	planner := scheduler.New(masteryStore, scheduler.Params{
		ScoreThreshold: cfg.Scheduler.ScoreThreshold,
		WordsPerLesson: cfg.Scheduler.WordsPerLesson,
		MaxNewWords:    cfg.Scheduler.MaxNewWords,
		ReviewsPerNew:  cfg.Scheduler.ReviewsPerNew,
	}, appLogger)
	taskGen := taskgen.New(db, taskStore, templateStore, generator, nil, callTimeout, appLogger)
	engine := evaluation.NewEngine(answerJudge, cfg.Scheduler.FourChoicePenalty, appLogger)
	lessonService := lesson.NewService(
		db, userStore, wordStore, lessonStore, masteryStore, taskStore,
		planner, taskGen, engine, cfg.Catalog.Language, appLogger)

	router := newRouter(api.NewUserHandler(userStore), api.NewLessonHandler(lessonService))

	return serve(router, cfg.Server.Port)
}

// openDatabase connects to Postgres through the pgx stdlib driver and
// verifies the connection.
func openDatabase(url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// applyMigrations brings the schema up to date from the embedded migration
// files.
func applyMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations.Files)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// newAnswerJudge picks the free-text grading backend. Without an OpenAI key
// the judge reports itself unavailable and grading falls back to exact
// matching.
func newAnswerJudge(cfg config.LLMConfig, log *slog.Logger) judge.Judge {
	if cfg.OpenAIAPIKey == "" {
		slog.Warn("no OpenAI API key configured, free-text answers are graded by exact match")
		return unavailableJudge{}
	}
	return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, judgeRetries, log)
}

// unavailableJudge always reports the judging backend as unavailable.
type unavailableJudge struct{}

func (unavailableJudge) Grade(ctx context.Context, sub judge.Submission) (map[uuid.UUID]int, error) {
	return nil, judge.ErrJudgeUnavailable
}

// newRouter assembles the HTTP routes and middleware.
func newRouter(userHandler *api.UserHandler, lessonHandler *api.LessonHandler) *chi.Mux {
	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(apimiddleware.TraceID)
	router.Use(chimiddleware.Recoverer)

	router.Route("/api", func(r chi.Router) {
		r.Post("/users", userHandler.CreateUser)
		r.Route("/users/{userID}/lessons", func(r chi.Router) {
			r.Post("/", lessonHandler.StartLesson)
			r.Get("/next", lessonHandler.GetNextTask)
			r.Post("/{lessonID}/submit", lessonHandler.SubmitAnswer)
			r.Post("/{lessonID}/finish", lessonHandler.FinishLesson)
		})
	})

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return router
}

// serve runs the HTTP server until SIGINT or SIGTERM, then drains in-flight
// requests.
func serve(handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
