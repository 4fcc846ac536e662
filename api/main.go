package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/soak47/job-market-tracker/internal/config"
	"github.com/soak47/job-market-tracker/internal/logger"
	"github.com/soak47/job-market-tracker/internal/models"
	"github.com/soak47/job-market-tracker/internal/store"
)

// jobReader is the read side of the store.
type jobReader interface {
	LoadJobs(ctx context.Context, q models.JobQuery) ([]models.JobRecord, error)
	LoadSkillHits(ctx context.Context) ([]models.SkillHit, error)
	Ping(ctx context.Context) error
}

func main() {
	log := logger.New("api")
	cfg, err := config.LoadAPI()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	st, err := store.Open(ctx, cfg.Common, log)
	if err != nil {
		log.Error("open store", slog.String("backend", cfg.StoreBackend), slog.Any("err", err))
		os.Exit(1)
	}
	defer st.Close()

	srv := newServer(log, cfg, st)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		log.Info("api server starting", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

type server struct {
	log      *slog.Logger
	cfg      *config.API
	store    jobReader
	validate *validator.Validate
}

func newServer(log *slog.Logger, cfg *config.API, st jobReader) *server {
	return &server{log: log, cfg: cfg, store: st, validate: validator.New()}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/filters", s.handleFilters)
	r.Get("/jobs", s.handleJobs)
	r.Get("/stats", s.handleStats)
	r.Get("/stats/skills", s.handleSkills)
	r.Get("/stats/salaries", s.handleSalaries)
	r.Get("/stats/states", s.handleStates)
	r.Get("/stats/states/weekly", s.handleWeekly)
	r.Get("/stats/cities/median-salary", s.handleCityMedians)
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
