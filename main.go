package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chetan-code/taskboard/internal/apiclient"
	"github.com/chetan-code/taskboard/internal/config"
	"github.com/chetan-code/taskboard/internal/handler"
	"github.com/chetan-code/taskboard/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"
)

func loadConfig() *config.Config {
	//load env variables, a missing .env is fine
	if err := config.LoadEnvFile(".env"); err != nil {
		slog.Error("environment_var_load_failure", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initChallengeStore(cfg *config.Config) (repository.ChallengeStore, func()) {
	if cfg.ChallengeDBDriver == "" {
		slog.Info("challenge_store_memory", "ttl", cfg.ChallengeTTL.String())
		return repository.NewMemoryChallengeStore(cfg.ChallengeTTL), func() {}
	}

	repo, err := repository.OpenChallengeRepo(cfg.ChallengeDBDriver, cfg.ChallengeDBURL, cfg.ChallengeTTL)
	if err != nil {
		slog.Error("database_intialization_failed", "driver", cfg.ChallengeDBDriver, "error", err)
		os.Exit(1)
	}
	slog.Info("database_intialisation_success", "driver", cfg.ChallengeDBDriver)
	return repo, func() { repo.Close() }
}

// statusRecorder remembers the status code written by the handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func loggerMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		//logging completion of a request
		slog.Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"ip", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
			//imp : how long does it take a req to complete
			"duration", time.Since(start).String(),
		)
	})
}

func routing(h *handler.TaskHandler, v *handler.Verifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggerMW)
	r.Use(middleware.Recoverer)
	r.Mount("/", h.Routes(v))
	return r
}

func startServer(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server_start_success", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		slog.Info("server_shutdown")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func setupSlog(level slog.Level) {
	//Json handler that writes to standard out
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: true, //adds file name and line number
	})

	//Intialise new logger and set it as default for the server
	logger := slog.New(handler)
	slog.SetDefault(logger)
}

func main() {

	//structure logging, level is adjusted once config is read
	setupSlog(slog.LevelInfo)

	cfg := loadConfig()
	setupSlog(cfg.LogLevel)

	verifier, err := handler.NewVerifier(cfg.Secret)
	if err != nil {
		slog.Error("verifier_creation_failed", "error", err)
		os.Exit(1)
	}

	challenges, closeStore := initChallengeStore(cfg)
	defer closeStore()

	h, err := handler.NewTaskHandler(handler.Options{
		API:           apiclient.New(cfg.APIURL, cfg.APITimeout),
		Challenges:    challenges,
		Store:         handler.NewSessionStore([]byte(cfg.SessionKey), cfg.CookieSecure),
		SecureCookies: cfg.CookieSecure,
	})
	if err != nil {
		slog.Error("handler_creation_failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := startServer(ctx, cfg.ListenAddr, routing(h, verifier)); err != nil {
		slog.Error("server_start_failed", "error", err)
		os.Exit(1)
	}
}
