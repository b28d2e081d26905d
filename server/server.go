package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"showmerge/config"
	"showmerge/logger"
	"showmerge/model"
	"showmerge/repository"

	"github.com/gorilla/mux"
)

const shutdownTimeout = 30 * time.Second

// Runner executes merge runs.
type Runner interface {
	Run(ctx context.Context, runID string, req model.MergeRequest) (*model.MergeResult, error)
}

// Server is the HTTP front end of the merge pipeline.
type Server struct {
	cfg    *config.Config
	runner Runner
	repo   repository.MergeRepository
	hub    *EventHub
	router *mux.Router

	runCtx    context.Context // Parent of background runs
	cancelRun context.CancelFunc
	runs      sync.WaitGroup
}

// New creates a Server. The hub and the repository must be the ones the
// runner reports its events to.
func New(cfg *config.Config, runner Runner, repo repository.MergeRepository, hub *EventHub) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		runner:    runner,
		repo:      repo,
		hub:       hub,
		runCtx:    ctx,
		cancelRun: cancel,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/healthz", s.HealthHandler).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.AuthMiddleware)
	api.HandleFunc("/merge", s.MergeHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/merges", s.SubmitMergeHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/merges", s.ListMergesHandler).Methods(http.MethodGet)
	api.HandleFunc("/merges/{id}", s.GetMergeHandler).Methods(http.MethodGet)
	api.HandleFunc("/merges/{id}/events", s.EventsHandler).Methods(http.MethodGet)

	return router
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until SIGINT or SIGTERM, then stops accepting
// requests, cancels background runs and waits for their cleanup.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              s.cfg.ServerAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", logger.String("addr", s.cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-stop:
	}
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)

	s.Wait()
	logger.Info("server stopped")
	return err
}

// Wait cancels background runs and blocks until every one has cleaned up.
func (s *Server) Wait() {
	s.cancelRun()
	s.runs.Wait()
}
