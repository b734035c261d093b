package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	councilengine "coai/contexts/incident-governance/council-engine"
	_ "coai/internal/platform/httpserver/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	council councilengine.Module
}

func New(council councilengine.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		council: council,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	return s.Run(context.Background())
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/council/sessions", s.handleCouncilOpenSession)
	s.mux.HandleFunc("GET /v1/council/sessions", s.handleCouncilListSessions)
	s.mux.HandleFunc("GET /v1/council/sessions/{session_id}", s.handleCouncilGetSession)
	s.mux.HandleFunc("POST /v1/council/sessions/{session_id}/votes", s.handleCouncilSubmitVote)
	s.mux.HandleFunc("GET /v1/council/sessions/{session_id}/votes", s.handleCouncilListVotes)
	s.mux.HandleFunc("GET /v1/council/sessions/{session_id}/tally", s.handleCouncilTally)
	s.mux.HandleFunc("GET /v1/council/sessions/{session_id}/metrics", s.handleCouncilMetrics)
	s.mux.HandleFunc("POST /v1/council/sessions/{session_id}/finalize", s.handleCouncilFinalize)
	s.mux.HandleFunc("POST /v1/council/sessions/{session_id}/complete", s.handleCouncilComplete)
	s.mux.HandleFunc("GET /v1/council/roster", s.handleCouncilRoster)
	s.mux.HandleFunc("GET /v1/council/reviews", s.handleCouncilListReviews)
	if s.council.Events != nil {
		s.mux.HandleFunc("GET /v1/council/stream", s.handleCouncilStream)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
