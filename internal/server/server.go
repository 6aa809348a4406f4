package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/SteelMorgan/serilog-dashboard/internal/config"
	"github.com/SteelMorgan/serilog-dashboard/internal/handlers"
	"github.com/SteelMorgan/serilog-dashboard/internal/logstore"
	"github.com/SteelMorgan/serilog-dashboard/internal/metrics"
	"github.com/SteelMorgan/serilog-dashboard/internal/normalizer"
	"github.com/SteelMorgan/serilog-dashboard/internal/tenant"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	searchFailedMessage = "An error occurred while searching logs."
	ingestFailedMessage = "An error occurred while storing log events."

	defaultMaxBodyBytes = 10 << 20
)

// Server exposes ingestion and search over HTTP
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	router     *mux.Router
	metrics    *metrics.Metrics
	maxBody    int64

	rawEventsHandler *handlers.RawEventsHandler
	logQueryHandler  *handlers.LogQueryHandler
}

// NewServer wires handlers for store. gatherer backs /metrics and may be nil.
func NewServer(cfg *config.Config, store logstore.Store, resolver handlers.TenantResolver, m *metrics.Metrics, gatherer prometheus.Gatherer) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("log store is required")
	}
	if resolver == nil {
		resolver = tenant.NewResolver(nil, nil)
	}
	if m == nil {
		m = metrics.New(nil)
	}

	s := &Server{
		cfg:              cfg,
		metrics:          m,
		maxBody:          cfg.MaxBodyBytes,
		rawEventsHandler: handlers.NewRawEventsHandler(store, resolver, normalizer.NewEventNormalizer(), m, cfg.IngestBatchSize),
		logQueryHandler:  handlers.NewLogQueryHandler(store, m),
	}

	if s.maxBody <= 0 {
		s.maxBody = defaultMaxBodyBytes
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/events/raw", s.handleRawEvents).Methods(http.MethodPost)
	router.HandleFunc("/api/log-query/search", s.handleSearch).Methods(http.MethodPost)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	s.router = router

	return s, nil
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().Int("port", s.cfg.HTTPPort).Msg("HTTP server started")

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	}
}

// Stop shuts the HTTP server down gracefully
func (s *Server) Stop() error {
	log.Info().Msg("HTTP server stopping...")

	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	log.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) handleRawEvents(w http.ResponseWriter, r *http.Request) {
	status := http.StatusNoContent
	defer func() {
		s.metrics.IngestRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
			writeError(w, status, fmt.Sprintf("Request body exceeds %d bytes.", tooLarge.Limit))
			return
		}
		status = http.StatusBadRequest
		writeError(w, status, "Failed to read request body.")
		return
	}

	_, err = s.rawEventsHandler.Ingest(r.Context(), handlers.IngestRequest{
		ContentType: r.Header.Get("Content-Type"),
		Body:        body,
		Credentials: tenant.CredentialsFromRequest(r),
	})
	if err != nil {
		var msg string
		status, msg = ingestError(err)
		writeError(w, status, msg)
		return
	}

	w.WriteHeader(status)
}

// ingestError maps ingestion failures to a status and a client-facing message
func ingestError(err error) (int, string) {
	switch {
	case errors.Is(err, handlers.ErrUnsupportedContentType):
		return http.StatusBadRequest, "Unsupported content type."
	case errors.Is(err, handlers.ErrEmptyBody):
		return http.StatusBadRequest, "Request body is empty."
	case errors.Is(err, handlers.ErrNoValidEvents):
		return http.StatusBadRequest, "No valid log events found."
	case errors.Is(err, tenant.ErrUnresolved),
		errors.Is(err, tenant.ErrUnknownAPIKey),
		errors.Is(err, tenant.ErrInvalidHeaders):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, ingestFailedMessage
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	defer func() {
		s.metrics.QueryRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	}()

	var req handlers.LogQueryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err := dec.Decode(&req); err != nil {
		status = http.StatusBadRequest
		writeError(w, status, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	resp, err := s.logQueryHandler.Search(r.Context(), req)
	if err != nil {
		var valErr *handlers.ValidationError
		if errors.As(err, &valErr) {
			status = http.StatusBadRequest
			writeJSON(w, status, valErr)
			return
		}
		status = http.StatusInternalServerError
		writeError(w, status, searchFailedMessage)
		return
	}

	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
