// Package adminhttp serves a small read-only operator surface over a
// broker's live registry: a liveness probe, a stats dump, and a
// live SSE feed of registration events. It carries no control-plane
// authority — it cannot register or evict a subscriber — only observe.
package adminhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tmq/pkg/broker"
	"github.com/aussiebroadwan/tmq/pkg/httpx"
	"github.com/aussiebroadwan/tmq/pkg/pubsub"
	"github.com/aussiebroadwan/tmq/pkg/slogx"
)

// Server is the admin HTTP surface.
type Server struct {
	server  *http.Server
	logger  *slog.Logger
	started time.Time

	registry *broker.Registry
	events   *pubsub.Broker[broker.Event]
}

// NewServer creates an admin server bound to addr, reporting stats from
// registry and streaming its registration events over SSE. registry may
// be nil for a peer process that runs no broker role; /stats then
// reports an empty pattern list and /events never emits. rateLimit/
// rateBurst configure the per-client-IP token bucket guarding every
// route; see internal/config's AdminConfig.
func NewServer(addr string, logger *slog.Logger, registry *broker.Registry, rateLimit, rateBurst int) *Server {
	s := &Server{
		logger:   logger,
		started:  time.Now(),
		registry: registry,
		events:   pubsub.New[broker.Event](pubsub.WithBufferSize[broker.Event](64)),
	}

	if registry != nil {
		registry.SetEventSink(s.events.Publish)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/events", s.handleEvents)

	handler := httpx.Chain(
		httpx.RateLimit(httpx.RateLimitConfig{Rate: rateLimit, Burst: rateBurst}),
		slogx.Middleware(logger, "/healthz"),
		httpx.Recoverer,
	)(mux)

	s.server = &http.Server{
		Addr:    addr,
		Handler: handler,
	}
	return s
}

// Run starts the admin server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin HTTP server started", slog.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	_ = httpx.JSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).String(),
	})
}

type patternStat struct {
	Pattern     string `json:"pattern"`
	Subscribers int    `json:"subscribers"`
	Publishers  int    `json:"publishers"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		_ = httpx.JSON(w, http.StatusOK, map[string]any{"patterns": []patternStat{}})
		return
	}

	stats := s.registry.Stats()
	out := make([]patternStat, 0, len(stats))
	for _, st := range stats {
		out = append(out, patternStat{
			Pattern:     st.Pattern.Key(),
			Subscribers: st.SubscriberCount,
			Publishers:  st.PublisherCount,
		})
	}
	_ = httpx.JSON(w, http.StatusOK, map[string]any{"patterns": out})
}

// handleEvents streams broker.Event values as they happen over SSE,
// until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	stream := httpx.NewSSEStream(w)
	if stream == nil {
		httpx.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	events := s.events.Subscribe(ctx)

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := stream.Send("registration", ev); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := stream.SendHeartbeat(); err != nil {
				return
			}
		}
	}
}
