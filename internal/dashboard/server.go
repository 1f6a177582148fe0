// Package dashboard serves the read side of the bot over HTTP: health,
// Prometheus metrics, the latest feature snapshot, engine state and a
// websocket push of both.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"futuresbot/internal/interfaces"
	"futuresbot/internal/logger"
	"futuresbot/internal/types"
)

// RowSource is the snapshot the loop publishes.
type RowSource interface {
	Rows(n int) []types.FeatureRow
	Latest() (types.FeatureRow, bool)
	Updated() time.Time
}

// Update is the websocket payload.
type Update struct {
	State   types.EngineState `json:"state"`
	Latest  *types.FeatureRow `json:"latest,omitempty"`
	Updated time.Time         `json:"updated"`
}

type Server struct {
	rows     RowSource
	state    interfaces.StateReader
	push     time.Duration
	upgrader websocket.Upgrader
	srv      *http.Server
}

func New(addr string, rows RowSource, state interfaces.StateReader, push time.Duration) *Server {
	if push <= 0 {
		push = 5 * time.Second
	}
	s := &Server{
		rows:  rows,
		state: state,
		push:  push,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.srv = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	logger.Info(ctx, "Dashboard listening", "addr", ln.Addr().String())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "Dashboard server stopped", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleSnapshot returns the last n rows (all when n is absent).
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	n := 0
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "n must be a non-negative integer", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	rows := s.rows.Rows(n)
	if rows == nil {
		rows = []types.FeatureRow{}
	}
	writeJSON(w, rows)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.state.State())
}

func (s *Server) update() Update {
	u := Update{State: s.state.State(), Updated: s.rows.Updated()}
	if row, ok := s.rows.Latest(); ok {
		u.Latest = &row
	}
	return u
}

// handleWS pushes an Update immediately and then every push interval until
// the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn(r.Context(), "Websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	// reads only to notice the peer closing
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.push)
	defer ticker.Stop()
	for {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(s.update()); err != nil {
			return
		}
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
