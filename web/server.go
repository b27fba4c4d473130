// Package web serves the simulator status API, a websocket stream of
// sentence batches and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/landyrev/simple-nmea-simulator/geo"
	"github.com/landyrev/simple-nmea-simulator/route"
	"github.com/landyrev/simple-nmea-simulator/simulator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	wsWriteTimeout  = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Controller is the part of the simulator the web server drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	Reset()
	Status() simulator.Status
	Tracker() *route.Tracker
	Subscribe() *simulator.Subscription
	Unsubscribe(id string)
	Subscribers() int
	AddCallback(func(simulator.Batch))
}

// RouteInfo describes the configured route.
type RouteInfo struct {
	Waypoints    []geo.Coordinate `json:"waypoints"`
	Loop         bool             `json:"loop"`
	LengthMeters float64          `json:"length_m"`
	Duration     string           `json:"duration"`
	SpeedKnots   float64          `json:"speed"`
}

// Message is the envelope of every websocket frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Server exposes a Controller over HTTP.
type Server struct {
	sim      Controller
	log      zerolog.Logger
	metrics  *Metrics
	registry *prometheus.Registry
	upgrader websocket.Upgrader
	router   *mux.Router

	// runCtx parents simulator runs started over HTTP so they outlive the
	// request that started them.
	runCtx context.Context
}

// NewServer builds the router and registers the metrics collectors.
func NewServer(sim Controller, log zerolog.Logger) *Server {
	reg := prometheus.NewRegistry()
	s := &Server{
		sim:      sim,
		log:      log,
		registry: reg,
		metrics:  NewMetrics(reg, sim.Subscribers),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		runCtx: context.Background(),
	}
	sim.AddCallback(s.metrics.Observe)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleGetStatus).Methods(http.MethodGet)
	api.HandleFunc("/route", s.handleGetRoute).Methods(http.MethodGet)
	api.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	api.HandleFunc("/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/ws", s.handleWebSocket)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router = r

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.runCtx = ctx

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Web server started")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info().Msg("Web server stopped")
	return nil
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Status())
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	tracker := s.sim.Tracker()
	rt := tracker.Route()
	writeJSON(w, http.StatusOK, RouteInfo{
		Waypoints:    rt.Waypoints(),
		Loop:         rt.IsLoop(),
		LengthMeters: tracker.TotalLength(),
		Duration:     tracker.Duration().String(),
		SpeedKnots:   tracker.SpeedKnots(),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.sim.Reset()
	writeJSON(w, http.StatusOK, s.sim.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.sim.Start(s.runCtx); err != nil {
		s.log.Warn().Err(err).Msg("Start request failed")
		if errors.Is(err, simulator.ErrSimulatorAlreadyRunning) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.sim.Stop(); err != nil {
		if errors.Is(err, simulator.ErrSimulatorNotRunning) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// handleWebSocket sends the current status, then every batch until the
// client goes away or the simulator run ends.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.sim.Subscribe()
	defer s.sim.Unsubscribe(sub.ID)

	s.metrics.WebSocketClients.Inc()
	defer s.metrics.WebSocketClients.Dec()

	log := s.log.With().Str("client", sub.ID).Str("remote", r.RemoteAddr).Logger()
	log.Info().Msg("WebSocket client connected")
	defer log.Info().Msg("WebSocket client disconnected")

	if err := s.write(conn, Message{Type: "status", Data: s.sim.Status()}); err != nil {
		log.Debug().Err(err).Msg("Error sending status")
		return
	}

	// Incoming frames are ignored; reading only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case batch, ok := <-sub.C:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "simulator stopped")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
				return
			}
			if err := s.write(conn, Message{Type: "nmea_data", Data: batch}); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, msg Message) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
