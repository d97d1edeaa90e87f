package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/questcap/internal/capture"
	"github.com/bryanchriswhite/questcap/internal/device"
	"github.com/bryanchriswhite/questcap/internal/logger"
	"github.com/bryanchriswhite/questcap/internal/output"
	"github.com/bryanchriswhite/questcap/internal/preview"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// StatsSource reports capture loop counters. *capture.Loop implements it.
type StatsSource interface {
	Stats() capture.Stats
}

// DeviceSource answers device info queries. *device.Session implements it.
type DeviceSource interface {
	QueryInfo(ctx context.Context) (*device.Info, error)
}

// Options wires the server to the running capture.
type Options struct {
	Control *capture.Control
	Stats   StatsSource
	Device  DeviceSource
	Stream  *output.MJPEGOutput
	Target  string
}

// StatusResponse is the body of GET /api/status and each websocket message.
type StatusResponse struct {
	Preview preview.Status `json:"preview"`
	Stats   capture.Stats  `json:"stats"`
	Target  string         `json:"target"`
	Viewers int            `json:"viewers"`
}

// ControlRequest is the body of PUT /api/control. Omitted fields are left unchanged.
type ControlRequest struct {
	FPS   *float64 `json:"fps,omitempty"`
	Scale *float64 `json:"scale,omitempty"`
}

// ControlResponse reports the settings in effect after a control change.
type ControlResponse struct {
	FPS    float64 `json:"fps"`
	Scale  float64 `json:"scale"`
	Active bool    `json:"active"`
}

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	opts     Options
	upgrader websocket.Upgrader
	http     *http.Server

	mu          sync.RWMutex
	latest      preview.Status
	subscribers map[chan preview.Status]struct{}
	closed      bool
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	s := &Server{
		router: mux.NewRouter(),
		opts:   opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // viewer may be opened from another host on the LAN
			},
		},
		latest:      preview.Status{Text: preview.InitializingText, Active: true},
		subscribers: make(map[chan preview.Status]struct{}),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Capture state and control
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/status/ws", s.handleStatusStream)
	api.HandleFunc("/control", s.handleControl).Methods("PUT")
	api.HandleFunc("/stop", s.handleStop).Methods("POST")

	// Device
	api.HandleFunc("/device", s.handleDevice).Methods("GET")

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// MJPEG stream
	if s.opts.Stream != nil {
		api.HandleFunc("/stream/stats", s.opts.Stream.GetStatsHandler()).Methods("GET")
		s.router.HandleFunc("/stream", s.opts.Stream.GetHTTPHandler()).Methods("GET")
		s.router.HandleFunc("/snapshot.jpg", s.opts.Stream.GetSnapshotHandler()).Methods("GET")
	}

	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

// Handler returns the router wrapped with CORS headers.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves on port until Shutdown is called.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.http = srv
	s.mu.Unlock()

	logger.WithComponent("api").Info().Str("url", fmt.Sprintf("http://localhost%s", addr)).Msg("Starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server and closes status subscribers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeSubscribers()

	s.mu.Lock()
	s.closed = true
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// PublishStatus records the latest preview status and pushes it to
// websocket subscribers. Slow subscribers miss updates.
func (s *Server) PublishStatus(st preview.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = st
	for ch := range s.subscribers {
		select {
		case ch <- st:
		default:
		}
	}
}

func (s *Server) subscribe() chan preview.Status {
	ch := make(chan preview.Status, 4)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers[ch] = struct{}{}
	return ch
}

func (s *Server) unsubscribe(ch chan preview.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Server) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Server) status(st preview.Status) StatusResponse {
	resp := StatusResponse{Preview: st, Target: s.opts.Target}
	if s.opts.Stats != nil {
		resp.Stats = s.opts.Stats.Stats()
	}
	if s.opts.Stream != nil {
		resp.Viewers = s.opts.Stream.ClientCount()
	}
	return resp
}

// HTTP Handlers

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	st := s.latest
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, s.status(st))
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	updates := s.subscribe()
	defer s.unsubscribe(updates)

	// Drain client frames so close messages are noticed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.mu.RLock()
	initial := s.latest
	s.mu.RUnlock()
	if err := conn.WriteJSON(s.status(initial)); err != nil {
		log.Debug().Err(err).Msg("WebSocket write error")
		return
	}

	for {
		select {
		case <-closed:
			return
		case st, ok := <-updates:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream stopped"))
				return
			}
			if err := conn.WriteJSON(s.status(st)); err != nil {
				log.Debug().Err(err).Msg("WebSocket write error")
				return
			}
		}
	}
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var req ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FPS != nil && !validSetting(*req.FPS, capture.MaxFPS) {
		http.Error(w, fmt.Sprintf("fps must be a positive number up to %g", capture.MaxFPS), http.StatusBadRequest)
		return
	}
	if req.Scale != nil && !validSetting(*req.Scale, capture.MaxScale) {
		http.Error(w, fmt.Sprintf("scale must be a positive number up to %g", capture.MaxScale), http.StatusBadRequest)
		return
	}

	ctrl := s.opts.Control
	if req.FPS != nil {
		ctrl.SetFPS(*req.FPS)
	}
	if req.Scale != nil {
		ctrl.SetScale(*req.Scale)
	}

	fps, scale := ctrl.Settings()
	logger.WithComponent("api").Info().Float64("fps", fps).Float64("scale", scale).Msg("Capture settings changed")
	writeJSON(w, http.StatusOK, ControlResponse{FPS: fps, Scale: scale, Active: ctrl.Active()})
}

// validSetting is false for NaN.
func validSetting(v, max float64) bool {
	return v > 0 && v <= max
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	logger.WithComponent("api").Info().Str("remote", r.RemoteAddr).Msg("Stop requested")
	s.opts.Control.Stop()

	fps, scale := s.opts.Control.Settings()
	writeJSON(w, http.StatusOK, ControlResponse{FPS: fps, Scale: scale, Active: false})
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	if s.opts.Device == nil {
		http.Error(w, "no device", http.StatusServiceUnavailable)
		return
	}
	info, err := s.opts.Device.QueryInfo(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"version":   Version,
		"capturing": s.opts.Control.Active(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(viewerHTML))
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
