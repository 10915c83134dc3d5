// Package dashboard serves aggregate views of the observation store over HTTP.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/network-event-observer/internal/config"
	"github.com/invisible-tech/network-event-observer/internal/store"
	"github.com/invisible-tech/network-event-observer/internal/version"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

var snapshotRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "neo_dashboard_snapshots_total",
		Help: "Dashboard snapshot lookups, by cache result",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(snapshotRequests)
}

// Server is the HTTP server for the dashboard API.
type Server struct {
	cfg        config.DashboardConfig
	cache      *snapshotCache
	log        *logrus.Logger
	httpServer *http.Server
}

// New creates a new HTTP server over the given stats source.
func New(cfg config.DashboardConfig, src StatsSource, log *logrus.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		cfg:   cfg,
		cache: newSnapshotCache(src, cfg.RefreshInterval, maxRecentLimit),
		log:   log,
	}
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/stats/event-types", s.handleEventTypes)
	mux.HandleFunc("/api/v1/stats/risk-levels", s.handleRiskLevels)
	mux.HandleFunc("/api/v1/stats/protocols", s.handleProtocols)
	mux.HandleFunc("/api/v1/stats/timeline", s.handleTimeline)
	mux.HandleFunc("/api/v1/stats/risk-trend", s.handleRiskTrend)
	mux.HandleFunc("/api/v1/events/recent", s.handleRecent)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Invalidate drops the cached snapshot. Wire it to a DBWatcher.
func (s *Server) Invalidate() {
	s.cache.Invalidate()
}

// ListenAndServe starts the HTTP server. It blocks until the server is closed.
func (s *Server) ListenAndServe() error {
	s.log.WithField("addr", s.cfg.HTTPAddr).Info("Dashboard listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "healthy",
		"version": version.Version,
	})
}

type statsView struct {
	*store.Stats
}

func (v statsView) recent(limit int) []store.RecentEvent {
	if limit > len(v.Recent) {
		limit = len(v.Recent)
	}
	return v.Recent[:limit]
}

// snapshot loads the cached stats, writing the error response itself on failure.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (statsView, bool) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return statsView{}, false
	}
	st, err := s.cache.Get(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to load dashboard stats")
		http.Error(w, "Stats unavailable", http.StatusInternalServerError)
		return statsView{}, false
	}
	return statsView{st}, true
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	v, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	out := *v.Stats
	out.Recent = v.recent(defaultRecentLimit)
	writeJSON(w, out)
}

func (s *Server) handleEventTypes(w http.ResponseWriter, r *http.Request) {
	if v, ok := s.snapshot(w, r); ok {
		writeJSON(w, v.EventTypes)
	}
}

func (s *Server) handleRiskLevels(w http.ResponseWriter, r *http.Request) {
	if v, ok := s.snapshot(w, r); ok {
		writeJSON(w, v.RiskLevels)
	}
}

func (s *Server) handleProtocols(w http.ResponseWriter, r *http.Request) {
	if v, ok := s.snapshot(w, r); ok {
		writeJSON(w, v.Protocols)
	}
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if v, ok := s.snapshot(w, r); ok {
		writeJSON(w, v.Timeline)
	}
}

func (s *Server) handleRiskTrend(w http.ResponseWriter, r *http.Request) {
	if v, ok := s.snapshot(w, r); ok {
		writeJSON(w, v.RiskTrend)
	}
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if q := r.URL.Query().Get("limit"); q != "" && r.Method == http.MethodGet {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	if v, ok := s.snapshot(w, r); ok {
		writeJSON(w, v.recent(limit))
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
