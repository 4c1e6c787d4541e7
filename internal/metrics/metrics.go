// Package metrics exposes Prometheus-compatible counters for downloads.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kilimcininkoroglu/earbound/internal/supervisor"
)

// durationBounds are the upper bounds, in seconds, of the duration
// histogram. Downloads of whole playlists routinely take many minutes.
var durationBounds = []float64{5, 30, 60, 300, 900, 3600}

// Metrics holds all download metrics
type Metrics struct {
	// Counters
	started   int64
	fallbacks int64
	outcomes  [4]int64 // indexed by supervisor.OutcomeKind

	// Gauges
	active   int64
	progress int64 // last reported percent of the running download

	mu          sync.Mutex
	buckets     []int64 // cumulative counts per durationBounds entry
	durationSum float64
	durationN   int64

	startTime time.Time
}

// New creates a new Metrics instance
func New() *Metrics {
	return &Metrics{
		startTime: time.Now(),
		buckets:   make([]int64, len(durationBounds)),
	}
}

// Observe updates the metrics from a supervisor event
func (m *Metrics) Observe(ev supervisor.Event) {
	switch ev.Kind {
	case supervisor.EventState:
		switch ev.State {
		case supervisor.StateClassifying:
			atomic.AddInt64(&m.started, 1)
			atomic.AddInt64(&m.active, 1)
			atomic.StoreInt64(&m.progress, 0)
		case supervisor.StateRunningFallback:
			atomic.AddInt64(&m.fallbacks, 1)
		}
	case supervisor.EventProgress:
		atomic.StoreInt64(&m.progress, int64(ev.Progress))
	case supervisor.EventOutcome:
		if ev.Outcome != nil {
			m.RecordOutcome(*ev.Outcome)
		}
	}
}

// RecordOutcome counts a finished request and its duration
func (m *Metrics) RecordOutcome(o supervisor.Outcome) {
	if k := int(o.Kind); k >= 0 && k < len(m.outcomes) {
		atomic.AddInt64(&m.outcomes[k], 1)
	}
	if atomic.AddInt64(&m.active, -1) < 0 {
		atomic.StoreInt64(&m.active, 0)
	}
	m.observeDuration(o.Duration)
}

func (m *Metrics) observeDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	secs := d.Seconds()
	for i, bound := range durationBounds {
		if secs <= bound {
			m.buckets[i]++
		}
	}
	m.durationSum += secs
	m.durationN++
}

// GetStats returns current metrics as a map
func (m *Metrics) GetStats() map[string]int64 {
	stats := map[string]int64{
		"requests_started":  atomic.LoadInt64(&m.started),
		"fallbacks_total":   atomic.LoadInt64(&m.fallbacks),
		"active_downloads":  atomic.LoadInt64(&m.active),
		"download_progress": atomic.LoadInt64(&m.progress),
		"uptime_seconds":    int64(time.Since(m.startTime).Seconds()),
	}

	for k := range m.outcomes {
		stats["outcome_"+supervisor.OutcomeKind(k).String()] = atomic.LoadInt64(&m.outcomes[k])
	}

	m.mu.Lock()
	stats["duration_count"] = m.durationN
	for i, bound := range durationBounds {
		stats["duration_bucket_le_"+formatBound(bound)] = m.buckets[i]
	}
	m.mu.Unlock()

	return stats
}

func formatBound(b float64) string {
	return strconv.FormatFloat(b, 'f', -1, 64)
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		stats := m.GetStats()

		fmt.Fprintln(w, "# HELP earbound_requests_started_total Download requests accepted")
		fmt.Fprintln(w, "# TYPE earbound_requests_started_total counter")
		fmt.Fprintf(w, "earbound_requests_started_total %d\n", stats["requests_started"])

		fmt.Fprintln(w, "# HELP earbound_outcomes_total Finished requests by outcome")
		fmt.Fprintln(w, "# TYPE earbound_outcomes_total counter")
		for k := range m.outcomes {
			name := supervisor.OutcomeKind(k).String()
			fmt.Fprintf(w, "earbound_outcomes_total{outcome=%q} %d\n", name, stats["outcome_"+name])
		}

		fmt.Fprintln(w, "# HELP earbound_fallbacks_total Requests that needed the fallback strategy")
		fmt.Fprintln(w, "# TYPE earbound_fallbacks_total counter")
		fmt.Fprintf(w, "earbound_fallbacks_total %d\n", stats["fallbacks_total"])

		fmt.Fprintln(w, "# HELP earbound_active_downloads Currently running requests")
		fmt.Fprintln(w, "# TYPE earbound_active_downloads gauge")
		fmt.Fprintf(w, "earbound_active_downloads %d\n", stats["active_downloads"])

		fmt.Fprintln(w, "# HELP earbound_download_progress_percent Progress of the running request")
		fmt.Fprintln(w, "# TYPE earbound_download_progress_percent gauge")
		fmt.Fprintf(w, "earbound_download_progress_percent %d\n", stats["download_progress"])

		fmt.Fprintln(w, "# HELP earbound_uptime_seconds Time since start in seconds")
		fmt.Fprintln(w, "# TYPE earbound_uptime_seconds counter")
		fmt.Fprintf(w, "earbound_uptime_seconds %d\n", stats["uptime_seconds"])

		m.mu.Lock()
		sum, count := m.durationSum, m.durationN
		buckets := append([]int64(nil), m.buckets...)
		m.mu.Unlock()

		fmt.Fprintln(w, "# HELP earbound_request_duration_seconds Time from submit to outcome")
		fmt.Fprintln(w, "# TYPE earbound_request_duration_seconds histogram")
		for i, bound := range durationBounds {
			fmt.Fprintf(w, "earbound_request_duration_seconds_bucket{le=%q} %d\n", formatBound(bound), buckets[i])
		}
		fmt.Fprintf(w, "earbound_request_duration_seconds_bucket{le=\"+Inf\"} %d\n", count)
		fmt.Fprintf(w, "earbound_request_duration_seconds_sum %g\n", sum)
		fmt.Fprintf(w, "earbound_request_duration_seconds_count %d\n", count)
	})
}

// Server wraps an HTTP server for metrics
type Server struct {
	server   *http.Server
	listener net.Listener
	addr     string
}

// NewServer creates a new metrics server
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		addr: addr,
	}
}

// Start binds the address and serves in a goroutine. Bind errors are
// returned; later serve errors are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("metrics listen: %w", err)
	}
	s.listener = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server error")
		}
	}()
	log.WithField("addr", ln.Addr().String()).Debug("Metrics server listening")
	return nil
}

// Stop shuts the server down, waiting briefly for open requests
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address once started, else the configured one
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
