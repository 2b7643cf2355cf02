package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/crystal-station/gostation/pkg/player"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the game server.
// Each Game registers into its own registry.
type Metrics struct {
	game     *Game
	registry *prometheus.Registry

	sessions         *prometheus.GaugeVec
	entitiesTotal    prometheus.Gauge
	connectionsTotal prometheus.Counter
	sandboxEnabled   prometheus.Gauge
	verbsExecuted    *prometheus.CounterVec
	placements       *prometheus.CounterVec
	adminLogWrites   *prometheus.CounterVec
	archivesTotal    prometheus.Counter
	tlsCertExpiry    prometheus.Gauge
	uptimeSeconds    prometheus.Gauge
	memoryHeapBytes  prometheus.Gauge
	goroutines       prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics for the game.
func NewMetrics(game *Game) *Metrics {
	m := &Metrics{
		game:     game,
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gostation_sessions",
			Help: "Number of live sessions by status.",
		}, []string{"status"}),
		entitiesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gostation_entities_total",
			Help: "Number of entities in the world.",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gostation_connections_total",
			Help: "Total connections since server start.",
		}),
		sandboxEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gostation_sandbox_enabled",
			Help: "1 while sandbox mode is on.",
		}),
		verbsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gostation_verbs_executed_total",
			Help: "Verbs executed, by verb text.",
		}, []string{"verb"}),
		placements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gostation_placements_total",
			Help: "Placement requests by result.",
		}, []string{"result"}),
		adminLogWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gostation_admin_log_writes_total",
			Help: "Admin log entries written, by type.",
		}, []string{"type"}),
		archivesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gostation_archives_total",
			Help: "Data archives written since server start.",
		}),
		tlsCertExpiry: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gostation_tls_cert_expiry_timestamp_seconds",
			Help: "Unix time at which the served TLS certificate expires.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gostation_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gostation_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gostation_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	m.registry.MustRegister(
		m.sessions,
		m.entitiesTotal,
		m.connectionsTotal,
		m.sandboxEnabled,
		m.verbsExecuted,
		m.placements,
		m.adminLogWrites,
		m.archivesTotal,
		m.tlsCertExpiry,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)

	return m
}

// Update refreshes all gauge metrics from current game state.
func (m *Metrics) Update() {
	counts := m.game.Players.CountByStatus()
	for _, st := range []player.Status{player.StatusConnecting, player.StatusConnected, player.StatusInGame} {
		m.sessions.WithLabelValues(st.String()).Set(float64(counts[st]))
	}

	m.game.Mu.Lock()
	m.entitiesTotal.Set(float64(len(m.game.World.Entities)))
	m.game.Mu.Unlock()

	if m.game.Sandbox.Enabled() {
		m.sandboxEnabled.Set(1)
	} else {
		m.sandboxEnabled.Set(0)
	}

	m.uptimeSeconds.Set(time.Since(m.game.StartTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		h.ServeHTTP(w, r)
	})
}
