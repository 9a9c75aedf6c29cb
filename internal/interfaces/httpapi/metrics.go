package httpapi

import (
	"net/http"
	"sync"
	"time"

	"chainsync/internal/application"
	"chainsync/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records fetch loop progress both as Prometheus collectors and as
// an in-memory snapshot served on /status.
type Metrics struct {
	registry *prometheus.Registry

	latestHeight   *prometheus.GaugeVec
	checkpoint     *prometheus.GaugeVec
	blocks         *prometheus.CounterVec
	transactions   *prometheus.CounterVec
	runs           *prometheus.CounterVec
	gateInFlight   prometheus.Gauge
	gateInFlightHi prometheus.Gauge

	mu       sync.RWMutex
	started  time.Time
	chains   map[domain.Chain]*ChainStatus
	inFlight int64
	peak     int64
}

type ChainStatus struct {
	LatestHeight    uint64                 `json:"latest_height"`
	LastBlock       uint64                 `json:"last_block"`
	Checkpoint      uint64                 `json:"checkpoint"`
	HasCheckpoint   bool                   `json:"has_checkpoint"`
	BlocksProcessed uint64                 `json:"blocks_processed"`
	Transactions    uint64                 `json:"transactions"`
	Categories      map[domain.Kind]uint64 `json:"categories"`
	Runs            uint64                 `json:"runs"`
	RunErrors       uint64                 `json:"run_errors"`
	LastError       string                 `json:"last_error,omitempty"`
	LastRunAt       time.Time              `json:"last_run_at,omitempty"`
	LastRunPartial  bool                   `json:"last_run_partial"`
}

type Snapshot struct {
	UptimeSeconds int64                        `json:"uptime_seconds"`
	GateInFlight  int64                        `json:"gate_in_flight"`
	GatePeak      int64                        `json:"gate_peak"`
	Chains        map[domain.Chain]ChainStatus `json:"chains"`
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		latestHeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chainsync",
			Name:      "latest_height",
			Help:      "Chain tip observed at the start of the last run.",
		}, []string{"chain"}),
		checkpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chainsync",
			Name:      "checkpoint_height",
			Help:      "Last fully processed block persisted as the checkpoint.",
		}, []string{"chain"}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chainsync",
			Name:      "blocks_processed_total",
			Help:      "Blocks whose transactions were all processed.",
		}, []string{"chain"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chainsync",
			Name:      "transactions_classified_total",
			Help:      "Classified transactions by category.",
		}, []string{"chain", "category"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chainsync",
			Name:      "runs_total",
			Help:      "Finished fetch runs by outcome.",
		}, []string{"chain", "outcome"}),
		gateInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chainsync",
			Name:      "gate_in_flight",
			Help:      "Remote calls currently holding a concurrency permit.",
		}),
		gateInFlightHi: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chainsync",
			Name:      "gate_in_flight_peak",
			Help:      "Highest number of permits held at once.",
		}),
		started: time.Now(),
		chains:  make(map[domain.Chain]*ChainStatus),
	}
	m.registry.MustRegister(
		m.latestHeight, m.checkpoint, m.blocks, m.transactions, m.runs,
		m.gateInFlight, m.gateInFlightHi,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

var (
	_ application.FetchObserver = (*Metrics)(nil)
	_ application.GateObserver  = (*Metrics)(nil)
)

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OnLatestBlock(chain domain.Chain, block uint64) {
	m.latestHeight.WithLabelValues(chain.String()).Set(float64(block))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status(chain).LatestHeight = block
}

func (m *Metrics) OnTransactionClassified(chain domain.Chain, kind domain.Kind) {
	m.transactions.WithLabelValues(chain.String(), string(kind)).Inc()
	m.mu.Lock()
	defer m.mu.Unlock()
	status := m.status(chain)
	status.Transactions++
	status.Categories[kind]++
}

func (m *Metrics) OnBlockProcessed(chain domain.Chain, block uint64, txCount int) {
	m.blocks.WithLabelValues(chain.String()).Inc()
	m.mu.Lock()
	defer m.mu.Unlock()
	status := m.status(chain)
	status.LastBlock = block
	status.BlocksProcessed++
}

func (m *Metrics) OnCheckpoint(chain domain.Chain, block uint64) {
	m.checkpoint.WithLabelValues(chain.String()).Set(float64(block))
	m.mu.Lock()
	defer m.mu.Unlock()
	status := m.status(chain)
	status.Checkpoint = block
	status.HasCheckpoint = true
}

func (m *Metrics) OnRunFinished(chain domain.Chain, result application.RunResult, err error) {
	outcome := "complete"
	switch {
	case err != nil:
		outcome = "error"
	case result.Partial:
		outcome = "partial"
	}
	m.runs.WithLabelValues(chain.String(), outcome).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	status := m.status(chain)
	status.Runs++
	status.LastRunAt = time.Now().UTC()
	status.LastRunPartial = result.Partial
	status.LastError = ""
	if err != nil {
		status.RunErrors++
		status.LastError = err.Error()
	}
}

func (m *Metrics) OnGateInFlight(inFlight int64) {
	m.gateInFlight.Set(float64(inFlight))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = inFlight
	if inFlight > m.peak {
		m.peak = inFlight
		m.gateInFlightHi.Set(float64(inFlight))
	}
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chains := make(map[domain.Chain]ChainStatus, len(m.chains))
	for chain, status := range m.chains {
		copied := *status
		copied.Categories = make(map[domain.Kind]uint64, len(status.Categories))
		for kind, count := range status.Categories {
			copied.Categories[kind] = count
		}
		chains[chain] = copied
	}
	return Snapshot{
		UptimeSeconds: int64(time.Since(m.started).Seconds()),
		GateInFlight:  m.inFlight,
		GatePeak:      m.peak,
		Chains:        chains,
	}
}

// status must be called with mu held.
func (m *Metrics) status(chain domain.Chain) *ChainStatus {
	status, ok := m.chains[chain]
	if !ok {
		status = &ChainStatus{Categories: make(map[domain.Kind]uint64)}
		m.chains[chain] = status
	}
	return status
}
