package vm

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jbweber/hearth/internal/metrics"
)

// StateRunning is the state persisted for a freshly started VM.
const StateRunning = "RUNNING"

// Orchestrator coordinates the metadata store, the hypervisor and the disk
// manager. It is safe for concurrent use when its dependencies are.
type Orchestrator struct {
	hv      Hypervisor
	disks   DiskManager
	vms     VMStore
	network string
	logger  *slog.Logger
	metrics *metrics.Metrics
	newUUID func() string
	now     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records operation outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithNetwork attaches new domains to the named libvirt network.
func WithNetwork(name string) Option {
	return func(o *Orchestrator) {
		o.network = name
	}
}

// NewOrchestrator creates an orchestrator over the given dependencies.
func NewOrchestrator(hv Hypervisor, disks DiskManager, vms VMStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		hv:      hv,
		disks:   disks,
		vms:     vms,
		logger:  slog.Default(),
		newUUID: func() string { return uuid.NewString() },
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
