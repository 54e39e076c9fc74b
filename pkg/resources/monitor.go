// Package resources reports host memory and CPU headroom relative to
// configured ceilings.
package resources

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/theinterneti/augment-adam-sub002/pkg/logx"
)

// Snapshot is the available headroom at one point in time. Memory and CPU are
// fractions in [0,1] of the configured ceiling not currently in use.
type Snapshot struct {
	Memory       float64   `json:"memory"`
	CPU          float64   `json:"cpu"`
	ActiveAgents int       `json:"active_agents"`
	Fallback     bool      `json:"fallback,omitempty"`
	SampledAt    time.Time `json:"sampled_at"`
}

// Provider returns the current snapshot.
type Provider interface {
	Available(ctx context.Context) Snapshot
}

// Sampler reads host utilization as fractions in [0,1].
type Sampler interface {
	MemoryUsed(ctx context.Context) (float64, error)
	// CPUUsed measures utilization as a delta over window.
	CPUUsed(ctx context.Context, window time.Duration) (float64, error)
}

// AgentCounter reports how many agents are currently running.
type AgentCounter interface {
	Active() int
}

// HostSampler reads the local host through gopsutil.
type HostSampler struct{}

func (HostSampler) MemoryUsed(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("read virtual memory: %w", err)
	}
	return vm.UsedPercent / 100, nil
}

func (HostSampler) CPUUsed(ctx context.Context, window time.Duration) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return 0, fmt.Errorf("read cpu percent: %w", err)
	}
	if len(percents) == 0 {
		return 0, errors.New("cpu percent returned no samples")
	}
	return percents[0] / 100, nil
}

// Config holds the monitor's ceilings and fallbacks.
type Config struct {
	MemoryCeiling  float64
	CPUCeiling     float64
	SampleWindow   time.Duration
	FallbackMemory float64
	FallbackCPU    float64
	// WarnFraction of a ceiling at which a low-resource warning is logged.
	WarnFraction float64
}

// DefaultConfig returns ceilings of 0.8, a 200ms window and a 0.2/0.2 fallback.
func DefaultConfig() Config {
	return Config{
		MemoryCeiling:  0.8,
		CPUCeiling:     0.8,
		SampleWindow:   200 * time.Millisecond,
		FallbackMemory: 0.2,
		FallbackCPU:    0.2,
		WarnFraction:   0.9,
	}
}

// Monitor samples the host on demand. A snapshot is reused only by calls
// that arrive within one sample window of it.
type Monitor struct {
	cfg     Config
	sampler Sampler
	agents  AgentCounter
	logger  *logx.Logger
	now     func() time.Time

	mu     sync.Mutex
	last   Snapshot
	cached bool
	low    bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithSampler replaces the host sampler.
func WithSampler(s Sampler) Option {
	return func(m *Monitor) { m.sampler = s }
}

// WithAgentCounter sets the source of the active agent count.
func WithAgentCounter(c AgentCounter) Option {
	return func(m *Monitor) { m.agents = c }
}

// WithLogger sets the logger.
func WithLogger(l *logx.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

func withClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor returns a Monitor reading the local host.
func NewMonitor(cfg Config, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:     cfg,
		sampler: HostSampler{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logx.OrNop(m.logger)
	return m
}

// Available returns headroom as max(0, ceiling-used) per resource. Sampling
// errors yield the fallback snapshot instead of an error.
func (m *Monitor) Available(ctx context.Context) Snapshot {
	active := m.activeAgents()

	m.mu.Lock()
	if m.cached && m.now().Sub(m.last.SampledAt) < m.cfg.SampleWindow {
		snap := m.last
		m.mu.Unlock()
		snap.ActiveAgents = active
		return snap
	}
	m.mu.Unlock()

	// The CPU window blocks, so sample without holding the lock.
	snap, memUsed, cpuUsed, err := m.sample(ctx)
	snap.ActiveAgents = active

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.logger.Log(logx.LevelWarn, "resource sampling failed, using fallback", map[string]any{
			"error":  err.Error(),
			"memory": snap.Memory,
			"cpu":    snap.CPU,
		})
		m.cached = false
		return snap
	}

	m.last = snap
	m.cached = true
	m.checkLow(memUsed, cpuUsed)
	return snap
}

func (m *Monitor) sample(ctx context.Context) (snap Snapshot, memUsed, cpuUsed float64, err error) {
	memUsed, err = m.sampler.MemoryUsed(ctx)
	if err == nil {
		cpuUsed, err = m.sampler.CPUUsed(ctx, m.cfg.SampleWindow)
	}
	if err != nil {
		return m.fallback(), 0, 0, err
	}

	return Snapshot{
		Memory:    headroom(m.cfg.MemoryCeiling, memUsed),
		CPU:       headroom(m.cfg.CPUCeiling, cpuUsed),
		SampledAt: m.now(),
	}, memUsed, cpuUsed, nil
}

func (m *Monitor) fallback() Snapshot {
	return Snapshot{
		Memory:    clamp(m.cfg.FallbackMemory),
		CPU:       clamp(m.cfg.FallbackCPU),
		Fallback:  true,
		SampledAt: m.now(),
	}
}

// checkLow logs once per transition into the low-resource region.
func (m *Monitor) checkLow(memUsed, cpuUsed float64) {
	low := memUsed >= m.cfg.WarnFraction*m.cfg.MemoryCeiling ||
		cpuUsed >= m.cfg.WarnFraction*m.cfg.CPUCeiling
	if low && !m.low {
		m.logger.Log(logx.LevelWarn, "low resources", map[string]any{
			"memory_used": memUsed,
			"cpu_used":    cpuUsed,
			"threshold":   m.cfg.WarnFraction,
		})
	}
	m.low = low
}

// Low reports whether the last successful sample was in the low-resource region.
func (m *Monitor) Low() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.low
}

func (m *Monitor) activeAgents() int {
	if m.agents == nil {
		return 0
	}
	return m.agents.Active()
}

func headroom(ceiling, used float64) float64 {
	return clamp(max(0, ceiling-used))
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Static always reports the same headroom. ActiveAgents is read live when an
// AgentCounter is attached.
type Static struct {
	Snapshot Snapshot
	Agents   AgentCounter
}

func (s Static) Available(_ context.Context) Snapshot {
	snap := s.Snapshot
	if s.Agents != nil {
		snap.ActiveAgents = s.Agents.Active()
	}
	if snap.SampledAt.IsZero() {
		snap.SampledAt = time.Now()
	}
	return snap
}

// Pinned replaces part of Base's reading. A negative Memory or CPU keeps the
// value Base reported; anything else is clamped to [0,1].
type Pinned struct {
	Base   Provider
	Memory float64
	CPU    float64
}

func (p Pinned) Available(ctx context.Context) Snapshot {
	snap := p.Base.Available(ctx)
	if p.Memory >= 0 {
		snap.Memory = clamp(p.Memory)
	}
	if p.CPU >= 0 {
		snap.CPU = clamp(p.CPU)
	}
	return snap
}
