// Package limiter is the active agent registry: it bounds how many agents of
// each model size may run at once and counts the ones that are running.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Limiter tracks agent slots per model size.
type Limiter struct {
	models     map[string]*ModelLimiter
	defaultMax int
	mu         sync.RWMutex

	// changed is closed and replaced whenever a slot is released.
	changed chan struct{}
	chMu    sync.Mutex
}

// ModelLimiter enforces the concurrency limit for one model size.
type ModelLimiter struct {
	mu            sync.Mutex
	name          string
	maxAgents     int
	currentAgents int
}

// ErrAgentLimit is returned when every slot for a model size is in use.
var ErrAgentLimit = errors.New("agent limit exceeded")

// NewLimiter creates a limiter with per-size limits. Sizes missing from
// limits get defaultMax slots; a non-positive limit means unbounded.
func NewLimiter(limits map[string]int, defaultMax int) *Limiter {
	l := &Limiter{
		models:     make(map[string]*ModelLimiter, len(limits)),
		defaultMax: defaultMax,
		changed:    make(chan struct{}),
	}
	for name, maxAgents := range limits {
		l.models[name] = &ModelLimiter{name: name, maxAgents: maxAgents}
	}
	return l
}

func (l *Limiter) model(name string) *ModelLimiter {
	l.mu.RLock()
	ml, ok := l.models[name]
	l.mu.RUnlock()
	if ok {
		return ml
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if ml, ok = l.models[name]; ok {
		return ml
	}
	ml = &ModelLimiter{name: name, maxAgents: l.defaultMax}
	l.models[name] = ml
	return ml
}

// ReserveAgent takes a slot for size without waiting.
func (l *Limiter) ReserveAgent(size string) error {
	return l.model(size).ReserveAgent()
}

// ReleaseAgent returns a slot for size and wakes blocked Acquire calls.
func (l *Limiter) ReleaseAgent(size string) error {
	if err := l.model(size).ReleaseAgent(); err != nil {
		return err
	}
	l.chMu.Lock()
	close(l.changed)
	l.changed = make(chan struct{})
	l.chMu.Unlock()
	return nil
}

// Acquire waits until a slot for size is free or ctx is done. The returned
// func releases the slot.
func (l *Limiter) Acquire(ctx context.Context, size string) (func(), error) {
	for {
		l.chMu.Lock()
		wait := l.changed
		l.chMu.Unlock()

		err := l.ReserveAgent(size)
		if err == nil {
			var once sync.Once
			return func() { once.Do(func() { _ = l.ReleaseAgent(size) }) }, nil
		}
		if !errors.Is(err, ErrAgentLimit) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire %s agent slot: %w", size, ctx.Err())
		case <-wait:
		}
	}
}

// Active returns the number of running agents across all sizes.
func (l *Limiter) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0
	for _, ml := range l.models {
		_, agents := ml.GetStatus()
		total += agents
	}
	return total
}

// Status returns the slot limit and running count for size.
func (l *Limiter) Status(size string) (maxAgents, agents int) {
	return l.model(size).GetStatus()
}

// Sizes lists the model sizes the limiter knows about, sorted.
func (l *Limiter) Sizes() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.models))
	for name := range l.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReserveAgent reserves an agent slot.
func (ml *ModelLimiter) ReserveAgent() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.maxAgents > 0 && ml.currentAgents >= ml.maxAgents {
		return ErrAgentLimit
	}

	ml.currentAgents++
	return nil
}

// ReleaseAgent releases an agent slot.
func (ml *ModelLimiter) ReleaseAgent() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.currentAgents <= 0 {
		return fmt.Errorf("no agents to release for model size %s", ml.name)
	}

	ml.currentAgents--
	return nil
}

// GetStatus returns the limit and current count.
func (ml *ModelLimiter) GetStatus() (maxAgents, agents int) {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	return ml.maxAgents, ml.currentAgents
}
