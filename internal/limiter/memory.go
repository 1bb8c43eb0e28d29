package limiter

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	fails        int
	updated      time.Time
	blockedUntil time.Time
}

// Memory is a process-local limiter for single-instance deployments.
type Memory struct {
	mu      sync.Mutex
	cfg     Settings
	now     func() time.Time
	entries map[string]*entry
}

// NewMemory constructs an in-memory limiter.
func NewMemory(cfg Settings) *Memory {
	return &Memory{cfg: cfg, now: time.Now, entries: make(map[string]*entry)}
}

// Allow implements Limiter.
func (l *Memory) Allow(_ context.Context, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[string(ipHash)]
	if !ok {
		return true, 0, nil
	}
	if left := e.blockedUntil.Sub(l.now()); left > 0 {
		return false, left, nil
	}
	return true, 0, nil
}

// Failure implements Limiter.
func (l *Memory) Failure(_ context.Context, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.prune(now)

	e, ok := l.entries[string(ipHash)]
	if !ok || now.Sub(e.updated) > l.cfg.Window {
		e = &entry{}
		l.entries[string(ipHash)] = e
	}
	e.fails++
	e.updated = now
	if e.fails < l.cfg.MaxFails {
		return false, 0, nil
	}
	e.blockedUntil = now.Add(l.cfg.BlockFor)
	return true, l.cfg.BlockFor, nil
}

// prune drops entries that are neither blocked nor inside the window.
func (l *Memory) prune(now time.Time) {
	for k, e := range l.entries {
		if now.Sub(e.updated) > l.cfg.Window && !e.blockedUntil.After(now) {
			delete(l.entries, k)
		}
	}
}
