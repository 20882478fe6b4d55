// Package lock serializes shuffle and record operations per guild and
// recovers locks abandoned by crashed or hung callers.
package lock

import (
	"sync"
	"time"

	"github.com/dom/inhouse-league/internal/domain"
)

// DefaultStaleThreshold is how long a lock may be held before a stale check
// force-releases it.
const DefaultStaleThreshold = 60 * time.Second

// guildLock is one guild's mutex plus acquisition bookkeeping.
type guildLock struct {
	mu         sync.Mutex
	stateMu    sync.Mutex
	held       bool
	acquiredAt time.Time
}

// Coordinator hands out per-guild locks, creating them on first use.
// Single-process only; there is no cross-process coordination.
type Coordinator struct {
	mu             sync.Mutex
	locks          map[int64]*guildLock
	staleThreshold time.Duration
	now            func() time.Time
}

// NewCoordinator creates a coordinator with the given stale-lock threshold.
// A non-positive threshold falls back to the default.
func NewCoordinator(staleThreshold time.Duration) *Coordinator {
	if staleThreshold <= 0 {
		staleThreshold = DefaultStaleThreshold
	}
	return &Coordinator{
		locks:          make(map[int64]*guildLock),
		staleThreshold: staleThreshold,
		now:            time.Now,
	}
}

// Normalize maps missing or negative guild ids to the canonical sentinel so
// DMs and tests share a keyspace.
func Normalize(guildID int64) int64 {
	if guildID <= 0 {
		return domain.GuildNone
	}
	return guildID
}

func (c *Coordinator) lockFor(guildID int64) *guildLock {
	c.mu.Lock()
	defer c.mu.Unlock()
	guildID = Normalize(guildID)
	l, ok := c.locks[guildID]
	if !ok {
		l = &guildLock{}
		c.locks[guildID] = l
	}
	return l
}

// Acquire blocks until the guild's lock is held, then timestamps the
// acquisition for stale detection.
func (c *Coordinator) Acquire(guildID int64) {
	l := c.lockFor(guildID)
	l.mu.Lock()
	l.stateMu.Lock()
	l.held = true
	l.acquiredAt = c.now()
	l.stateMu.Unlock()
}

// TryAcquire attempts the guild's lock without blocking. Returns false when
// another operation holds it.
func (c *Coordinator) TryAcquire(guildID int64) bool {
	l := c.lockFor(guildID)
	if !l.mu.TryLock() {
		return false
	}
	l.stateMu.Lock()
	l.held = true
	l.acquiredAt = c.now()
	l.stateMu.Unlock()
	return true
}

// Release frees the guild's lock.
func (c *Coordinator) Release(guildID int64) {
	l := c.lockFor(guildID)
	l.stateMu.Lock()
	l.held = false
	l.stateMu.Unlock()
	l.mu.Unlock()
}

// CheckStale force-releases the guild's lock when it has been held longer
// than the stale threshold. Returns true when a lock was cleared.
func (c *Coordinator) CheckStale(guildID int64) bool {
	l := c.lockFor(guildID)
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	if !l.held {
		return false
	}
	if c.now().Sub(l.acquiredAt) < c.staleThreshold {
		return false
	}
	l.held = false
	l.mu.Unlock()
	return true
}

// HeldSince reports whether the guild's lock is held and since when.
func (c *Coordinator) HeldSince(guildID int64) (time.Time, bool) {
	l := c.lockFor(guildID)
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return l.acquiredAt, l.held
}
