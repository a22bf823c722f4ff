package auth

import (
	"strings"
	"sync"
	"time"
)

const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutDuration   = 30 * time.Minute
	DefaultAttemptRetention  = time.Hour
	DefaultSweepInterval     = time.Hour
	DefaultPasswordMinLength = 8

	unknownAddress = "unknown"
)

// TrackerConfig carries the tunable account-security settings. Zero values
// fall back to the defaults above.
type TrackerConfig struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	AttemptRetention  time.Duration
	SweepInterval     time.Duration
	PasswordMinLength int
}

func (c TrackerConfig) withDefaults() TrackerConfig {
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = DefaultMaxFailedAttempts
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = DefaultLockoutDuration
	}
	if c.AttemptRetention <= 0 {
		c.AttemptRetention = DefaultAttemptRetention
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.PasswordMinLength <= 0 {
		c.PasswordMinLength = DefaultPasswordMinLength
	}
	return c
}

// Attempt is a single recorded login attempt.
type Attempt struct {
	Username  string
	Address   string
	UserAgent string
	At        time.Time
	Success   bool
}

// Stats aggregates recorded attempts, optionally filtered by username.
type Stats struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Locked     int `json:"locked"`
}

// Tracker records login attempts per username+address key, derives lockout
// state and scores password strength. State is process-local and never
// persisted; a background sweep reclaims keys that are no longer read.
type Tracker struct {
	cfg TrackerConfig
	now func() time.Time

	mu       sync.Mutex
	attempts map[string][]Attempt
	locks    map[string]time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerClock overrides the time source (useful for tests).
func WithTrackerClock(fn func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewTracker constructs a Tracker and starts its sweep goroutine. Callers own
// the lifecycle and must call Stop on shutdown.
func NewTracker(cfg TrackerConfig, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		attempts: make(map[string][]Attempt),
		locks:    make(map[string]time.Time),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.sweepLoop()
	return t
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

func key(username, address string) string {
	if strings.TrimSpace(address) == "" {
		address = unknownAddress
	}
	return username + "|" + address
}

// RecordAttempt appends an attempt for the username+address key, prunes
// entries outside the retention window and, on failure, creates a lock once
// the failed count in the retained window reaches the configured threshold.
func (t *Tracker) RecordAttempt(username, address string, success bool, userAgent string) {
	now := t.now()
	k := key(username, address)

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.pruneLocked(k, now)
	kept = append(kept, Attempt{
		Username:  username,
		Address:   address,
		UserAgent: userAgent,
		At:        now,
		Success:   success,
	})
	t.attempts[k] = kept

	if success {
		return
	}
	failed := 0
	for _, a := range kept {
		if !a.Success {
			failed++
		}
	}
	if failed >= t.cfg.MaxFailedAttempts {
		if start, ok := t.locks[k]; !ok || !now.Before(start.Add(t.cfg.LockoutDuration)) {
			t.locks[k] = now
		}
	}
}

// IsLocked reports whether the key is currently locked out. An expired lock
// record is removed as a side effect, so repeated calls are idempotent.
func (t *Tracker) IsLocked(username, address string) bool {
	now := t.now()
	k := key(username, address)

	t.mu.Lock()
	defer t.mu.Unlock()

	start, ok := t.locks[k]
	if !ok {
		return false
	}
	if !now.Before(start.Add(t.cfg.LockoutDuration)) {
		delete(t.locks, k)
		return false
	}
	return true
}

// RemainingLockMinutes returns the ceiling of minutes until the lock expires,
// or zero when the key is not locked.
func (t *Tracker) RemainingLockMinutes(username, address string) int {
	now := t.now()
	k := key(username, address)

	t.mu.Lock()
	defer t.mu.Unlock()

	start, ok := t.locks[k]
	if !ok {
		return 0
	}
	remaining := start.Add(t.cfg.LockoutDuration).Sub(now)
	if remaining <= 0 {
		delete(t.locks, k)
		return 0
	}
	minutes := int(remaining / time.Minute)
	if remaining%time.Minute != 0 {
		minutes++
	}
	return minutes
}

// Unlock removes both the lock record and the attempt history for the key.
// Intended as a manual operator override.
func (t *Tracker) Unlock(username, address string) {
	k := key(username, address)

	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.locks, k)
	delete(t.attempts, k)
}

// Stats aggregates attempts across all keys. A non-empty username restricts
// the aggregation to that username's keys.
func (t *Tracker) Stats(username string) Stats {
	now := t.now()
	prefix := ""
	if username != "" {
		prefix = username + "|"
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var stats Stats
	for k, list := range t.attempts {
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}
		for _, a := range list {
			stats.Total++
			if a.Success {
				stats.Successful++
			} else {
				stats.Failed++
			}
		}
	}
	for k, start := range t.locks {
		if prefix != "" && !strings.HasPrefix(k, prefix) {
			continue
		}
		if now.Before(start.Add(t.cfg.LockoutDuration)) {
			stats.Locked++
		}
	}
	return stats
}

// ScorePassword checks a candidate password against the strength rules using
// the tracker's configured minimum length.
func (t *Tracker) ScorePassword(password string) StrengthReport {
	return scorePassword(password, t.cfg.PasswordMinLength)
}

// pruneLocked drops attempts older than the retention window for one key.
// Callers must hold t.mu.
func (t *Tracker) pruneLocked(k string, now time.Time) []Attempt {
	cutoff := now.Add(-t.cfg.AttemptRetention)
	list := t.attempts[k]
	kept := list[:0]
	for _, a := range list {
		if a.At.After(cutoff) {
			kept = append(kept, a)
		}
	}
	return kept
}

// sweepLoop reclaims state for keys that stopped being read. Read-triggered
// pruning alone would leak memory for keys never queried after their last
// failure.
func (t *Tracker) sweepLoop() {
	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *Tracker) sweep() {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	for k := range t.attempts {
		kept := t.pruneLocked(k, now)
		if len(kept) == 0 {
			delete(t.attempts, k)
			continue
		}
		t.attempts[k] = kept
	}
	for k, start := range t.locks {
		if !now.Before(start.Add(t.cfg.LockoutDuration)) {
			delete(t.locks, k)
		}
	}
}
