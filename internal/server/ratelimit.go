package server

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter limits how often a client may open scanning sessions and how
// many frame bytes it may stream per day.
type RateLimiter struct {
	mu sync.RWMutex

	sessionsPerMinute int
	sessionsPerHour   int

	maxSessionsPerDay int
	maxBytesPerDay    int64

	clients map[string]*ClientUsage
}

// ClientUsage tracks usage for one client address.
type ClientUsage struct {
	sessionsLastMinute int
	sessionsLastHour   int
	sessionsToday      int

	bytesToday int64

	lastSessionTime time.Time
	dayStartTime    time.Time
}

// NewRateLimiter creates a limiter. A zero limit is not enforced.
func NewRateLimiter(sessionsPerMinute, sessionsPerHour, maxSessionsPerDay int, maxBytesPerDay int64) *RateLimiter {
	return &RateLimiter{
		sessionsPerMinute: sessionsPerMinute,
		sessionsPerHour:   sessionsPerHour,
		maxSessionsPerDay: maxSessionsPerDay,
		maxBytesPerDay:    maxBytesPerDay,
		clients:           make(map[string]*ClientUsage),
	}
}

// CheckSession admits a new session for clientID or returns a
// *RateLimitError / *QuotaExceededError.
func (rl *RateLimiter) CheckSession(clientID string) error {
	return rl.checkSessionAt(clientID, time.Now())
}

func (rl *RateLimiter) checkSessionAt(clientID string, now time.Time) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	usage := rl.usage(clientID, now)
	rl.resetCounters(usage, now)

	if rl.sessionsPerMinute > 0 && usage.sessionsLastMinute >= rl.sessionsPerMinute {
		return &RateLimitError{
			Type:       "minute",
			Limit:      rl.sessionsPerMinute,
			RetryAfter: time.Minute - now.Sub(usage.lastSessionTime),
		}
	}
	if rl.sessionsPerHour > 0 && usage.sessionsLastHour >= rl.sessionsPerHour {
		return &RateLimitError{
			Type:       "hour",
			Limit:      rl.sessionsPerHour,
			RetryAfter: time.Hour - now.Sub(usage.lastSessionTime),
		}
	}
	if rl.maxSessionsPerDay > 0 && usage.sessionsToday >= rl.maxSessionsPerDay {
		return &QuotaExceededError{
			Type:   "sessions",
			Limit:  int64(rl.maxSessionsPerDay),
			Used:   int64(usage.sessionsToday),
			Resets: nextDay(now),
		}
	}

	usage.sessionsLastMinute++
	usage.sessionsLastHour++
	usage.sessionsToday++
	usage.lastSessionTime = now
	return nil
}

// AddFrameBytes charges n bytes of frame data to clientID. The frame is
// refused with a *QuotaExceededError once the daily byte quota would be
// exceeded.
func (rl *RateLimiter) AddFrameBytes(clientID string, n int64) error {
	return rl.addFrameBytesAt(clientID, n, time.Now())
}

func (rl *RateLimiter) addFrameBytesAt(clientID string, n int64, now time.Time) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	usage := rl.usage(clientID, now)
	rl.resetCounters(usage, now)
	if rl.maxBytesPerDay > 0 && usage.bytesToday+n > rl.maxBytesPerDay {
		return &QuotaExceededError{
			Type:   "frame_bytes",
			Limit:  rl.maxBytesPerDay,
			Used:   usage.bytesToday,
			Resets: nextDay(now),
		}
	}
	usage.bytesToday += n
	return nil
}

// resetCounters starts new windows when their period has passed.
func (rl *RateLimiter) resetCounters(usage *ClientUsage, now time.Time) {
	if now.YearDay() != usage.dayStartTime.YearDay() || now.Year() != usage.dayStartTime.Year() {
		usage.sessionsToday = 0
		usage.bytesToday = 0
		usage.dayStartTime = now
	}
	if now.Sub(usage.lastSessionTime) >= time.Minute {
		usage.sessionsLastMinute = 0
	}
	if now.Sub(usage.lastSessionTime) >= time.Hour {
		usage.sessionsLastHour = 0
	}
}

func (rl *RateLimiter) usage(clientID string, now time.Time) *ClientUsage {
	usage, ok := rl.clients[clientID]
	if !ok {
		usage = &ClientUsage{lastSessionTime: now, dayStartTime: now}
		rl.clients[clientID] = usage
	}
	return usage
}

// Usage returns a copy of the usage counters for clientID.
func (rl *RateLimiter) Usage(clientID string) ClientUsage {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if usage, ok := rl.clients[clientID]; ok {
		return *usage
	}
	return ClientUsage{}
}

func nextDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}

// RateLimitError reports a session rate violation.
type RateLimitError struct {
	Type       string        // "minute" or "hour"
	Limit      int           // the limit that was exceeded
	RetryAfter time.Duration // how long to wait before retrying
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (limit: %d, retry after: %v)", e.Type, e.Limit, e.RetryAfter)
}

// QuotaExceededError reports a daily quota violation.
type QuotaExceededError struct {
	Type   string    // "sessions" or "frame_bytes"
	Limit  int64     // the limit that was exceeded
	Used   int64     // current usage
	Resets time.Time // when the quota resets
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s (used: %d, limit: %d, resets: %s)",
		e.Type, e.Used, e.Limit, e.Resets.Format(time.RFC3339))
}
