package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultInterval = 5 * time.Second

	// Idle chats are dropped once the table grows past this size.
	maxTrackedChats = 10000
)

type chatLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter throttles queries per chat: one query per interval with no
// burst.
type RateLimiter struct {
	interval time.Duration
	chats    map[int64]*chatLimiter
	mu       sync.Mutex
	now      func() time.Time
}

func New(interval time.Duration) *RateLimiter {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &RateLimiter{
		interval: interval,
		chats:    make(map[int64]*chatLimiter),
		now:      time.Now,
	}
}

func (rl *RateLimiter) Interval() time.Duration {
	return rl.interval
}

// Allow reports whether chatID may run a query now. When it may not, the
// returned delay is how long until it may.
func (rl *RateLimiter) Allow(chatID int64) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	chat, exists := rl.chats[chatID]
	if !exists {
		rl.evictIdle(now)

		chat = &chatLimiter{limiter: rate.NewLimiter(rate.Every(rl.interval), 1)}
		rl.chats[chatID] = chat
	}

	chat.lastSeen = now

	reservation := chat.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)

		return false, delay
	}

	return true, 0
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	if len(rl.chats) < maxTrackedChats {
		return
	}

	for chatID, chat := range rl.chats {
		if now.Sub(chat.lastSeen) >= rl.interval {
			delete(rl.chats, chatID)
		}
	}
}
