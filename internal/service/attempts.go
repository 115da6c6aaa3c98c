// attempts.go — счётчик неудачных запросов статуса по номеру управления.
// Обёртка над hashicorp/golang-lru/v2/expirable: счётчик живёт window
// с момента последней неудачи.
package service

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// attemptTrackerSize — максимум отслеживаемых номеров управления.
const attemptTrackerSize = 10000

// AttemptLimiter ограничивает подбор последних 4 цифр телефона.
// Счётчики хранятся в памяти экземпляра.
type AttemptLimiter struct {
	mu          sync.Mutex
	maxFailures int
	failures    *expirable.LRU[string, int]
}

// NewAttemptLimiter создаёт ограничитель. maxFailures <= 0 — ограничение
// отключено, возвращается nil (методы nil-ограничителя безопасны).
func NewAttemptLimiter(maxFailures int, window time.Duration) *AttemptLimiter {
	if maxFailures <= 0 {
		return nil
	}
	return &AttemptLimiter{
		maxFailures: maxFailures,
		failures:    expirable.NewLRU[string, int](attemptTrackerSize, nil, window),
	}
}

// Blocked сообщает, исчерпан ли лимит для ключа.
func (l *AttemptLimiter) Blocked(key string) bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.failures.Get(key)
	return ok && n >= l.maxFailures
}

// Fail учитывает неудачную попытку.
func (l *AttemptLimiter) Fail(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	n, _ := l.failures.Get(key)
	l.failures.Add(key, n+1)
}

// Reset сбрасывает счётчик после успешной проверки.
func (l *AttemptLimiter) Reset(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failures.Remove(key)
}
