package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrOpen is returned by Breaker.Allow while the breaker is open.
var ErrOpen = eris.New("resilience: circuit open")

// Breaker stops calls to a dependency after a run of consecutive failures
// and lets a single probe through once the cooldown has passed.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker returns a Breaker. A threshold below 1 disables it.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow returns ErrOpen when calls should be skipped.
func (b *Breaker) Allow() error {
	if b == nil || b.threshold < 1 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.threshold {
		return nil
	}
	if b.probing || b.now().Sub(b.openedAt) < b.cooldown {
		return ErrOpen
	}
	b.probing = true
	return nil
}

// Record feeds a call result back into the breaker.
func (b *Breaker) Record(err error) {
	if b == nil || b.threshold < 1 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.openedAt = b.now()
	}
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	if b == nil || b.threshold < 1 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold && (b.probing || b.now().Sub(b.openedAt) < b.cooldown)
}
