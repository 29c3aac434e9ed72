package keyring

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
)

// lockout refuses unlock attempts for a while after too many wrong passwords.
type lockout struct {
	mu       sync.Mutex
	clock    mclock.Clock
	max      int
	window   time.Duration
	failures int
	until    mclock.AbsTime // zero when not locked
}

func newLockout(clock mclock.Clock, max int, window time.Duration) *lockout {
	return &lockout{clock: clock, max: max, window: window}
}

// check returns ErrTooManyAttempts while the lockout window is open.
func (l *lockout) check() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.until == 0 {
		return nil
	}
	now := l.clock.Now()
	if now < l.until {
		remaining := l.until.Sub(now).Round(time.Second)
		return fmt.Errorf("%w: retry in %v", ErrTooManyAttempts, remaining)
	}
	l.until = 0
	return nil
}

// fail records a wrong password and reports how many attempts remain before
// the lockout starts. Zero means the lockout has just started.
func (l *lockout) fail() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures++
	if l.failures >= l.max {
		l.failures = 0
		l.until = l.clock.Now().Add(l.window)
		return 0
	}
	return l.max - l.failures
}

func (l *lockout) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = 0
	l.until = 0
}
