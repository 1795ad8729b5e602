package llm

import "time"

// outcome classifies a failed upstream attempt for the rotation state machine.
type outcome int

const (
	// outcomeThrottled: 429/503 from the provider. Back off, retry the same key.
	outcomeThrottled outcome = iota
	// outcomeTransport: timeout or connection error. Retry the same key, no delay.
	outcomeTransport
	// outcomeKeyFailed: unexpected status. Abandon the key immediately.
	outcomeKeyFailed
)

// rotation tracks the failover position across the credential pool: the active
// key, how many attempts it has consumed, and the current backoff delay.
// Backoff resets whenever the rotation moves to the next key.
type rotation struct {
	keyCount    int
	maxAttempts int

	key     int
	attempt int
	backoff time.Duration
}

func newRotation(keyCount int) *rotation {
	return &rotation{
		keyCount:    keyCount,
		maxAttempts: maxAttemptsPerKey,
		backoff:     initialBackoff,
	}
}

// done reports whether the pool is exhausted.
func (r *rotation) done() bool {
	return r.key >= r.keyCount
}

// lastChance reports whether the current attempt is the final one of the final key.
func (r *rotation) lastChance() bool {
	return r.key == r.keyCount-1 && r.attempt == r.maxAttempts-1
}

// advance consumes the current attempt and positions the rotation for the next
// one. It returns how long to sleep before that attempt; zero means no delay.
func (r *rotation) advance(o outcome) time.Duration {
	switch o {
	case outcomeThrottled:
		delay := r.backoff
		r.backoff = min(r.backoff*2, maxBackoff)
		r.step()
		return delay
	case outcomeTransport:
		r.step()
		return 0
	default:
		r.nextKey()
		return 0
	}
}

func (r *rotation) step() {
	r.attempt++
	if r.attempt >= r.maxAttempts {
		r.nextKey()
	}
}

func (r *rotation) nextKey() {
	r.key++
	r.attempt = 0
	r.backoff = initialBackoff
}
