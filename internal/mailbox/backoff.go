package mailbox

import "time"

// Backoff doubles a delay from Floor up to Ceiling.
type Backoff struct {
	Floor   time.Duration
	Ceiling time.Duration
	current time.Duration
}

// NewBackoff returns a Backoff positioned at floor.
func NewBackoff(floor, ceiling time.Duration) *Backoff {
	if ceiling < floor {
		ceiling = floor
	}
	return &Backoff{Floor: floor, Ceiling: ceiling, current: floor}
}

// Current is the delay to wait before the next attempt.
func (b *Backoff) Current() time.Duration {
	return b.current
}

// Fail doubles the delay, capped at Ceiling.
func (b *Backoff) Fail() {
	b.current *= 2
	if b.current > b.Ceiling || b.current <= 0 {
		b.current = b.Ceiling
	}
}

// Reset returns the delay to Floor.
func (b *Backoff) Reset() {
	b.current = b.Floor
}
