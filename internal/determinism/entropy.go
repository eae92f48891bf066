// Package determinism provides replay-safe randomness and clock sources for
// workflow code. Temporal (and any deterministic-replay engine) requires
// that a workflow body never touch the OS random pool or wall clock
// directly: every value it produces must be reconstructible from recorded
// history. This package seeds a small PRNG from the engine's per-workflow
// random seed and derives a logical wall clock from the engine's logical
// time, so the workflow loop can call uuid()/u64()/wallTime() freely without
// breaking replay.
package determinism

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type (
	// Source is a deterministic randomness provider. Two Sources built from
	// the same seed produce identical sequences of Uint64/Float64/UUID calls.
	Source struct {
		state uint64
	}

	// Clock derives a monotonically increasing logical wall-clock from a
	// workflow's starting logical time, plus a real OS clock for
	// within-activation duration measurements that are never observed across
	// history.
	Clock struct {
		epoch time.Time
		tick  uint64
	}

	ctxKey struct{}

	// Scope bundles a Source and a Clock for a single workflow activation.
	Scope struct {
		Random *Source
		Clock  *Clock
	}
)

// NewSource builds a deterministic random source from a 64-bit seed. A zero
// seed is remapped to a fixed non-zero constant since xorshift64 cannot
// escape the all-zero state.
func NewSource(seed uint64) *Source {
	if seed == 0 {
		seed = 0xDEAD_BEEF_CAFE_BABE
	}
	return &Source{state: seed}
}

// Uint64 returns the next value in the deterministic sequence using
// xorshift64. The algorithm is chosen for its minimal state (a single
// uint64) and its lack of reliance on a monotonic counter, matching how the
// original harness seeds per-workflow entropy.
func (s *Source) Uint64() uint64 {
	x := atomic.LoadUint64(&s.state)
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	atomic.StoreUint64(&s.state, x)
	return x
}

// Float64 returns a deterministic value in [0, 1).
func (s *Source) Float64() float64 {
	return float64(s.Uint64()>>11) / float64(uint64(1)<<53)
}

// Float64Range returns a deterministic value in [lo, hi).
func (s *Source) Float64Range(lo, hi float64) float64 {
	return lo + s.Float64()*(hi-lo)
}

// UUID returns a deterministic, RFC 4122 v4-shaped UUID. The 128 bits come
// entirely from the PRNG; only the version (4) and variant bits are forced,
// matching the v4 *shape* without consuming OS entropy. google/uuid supplies
// canonical parsing/formatting so callers get a real uuid.UUID rather than a
// hand-rolled string.
func (s *Source) UUID() uuid.UUID {
	a, b := s.Uint64(), s.Uint64()
	var id uuid.UUID
	for i := 0; i < 8; i++ {
		id[i] = byte(a >> (8 * i))
		id[8+i] = byte(b >> (8 * i))
	}
	id[6] = (id[6] & 0x0F) | 0x40
	id[8] = (id[8] & 0x3F) | 0x80
	return id
}

// NewClock builds a Clock anchored at the workflow's logical start time.
func NewClock(workflowTime time.Time) *Clock {
	return &Clock{epoch: workflowTime}
}

// WallTime returns the engine's logical workflow time plus an
// internally-tracked monotonic tick, so that successive calls within an
// activation return strictly increasing values without ever reading the OS
// clock.
func (c *Clock) WallTime() time.Time {
	tick := atomic.AddUint64(&c.tick, 1)
	return c.epoch.Add(time.Duration(tick) * time.Millisecond)
}

// Now returns a real monotonic instant. It is safe to call from workflow
// code only because its result is used exclusively for in-activation
// duration measurement and is never recorded in, or reconstructed from,
// workflow history.
func (c *Clock) Now() time.Time {
	return time.Now()
}

// NewScope builds a Scope for one workflow activation from the engine's
// random seed and logical time.
func NewScope(seed uint64, workflowTime time.Time) Scope {
	return Scope{Random: NewSource(seed), Clock: NewClock(workflowTime)}
}

// WithScope threads a Scope through a context explicitly, per the design
// note preferring an explicit Context over a process-wide global in
// languages (like Go) that have first-class context support.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext recovers the Scope installed by WithScope. The second return
// value is false if no scope was installed.
func FromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(ctxKey{}).(Scope)
	return s, ok
}
