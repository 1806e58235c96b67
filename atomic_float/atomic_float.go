package atomic_float

import (
	"math"
	"sync/atomic"
)

// Notes:
//   - the weight tables are read by every self-play worker on every decision and written by
//     whichever worker just moved, without locks.
//   - a float64 is stored as its IEEE bits in an atomic.Uint64, so loads and CAS are plain
//     word-sized atomics and no unsafe pointer arithmetic is needed.
//   - concurrent adds may interleave, but Add never loses one: it retries until its CAS lands.

// AtomicFloat64 is a float64 supporting non-locking atomic operations.
// The zero value is 0.0 and ready for use, so tables can be allocated with make().
type AtomicFloat64 struct {
	bits atomic.Uint64
}

// NewAtomicFloat64 returns an AtomicFloat64 initialized to val.
func NewAtomicFloat64(val float64) *AtomicFloat64 {
	af := &AtomicFloat64{}
	af.AtomicSet(val)
	return af
}

// AtomicRead atomically reads the float64.
func (af *AtomicFloat64) AtomicRead() float64 {
	return math.Float64frombits(af.bits.Load())
}

// AtomicAdd makes a single attempt to add @addend. If the value changed between the read and
// the swap, the add is not applied and succeeded is false, leaving the caller to decide whether
// to retry, recalculate or drop the update.
func (af *AtomicFloat64) AtomicAdd(addend float64) (newVal float64, succeeded bool) {
	old := af.bits.Load()
	newVal = math.Float64frombits(old) + addend
	succeeded = af.bits.CompareAndSwap(old, math.Float64bits(newVal))
	return
}

// Add adds @addend, retrying until the swap succeeds, and returns the new value.
func (af *AtomicFloat64) Add(addend float64) float64 {
	for {
		if newVal, ok := af.AtomicAdd(addend); ok {
			return newVal
		}
	}
}

// AtomicSet unconditionally stores newVal.
func (af *AtomicFloat64) AtomicSet(newVal float64) {
	af.bits.Store(math.Float64bits(newVal))
}
