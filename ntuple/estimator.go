package ntuple

import "tuple2048/board"

// Estimator is a per-player view of a Network. It remembers the feature codes of the last
// afterstate evaluated with EvaluateAndCache, so that the following Update writes exactly the
// weights that produced that estimate. Estimators are not safe for concurrent use; give every
// playing goroutine its own.
type Estimator struct {
	net    *Network
	codes  []uint32
	cached bool
}

// NewEstimator returns an estimator reading and writing net.
func NewEstimator(net *Network) *Estimator {
	return &Estimator{
		net:   net,
		codes: make([]uint32, net.NumPatterns()),
	}
}

// Network returns the underlying network.
func (e *Estimator) Network() *Network { return e.net }

// Evaluate returns the summed weights for b.
func (e *Estimator) Evaluate(b board.Board) float64 {
	return e.net.value(b, nil)
}

// EvaluateAndCache evaluates b and records its feature codes for the next Update.
func (e *Estimator) EvaluateAndCache(b board.Board) float64 {
	v := e.net.value(b, e.codes)
	e.cached = e.net.Initialized()
	return v
}

// Update moves the cached features' weights by rate*delta, scaled per pattern family. Each
// step is written at the cached code and at the code with every tile one rank higher, which
// lets what was learned about a configuration carry over to its promoted twin. The shifted
// write is skipped for codes already holding a maximum-rank tile. Without a cache it is a no-op.
func (e *Estimator) Update(delta, rate float64) {
	if !e.cached {
		return
	}
	for i, bnd := range e.net.bindings {
		family := bnd.table.family
		step := rate * delta * family.Scale()
		code := e.codes[i]
		bnd.table.add(code, step)
		if shifted, ok := family.Shift(code); ok {
			bnd.table.add(shifted, step)
		}
	}
}

// Reset forgets the cached features, e.g. at the start of an episode.
func (e *Estimator) Reset() {
	e.cached = false
}
