package ntuple

import (
	"tuple2048/atomic_float"
	"tuple2048/board"
)

// Table is one flat weight array shared by every pattern of a group.
type Table struct {
	family  Family
	weights []atomic_float.AtomicFloat64
}

func newTable(family Family) *Table {
	return &Table{
		family:  family,
		weights: make([]atomic_float.AtomicFloat64, family.TableSize()),
	}
}

// Family returns the pattern family the table serves.
func (t *Table) Family() Family { return t.family }

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.weights) }

// At reads the weight at code.
func (t *Table) At(code uint32) float64 {
	return t.weights[code].AtomicRead()
}

func (t *Table) add(code uint32, step float64) {
	t.weights[code].Add(step)
}

// binding ties one pattern to the table it reads and writes.
type binding struct {
	pattern Pattern
	table   *Table
}

// Network is the n-tuple value approximator: the patterns of a layout and their weight tables.
// The tables may be shared by several Estimators (one per playing goroutine); weight cells are
// atomic, so concurrent reads and updates need no further locking.
type Network struct {
	layout   Layout
	tables   []*Table
	bindings []binding
}

// NewNetwork allocates zeroed tables for the layout. It panics on a malformed pattern.
func NewNetwork(layout Layout) *Network {
	net := &Network{layout: layout}
	for _, group := range layout.Groups {
		group.validate()
		table := newTable(group.Family)
		net.tables = append(net.tables, table)
		for _, p := range group.Patterns {
			net.bindings = append(net.bindings, binding{pattern: p, table: table})
		}
	}
	return net
}

// NewNamedNetwork allocates a network for a layout from Layouts.
func NewNamedNetwork(name string) (*Network, error) {
	layout, err := LookupLayout(name)
	if err != nil {
		return nil, err
	}
	return NewNetwork(layout), nil
}

// Initialized reports whether the network has any weight tables to evaluate with.
func (net *Network) Initialized() bool {
	return net != nil && len(net.tables) > 0
}

// Layout returns the layout the network was built from.
func (net *Network) Layout() Layout { return net.layout }

// Tables returns the weight tables in layout order.
func (net *Network) Tables() []*Table { return net.tables }

// NumPatterns returns the number of registered patterns.
func (net *Network) NumPatterns() int {
	if net == nil {
		return 0
	}
	return len(net.bindings)
}

// value sums the weights for b's features. When codes is non-nil each pattern's code is
// stored in it, in binding order.
func (net *Network) value(b board.Board, codes []uint32) (sum float64) {
	if net == nil {
		return 0
	}
	for i, bnd := range net.bindings {
		code := Extract(b, bnd.pattern)
		if codes != nil {
			codes[i] = code
		}
		sum += bnd.table.At(code)
	}
	return
}

// Value evaluates a board without touching any cache. An uninitialized network evaluates
// every board to 0.
func (net *Network) Value(b board.Board) float64 {
	return net.value(b, nil)
}

// MeanValue returns the mean prediction over the sample, or 0 for an empty sample.
func (net *Network) MeanValue(sample []board.Board) float64 {
	if len(sample) == 0 {
		return 0
	}
	total := 0.0
	for _, b := range sample {
		total += net.Value(b)
	}
	return total / float64(len(sample))
}
