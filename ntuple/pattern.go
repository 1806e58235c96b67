// Package ntuple implements the n-tuple network: tuple patterns over board cells, feature
// extraction, the weight tables and the TD update applied to them.
package ntuple

import (
	"errors"
	"fmt"
	"sort"

	"tuple2048/board"

	"github.com/samber/lo"
)

// Family is a pattern length class. Every family has its own table size, update scale and
// shifted-write offset.
type Family int

const (
	// Quad patterns cover 4 cells: 16-bit codes.
	Quad Family = iota
	// Hexa patterns cover 6 cells: 24-bit codes.
	Hexa
)

// Len is the number of cells in patterns of this family.
func (f Family) Len() int {
	if f == Hexa {
		return 6
	}
	return 4
}

// TableSize is the number of distinct feature codes, hence table entries.
func (f Family) TableSize() int {
	return 1 << (4 * f.Len())
}

// Scale weights the learning step per family.
func (f Family) Scale() float64 {
	if f == Hexa {
		return 1.5
	}
	return 1.0
}

// offset adds one to every nibble of a code.
func (f Family) offset() uint32 {
	if f == Hexa {
		return 0x111111
	}
	return 0x1111
}

// Shift returns the code of the same configuration with every tile one rank higher.
// It fails when a nibble is already at the maximum rank, since the carry would corrupt the
// neighbouring nibble (or run off the end of the table).
func (f Family) Shift(code uint32) (uint32, bool) {
	for i := 0; i < f.Len(); i++ {
		if (code>>(4*i))&0xF == uint32(board.MaxCell) {
			return 0, false
		}
	}
	return code + f.offset(), true
}

func (f Family) String() string {
	if f == Hexa {
		return "hexa"
	}
	return "quad"
}

// Pattern is an ordered list of board positions forming one feature.
type Pattern []int

// Extract packs the pattern's cells into a feature code, most significant cell first.
func Extract(b board.Board, p Pattern) (code uint32) {
	for _, pos := range p {
		code = (code << 4) | uint32(b.Cell(pos))
	}
	return
}

// Group is a set of same-family patterns sharing one weight table.
type Group struct {
	Family   Family
	Patterns []Pattern
}

// Layout is a named selection of pattern groups; each group becomes one table.
type Layout struct {
	Name   string
	Groups []Group
}

var (
	rows = Group{Family: Quad, Patterns: []Pattern{
		{0, 1, 2, 3}, {4, 5, 6, 7}, {8, 9, 10, 11}, {12, 13, 14, 15},
	}}
	cols = Group{Family: Quad, Patterns: []Pattern{
		{0, 4, 8, 12}, {1, 5, 9, 13}, {2, 6, 10, 14}, {3, 7, 11, 15},
	}}
	hexas = Group{Family: Hexa, Patterns: []Pattern{
		{0, 1, 2, 3, 4, 5}, {4, 5, 6, 7, 8, 9}, {0, 1, 2, 4, 5, 6}, {4, 5, 6, 8, 9, 10},
	}}

	// Layouts are the selectable tuple layouts. "standard" is the full network: two quad tables
	// for the rows and columns and one hexa table.
	Layouts = map[string]Layout{
		"rowcol":   {Name: "rowcol", Groups: []Group{rows, cols}},
		"standard": {Name: "standard", Groups: []Group{rows, cols, hexas}},
		"hexa":     {Name: "hexa", Groups: []Group{hexas}},
	}
)

// DefaultLayout is used when no layout is configured.
const DefaultLayout = "standard"

// ErrUnknownLayout is returned for layout names missing from Layouts.
var ErrUnknownLayout = errors.New("unknown tuple layout")

// LookupLayout returns the named layout.
func LookupLayout(name string) (Layout, error) {
	if name == "" {
		name = DefaultLayout
	}
	layout, ok := Layouts[name]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %q (have %v)", ErrUnknownLayout, name, LayoutNames())
	}
	return layout, nil
}

// LayoutNames lists the selectable layouts, sorted.
func LayoutNames() []string {
	names := lo.Keys(Layouts)
	sort.Strings(names)
	return names
}

// validate panics on malformed groups; a bad pattern is a programming error, not input.
func (g Group) validate() {
	for _, p := range g.Patterns {
		if len(p) != g.Family.Len() {
			panic(fmt.Sprintf("ntuple: %s pattern %v has %d cells", g.Family, p, len(p)))
		}
		seen := map[int]bool{}
		for _, pos := range p {
			if pos < 0 || pos >= board.NumCell {
				panic(fmt.Sprintf("ntuple: pattern %v has out of board position %d", p, pos))
			}
			if seen[pos] {
				panic(fmt.Sprintf("ntuple: pattern %v repeats position %d", p, pos))
			}
			seen[pos] = true
		}
	}
}
