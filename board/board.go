// Package board implements the 4x4 sliding-tile board and its transition rules.
//
// Cells hold exponents rather than displayed values. Index layout (1-d form):
//
//	 (0)  (1)  (2)  (3)
//	 (4)  (5)  (6)  (7)
//	 (8)  (9) (10) (11)
//	(12) (13) (14) (15)
package board

import (
	"fmt"
	"math/rand"
	"strings"
)

// Cell is an exponent-encoded tile: 0 is empty, 1..3 are base tiles, and n>3 is a merged tile
// whose displayed value is 3*2^(n-3).
type Cell uint8

// Reward is the score earned by an action. Illegal is reserved for illegal moves/placements.
type Reward int

const (
	Size    = 4
	NumCell = Size * Size
	// MaxCell is the largest exponent a cell may hold, since features pack cells into nibbles.
	MaxCell Cell = 15

	Illegal Reward = -1
)

// Direction is a slide direction. The numbering is relied on by the flip remap table.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
	// NoDirection marks that no slide has happened yet in the episode.
	NoDirection Direction = -1
)

// Directions is the fixed enumeration order for move generation.
var Directions = [4]Direction{Up, Right, Down, Left}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	}
	return "none"
}

// Displayed tile values per exponent.
var decodeTable = [MaxCell + 1]int{
	0, 1, 2, 3, 6, 12, 24, 48, 96, 192, 384, 768, 1536, 3072, 6144, 12288,
}

// Value returns the displayed value of the cell.
func (c Cell) Value() int {
	if c > MaxCell {
		return 0
	}
	return decodeTable[c]
}

// Board is a 4x4 grid of exponent cells. Boards are values: assignment copies the grid, which
// is what the learning policy relies on to try afterstates.
type Board [Size][Size]Cell

// Cell returns the cell at the 1-d position.
func (b *Board) Cell(pos int) Cell {
	return b[pos/Size][pos%Size]
}

func (b *Board) set(pos int, c Cell) {
	b[pos/Size][pos%Size] = c
}

// Place puts a base tile (1, 2 or 3) at the given 1-d position.
// Returns 0 if the placement is valid, or Illegal otherwise, leaving the board unchanged.
func (b *Board) Place(pos int, tile Cell) Reward {
	if pos < 0 || pos >= NumCell {
		return Illegal
	}
	if tile < 1 || tile > 3 {
		return Illegal
	}
	b.set(pos, tile)
	return 0
}

// Slide applies a slide in the given direction and returns its reward,
// or Illegal if nothing moved.
func (b *Board) Slide(d Direction) Reward {
	switch d {
	case Up:
		return b.SlideUp()
	case Right:
		return b.SlideRight()
	case Down:
		return b.SlideDown()
	case Left:
		return b.SlideLeft()
	}
	return Illegal
}

// SlideLeft is the single merge implementation; every other direction is a transform of it.
// Tiles move at most one cell per slide. Scanning a row left to right with the previous cell
// as the 'hold' value:
//   - an empty hold lets the remainder of the row shift left by one cell
//   - a 1 meeting a 2 merges into a 3, rewarding 3
//   - equal values of 3 or more merge into the next exponent, rewarding its displayed value
func (b *Board) SlideLeft() Reward {
	prev := *b
	score := Reward(0)
	for r := range b {
		row := &b[r]
		hold := row[0]
		for c := 1; c < Size; c++ {
			if hold == 0 {
				row[c-1] = row[c]
				row[c] = 0
				continue
			}

			cur := row[c]
			switch {
			case cur != 0 && hold+cur == 3:
				row[c-1] = 3
				row[c] = 0
				score += 3
				hold = 0
			case cur == hold && cur >= 3 && cur < MaxCell:
				row[c-1] = cur + 1
				row[c] = 0
				score += Reward((cur + 1).Value())
				hold = 0
			default:
				hold = cur
			}
		}
	}

	if *b == prev {
		return Illegal
	}
	return score
}

func (b *Board) SlideRight() Reward {
	b.ReflectHorizontal()
	score := b.SlideLeft()
	b.ReflectHorizontal()
	return score
}

func (b *Board) SlideUp() Reward {
	b.RotateRight()
	score := b.SlideRight()
	b.RotateLeft()
	return score
}

func (b *Board) SlideDown() Reward {
	b.RotateRight()
	score := b.SlideLeft()
	b.RotateLeft()
	return score
}

// MaxTile returns the highest exponent on the board.
func (b *Board) MaxTile() (top Cell) {
	for r := range b {
		for _, c := range b[r] {
			if c > top {
				top = c
			}
		}
	}
	return
}

// Empty returns the number of empty cells.
func (b *Board) Empty() (n int) {
	for r := range b {
		for _, c := range b[r] {
			if c == 0 {
				n++
			}
		}
	}
	return
}

// Clear empties the board.
func (b *Board) Clear() {
	*b = Board{}
}

// Terminal reports whether no slide is legal from b. The board is not modified.
func Terminal(b Board) bool {
	for _, d := range Directions {
		trial := b
		if trial.Slide(d) != Illegal {
			return false
		}
	}
	return true
}

// Initial returns the 9-tile opening: three each of 1, 2 and 3 scattered over random cells.
func Initial(rng *rand.Rand) (b Board) {
	bag := [9]Cell{1, 1, 1, 2, 2, 2, 3, 3, 3}
	space := rng.Perm(NumCell)
	for i, tile := range bag {
		b.set(space[i], tile)
	}
	return
}

// String renders the board with displayed values.
func (b Board) String() string {
	var sb strings.Builder
	sb.WriteString("+------------------------+\n")
	for _, row := range b {
		sb.WriteString("|")
		for _, c := range row {
			fmt.Fprintf(&sb, "%6d", c.Value())
		}
		sb.WriteString("|\n")
	}
	sb.WriteString("+------------------------+\n")
	return sb.String()
}
