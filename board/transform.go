package board

// The transforms below are bijections on cell positions. Slides in every direction other than
// left are expressed through them, so they must stay exact inverses of each other.

func (b *Board) Transpose() {
	for r := 0; r < Size; r++ {
		for c := r + 1; c < Size; c++ {
			b[r][c], b[c][r] = b[c][r], b[r][c]
		}
	}
}

func (b *Board) ReflectHorizontal() {
	for r := 0; r < Size; r++ {
		b[r][0], b[r][3] = b[r][3], b[r][0]
		b[r][1], b[r][2] = b[r][2], b[r][1]
	}
}

func (b *Board) ReflectVertical() {
	for c := 0; c < Size; c++ {
		b[0][c], b[3][c] = b[3][c], b[0][c]
		b[1][c], b[2][c] = b[2][c], b[1][c]
	}
}

// RotateRight rotates clockwise.
func (b *Board) RotateRight() { b.Transpose(); b.ReflectHorizontal() }

// RotateLeft rotates counterclockwise.
func (b *Board) RotateLeft() { b.Transpose(); b.ReflectVertical() }

// Reverse rotates by 180 degrees.
func (b *Board) Reverse() { b.ReflectHorizontal(); b.ReflectVertical() }

// Rotate rotates clockwise n times; negative n rotates counterclockwise.
func (b *Board) Rotate(n int) {
	switch ((n % 4) + 4) % 4 {
	case 1:
		b.RotateRight()
	case 2:
		b.Reverse()
	case 3:
		b.RotateLeft()
	}
}

// NumFlips is the number of board isometries (4 rotations, each optionally mirrored).
const NumFlips = 8

// Flip applies isometry i in [0, NumFlips): i%4 clockwise rotations, mirrored left to right
// when i >= 4. Out of range values leave the board untouched.
func (b *Board) Flip(i int) {
	if i < 0 || i >= NumFlips {
		return
	}
	b.Rotate(i % 4)
	if i >= 4 {
		b.ReflectHorizontal()
	}
}

// flipRemap[d][i] is the direction on the unflipped board equivalent to sliding d on a board
// transformed by Flip(i).
var flipRemap = [4][NumFlips]Direction{
	{Up, Left, Down, Right, Up, Left, Down, Right},
	{Right, Up, Left, Down, Left, Down, Right, Up},
	{Down, Right, Up, Left, Down, Right, Up, Left},
	{Left, Down, Right, Up, Right, Up, Left, Down},
}

// UnderFlip maps a slide made on a board transformed by Flip(i) back to the original board.
func (d Direction) UnderFlip(i int) Direction {
	if d < Up || d > Left || i < 0 || i >= NumFlips {
		return NoDirection
	}
	return flipRemap[d][i]
}
