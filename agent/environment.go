package agent

import (
	"math/rand"

	"tuple2048/board"
)

const environmentDefaults = "name=bag role=environment"

// Environment places a new tile after every slide, on the edge the player slid away from.
// Tiles come from a bag holding one each of 1, 2 and 3, reshuffled once drawn empty.
type Environment struct {
	meta
	rng *rand.Rand

	// Candidate positions per direction of the previous slide.
	space [4][4]int
	// Placement order while nothing has slid yet, reshuffled per episode.
	opening [board.NumCell]int
	bag     [3]board.Cell
	used    int
}

// NewEnvironment builds an environment; the only property it reads is seed.
func NewEnvironment(args ...string) (*Environment, error) {
	props := ParseProps(append([]string{environmentDefaults}, args...)...)
	rng, err := newRand(props)
	if err != nil {
		return nil, err
	}

	env := &Environment{
		meta: meta{props: props},
		rng:  rng,
		space: [4][4]int{
			board.Up:    {12, 13, 14, 15},
			board.Right: {0, 4, 8, 12},
			board.Down:  {0, 1, 2, 3},
			board.Left:  {3, 7, 11, 15},
		},
		bag: [3]board.Cell{1, 2, 3},
	}
	for i := range env.opening {
		env.opening[i] = i
	}
	env.OpenEpisode("")
	return env, nil
}

// OpenEpisode refills the bag and reshuffles the opening order.
func (env *Environment) OpenEpisode(string) {
	env.used = 0
	env.shuffleBag()
	env.rng.Shuffle(len(env.opening), func(i, j int) {
		env.opening[i], env.opening[j] = env.opening[j], env.opening[i]
	})
}

func (env *Environment) shuffleBag() {
	env.rng.Shuffle(len(env.bag), func(i, j int) {
		env.bag[i], env.bag[j] = env.bag[j], env.bag[i]
	})
}

// draw takes the next tile from the bag.
func (env *Environment) draw() board.Cell {
	tile := env.bag[env.used]
	env.used++
	if env.used == len(env.bag) {
		env.shuffleBag()
		env.used = 0
	}
	return tile
}

// TakeAction places the next tile. prev is the player's last action: after a slide the tile
// goes to a random empty cell on the trailing edge, otherwise to any empty cell. Returns
// NoAction when no candidate cell is empty.
func (env *Environment) TakeAction(after board.Board, prev Action) Action {
	tile := env.draw()

	if prev.Kind != KindSlide || prev.Direction < board.Up || prev.Direction > board.Left {
		for _, pos := range env.opening {
			if after.Cell(pos) == 0 {
				return Place(pos, tile)
			}
		}
		return NoAction()
	}

	candidates := env.space[prev.Direction]
	env.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	for _, pos := range candidates {
		if after.Cell(pos) == 0 {
			return Place(pos, tile)
		}
	}
	return NoAction()
}
