package agent

import (
	"math/rand"

	"tuple2048/board"

	"github.com/samber/lo"
)

const randomDefaults = "name=random role=player"

// RandomPlayer slides in a uniformly random legal direction. It is the baseline the learning
// player is measured against.
type RandomPlayer struct {
	meta
	rng *rand.Rand
}

func NewRandomPlayer(args ...string) (*RandomPlayer, error) {
	props := ParseProps(append([]string{randomDefaults}, args...)...)
	rng, err := newRand(props)
	if err != nil {
		return nil, err
	}
	return &RandomPlayer{meta: meta{props: props}, rng: rng}, nil
}

func (rp *RandomPlayer) OpenEpisode(string) {}

func (rp *RandomPlayer) TakeAction(before board.Board, _ Action) Action {
	legal := lo.Filter(board.Directions[:], func(d board.Direction, _ int) bool {
		trial := before
		return trial.Slide(d) != board.Illegal
	})
	if len(legal) == 0 {
		return NoAction()
	}
	return Slide(legal[rp.rng.Intn(len(legal))])
}
