package agent

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"tuple2048/board"
	"tuple2048/ntuple"

	"github.com/rs/zerolog/log"
)

// ErrNoNetwork is returned when a learning player is built without weight tables.
var ErrNoNetwork = errors.New("player requires an initialized n-tuple network")

const playerDefaults = "name=td role=player alpha=0.1 learn=1 shuffle=0 flip=0"

// Player picks the slide maximizing reward plus the estimated value of the resulting afterstate,
// and learns by TD(0) over afterstates: each decision moves the previous afterstate's value
// toward the best candidate's reward plus value, and the terminal decision moves it toward zero.
//
// Properties: alpha (learning rate), learn (0 disables updates), shuffle (1 randomizes the
// enumeration order per decision), flip (the board isometry the player sees, 0 to 7), seed.
// All but seed may be changed with Notify.
type Player struct {
	meta
	est     *ntuple.Estimator
	rng     *rand.Rand
	alpha   float64
	learn   bool
	shuffle bool
	flip    int
	order   [4]board.Direction

	// Per-episode state.
	prevValue float64
	moves     int
	last      board.Direction
}

// NewPlayer builds a learning player over net. Each player owns its estimator cache, so any
// number of players may share one network.
func NewPlayer(net *ntuple.Network, args ...string) (*Player, error) {
	if !net.Initialized() {
		return nil, ErrNoNetwork
	}

	props := ParseProps(append([]string{playerDefaults}, args...)...)
	p := &Player{
		meta:  meta{props: props},
		est:   ntuple.NewEstimator(net),
		order: board.Directions,
		last:  board.NoDirection,
	}

	if err := p.configure(); err != nil {
		return nil, err
	}
	var err error
	if p.rng, err = newRand(props); err != nil {
		return nil, err
	}
	return p, nil
}

// configure reads the tunable properties, leaving the player unchanged on error.
func (p *Player) configure() error {
	alpha, err := p.props.Float("alpha")
	if err != nil {
		return err
	}
	learn, err := p.props.Bool("learn")
	if err != nil {
		return err
	}
	shuffle, err := p.props.Bool("shuffle")
	if err != nil {
		return err
	}
	flip, err := p.props.Int("flip")
	if err != nil {
		return err
	}
	if flip < 0 || flip >= board.NumFlips {
		return fmt.Errorf("flip must be in [0,%d), got %d", board.NumFlips, flip)
	}
	if alpha <= 0 && learn {
		return fmt.Errorf("learning rate must be positive, got %v", alpha)
	}
	p.alpha, p.learn, p.shuffle, p.flip = alpha, learn, shuffle, int(flip)
	return nil
}

// Notify sets a property and applies it. A value the player cannot use is logged and ignored.
func (p *Player) Notify(msg string) {
	key, _, _ := strings.Cut(msg, "=")
	old, had := p.props[key]
	p.props.Notify(msg)
	if err := p.configure(); err != nil {
		log.Warn().Err(err).Str("agent", p.Name()).Str("msg", msg).Msg("notify ignored")
		if had {
			p.props[key] = old
		} else {
			delete(p.props, key)
		}
	}
}

// OpenEpisode resets the per-episode state.
func (p *Player) OpenEpisode(string) {
	p.prevValue = 0
	p.moves = 0
	p.last = board.NoDirection
	p.est.Reset()
}

// TakeAction chooses the next slide, updating the weights on the way. A terminal board yields
// NoAction after the final update.
func (p *Player) TakeAction(before board.Board, _ Action) Action {
	// Decisions and features are taken on the flipped view; the chosen slide is mapped back.
	before.Flip(p.flip)
	if p.shuffle {
		p.rng.Shuffle(len(p.order), func(i, j int) {
			p.order[i], p.order[j] = p.order[j], p.order[i]
		})
	}

	best := board.NoDirection
	bestScore := math.Inf(-1)
	var bestAfter board.Board
	for _, d := range p.order {
		after := before
		reward := after.Slide(d)
		if reward == board.Illegal {
			continue
		}
		// Ties keep the earliest direction in enumeration order.
		if score := float64(reward) + p.est.Evaluate(after); score > bestScore {
			best, bestScore, bestAfter = d, score, after
		}
	}

	if best == board.NoDirection {
		if p.learn {
			p.est.Update(-p.prevValue, p.alpha)
		}
		log.Debug().
			Int("moves", p.moves).
			Float64("lastValue", p.prevValue).
			Msg("no legal slide, episode over")
		p.est.Reset()
		p.prevValue = 0
		return NoAction()
	}

	if p.learn && p.moves > 0 {
		p.est.Update(bestScore-p.prevValue, p.alpha)
	}

	p.prevValue = p.est.EvaluateAndCache(bestAfter)
	p.moves++
	p.last = best.UnderFlip(p.flip)
	return Slide(p.last)
}

// LastDirection is the most recent slide, or board.NoDirection before the first one.
func (p *Player) LastDirection() board.Direction { return p.last }

// Moves is the number of slides made this episode.
func (p *Player) Moves() int { return p.moves }
