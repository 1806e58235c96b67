// Package episode drives one game between a player and the environment and keeps its record.
package episode

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"tuple2048/agent"
	"tuple2048/board"

	"github.com/rs/zerolog/log"
)

// ErrIllegalAction is returned when an agent emits an action the board rejects.
var ErrIllegalAction = errors.New("illegal action")

// DefaultInitialTiles is the number of tiles the environment places before the first slide.
const DefaultInitialTiles = 9

// Options configure a single episode.
type Options struct {
	// InitialTiles placed by the environment before the player moves. Zero means
	// DefaultInitialTiles.
	InitialTiles int
	// RandomOpening starts from board.Initial drawn from Rand instead of environment
	// placements; InitialTiles is then ignored.
	RandomOpening bool
	Rand          *rand.Rand
	// RecordSteps keeps every action in the Record so that the game can be replayed.
	RecordSteps bool
}

// Step is one applied action and its reward.
type Step struct {
	Action agent.Action
	Reward board.Reward
}

// Record is the outcome of one episode.
type Record struct {
	Episode  int
	Score    int
	Moves    int
	MaxTile  board.Cell
	Final    board.Board
	Duration time.Duration
	Steps    []Step
}

// Replay re-applies the recorded steps to an empty board.
func (rec *Record) Replay() (board.Board, error) {
	return rec.ReplayTo(len(rec.Steps))
}

// ReplayTo re-applies the first n recorded steps, giving the board as it stood mid-game.
func (rec *Record) ReplayTo(n int) (b board.Board, err error) {
	if n < 0 || n > len(rec.Steps) {
		return b, fmt.Errorf("replay to step %d of %d", n, len(rec.Steps))
	}
	for i, step := range rec.Steps[:n] {
		if step.Action.Apply(&b) == board.Illegal {
			return b, fmt.Errorf("%w: step %d %s", ErrIllegalAction, i, step.Action)
		}
	}
	return b, nil
}

// ErrNoOpeningRand is returned when a random opening is requested without a generator.
var ErrNoOpeningRand = errors.New("random opening requires Options.Rand")

// Play runs one episode: both agents are opened, the opening tiles are placed, then
// player and environment alternate until the player has no slide left. Each agent receives the
// other's last action.
func Play(player, env agent.Agent, opts Options) (rec Record, err error) {
	if opts.InitialTiles == 0 {
		opts.InitialTiles = DefaultInitialTiles
	}
	if opts.InitialTiles < 0 || opts.InitialTiles > board.NumCell {
		return rec, fmt.Errorf("initial tiles must be in [1,%d], got %d", board.NumCell, opts.InitialTiles)
	}
	if opts.RandomOpening && opts.Rand == nil {
		return rec, ErrNoOpeningRand
	}

	var b board.Board
	start := time.Now()
	player.OpenEpisode("")
	env.OpenEpisode("")
	defer func() {
		player.CloseEpisode("")
		env.CloseEpisode("")
		rec.Final = b
		rec.MaxTile = b.MaxTile()
		rec.Duration = time.Since(start)
	}()

	apply := func(who agent.Agent, action agent.Action) (board.Reward, error) {
		reward := action.Apply(&b)
		if reward == board.Illegal {
			return reward, fmt.Errorf("%w: %s %s by %s", ErrIllegalAction, who.Role(), action, who.Name())
		}
		if opts.RecordSteps {
			rec.Steps = append(rec.Steps, Step{Action: action, Reward: reward})
		}
		return reward, nil
	}

	last := agent.NoAction()
	if opts.RandomOpening {
		// Recorded as placements so that the opening replays like any other.
		opening := board.Initial(opts.Rand)
		for pos := 0; pos < board.NumCell; pos++ {
			if tile := opening.Cell(pos); tile != 0 {
				if _, err = apply(env, agent.Place(pos, tile)); err != nil {
					return rec, err
				}
			}
		}
	} else {
		for i := 0; i < opts.InitialTiles; i++ {
			last = env.TakeAction(b, agent.NoAction())
			if _, err = apply(env, last); err != nil {
				return rec, err
			}
		}
	}

	for {
		slide := player.TakeAction(b, last)
		if slide.IsNone() {
			break
		}
		var reward board.Reward
		if reward, err = apply(player, slide); err != nil {
			return rec, err
		}
		rec.Score += int(reward)
		rec.Moves++

		last = env.TakeAction(b, slide)
		if last.IsNone() {
			log.Warn().Str("after", slide.String()).Msg("environment found no cell to place on")
			break
		}
		if _, err = apply(env, last); err != nil {
			return rec, err
		}
	}

	log.Debug().
		Int("score", rec.Score).
		Int("moves", rec.Moves).
		Int("maxTile", b.MaxTile().Value()).
		Msg("episode finished")
	return rec, nil
}
