package reinforcement

/*
Self-play TD(0) training. A fixed number of workers each own a player, an environment and the
player's estimator cache, and play episodes against one shared network. The network's weight
cells are atomic floats, so the workers update them lock-free without any coordination; the
occasional lost race between two workers writing the same cell is tolerated, as in Hogwild.

Workers claim episodes from a shared counter so that exactly the configured number is played,
and send their records to a single collector through a fan-in channel. The collector keeps the
statistics, logs block summaries and calls the progress callback. Cancellation and the training
deadline are observed between episodes; an episode in progress always runs to its end.
*/

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"tuple2048/agent"
	"tuple2048/board"
	"tuple2048/episode"
	"tuple2048/ntuple"
	"tuple2048/stats"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"lukechampine.com/frand"
)

// ProgressFunc is a callback by which the training method can lend progress details,
// while exercising some level of control over its cancellation to prevent blocking.
// ProgressFunc is synchronous/blocking and should be defined to complete quickly.
type ProgressFunc func(context.Context, int)

// openingSalt separates the opening generators' seeds from the agents' seeds.
const openingSalt = 0x0e0e

// monitorSize is the number of held-out mid-game boards whose mean value is logged per block.
const monitorSize = 64

// Trainer runs self-play training against one network.
type Trainer struct {
	net     *ntuple.Network
	cfg     *TrainingConfig
	stats   *stats.Collector
	monitor []board.Board
	claimed atomic.Int64
}

// NewTrainer validates cfg and prepares the monitoring sample.
func NewTrainer(net *ntuple.Network, cfg *TrainingConfig) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !net.Initialized() {
		return nil, agent.ErrNoNetwork
	}
	block := cfg.Block
	if block <= 0 {
		block = 100
	}
	monitor, err := SampleBoards(monitorSize, cfg.Seed^0x2048)
	if err != nil {
		return nil, fmt.Errorf("monitor sample: %w", err)
	}
	return &Trainer{
		net:     net,
		cfg:     cfg,
		stats:   stats.NewCollector(block),
		monitor: monitor,
	}, nil
}

// Stats returns the trainer's statistics; safe to read while training.
func (t *Trainer) Stats() *stats.Collector { return t.stats }

// Network returns the network being trained.
func (t *Trainer) Network() *ntuple.Network { return t.net }

// MonitorValue is the network's mean prediction over the held-out sample.
func (t *Trainer) MonitorValue() float64 { return t.net.MeanValue(t.monitor) }

// newAgents builds worker i's player and environment.
func (t *Trainer) newAgents(i int) (agent.Agent, agent.Agent, error) {
	var playerSeed, envSeed []string
	if t.cfg.Seed != 0 {
		playerSeed = []string{fmt.Sprintf("seed=%d", t.cfg.Seed+int64(2*i))}
		envSeed = []string{fmt.Sprintf("seed=%d", t.cfg.Seed+int64(2*i+1))}
	}

	var player agent.Agent
	var err error
	switch t.cfg.PlayerKind() {
	case "random":
		player, err = agent.NewRandomPlayer(t.cfg.AgentArgs("player", playerSeed...))
	default:
		player, err = agent.NewPlayer(t.net, t.cfg.AgentArgs("player", playerSeed...))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("worker %d player: %w", i, err)
	}
	// Workers see the board through different isometries unless the flip is fixed by argument.
	if t.cfg.PlayerKind() == "td" && !agent.ParseProps(t.cfg.AgentArgs("player")).Has("flip") {
		player.Notify(fmt.Sprintf("flip=%d", i%board.NumFlips))
	}
	env, err := agent.NewEnvironment(t.cfg.AgentArgs("environment", envSeed...))
	if err != nil {
		return nil, nil, fmt.Errorf("worker %d environment: %w", i, err)
	}
	return player, env, nil
}

// episodeOptions builds worker i's episode options. A random opening draws from a generator of
// its own, seeded like the agents when the run is seeded.
func (t *Trainer) episodeOptions(i int) episode.Options {
	opts := episode.Options{
		InitialTiles:  t.cfg.InitialTiles,
		RandomOpening: t.cfg.RandomOpening,
	}
	if opts.RandomOpening {
		seed := int64(frand.Uint64n(1 << 62))
		if t.cfg.Seed != 0 {
			seed = (t.cfg.Seed ^ openingSalt) + int64(i)
		}
		opts.Rand = rand.New(rand.NewSource(seed))
	}
	return opts
}

// claim reserves the next episode number, or returns false once the configured count is spent.
func (t *Trainer) claim() (int, bool) {
	n := int(t.claimed.Add(1))
	if t.cfg.Episodes > 0 && n > t.cfg.Episodes {
		return 0, false
	}
	return n, true
}

// Train plays episodes on nworkers goroutines until the configured count is reached, the
// training deadline passes or ctx is cancelled. It returns the number of episodes collected.
// Cancellation is not an error.
//
// The episode count is the trainer's total, not a per call budget: once a trainer has played
// it, further calls log a warning and return 0. Build a new trainer over the same network to
// train on.
func (t *Trainer) Train(ctx context.Context, nworkers int, progressFn ProgressFunc) (int, error) {
	if nworkers < 1 {
		nworkers = 1
	}
	ctx, cancel, err := t.cfg.WithTrainingDeadline(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	// Build every worker's agents up front so that bad arguments fail before any play.
	type pair struct{ player, env agent.Agent }
	pairs := make([]pair, nworkers)
	for i := range pairs {
		if pairs[i].player, pairs[i].env, err = t.newAgents(i); err != nil {
			return 0, err
		}
	}

	if spent := int(t.claimed.Load()); t.cfg.Episodes > 0 && spent >= t.cfg.Episodes {
		log.Warn().
			Int("episodes", t.cfg.Episodes).
			Msg("episode count already spent, nothing to train")
		return 0, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	done := groupCtx.Done()

	worker := func(id int, p pair) <-chan episode.Record {
		records := make(chan episode.Record)
		opts := t.episodeOptions(id)
		group.Go(func() error {
			defer close(records)
			for {
				// done-guard
				select {
				case <-done:
					return nil
				default:
				}

				n, ok := t.claim()
				if !ok {
					return nil
				}
				rec, err := episode.Play(p.player, p.env, opts)
				if err != nil {
					return fmt.Errorf("worker %d episode %d: %w", id, n, err)
				}
				rec.Episode = n

				select {
				case records <- rec:
				case <-done:
					return nil
				}
			}
		})
		return records
	}

	workers := make([]<-chan episode.Record, 0, nworkers)
	for i, p := range pairs {
		workers = append(workers, worker(i, p))
	}
	records := channerics.Merge(done, workers...)

	log.Info().
		Int("workers", nworkers).
		Int("episodes", t.cfg.Episodes).
		Str("layout", t.net.Layout().Name).
		Str("player", t.cfg.PlayerKind()).
		Msg("training started")

	start := time.Now()
	collected := 0
	for rec := range records {
		t.stats.Add(rec)
		collected++
		if t.stats.BlockDone() {
			t.logBlock()
		}
		if progressFn != nil {
			progressFn(ctx, collected)
		}
	}

	if err := group.Wait(); err != nil {
		return collected, err
	}
	log.Info().
		Int("episodes", collected).
		Dur("elapsed", time.Since(start)).
		Float64("monitorValue", t.MonitorValue()).
		Msg("training finished")
	return collected, nil
}

func (t *Trainer) logBlock() {
	sum := t.stats.Summary()
	event := log.Info().
		Int("episode", sum.Episodes).
		Float64("avg", sum.MeanScore).
		Float64("ci", sum.Interval).
		Float64("std", sum.StdScore).
		Float64("max", sum.MaxScore).
		Float64("moves", sum.MeanMoves).
		Float64("monitorValue", t.MonitorValue())
	if n := len(sum.Tiles); n > 0 {
		top := sum.Tiles[n-1]
		event = event.Int("topTile", top.Tile).Float64("topTileRate", top.Reached)
	}
	event.Msg("block summary")
	log.Debug().Msg("\n" + sum.String())
}

// SampleBoards plays random episodes and returns the board halfway through each, a held-out
// sample of mid-game positions for monitoring a network's predictions.
func SampleBoards(n int, seed int64) ([]board.Board, error) {
	rng := rand.New(rand.NewSource(seed))
	player, err := agent.NewRandomPlayer(fmt.Sprintf("seed=%d", rng.Int63()))
	if err != nil {
		return nil, err
	}
	env, err := agent.NewEnvironment(fmt.Sprintf("seed=%d", rng.Int63()))
	if err != nil {
		return nil, err
	}

	sample := make([]board.Board, 0, n)
	for len(sample) < n {
		rec, err := episode.Play(player, env, episode.Options{RecordSteps: true})
		if err != nil {
			return nil, err
		}
		mid, err := rec.ReplayTo(len(rec.Steps) / 2)
		if err != nil {
			return nil, err
		}
		sample = append(sample, mid)
	}
	return sample, nil
}
