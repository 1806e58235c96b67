/*
tuple2048 trains an n-tuple network to play a Threes-style sliding tile game by TD(0) self-play,
and optionally serves a live page of the training progress. Every worker plays against one shared
network; the page shows block statistics, how often each tile is reached and the last board.
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"tuple2048/ntuple"
	"tuple2048/reinforcement"
	"tuple2048/server"
	"tuple2048/server/views"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = flag.StringP("config", "c", "", "training config yaml; defaults apply when empty")
	dbg        = flag.Bool("debug", false, "debug logging")
	nworkers   = flag.IntP("nworkers", "n", runtime.NumCPU(), "number of worker training routines")
	host       = flag.String("host", "", "the host ip")
	port       = flag.String("port", "8080", "the host port")
	serve      = flag.Bool("serve", false, "serve the progress page while training, and after it until interrupted")
)

func setupLogging(debug bool) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	output.FormatLevel = func(i interface{}) string {
		return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(output).Level(level).With().Timestamp().Logger()
	log.Debug().Msg("debug logging is on")
}

func loadConfig(path string) (*reinforcement.TrainingConfig, error) {
	if path == "" {
		return reinforcement.DefaultConfig(), nil
	}
	return reinforcement.FromYaml(path)
}

// snapshotOf reads the trainer's current progress for the views.
func snapshotOf(trainer *reinforcement.Trainer) views.Snapshot {
	snap := views.Snapshot{
		Summary:      trainer.Stats().Summary(),
		MonitorValue: trainer.MonitorValue(),
	}
	if last, ok := trainer.Stats().Last(); ok {
		snap.LastScore = last.Score
		snap.LastBoard = last.Final
	}
	return snap
}

func runApp() (err error) {
	var cfg *reinforcement.TrainingConfig
	if cfg, err = loadConfig(*configPath); err != nil {
		return
	}

	var net *ntuple.Network
	if net, err = ntuple.NewNamedNetwork(cfg.Layout); err != nil {
		return
	}
	if cfg.Weights.Load != "" {
		if loadErr := net.LoadFile(cfg.Weights.Load); loadErr != nil {
			log.Fatal().Err(loadErr).Str("path", cfg.Weights.Load).Msg("loading weights")
		}
		log.Info().Str("path", cfg.Weights.Load).Msg("weights loaded")
	}

	var trainer *reinforcement.Trainer
	if trainer, err = reinforcement.NewTrainer(net, cfg); err != nil {
		return
	}

	appCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	group, groupCtx := errgroup.WithContext(appCtx)

	// Snapshots are offered once per block and dropped while the views are busy.
	snapshots := make(chan views.Snapshot)
	block := cfg.Block
	if block <= 0 {
		block = 1
	}
	progress := func(ctx context.Context, collected int) {
		if collected%block != 0 {
			return
		}
		select {
		case snapshots <- snapshotOf(trainer):
		case <-ctx.Done():
		default:
		}
	}

	if *serve {
		var srv *server.Server
		if srv, err = server.NewServer(
			groupCtx,
			*host+":"+*port,
			snapshots,
			func() views.Snapshot { return snapshotOf(trainer) },
		); err != nil {
			return
		}
		group.Go(func() error {
			return srv.Serve(groupCtx)
		})
	}

	group.Go(func() error {
		n, trainErr := trainer.Train(groupCtx, *nworkers, progress)
		if trainErr != nil {
			return trainErr
		}
		log.Info().Int("episodes", n).Msg(trainer.Stats().Summary().String())
		if cfg.Weights.Save != "" {
			if saveErr := net.SaveFile(cfg.Weights.Save); saveErr != nil {
				return saveErr
			}
			log.Info().Str("path", cfg.Weights.Save).Msg("weights saved")
		}
		return nil
	})

	err = group.Wait()
	return
}

func main() {
	flag.Parse()
	setupLogging(*dbg)
	if err := runApp(); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}
