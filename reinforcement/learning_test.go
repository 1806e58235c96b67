package reinforcement

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"tuple2048/agent"
	"tuple2048/board"
	"tuple2048/ntuple"

	. "github.com/smartystreets/goconvey/convey"
)

const sampleConfig = `
kind: tuple2048
def:
  hyperParams:
    - key: alpha
      val: 0.025
  algorithm:
    player: td
  trainingDeadline:
    duration: 90s
  episodes: 500
  block: 50
  layout: rowcol
  initialTiles: 6
  randomOpening: true
  seed: 12
  weights:
    load: in.bin
    save: out.bin
  agents:
    player: "shuffle=1"
    environment: "name=bag"
`

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "training.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfig(t *testing.T) {
	Convey("Given a yaml training config", t, func() {
		cfg, err := FromYaml(writeConfig(t, sampleConfig))
		So(err, ShouldBeNil)

		Convey("Every field is read", func() {
			So(cfg.GetHyperParamOrDefault("alpha", 0.1), ShouldEqual, 0.025)
			So(cfg.GetHyperParamOrDefault("gamma", 0.9), ShouldEqual, 0.9)
			So(cfg.PlayerKind(), ShouldEqual, "td")
			So(cfg.Episodes, ShouldEqual, 500)
			So(cfg.Block, ShouldEqual, 50)
			So(cfg.Layout, ShouldEqual, "rowcol")
			So(cfg.InitialTiles, ShouldEqual, 6)
			So(cfg.RandomOpening, ShouldBeTrue)
			So(cfg.Seed, ShouldEqual, int64(12))
			So(cfg.Weights, ShouldResemble, WeightsConfig{Load: "in.bin", Save: "out.bin"})
			So(cfg.Agents["environment"], ShouldEqual, "name=bag")
		})

		Convey("Agent arguments put hyper parameters before explicit arguments", func() {
			So(cfg.AgentArgs("player", "seed=3"), ShouldEqual, "alpha=0.025 shuffle=1 seed=3")
			So(cfg.AgentArgs("environment"), ShouldEqual, "name=bag")
			props := agent.ParseProps(cfg.AgentArgs("player"))
			So(props["alpha"], ShouldEqual, "0.025")
		})

		Convey("The deadline bounds the training context", func() {
			ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
			So(err, ShouldBeNil)
			defer cancel()
			deadline, ok := ctx.Deadline()
			So(ok, ShouldBeTrue)
			So(time.Until(deadline), ShouldBeLessThanOrEqualTo, 90*time.Second)
		})
	})

	Convey("Missing fields keep their defaults", t, func() {
		cfg, err := FromYaml(writeConfig(t, "kind: tuple2048\ndef:\n  episodes: 7\n"))
		So(err, ShouldBeNil)
		So(cfg.Episodes, ShouldEqual, 7)
		So(cfg.Layout, ShouldEqual, ntuple.DefaultLayout)
		So(cfg.InitialTiles, ShouldEqual, 9)
		So(cfg.RandomOpening, ShouldBeFalse)
		So(cfg.GetHyperParamOrDefault("alpha", 0), ShouldEqual, 0.1)

		ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
		So(err, ShouldBeNil)
		defer cancel()
		_, ok := ctx.Deadline()
		So(ok, ShouldBeFalse)
	})

	Convey("Malformed configs are rejected", t, func() {
		_, err := FromYaml(writeConfig(t, "kind: gridworld\ndef:\n  episodes: 7\n"))
		So(err, ShouldNotBeNil)

		_, err = FromYaml(writeConfig(t, "kind: tuple2048\ndef:\n  layout: octagon\n"))
		So(errors.Is(err, ntuple.ErrUnknownLayout), ShouldBeTrue)

		_, err = FromYaml(writeConfig(t, "kind: tuple2048\ndef:\n  algorithm:\n    player: oracle\n"))
		So(err, ShouldNotBeNil)

		_, err = FromYaml(writeConfig(t, "kind: tuple2048\ndef:\n  trainingDeadline:\n    duration: soon\n"))
		So(err, ShouldNotBeNil)

		_, err = FromYaml(filepath.Join(t.TempDir(), "absent.yaml"))
		So(err, ShouldNotBeNil)
	})

	Convey("A learning player needs a positive alpha", t, func() {
		const zeroAlpha = "kind: tuple2048\ndef:\n  hyperParams:\n    - key: alpha\n      val: 0\n"
		_, err := FromYaml(writeConfig(t, zeroAlpha))
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "alpha")

		cfg := DefaultConfig()
		cfg.HyperParams = []HyperParameter{{Key: "alpha", Val: -1}}
		So(cfg.Validate(), ShouldNotBeNil)

		Convey("unless it does not learn", func() {
			cfg.Agents = map[string]string{"player": "learn=0"}
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("or is the random baseline", func() {
			cfg.Algorithm = map[string]string{"player": "random"}
			So(cfg.Validate(), ShouldBeNil)
		})
	})
}

func testConfig(episodes int) *TrainingConfig {
	cfg := DefaultConfig()
	cfg.Layout = "rowcol"
	cfg.Episodes = episodes
	cfg.Block = 10
	cfg.Seed = 99
	return cfg
}

func TestTrain(t *testing.T) {
	Convey("Given a trainer over a fresh network", t, func() {
		net, err := ntuple.NewNamedNetwork("rowcol")
		So(err, ShouldBeNil)

		Convey("Exactly the configured number of episodes is played", func() {
			trainer, err := NewTrainer(net, testConfig(40))
			So(err, ShouldBeNil)

			var calls, last atomic.Int64
			n, err := trainer.Train(context.Background(), 4, func(_ context.Context, count int) {
				calls.Add(1)
				last.Store(int64(count))
			})
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 40)
			So(calls.Load(), ShouldEqual, int64(40))
			So(last.Load(), ShouldEqual, int64(40))
			So(trainer.Stats().Episodes(), ShouldEqual, 40)
			So(trainer.Stats().Summary().Block, ShouldEqual, 10)
		})

		Convey("A cancelled context plays nothing more", func() {
			trainer, err := NewTrainer(net, testConfig(0))
			So(err, ShouldBeNil)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			n, err := trainer.Train(ctx, 2, nil)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})

		Convey("An unbounded run stops at its deadline", func() {
			cfg := testConfig(0)
			cfg.TrainingDeadline = map[string]string{"duration": "200ms"}
			trainer, err := NewTrainer(net, cfg)
			So(err, ShouldBeNil)
			start := time.Now()
			_, err = trainer.Train(context.Background(), 2, nil)
			So(err, ShouldBeNil)
			So(time.Since(start), ShouldBeLessThan, 10*time.Second)
		})

		Convey("The random baseline leaves the weights untouched", func() {
			cfg := testConfig(20)
			cfg.Algorithm = map[string]string{"player": "random"}
			trainer, err := NewTrainer(net, cfg)
			So(err, ShouldBeNil)
			n, err := trainer.Train(context.Background(), 2, nil)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 20)
			So(trainer.MonitorValue(), ShouldEqual, 0.0)
		})

		Convey("A spent trainer plays nothing on a second call", func() {
			trainer, err := NewTrainer(net, testConfig(6))
			So(err, ShouldBeNil)
			n, err := trainer.Train(context.Background(), 2, nil)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 6)

			n, err = trainer.Train(context.Background(), 2, nil)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
			So(trainer.Stats().Episodes(), ShouldEqual, 6)
		})

		Convey("Random openings play the configured number of episodes", func() {
			cfg := testConfig(12)
			cfg.RandomOpening = true
			trainer, err := NewTrainer(net, cfg)
			So(err, ShouldBeNil)
			n, err := trainer.Train(context.Background(), 3, nil)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 12)

			Convey("from generators seeded per worker", func() {
				again, err := NewTrainer(net, cfg)
				So(err, ShouldBeNil)
				first := trainer.episodeOptions(1)
				second := again.episodeOptions(1)
				So(first.RandomOpening, ShouldBeTrue)
				So(board.Initial(first.Rand), ShouldResemble, board.Initial(second.Rand))
				So(board.Initial(trainer.episodeOptions(0).Rand), ShouldNotResemble, board.Initial(trainer.episodeOptions(1).Rand))
			})
		})

		Convey("Each worker's player sees its own isometry", func() {
			trainer, err := NewTrainer(net, testConfig(1))
			So(err, ShouldBeNil)
			for i := 0; i < board.NumFlips+1; i++ {
				player, _, err := trainer.newAgents(i)
				So(err, ShouldBeNil)
				So(player.(*agent.Player).Props()["flip"], ShouldEqual, strconv.Itoa(i%board.NumFlips))
			}

			Convey("unless the flip is given as an argument", func() {
				cfg := testConfig(1)
				cfg.Agents = map[string]string{"player": "flip=2"}
				fixed, err := NewTrainer(net, cfg)
				So(err, ShouldBeNil)
				player, _, err := fixed.newAgents(5)
				So(err, ShouldBeNil)
				So(player.(*agent.Player).Props()["flip"], ShouldEqual, "2")
			})
		})

		Convey("Bad agent arguments fail before any play", func() {
			cfg := testConfig(10)
			cfg.Agents = map[string]string{"player": "alpha=lots"}
			trainer, err := NewTrainer(net, cfg)
			So(err, ShouldBeNil)
			n, err := trainer.Train(context.Background(), 2, nil)
			So(err, ShouldNotBeNil)
			So(n, ShouldEqual, 0)
		})
	})

	Convey("A trainer needs an initialized network", t, func() {
		_, err := NewTrainer(nil, testConfig(1))
		So(err, ShouldEqual, agent.ErrNoNetwork)
	})
}

func TestSampleBoards(t *testing.T) {
	Convey("Sampled boards are reproducible mid-game positions", t, func() {
		first, err := SampleBoards(8, 5)
		So(err, ShouldBeNil)
		second, err := SampleBoards(8, 5)
		So(err, ShouldBeNil)
		So(first, ShouldHaveLength, 8)
		So(second, ShouldResemble, first)
		for _, b := range first {
			So(b.Empty(), ShouldBeLessThan, board.NumCell)
		}
	})
}

// Long-running: enough self-play for the value predictions to become informative.
func TestLearningRegression(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping learning regression in short mode")
	}
	Convey("After training, held-out mid-game boards are valued positively", t, func() {
		net, err := ntuple.NewNamedNetwork("rowcol")
		So(err, ShouldBeNil)
		cfg := testConfig(2000)
		cfg.HyperParams = []HyperParameter{{Key: "alpha", Val: 0.02}}
		trainer, err := NewTrainer(net, cfg)
		So(err, ShouldBeNil)
		So(trainer.MonitorValue(), ShouldEqual, 0.0)

		n, err := trainer.Train(context.Background(), 4, nil)
		So(err, ShouldBeNil)
		So(n, ShouldEqual, 2000)

		held, err := SampleBoards(200, 31337)
		So(err, ShouldBeNil)
		So(net.MeanValue(held), ShouldBeGreaterThan, 0.0)
		So(trainer.MonitorValue(), ShouldBeGreaterThan, 0.0)
	})
}
