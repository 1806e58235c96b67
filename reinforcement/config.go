package reinforcement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tuple2048/agent"
	"tuple2048/board"
	"tuple2048/ntuple"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ConfigKind is the expected kind of the outer config envelope.
const ConfigKind = "tuple2048"

type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig holds the training parameters kept outside of code: hyper parameters, the
// algorithm selection, when to stop, and the agents' argument strings.
type TrainingConfig struct {
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `mapstructure:"hyperParams"`
	// Algorithm selects the player: "td" (default) or "random".
	Algorithm map[string]string `mapstructure:"algorithm"`
	// TrainingDeadline is a duration describing when to terminate training.
	TrainingDeadline map[string]string `mapstructure:"trainingDeadline"`
	// Episodes to play in total; zero plays until the deadline or cancellation.
	Episodes int `mapstructure:"episodes"`
	// Block is the number of episodes per logged summary.
	Block int `mapstructure:"block"`
	// Layout names the tuple layout of the network.
	Layout string `mapstructure:"layout"`
	// InitialTiles placed before the first slide of every episode.
	InitialTiles int `mapstructure:"initialTiles"`
	// RandomOpening starts every episode from three each of the base tiles on random cells,
	// in place of InitialTiles environment placements.
	RandomOpening bool `mapstructure:"randomOpening"`
	// Seed makes a run reproducible when non-zero; every worker derives its agents' seeds from it.
	Seed int64 `mapstructure:"seed"`
	// Weights are the paths weight tables are loaded from and saved to; empty skips either.
	Weights WeightsConfig `mapstructure:"weights"`
	// Agents holds key=value argument strings per role: "player" and "environment".
	Agents map[string]string `mapstructure:"agents"`
}

type WeightsConfig struct {
	Load string `mapstructure:"load"`
	Save string `mapstructure:"save"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

// DefaultConfig is what runs when no config file is given.
func DefaultConfig() *TrainingConfig {
	return &TrainingConfig{
		HyperParams:  []HyperParameter{{Key: "alpha", Val: 0.1}},
		Algorithm:    map[string]string{"player": "td"},
		Episodes:     1000,
		Block:        100,
		Layout:       ntuple.DefaultLayout,
		InitialTiles: 9,
	}
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("training deadline: %w", err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// PlayerKind is the configured player algorithm.
func (cfg *TrainingConfig) PlayerKind() string {
	if kind := cfg.Algorithm["player"]; kind != "" {
		return kind
	}
	return "td"
}

// AgentArgs builds the argument string for a role. Hyper parameters come first so that explicit
// agent arguments override them, and extra tokens come last.
func (cfg *TrainingConfig) AgentArgs(role string, extra ...string) string {
	var tokens []string
	if role == "player" {
		for _, kvp := range cfg.HyperParams {
			tokens = append(tokens, fmt.Sprintf("%s=%v", kvp.Key, kvp.Val))
		}
	}
	if args := cfg.Agents[role]; args != "" {
		tokens = append(tokens, args)
	}
	tokens = append(tokens, extra...)
	return strings.Join(tokens, " ")
}

// Validate reports the first malformed field.
func (cfg *TrainingConfig) Validate() error {
	if _, err := ntuple.LookupLayout(cfg.Layout); err != nil {
		return err
	}
	if cfg.Episodes < 0 {
		return fmt.Errorf("episodes must not be negative, got %d", cfg.Episodes)
	}
	if cfg.InitialTiles < 0 || cfg.InitialTiles > board.NumCell {
		return fmt.Errorf("initial tiles must be in [0,%d], got %d", board.NumCell, cfg.InitialTiles)
	}
	switch kind := cfg.PlayerKind(); kind {
	case "td":
		if err := cfg.validateLearningRate(); err != nil {
			return err
		}
	case "random":
	default:
		return fmt.Errorf("unknown player algorithm %q", kind)
	}
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("training deadline: %w", err)
		}
	}
	return nil
}

// validateLearningRate rejects a non-positive alpha hyper parameter for a learning player.
// Explicit player arguments override the hyper parameter and are checked when the player is built.
func (cfg *TrainingConfig) validateLearningRate() error {
	args := agent.ParseProps(cfg.Agents["player"])
	if args.Has("alpha") {
		return nil
	}
	if args.Has("learn") {
		if learn, err := args.Bool("learn"); err == nil && !learn {
			return nil
		}
	}
	if alpha := cfg.GetHyperParamOrDefault("alpha", 0.1); alpha <= 0 {
		return fmt.Errorf("hyper parameter alpha must be positive, got %v", alpha)
	}
	return nil
}

// FromYaml reads a config file wrapped in the kind/def envelope. Fields missing from the file
// keep their DefaultConfig values. Viper folds keys to lower case, which is also how yaml.v3
// names untagged fields, so the inner config round-trips through yaml without tags.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}
	if outerConfig.Kind != "" && outerConfig.Kind != ConfigKind {
		return nil, fmt.Errorf("config %s is of kind %q, expected %q", path, outerConfig.Kind, ConfigKind)
	}

	var spec []byte
	if spec, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := DefaultConfig()
	if err = yaml.Unmarshal(spec, innerConfig); err != nil {
		return nil, err
	}
	if err = innerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return innerConfig, nil
}
