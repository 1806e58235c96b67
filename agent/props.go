package agent

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"lukechampine.com/frand"
)

// ErrMissingProperty is returned when reading a property that was never set.
var ErrMissingProperty = errors.New("missing property")

// Props is an agent's string-keyed property map, built from "key=value" tokens.
// Values are stored as given and coerced on read.
type Props map[string]string

// ParseProps builds properties from whitespace separated key=value tokens. Later tokens
// override earlier ones, so callers pass defaults first. A token without '=' maps to itself.
func ParseProps(args ...string) Props {
	props := Props{}
	for _, arg := range args {
		for _, token := range strings.Fields(arg) {
			props.Notify(token)
		}
	}
	return props
}

// Notify sets a single property from a "key=value" message.
func (p Props) Notify(msg string) {
	key, value, found := strings.Cut(msg, "=")
	if !found {
		value = msg
	}
	p[key] = value
}

// Has reports whether key is set.
func (p Props) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Get returns the raw value of key.
func (p Props) Get(key string) (string, error) {
	val, ok := p[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingProperty, key)
	}
	return val, nil
}

// Float reads key as a float64.
func (p Props) Float(key string) (float64, error) {
	val, err := p.Get(key)
	if err != nil {
		return 0, err
	}
	f, err := cast.ToFloat64E(val)
	if err != nil {
		return 0, fmt.Errorf("property %q: %w", key, err)
	}
	return f, nil
}

// Int reads key as an int64.
func (p Props) Int(key string) (int64, error) {
	val, err := p.Get(key)
	if err != nil {
		return 0, err
	}
	i, err := cast.ToInt64E(val)
	if err != nil {
		return 0, fmt.Errorf("property %q: %w", key, err)
	}
	return i, nil
}

// Bool reads key as a bool; "1", "t", "true" and friends are true.
func (p Props) Bool(key string) (bool, error) {
	val, err := p.Get(key)
	if err != nil {
		return false, err
	}
	b, err := cast.ToBoolE(val)
	if err != nil {
		return false, fmt.Errorf("property %q: %w", key, err)
	}
	return b, nil
}

// String renders the properties as key=value tokens in no particular order.
func (p Props) String() string {
	tokens := make([]string, 0, len(p))
	for k, v := range p {
		tokens = append(tokens, k+"="+v)
	}
	return strings.Join(tokens, " ")
}

// newRand seeds a generator from the "seed" property, or from frand when none is given. The
// chosen seed is logged so that any run can be replayed.
func newRand(p Props) (*rand.Rand, error) {
	var seed int64
	if p.Has("seed") {
		var err error
		if seed, err = p.Int("seed"); err != nil {
			return nil, err
		}
	} else {
		seed = int64(frand.Uint64n(1 << 62))
		log.Debug().Str("agent", p["name"]).Int64("seed", seed).Msg("generated seed")
	}
	return rand.New(rand.NewSource(seed)), nil
}
