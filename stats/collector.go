package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"tuple2048/board"
	"tuple2048/episode"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Confidence is the level, in percent, of the score interval reported by summaries.
const Confidence = 95.0

// TileRate reports how a block of episodes fared against one tile.
type TileRate struct {
	// Tile is the displayed value, e.g. 384.
	Tile int
	// Reached is the share of episodes whose largest tile was at least Tile.
	Reached float64
	// Ended is the share whose largest tile was exactly Tile.
	Ended float64
}

// Summary describes the most recent block of episodes.
type Summary struct {
	Episodes   int
	Block      int
	MeanScore  float64
	StdScore   float64
	MaxScore   float64
	Interval   float64
	MeanMoves  float64
	MovesPerMs float64
	Tiles      []TileRate
}

func (s Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d\tavg = %.0f (±%.0f), std = %.0f, max = %.0f, moves = %.1f, ops = %.1f/ms\n",
		s.Episodes, s.MeanScore, s.Interval, s.StdScore, s.MaxScore, s.MeanMoves, s.MovesPerMs)
	for _, rate := range s.Tiles {
		fmt.Fprintf(&sb, "\t%d\t%.1f%%\t(%.1f%%)\n", rate.Tile, 100*rate.Reached, 100*rate.Ended)
	}
	return sb.String()
}

// Collector keeps overall statistics and a block of the most recent episode records. It is fed
// by a single goroutine and may be read from others.
type Collector struct {
	mu      sync.Mutex
	block   int
	recent  []episode.Record
	next    int
	total   int
	score   Statistic
	moves   Statistic
	maxTile board.Cell
}

// NewCollector keeps summaries over the last block episodes.
func NewCollector(block int) *Collector {
	if block < 1 {
		block = 1
	}
	return &Collector{block: block, recent: make([]episode.Record, 0, block)}
}

// Add records one finished episode. Steps are dropped to bound memory.
func (c *Collector) Add(rec episode.Record) {
	rec.Steps = nil

	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	c.score.Push(float64(rec.Score))
	c.moves.Push(float64(rec.Moves))
	if rec.MaxTile > c.maxTile {
		c.maxTile = rec.MaxTile
	}
	if len(c.recent) < c.block {
		c.recent = append(c.recent, rec)
	} else {
		c.recent[c.next] = rec
	}
	c.next = (c.next + 1) % c.block
}

// Episodes is the number of episodes added so far.
func (c *Collector) Episodes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// BlockDone reports whether the episode count just completed a block.
func (c *Collector) BlockDone() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total > 0 && c.total%c.block == 0
}

// Last returns the most recently added record, and false if none has been added.
func (c *Collector) Last() (episode.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.total == 0 {
		return episode.Record{}, false
	}
	return c.recent[(c.next+c.block-1)%c.block], true
}

// Overall returns the all-time score statistic and the largest tile seen.
func (c *Collector) Overall() (Statistic, board.Cell) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.score, c.maxTile
}

// Summary summarizes the current block.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	recent := append([]episode.Record(nil), c.recent...)
	total := c.total
	c.mu.Unlock()

	return Summarize(recent, total)
}

// Summarize describes a block of records; episodes is the running total to report.
func Summarize(records []episode.Record, episodes int) Summary {
	sum := Summary{Episodes: episodes, Block: len(records)}
	if len(records) == 0 {
		return sum
	}

	scores := lo.Map(records, func(r episode.Record, _ int) float64 { return float64(r.Score) })
	sum.MeanScore, sum.StdScore = stat.MeanStdDev(scores, nil)
	if len(records) < 2 {
		sum.StdScore = 0
	}
	sum.MaxScore = lo.Max(scores)
	sum.Interval = ZVal(Confidence) * sum.StdScore / math.Sqrt(float64(len(records)))
	sum.MeanMoves = stat.Mean(lo.Map(records, func(r episode.Record, _ int) float64 { return float64(r.Moves) }), nil)

	moves := lo.SumBy(records, func(r episode.Record) int { return r.Moves })
	elapsed := lo.SumBy(records, func(r episode.Record) int64 { return r.Duration.Microseconds() })
	if elapsed > 0 {
		sum.MovesPerMs = 1000 * float64(moves) / float64(elapsed)
	}

	ended := lo.CountValuesBy(records, func(r episode.Record) board.Cell { return r.MaxTile })
	tiles := lo.Keys(ended)
	sort.Slice(tiles, func(i, j int) bool { return tiles[i] > tiles[j] })
	reached := 0
	n := float64(len(records))
	for _, tile := range tiles {
		reached += ended[tile]
		sum.Tiles = append(sum.Tiles, TileRate{
			Tile:    tile.Value(),
			Reached: float64(reached) / n,
			Ended:   float64(ended[tile]) / n,
		})
	}
	// Smallest tile first, as it reads in a log.
	sort.Slice(sum.Tiles, func(i, j int) bool { return sum.Tiles[i].Tile < sum.Tiles[j].Tile })
	return sum
}
