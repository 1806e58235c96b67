// Package views renders training progress: a summary table, tile reach bars and the last
// finished board. Every view is driven by the Panel view-model.
package views

import (
	"fmt"

	"tuple2048/board"
	"tuple2048/stats"
)

// Snapshot is the data model published by the trainer's progress callback.
type Snapshot struct {
	Summary      stats.Summary
	MonitorValue float64
	LastScore    int
	LastBoard    board.Board
}

// Panel is the view-model: every field is immediately usable as a template or attribute value.
type Panel struct {
	Episodes string
	Mean     string
	Interval string
	Max      string
	Moves    string
	Monitor  string
	Tiles    []TileBar
	Board    [board.Size][board.Size]Tile
	Score    string
}

// TileBar is one row of the tile reach chart.
type TileBar struct {
	Id      string
	Label   string
	Width   int
	Percent string
}

// Tile is one cell of the board view.
type Tile struct {
	Id   string
	Text string
	Fill string
}

const (
	// barWidth is the pixel width of a 100% tile bar.
	barWidth = 300
	// minChartTile is the smallest exponent charted; 1s and 2s are always reached.
	minChartTile board.Cell = 3
)

// Fill colors per exponent. 1 and 2 keep the distinct Threes colors.
var tileFills = [board.MaxCell + 1]string{
	"#cdc1b4", "#66ccff", "#ff6680", "#fdfdfd", "#fdf3e0", "#fde6c1", "#fcd9a2",
	"#fbc983", "#f9b864", "#f7a645", "#f59327", "#f27f0c", "#e06b00", "#c85a00",
	"#ae4a00", "#903b00",
}

func tileBarId(tile board.Cell) string { return fmt.Sprintf("tilebar_%d", tile) }

func tileId(r, c int) string { return fmt.Sprintf("tile_%d_%d", r, c) }

// Convert builds the view-model from a snapshot.
func Convert(snap Snapshot) Panel {
	sum := snap.Summary
	panel := Panel{
		Episodes: fmt.Sprintf("%d", sum.Episodes),
		Mean:     fmt.Sprintf("%.0f", sum.MeanScore),
		Interval: fmt.Sprintf("±%.0f", sum.Interval),
		Max:      fmt.Sprintf("%.0f", sum.MaxScore),
		Moves:    fmt.Sprintf("%.1f", sum.MeanMoves),
		Monitor:  fmt.Sprintf("%.2f", snap.MonitorValue),
		Score:    fmt.Sprintf("%d", snap.LastScore),
	}

	reached := map[int]float64{}
	for _, rate := range sum.Tiles {
		reached[rate.Tile] = rate.Reached
	}
	// Reach rates are cumulative from the top, so a tile absent from the block inherits the
	// rate of the next larger tile that is present.
	carry := 0.0
	bars := make([]TileBar, 0, board.MaxCell-minChartTile+1)
	for tile := board.Cell(board.MaxCell); tile >= minChartTile; tile-- {
		if rate, ok := reached[tile.Value()]; ok {
			carry = rate
		}
		bars = append(bars, TileBar{
			Id:      tileBarId(tile),
			Label:   fmt.Sprintf("%d", tile.Value()),
			Width:   int(carry * barWidth),
			Percent: fmt.Sprintf("%.1f%%", 100*carry),
		})
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	panel.Tiles = bars

	for r := range snap.LastBoard {
		for c, cell := range snap.LastBoard[r] {
			text := ""
			if cell != 0 {
				text = fmt.Sprintf("%d", cell.Value())
			}
			panel.Board[r][c] = Tile{Id: tileId(r, c), Text: text, Fill: tileFills[cell]}
		}
	}
	return panel
}
