// Package agent defines the players and the environment that alternate on a board, and the
// actions they exchange.
package agent

import (
	"fmt"

	"tuple2048/board"
)

// Agent is anything taking turns on the board. The driver passes the opponent's previous action
// into TakeAction, which is how the environment learns the player's last slide without holding
// a reference to the player.
type Agent interface {
	Name() string
	Role() string
	OpenEpisode(flag string)
	CloseEpisode(flag string)
	TakeAction(b board.Board, prev Action) Action
	// Notify sets one "key=value" property between episodes.
	Notify(msg string)
}

// Kind discriminates actions.
type Kind int

const (
	KindNone Kind = iota
	KindSlide
	KindPlace
)

// Action is a slide by the player, a tile placement by the environment, or none, which ends
// the episode.
type Action struct {
	Kind      Kind
	Direction board.Direction
	Position  int
	Tile      board.Cell
}

// NoAction signals that the agent has no move.
func NoAction() Action {
	return Action{Kind: KindNone, Direction: board.NoDirection}
}

// Slide returns a slide action.
func Slide(d board.Direction) Action {
	return Action{Kind: KindSlide, Direction: d}
}

// Place returns a placement action.
func Place(pos int, tile board.Cell) Action {
	return Action{Kind: KindPlace, Direction: board.NoDirection, Position: pos, Tile: tile}
}

// IsNone reports whether the action is the no-action signal.
func (a Action) IsNone() bool {
	return a.Kind == KindNone
}

// Apply performs the action on b and returns its reward, or board.Illegal.
func (a Action) Apply(b *board.Board) board.Reward {
	switch a.Kind {
	case KindSlide:
		return b.Slide(a.Direction)
	case KindPlace:
		return b.Place(a.Position, a.Tile)
	}
	return board.Illegal
}

func (a Action) String() string {
	switch a.Kind {
	case KindSlide:
		return "slide " + a.Direction.String()
	case KindPlace:
		return fmt.Sprintf("place %d at %d", a.Tile.Value(), a.Position)
	}
	return "none"
}

// meta carries the properties common to every agent.
type meta struct {
	props Props
}

func (m *meta) Name() string        { return m.props["name"] }
func (m *meta) Role() string        { return m.props["role"] }
func (m *meta) Props() Props        { return m.props }
func (m *meta) Notify(msg string)   { m.props.Notify(msg) }
func (m *meta) CloseEpisode(string) {}
