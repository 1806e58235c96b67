package views

import (
	"fmt"
	"html/template"

	"tuple2048/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

const tileDim = 80

// BoardView shows the final board of the most recent episode.
type BoardView struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewBoardView(
	done <-chan struct{},
	panels <-chan Panel,
) (bv *BoardView) {
	bv = &BoardView{id: "lastboard"}
	bv.updates = channerics.Convert(done, panels, bv.onUpdate)
	return
}

func (bv *BoardView) Updates() <-chan []fastview.EleUpdate {
	return bv.updates
}

func (bv *BoardView) onUpdate(p Panel) (ops []fastview.EleUpdate) {
	for _, row := range p.Board {
		for _, tile := range row {
			ops = append(ops,
				fastview.EleUpdate{
					EleId: tile.Id,
					Ops:   []fastview.Op{{Key: "fill", Value: tile.Fill}},
				},
				fastview.Text(tile.Id+"_text", tile.Text),
			)
		}
	}
	ops = append(ops, fastview.Text(bv.id+"_score", p.Score))
	return
}

// Parse defines the board as a grid of svg squares with centered values.
func (bv *BoardView) Parse(t *template.Template) (name string, err error) {
	name = bv.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		{{ $dim := ` + fmt.Sprintf("%d", tileDim) + ` }}
		<div style="padding: 20px; font-family: monospace;">
			<div>last score: <span id="` + bv.id + `_score">{{ .Score }}</span></div>
			<svg id="` + bv.id + `" xmlns='http://www.w3.org/2000/svg'
				width="{{ mult $dim 4 }}px" height="{{ mult $dim 4 }}px"
				style="stroke: #bbada0; stroke-width: 4; font-size: 22px;">
				{{ range $r, $row := .Board }}
					{{ range $c, $tile := $row }}
						<rect id="{{ $tile.Id }}" x="{{ mult $c $dim }}" y="{{ mult $r $dim }}"
							width="{{ $dim }}" height="{{ $dim }}" fill="{{ $tile.Fill }}" />
						<text id="{{ $tile.Id }}_text" x="{{ add (mult $c $dim) (div $dim 2) }}"
							y="{{ add (mult $r $dim) (div $dim 2) }}" text-anchor="middle"
							dominant-baseline="middle" stroke="none">{{ $tile.Text }}</text>
					{{ end }}
				{{ end }}
			</svg>
		</div>
		{{ end }}`)
	return
}
