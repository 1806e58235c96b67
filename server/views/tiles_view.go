package views

import (
	"fmt"
	"html/template"

	"tuple2048/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

const barHeight = 22

// TileRates charts the share of recent episodes reaching each tile as horizontal svg bars.
type TileRates struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewTileRates(
	done <-chan struct{},
	panels <-chan Panel,
) (tr *TileRates) {
	tr = &TileRates{id: "tilerates"}
	tr.updates = channerics.Convert(done, panels, tr.onUpdate)
	return
}

func (tr *TileRates) Updates() <-chan []fastview.EleUpdate {
	return tr.updates
}

func (tr *TileRates) onUpdate(p Panel) (ops []fastview.EleUpdate) {
	for _, bar := range p.Tiles {
		ops = append(ops,
			fastview.EleUpdate{
				EleId: bar.Id,
				Ops:   []fastview.Op{{Key: "width", Value: fmt.Sprintf("%d", bar.Width)}},
			},
			fastview.Text(bar.Id+"_pct", bar.Percent),
		)
	}
	return
}

// Parse defines one labelled bar per charted tile; the bar ids are fixed so that updates only
// resize them.
func (tr *TileRates) Parse(t *template.Template) (name string, err error) {
	name = tr.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		{{ $bar_height := ` + fmt.Sprintf("%d", barHeight) + ` }}
		<svg id="` + tr.id + `" xmlns='http://www.w3.org/2000/svg'
			width="{{ add ` + fmt.Sprintf("%d", barWidth) + ` 140 }}px"
			height="{{ mult (len .Tiles) $bar_height }}px"
			style="font-family: monospace; font-size: 14px;">
			{{ range $i, $bar := .Tiles }}
				{{ $y := mult $i $bar_height }}
				<text x="0" y="{{ add $y 16 }}">{{ $bar.Label }}</text>
				<rect id="{{ $bar.Id }}" x="60" y="{{ add $y 4 }}" height="{{ sub $bar_height 8 }}"
					width="{{ $bar.Width }}" fill="#f59327" />
				<text id="{{ $bar.Id }}_pct" x="{{ add ` + fmt.Sprintf("%d", barWidth) + ` 70 }}" y="{{ add $y 16 }}">{{ $bar.Percent }}</text>
			{{ end }}
		</svg>
		{{ end }}`)
	return
}
