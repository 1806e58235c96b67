package views

import (
	"html/template"

	"tuple2048/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

// SummaryView is a table of the latest block's score statistics.
type SummaryView struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewSummaryView(
	done <-chan struct{},
	panels <-chan Panel,
) (sv *SummaryView) {
	sv = &SummaryView{id: "summary"}
	sv.updates = channerics.Convert(done, panels, sv.onUpdate)
	return
}

func (sv *SummaryView) Updates() <-chan []fastview.EleUpdate {
	return sv.updates
}

func (sv *SummaryView) onUpdate(p Panel) []fastview.EleUpdate {
	return []fastview.EleUpdate{
		fastview.Text(sv.id+"_episodes", p.Episodes),
		fastview.Text(sv.id+"_mean", p.Mean),
		fastview.Text(sv.id+"_interval", p.Interval),
		fastview.Text(sv.id+"_max", p.Max),
		fastview.Text(sv.id+"_moves", p.Moves),
		fastview.Text(sv.id+"_monitor", p.Monitor),
	}
}

// Parse defines the summary table.
func (sv *SummaryView) Parse(t *template.Template) (name string, err error) {
	name = sv.id
	_, err = t.Parse(
		`{{ define "` + name + `" }}
		<table id="` + sv.id + `" style="font-family: monospace; padding: 20px;">
			<tr><td>episodes</td><td id="` + sv.id + `_episodes">{{ .Episodes }}</td></tr>
			<tr><td>mean score</td><td id="` + sv.id + `_mean">{{ .Mean }}</td></tr>
			<tr><td>95% interval</td><td id="` + sv.id + `_interval">{{ .Interval }}</td></tr>
			<tr><td>max score</td><td id="` + sv.id + `_max">{{ .Max }}</td></tr>
			<tr><td>mean moves</td><td id="` + sv.id + `_moves">{{ .Moves }}</td></tr>
			<tr><td>held-out value</td><td id="` + sv.id + `_monitor">{{ .Monitor }}</td></tr>
		</table>
		{{ end }}`)
	return
}
