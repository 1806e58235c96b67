package views

import (
	"html/template"
	"strings"
	"testing"

	"tuple2048/board"
	"tuple2048/server/fastview"
	"tuple2048/stats"

	. "github.com/smartystreets/goconvey/convey"
)

var testFuncs = template.FuncMap{
	"add":  func(i, j int) int { return i + j },
	"sub":  func(i, j int) int { return i - j },
	"mult": func(i, j int) int { return i * j },
	"div":  func(i, j int) int { return i / j },
}

func testSnapshot() Snapshot {
	var b board.Board
	b[0][0] = 1
	b[3][3] = 5
	return Snapshot{
		Summary: stats.Summary{
			Episodes:  200,
			MeanScore: 1234.4,
			Interval:  56.2,
			MaxScore:  4000,
			MeanMoves: 150.25,
			Tiles: []stats.TileRate{
				{Tile: 24, Reached: 1, Ended: 0.5},
				{Tile: 96, Reached: 0.5, Ended: 0.5},
			},
		},
		MonitorValue: 12.346,
		LastScore:    3000,
		LastBoard:    b,
	}
}

func findBar(bars []TileBar, id string) (TileBar, bool) {
	for _, bar := range bars {
		if bar.Id == id {
			return bar, true
		}
	}
	return TileBar{}, false
}

func TestConvert(t *testing.T) {
	Convey("Given a snapshot", t, func() {
		panel := Convert(testSnapshot())

		Convey("Summary fields are formatted", func() {
			So(panel.Episodes, ShouldEqual, "200")
			So(panel.Mean, ShouldEqual, "1234")
			So(panel.Interval, ShouldEqual, "±56")
			So(panel.Max, ShouldEqual, "4000")
			So(panel.Moves, ShouldEqual, "150.2")
			So(panel.Monitor, ShouldEqual, "12.35")
			So(panel.Score, ShouldEqual, "3000")
		})

		Convey("Bars cover every charted tile in ascending order", func() {
			So(len(panel.Tiles), ShouldEqual, int(board.MaxCell-minChartTile+1))
			So(panel.Tiles[0].Label, ShouldEqual, "3")
			So(panel.Tiles[len(panel.Tiles)-1].Label, ShouldEqual, "12288")
		})

		Convey("Absent tiles inherit the rate of the next larger present tile", func() {
			for id, want := range map[string]int{
				tileBarId(3): barWidth,
				tileBarId(6): barWidth,
				tileBarId(7): barWidth / 2,
				tileBarId(8): barWidth / 2,
				tileBarId(9): 0,
			} {
				bar, ok := findBar(panel.Tiles, id)
				So(ok, ShouldBeTrue)
				So(bar.Width, ShouldEqual, want)
			}
			bar, _ := findBar(panel.Tiles, tileBarId(7))
			So(bar.Percent, ShouldEqual, "50.0%")
		})

		Convey("Board tiles carry values and fills", func() {
			So(panel.Board[0][0], ShouldResemble, Tile{Id: "tile_0_0", Text: "1", Fill: tileFills[1]})
			So(panel.Board[3][3].Text, ShouldEqual, "12")
			So(panel.Board[1][1].Text, ShouldEqual, "")
			So(panel.Board[1][1].Fill, ShouldEqual, tileFills[0])
		})
	})
}

func updateIds(ups []fastview.EleUpdate) map[string]fastview.EleUpdate {
	ids := map[string]fastview.EleUpdate{}
	for _, up := range ups {
		ids[up.EleId] = up
	}
	return ids
}

func TestViews(t *testing.T) {
	Convey("Given a panel", t, func() {
		panel := Convert(testSnapshot())
		done := make(chan struct{})
		defer close(done)

		Convey("The summary view updates each statistic's text", func() {
			panels := make(chan Panel, 1)
			sv := NewSummaryView(done, panels)
			panels <- panel
			ids := updateIds(<-sv.Updates())
			So(len(ids), ShouldEqual, 6)
			So(ids["summary_mean"], ShouldResemble, fastview.Text("summary_mean", "1234"))
			So(ids["summary_monitor"].Ops[0].Value, ShouldEqual, "12.35")
		})

		Convey("The tile view resizes bars and rewrites percents", func() {
			panels := make(chan Panel, 1)
			tr := NewTileRates(done, panels)
			panels <- panel
			ids := updateIds(<-tr.Updates())
			So(len(ids), ShouldEqual, 2*len(panel.Tiles))
			So(ids[tileBarId(7)].Ops, ShouldResemble, []fastview.Op{{Key: "width", Value: "150"}})
			So(ids[tileBarId(7)+"_pct"].Ops[0].Value, ShouldEqual, "50.0%")
		})

		Convey("The board view recolors every cell and updates the score", func() {
			panels := make(chan Panel, 1)
			bv := NewBoardView(done, panels)
			panels <- panel
			ids := updateIds(<-bv.Updates())
			So(len(ids), ShouldEqual, 2*board.NumCell+1)
			So(ids["tile_3_3"].Ops, ShouldResemble, []fastview.Op{{Key: "fill", Value: tileFills[5]}})
			So(ids["tile_3_3_text"].Ops[0].Value, ShouldEqual, "12")
			So(ids["lastboard_score"].Ops[0].Value, ShouldEqual, "3000")
		})

		Convey("Every view's template renders the panel", func() {
			comps := []fastview.ViewComponent{
				NewSummaryView(done, nil),
				NewTileRates(done, nil),
				NewBoardView(done, nil),
			}
			for _, vc := range comps {
				tmpl := template.New("test").Funcs(testFuncs)
				name, err := vc.Parse(tmpl)
				So(err, ShouldBeNil)

				var sb strings.Builder
				So(tmpl.ExecuteTemplate(&sb, name, panel), ShouldBeNil)
				So(sb.String(), ShouldContainSubstring, `id="`+name+`"`)
			}
		})
	})
}
