package fastview

import (
	"context"
	"fmt"
	"html/template"
	"testing"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"
)

// echoView publishes each view-model string as the text of a single element.
type echoView struct {
	id      string
	updates chan []EleUpdate
}

func newEchoView(id string, done <-chan struct{}, input <-chan string) *echoView {
	ev := &echoView{id: id, updates: make(chan []EleUpdate)}
	go func() {
		defer close(ev.updates)
		for {
			select {
			case s, ok := <-input:
				if !ok {
					return
				}
				select {
				case ev.updates <- []EleUpdate{Text(ev.id, s)}:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()
	return ev
}

func (ev *echoView) Updates() <-chan []EleUpdate { return ev.updates }

func (ev *echoView) Parse(t *template.Template) (string, error) {
	_, err := t.Parse(`{{ define "` + ev.id + `" }}<p id="` + ev.id + `">{{ . }}</p>{{ end }}`)
	return ev.id, err
}

func TestViewBuilder(t *testing.T) {
	Convey("Given a view builder", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		input := make(chan int)

		Convey("Building without views fails", func() {
			_, err := NewViewBuilder[int, string]().
				WithModel(input, func(x int) string { return fmt.Sprint(x) }).
				Build()
			So(err, ShouldEqual, ErrNoViews)
		})

		Convey("Building without a model fails", func() {
			_, err := NewViewBuilder[int, string]().
				WithView(func(done <-chan struct{}, vm <-chan string) ViewComponent {
					return newEchoView("a", done, vm)
				}).
				Build()
			So(err, ShouldEqual, ErrNoModel)
		})

		Convey("Every view receives each converted model", func() {
			views, err := NewViewBuilder[int, string]().
				WithContext(ctx).
				WithModel(input, func(x int) string { return fmt.Sprintf("v%d", x) }).
				WithView(func(done <-chan struct{}, vm <-chan string) ViewComponent {
					return newEchoView("a", done, vm)
				}).
				WithView(func(done <-chan struct{}, vm <-chan string) ViewComponent {
					return newEchoView("b", done, vm)
				}).
				Build()
			So(err, ShouldBeNil)
			So(len(views), ShouldEqual, 2)

			// Broadcast blocks until every listener has taken the item, so drain concurrently.
			got := make(chan []EleUpdate, 2)
			for _, view := range views {
				go func(vc ViewComponent) { got <- <-vc.Updates() }(view)
			}
			input <- 7

			ids := map[string]string{}
			for i := 0; i < 2; i++ {
				ups := <-got
				So(len(ups), ShouldEqual, 1)
				ids[ups[0].EleId] = ups[0].Ops[0].Value
			}
			So(ids, ShouldResemble, map[string]string{"a": "v7", "b": "v7"})
		})
	})
}

func TestText(t *testing.T) {
	Convey("Text replaces an element's text content", t, func() {
		up := Text("score", "42")
		So(up.EleId, ShouldEqual, "score")
		So(up.Ops, ShouldResemble, []Op{{Key: TextContent, Value: "42"}})
	})
}

func TestGuardedConn(t *testing.T) {
	Convey("Given a connection whose writer turn is taken", t, func() {
		gc := newGuardedConn(nil)
		gc.writing <- struct{}{}
		called := false
		write := func(*websocket.Conn) error {
			called = true
			return nil
		}

		Convey("A second writer gives up as busy", func() {
			err := gc.Write(context.Background(), write)
			So(err, ShouldEqual, ErrSocketBusy)
			So(called, ShouldBeFalse)
		})

		Convey("A cancelled writer is skipped", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			So(gc.Write(ctx, write), ShouldBeNil)
			So(called, ShouldBeFalse)
		})

		Convey("The reader turn is independent", func() {
			var got *websocket.Conn
			err := gc.Read(context.Background(), func(ws *websocket.Conn) error {
				got = ws
				return nil
			})
			So(err, ShouldBeNil)
			So(got, ShouldBeNil)
		})
	})
}
