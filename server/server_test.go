package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tuple2048/server/views"
	"tuple2048/stats"

	. "github.com/smartystreets/goconvey/convey"
)

func TestServer(t *testing.T) {
	Convey("Given a server over a fixed snapshot", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		snap := views.Snapshot{
			Summary:      stats.Summary{Episodes: 100, MeanScore: 512},
			MonitorValue: 3.5,
			LastScore:    640,
		}
		snap.LastBoard[0][1] = 4
		server, err := NewServer(ctx, ":0", make(chan views.Snapshot), func() views.Snapshot { return snap })
		So(err, ShouldBeNil)
		handler := server.Handler()

		Convey("The index page is rendered from the latest snapshot", func() {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Header().Get("Content-Type"), ShouldEqual, "text/html")
			So(rec.Body.String(), ShouldContainSubstring, `id="summary_mean">512<`)
			So(rec.Body.String(), ShouldContainSubstring, `id="lastboard_score">640<`)
		})

		Convey("Stats are served as json", func() {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)

			var got views.Snapshot
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
			So(got, ShouldResemble, snap)
		})

		Convey("A second websocket subscriber is refused", func() {
			server.subscriber <- struct{}{}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
			So(rec.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("Unknown routes are not found", func() {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
