// Package server serves a live page of training progress. The page is rendered once from the
// latest snapshot; afterwards its elements are updated in place over a websocket.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"tuple2048/server/fastview"
	"tuple2048/server/root_view"
	"tuple2048/server/views"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const shutdownWait = 2 * time.Second

// Server serves a single page to a single client over a single websocket. The root view's
// update channel can only be consumed by one subscriber, so a second websocket is refused
// while one is open.
type Server struct {
	addr     string
	rootView *root_view.RootView
	latest   func() views.Snapshot
	// Holds one token while a websocket client is subscribed.
	subscriber chan struct{}
}

// NewServer builds the views over snapshots; latest supplies the data used to render a freshly
// requested page.
func NewServer(
	ctx context.Context,
	addr string,
	snapshots <-chan views.Snapshot,
	latest func() views.Snapshot,
) (*Server, error) {
	rootView, err := root_view.NewRootView(ctx, snapshots)
	if err != nil {
		return nil, err
	}

	return &Server{
		addr:       addr,
		rootView:   rootView,
		latest:     latest,
		subscriber: make(chan struct{}, 1),
	}, nil
}

// Handler returns the server's routes.
func (server *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket)
	router.HandleFunc("/stats", server.serveStats).Methods(http.MethodGet)
	return router
}

// Serve listens until ctx is cancelled, then shuts down.
func (server *Server) Serve(ctx context.Context) (err error) {
	srv := &http.Server{
		Addr:    server.addr,
		Handler: server.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		if shutErr := srv.Shutdown(shutCtx); shutErr != nil {
			log.Warn().Err(shutErr).Msg("server shutdown")
		}
	}()

	log.Info().Str("addr", server.addr).Msg("serving")
	if err = srv.ListenAndServe(); errors.Is(err, http.ErrServerClosed) {
		err = nil
	} else if err != nil {
		err = fmt.Errorf("serve: %w", err)
	}
	return
}

// serveWebsocket publishes view updates to the client until it disconnects.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	select {
	case server.subscriber <- struct{}{}:
		defer func() { <-server.subscriber }()
	default:
		http.Error(w, "a client is already subscribed", http.StatusConflict)
		return
	}

	cli, err := fastview.NewClient(server.rootView.Updates(), w, r)
	if err != nil {
		log.Warn().Err(err).Msg("websocket")
		return
	}
	defer cli.Close()

	if err = cli.Sync(); err != nil {
		log.Debug().Err(err).Msg("websocket sync ended")
	}
}

// serveStats writes the latest snapshot as json.
func (server *Server) serveStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(server.latest()); err != nil {
		log.Warn().Err(err).Msg("stats")
	}
}

// Serve the index.html main page.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	var page bytes.Buffer
	if err := renderTemplate(&page, server.rootView, views.Convert(server.latest())); err != nil {
		log.Error().Err(err).Msg("index")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = page.WriteTo(w)
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}
