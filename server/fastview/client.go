package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait      = 1 * time.Second
	maxMessageSize = 8192

	// pubResolution spaces consecutive batches sent to the page.
	pubResolution  = time.Millisecond * 100
	pingResolution = time.Millisecond * 200
	// pongWait is four missed pongs; past it the page is taken to be closed.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// client pushes view updates to a single page. The page never sends anything meaningful;
// its frames are drained so that pongs and close frames get handled.
type client[T any] struct {
	updates <-chan T
	ws      *guardedConn
	rootCtx context.Context
}

// NewClient upgrades the request to a websocket and returns a publisher of updates to it.
// Updates are published in order, at most one per publication period.
func NewClient[T any](
	updates <-chan T,
	w http.ResponseWriter,
	r *http.Request,
) (*client[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)

	return &client[T]{
		updates: updates,
		ws:      newGuardedConn(ws),
		rootCtx: r.Context(),
	}, nil
}

// Sync blocks while the page is connected, pushing updates and keeping the connection alive.
// A page closing normally is not an error.
func (cli *client[T]) Sync() error {
	group, groupCtx := errgroup.WithContext(cli.rootCtx)
	// A blocked ReadMessage only returns on a deadline or a close.
	go func() {
		<-groupCtx.Done()
		_ = cli.ws.Conn().SetReadDeadline(time.Now())
	}()

	group.Go(func() error {
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		return cli.publish(groupCtx)
	})

	err := group.Wait()
	if normalClose(err) {
		return nil
	}
	return err
}

// Close says goodbye to the page; call it after Sync.
func (cli *client[T]) Close() {
	cli.ws.Close()
}

// ErrPageGone is returned by Sync when the page stops answering pings.
var ErrPageGone = errors.New("page stopped answering pings")

// pingPong pings the page every pingResolution and fails once pongs stop arriving. Pongs are
// seen through the read loop, so it relies on readMessages running alongside.
func (cli *client[T]) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPageGone
			}

			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (cli *client[T]) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if unexpectedClose(err) {
					err = fmt.Errorf("ping failed: %w", err)
				}
			}
			return
		})
}

// readMessages discards whatever the page sends. gorilla treats a failed read as final, so the
// first error ends Sync.
func (cli *client[T]) readMessages(ctx context.Context) error {
	for {
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, _, readErr = ws.ReadMessage()
				return
			})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (cli *client[T]) publish(ctx context.Context) error {
	var lastSync time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case updates, ok := <-cli.updates:
			if !ok {
				return nil
			}
			// Batches may be partial, so publication is paced instead of dropping any.
			if wait := pubResolution - time.Since(lastSync); wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil
				}
			}

			lastSync = time.Now()
			err := cli.ws.Write(
				ctx,
				func(ws *websocket.Conn) (writeErr error) {
					if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
						return fmt.Errorf("failed to set deadline: %w", writeErr)
					}
					if writeErr = ws.WriteJSON(updates); writeErr != nil && unexpectedClose(writeErr) {
						writeErr = fmt.Errorf("publish failed: %w", writeErr)
					}
					return
				})
			if err != nil {
				return err
			}
			log.Trace().Msg("published view updates")
		}
	}
}

func unexpectedClose(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func normalClose(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// ErrSocketBusy is returned when a read or write waits lockWait without getting its turn.
var ErrSocketBusy = errors.New("websocket busy")

const (
	lockWait         = time.Second
	closeGracePeriod = time.Second
)

// guardedConn hands the connection to one reader and one writer at a time, the most gorilla
// allows concurrently.
type guardedConn struct {
	reading chan struct{}
	writing chan struct{}
	ws      *websocket.Conn
}

func newGuardedConn(ws *websocket.Conn) *guardedConn {
	return &guardedConn{
		reading: make(chan struct{}, 1),
		writing: make(chan struct{}, 1),
		ws:      ws,
	}
}

// Conn is the raw connection, for setting handlers and deadlines.
func (gc *guardedConn) Conn() *websocket.Conn {
	return gc.ws
}

// Close writes a normal close frame, waits briefly for the page to see it, then drops the
// connection, which also frees any reader.
func (gc *guardedConn) Close() {
	gc.writing <- struct{}{}
	defer func() { <-gc.writing }()

	_ = gc.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = gc.ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	time.Sleep(closeGracePeriod)
	_ = gc.ws.Close()
}

// Read runs readFn as the connection's only reader. A done ctx skips it.
func (gc *guardedConn) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	return gc.take(ctx, gc.reading, readFn)
}

// Write runs writeFn as the connection's only writer. A done ctx skips it.
func (gc *guardedConn) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	return gc.take(ctx, gc.writing, writeFn)
}

func (gc *guardedConn) take(
	ctx context.Context,
	turn chan struct{},
	fn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case turn <- struct{}{}:
		defer func() { <-turn }()
		return fn(gc.ws)
	case <-time.After(lockWait):
		return ErrSocketBusy
	}
}
