package root_view

import (
	"context"
	"fmt"
	"html/template"
	"time"

	"tuple2048/server/fastview"
	"tuple2048/server/views"

	channerics "github.com/niceyeti/channerics/channels"
)

// batchRate is the minimum period between batches of element updates.
const batchRate = time.Millisecond * 20

// RootView is the main page: the container of all view components and the wiring of their
// channels into a single update stream.
type RootView struct {
	views   []fastview.ViewComponent
	updates <-chan []fastview.EleUpdate
}

// NewRootView builds the page's views over the stream of training snapshots.
func NewRootView(
	ctx context.Context,
	snapshots <-chan views.Snapshot,
) (*RootView, error) {
	comps, err := fastview.NewViewBuilder[views.Snapshot, views.Panel]().
		WithContext(ctx).
		WithModel(snapshots, views.Convert).
		WithView(func(
			done <-chan struct{},
			panels <-chan views.Panel) fastview.ViewComponent {
			return views.NewSummaryView(done, panels)
		}).
		WithView(func(
			done <-chan struct{},
			panels <-chan views.Panel) fastview.ViewComponent {
			return views.NewTileRates(done, panels)
		}).
		WithView(func(
			done <-chan struct{},
			panels <-chan views.Panel) fastview.ViewComponent {
			return views.NewBoardView(done, panels)
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("building views: %w", err)
	}

	return &RootView{
		views:   comps,
		updates: fanIn(ctx.Done(), comps),
	}, nil
}

// Updates returns the main ele-update channel for all the views.
func (rv *RootView) Updates() <-chan []fastview.EleUpdate {
	return rv.updates
}

// Parse builds the main page's template, with websocket bootstrap code, and returns its name.
// It also sets up the func-map that the child components depend on.
func (rv *RootView) Parse(
	parent *template.Template,
) (name string, err error) {
	rt := parent.Funcs(
		template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
		})

	var bodySpec string
	for _, vc := range rv.views {
		tname, parseErr := vc.Parse(rt)
		if parseErr != nil {
			err = parseErr
			return
		}
		bodySpec += `{{ template "` + tname + `" . }}`
	}

	// The client script applies pushed element updates by id.
	name = "mainpage"
	indexTemplate := `
	{{ define "` + name + `" }}
	<!DOCTYPE html>
	<html>
		<head>
			<link rel="icon" href="data:,">
			<script>
				const ws = new WebSocket("ws://" + location.host + "/ws");
				ws.onopen = function (event) {
					console.log("Web socket opened")
				};

				ws.onerror = function (event) {
					console.log('WebSocket error: ', event);
				};

				ws.onmessage = function (event) {
					items = JSON.parse(event.data)
					for (const update of items) {
						const ele = document.getElementById(update.EleId)
						if (ele === null) {
							continue
						}
						for (const op of update.Ops) {
							if (op.Key === "` + fastview.TextContent + `") {
								ele.textContent = op.Value;
							} else {
								ele.setAttribute(op.Key, op.Value)
							}
						}
					}
				}
			</script>
		</head>
		<body style="display: flex; flex-wrap: wrap; align-items: flex-start;">
		` + bodySpec + `
		</body></html>
	{{ end }}
	`

	_, err = rt.Parse(indexTemplate)
	return
}

// fanIn aggregates the views' ele-update channels into a single throttled channel.
func fanIn(
	done <-chan struct{},
	comps []fastview.ViewComponent,
) <-chan []fastview.EleUpdate {
	inputs := make([]<-chan []fastview.EleUpdate, len(comps))
	for i, view := range comps {
		inputs[i] = view.Updates()
	}
	return batchify(
		done,
		channerics.Merge(done, inputs...),
		batchRate)
}

// batchify collects updates and sends them at most once per rate, keeping only the latest
// update per ele-id. A pending batch is flushed when the source closes.
func batchify(
	done <-chan struct{},
	source <-chan []fastview.EleUpdate,
	rate time.Duration,
) <-chan []fastview.EleUpdate {
	output := make(chan []fastview.EleUpdate)

	go func() {
		defer close(output)

		ticker := time.NewTicker(rate)
		defer ticker.Stop()

		data := map[string]fastview.EleUpdate{}
		send := func() bool {
			if len(data) == 0 {
				return true
			}
			select {
			case output <- slicedVals(data):
				data = map[string]fastview.EleUpdate{}
				return true
			case <-done:
				return false
			}
		}

		for {
			select {
			case updates, ok := <-source:
				if !ok {
					send()
					return
				}
				// Later updates for an ele-id overwrite earlier ones within the batch.
				for _, update := range updates {
					data[update.EleId] = update
				}
			case <-ticker.C:
				if !send() {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return output
}

// returns the values of a map as a slice
func slicedVals[T1 comparable, T2 any](mp map[T1]T2) (sliced []T2) {
	for _, v := range mp {
		sliced = append(sliced, v)
	}
	return
}
