package main

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/schollz/progressbar/v3"

	"snag/internal/events"
)

// followEvents streams daemon events for one job over the observer
// websocket and renders progress until the job finishes or ctx is canceled.
// Rendering is best-effort: a failed connection leaves the blocking RPC as
// the only signal, which is still correct.
func followEvents(ctx context.Context, apiBind, jobID string, out io.Writer) {
	endpoint := url.URL{Scheme: "ws", Host: apiBind, Path: "/api/events"}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	render := newProgressRenderer(out, isInteractive(out))
	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		switch ev.Type {
		case events.TypeToolStatus:
			render.toolStatus(ev)
		case events.TypeJobStarted:
			if ev.JobID == jobID && ev.Title != "" {
				render.title(ev.Title)
			}
		case events.TypeJobProgress:
			if ev.JobID == jobID {
				render.progress(ev.Percent)
			}
		case events.TypeJobFinished:
			if ev.JobID == jobID {
				render.finish()
				return
			}
		}
	}
}

// progressRenderer draws a single bar on terminals and coarse text lines
// when output is piped.
type progressRenderer struct {
	out         io.Writer
	interactive bool
	bar         *progressbar.ProgressBar
	lastTool    string
	lastCoarse  int
}

func newProgressRenderer(out io.Writer, interactive bool) *progressRenderer {
	return &progressRenderer{out: out, interactive: interactive, lastCoarse: -1}
}

func (p *progressRenderer) toolStatus(ev events.Event) {
	key := ev.Tool + "/" + ev.Status
	if key == p.lastTool {
		return
	}
	p.lastTool = key
	switch ev.Status {
	case events.StatusDownloading:
		fmt.Fprintf(p.out, "provisioning %s...\n", ev.Tool)
	case events.StatusError:
		fmt.Fprintf(p.out, "provisioning %s failed: %s\n", ev.Tool, ev.Detail)
	}
}

func (p *progressRenderer) title(title string) {
	if p.bar != nil {
		p.bar.Describe(title)
		return
	}
	fmt.Fprintln(p.out, title)
}

func (p *progressRenderer) progress(percent float64) {
	if p.interactive {
		if p.bar == nil {
			p.bar = progressbar.NewOptions(100,
				progressbar.OptionSetWriter(p.out),
				progressbar.OptionSetDescription("downloading"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetPredictTime(false),
			)
		}
		_ = p.bar.Set(int(percent))
		return
	}
	coarse := int(percent) / 10 * 10
	if coarse > p.lastCoarse {
		p.lastCoarse = coarse
		fmt.Fprintf(p.out, "%d%%\n", coarse)
	}
}

func (p *progressRenderer) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		fmt.Fprintln(p.out)
	}
}
