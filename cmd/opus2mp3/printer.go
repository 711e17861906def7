package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"opus2mp3.dev/cli/internal/event"
)

// printer renders batch events and progress updates to a writer, one
// line per event, with the label colored per severity.
type printer struct {
	out       io.Writer
	labels    map[event.Type]string
	progStyle lipgloss.Style
	lastPct   int
}

func newPrinter(out io.Writer) *printer {
	labels := make(map[event.Type]string, len(event.Types()))
	for _, t := range event.Types() {
		style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(t.Color()))
		labels[t] = style.Render(t.Label())
	}
	return &printer{
		out:       out,
		labels:    labels,
		progStyle: lipgloss.NewStyle().Faint(true),
		lastPct:   -1,
	}
}

// consume drains the sink until both its channels are closed,
// rendering everything it receives. Blocks; run it in its own
// goroutine.
func (p *printer) consume(sink *event.Sink) {
	events, progress := sink.Events(), sink.Progress()
	for events != nil || progress != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			p.print(ev)
		case pct, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			p.printProgress(pct)
		}
	}
}

func (p *printer) print(ev event.Event) {
	fmt.Fprintf(p.out, "%s %s\n", p.labels[ev.Type], ev.Text)
}

func (p *printer) printProgress(pct int) {
	if pct == p.lastPct {
		return
	}
	p.lastPct = pct
	fmt.Fprintln(p.out, p.progStyle.Render(fmt.Sprintf("Progress: %d%%", pct)))
}
