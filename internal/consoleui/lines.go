package consoleui

import (
	"context"
	"io"

	"pkt.systems/forgecode/schema"
)

// LineSubmitter runs one console line to completion. *core.Session satisfies it.
type LineSubmitter interface {
	SubmitLine(ctx context.Context, line string)
}

// EventQueue yields console events in order without dropping any.
// *eventbus.Follower satisfies it.
type EventQueue interface {
	Next(ctx context.Context) (schema.ConsoleEvent, error)
	TryNext() (schema.ConsoleEvent, bool)
}

// RunLine submits line and copies the output it produces to w while it
// runs. Echoes and other console events are left out. events must follow
// the console's workspace.
func RunLine(ctx context.Context, w io.Writer, console LineSubmitter, line string, events EventQueue) error {
	if events == nil {
		console.SubmitLine(ctx, line)
		return nil
	}
	copyCtx, stop := context.WithCancel(ctx)
	copied := make(chan error, 1)
	go func() { copied <- copyOutput(copyCtx, w, events) }()
	console.SubmitLine(ctx, line)
	stop()
	return <-copied
}

// copyOutput writes output events until ctx ends, then writes whatever is
// still queued.
func copyOutput(ctx context.Context, w io.Writer, events EventQueue) error {
	for {
		ev, err := events.Next(ctx)
		if err != nil {
			break
		}
		if err := writeOutput(w, ev); err != nil {
			return err
		}
	}
	for {
		ev, ok := events.TryNext()
		if !ok {
			return nil
		}
		if err := writeOutput(w, ev); err != nil {
			return err
		}
	}
}

func writeOutput(w io.Writer, ev schema.ConsoleEvent) error {
	if ev.Type != schema.ConsoleOutput {
		return nil
	}
	for _, line := range ev.Lines {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}
