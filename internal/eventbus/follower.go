package eventbus

import (
	"context"
	"io"
	"sync"

	"pkt.systems/forgecode/schema"
)

// Follower receives every event of a workspace in order. Unlike a
// Subscribe channel it never drops: events queue in memory until read.
type Follower struct {
	mu     sync.Mutex
	queue  []schema.ConsoleEvent
	closed bool
	ready  chan struct{}
}

// Follow registers a lossless follower for the workspace and returns it with
// its cancel func. Canceling ends Next with io.EOF once the queue is drained.
func (b *Bus) Follow(id schema.WorkspaceID) (*Follower, func()) {
	f := &Follower{ready: make(chan struct{}, 1)}
	if b == nil {
		f.close()
		return f, func() {}
	}
	b.mu.Lock()
	set := b.followers[id]
	if set == nil {
		set = make(map[*Follower]struct{})
		b.followers[id] = set
	}
	set[f] = struct{}{}
	b.mu.Unlock()
	b.log.With("workspace", id).Debug("eventbus follow")
	var once sync.Once
	return f, func() {
		once.Do(func() {
			b.mu.Lock()
			if set := b.followers[id]; set != nil {
				delete(set, f)
				if len(set) == 0 {
					delete(b.followers, id)
				}
			}
			b.mu.Unlock()
			f.close()
		})
	}
}

func (f *Follower) push(event schema.ConsoleEvent) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.queue = append(f.queue, event)
	f.mu.Unlock()
	f.wake()
}

func (f *Follower) close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wake()
}

func (f *Follower) wake() {
	select {
	case f.ready <- struct{}{}:
	default:
	}
}

// TryNext returns the oldest queued event without waiting.
func (f *Follower) TryNext() (schema.ConsoleEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return schema.ConsoleEvent{}, false
	}
	event := f.queue[0]
	f.queue[0] = schema.ConsoleEvent{}
	f.queue = f.queue[1:]
	return event, true
}

// Next waits for the oldest queued event. Queued events are returned before
// cancellation or close is reported.
func (f *Follower) Next(ctx context.Context) (schema.ConsoleEvent, error) {
	for {
		if event, ok := f.TryNext(); ok {
			return event, nil
		}
		f.mu.Lock()
		closed := f.closed
		f.mu.Unlock()
		if closed {
			return schema.ConsoleEvent{}, io.EOF
		}
		select {
		case <-ctx.Done():
			return schema.ConsoleEvent{}, ctx.Err()
		case <-f.ready:
		}
	}
}
