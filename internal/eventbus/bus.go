package eventbus

import (
	"context"
	"sync"

	"pkt.systems/forgecode/schema"
	"pkt.systems/pslog"
)

// Bus fans console events out to per-workspace subscribers.
type Bus struct {
	mu        sync.Mutex
	subs      map[schema.WorkspaceID]map[chan schema.ConsoleEvent]struct{}
	followers map[schema.WorkspaceID]map[*Follower]struct{}
	log       pslog.Logger
	depth     int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:      make(map[schema.WorkspaceID]map[chan schema.ConsoleEvent]struct{}),
		followers: make(map[schema.WorkspaceID]map[*Follower]struct{}),
		log:       logger,
		depth:     256,
	}
}

// Subscribe registers a subscriber for the workspace and returns a channel + cancel.
func (b *Bus) Subscribe(id schema.WorkspaceID) (<-chan schema.ConsoleEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.ConsoleEvent, b.depth)
	b.mu.Lock()
	wsSubs := b.subs[id]
	if wsSubs == nil {
		wsSubs = make(map[chan schema.ConsoleEvent]struct{})
		b.subs[id] = wsSubs
	}
	wsSubs[ch] = struct{}{}
	count := len(wsSubs)
	b.mu.Unlock()
	b.log.With("workspace", id).Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[id]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, id)
				}
			}
			close(ch)
			b.mu.Unlock()
			b.log.With("workspace", id).Debug("eventbus unsubscribe")
		})
	}
}

// OnConsoleEvent publishes a console event to the workspace subscribers.
// Slow subscribers lose events instead of blocking the publisher; followers
// queue every event.
func (b *Bus) OnConsoleEvent(event schema.ConsoleEvent) {
	if b == nil {
		return
	}
	b.mu.Lock()
	dropped := 0
	for sub := range b.subs[event.WorkspaceID] {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	for f := range b.followers[event.WorkspaceID] {
		f.push(event)
	}
	b.mu.Unlock()
	if dropped > 0 {
		b.log.With("workspace", event.WorkspaceID).Trace("eventbus dropped", "count", dropped)
	}
}
