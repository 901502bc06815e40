package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/forgecode/internal/logx"
	"pkt.systems/forgecode/schema"
)

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq       uint64                     `json:"seq"`
	Type      string                     `json:"type"`
	Lines     []string                   `json:"lines,omitempty"`
	Mode      schema.ConsoleMode         `json:"mode,omitempty"`
	Snapshot  *schema.TranscriptSnapshot `json:"snapshot,omitempty"`
	Timestamp time.Time                  `json:"timestamp"`
}

const streamSnapshot = "snapshot"

// Hub keeps a numbered history of console events per workspace and
// broadcasts them to SSE subscribers.
type Hub struct {
	mu          sync.Mutex
	workspaces  map[schema.WorkspaceID]*workspaceHub
	historySize int
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	return &Hub{
		workspaces:  make(map[schema.WorkspaceID]*workspaceHub),
		historySize: historySize,
	}
}

// OnConsoleEvent implements core.EventSink.
func (h *Hub) OnConsoleEvent(event schema.ConsoleEvent) {
	logx.WithWorkspace(context.Background(), event.WorkspaceID).Trace("hub console event", "type", event.Type, "lines", len(event.Lines))
	h.publish(event.WorkspaceID, StreamEvent{
		Type:      string(event.Type),
		Lines:     event.Lines,
		Mode:      event.Mode,
		Timestamp: time.Now(),
	})
}

// Subscribe registers a subscriber for a workspace and returns the sequence
// number of the last event it will not receive.
func (h *Hub) Subscribe(id schema.WorkspaceID) (<-chan StreamEvent, func(), uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	wh := h.getOrCreateLocked(id)
	ch := make(chan StreamEvent, 256)
	wh.subs[ch] = struct{}{}
	seq := wh.seq
	log := logx.WithWorkspace(context.Background(), id)
	log.Info("hub subscribe", "subs", len(wh.subs), "history", len(wh.history))
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := wh.subs[ch]; ok {
				delete(wh.subs, ch)
				close(ch)
			}
			remaining := len(wh.subs)
			h.mu.Unlock()
			log.Info("hub unsubscribe", "subs", remaining)
		})
	}
	return ch, unsub, seq
}

// ForgetWorkspace implements core.WorkspaceForgetter. It drops the history of
// the workspace and closes its subscribers so their streams end.
func (h *Hub) ForgetWorkspace(id schema.WorkspaceID) {
	h.mu.Lock()
	wh := h.workspaces[id]
	delete(h.workspaces, id)
	subs := 0
	if wh != nil {
		for ch := range wh.subs {
			delete(wh.subs, ch)
			close(ch)
			subs++
		}
	}
	h.mu.Unlock()
	if wh != nil {
		logx.WithWorkspace(context.Background(), id).Info("hub workspace forgotten", "subs", subs, "history", len(wh.history))
	}
}

// Replay returns retained events with a sequence number above after and at
// most upTo.
func (h *Hub) Replay(id schema.WorkspaceID, after, upTo uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	wh := h.workspaces[id]
	if wh == nil {
		return nil
	}
	events := make([]StreamEvent, 0, len(wh.history))
	for _, event := range wh.history {
		if event.Seq > after && event.Seq <= upTo {
			events = append(events, event)
		}
	}
	logx.WithWorkspace(context.Background(), id).Debug("hub replay", "after", after, "count", len(events))
	return events
}

func (h *Hub) publish(id schema.WorkspaceID, event StreamEvent) {
	h.mu.Lock()
	wh := h.getOrCreateLocked(id)
	wh.seq++
	event.Seq = wh.seq
	wh.history = append(wh.history, event)
	if len(wh.history) > h.historySize {
		wh.history = append([]StreamEvent(nil), wh.history[len(wh.history)-h.historySize:]...)
	}
	dropped := 0
	for sub := range wh.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	h.mu.Unlock()
	if dropped > 0 {
		logx.WithWorkspace(context.Background(), id).Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}

func (h *Hub) getOrCreateLocked(id schema.WorkspaceID) *workspaceHub {
	wh := h.workspaces[id]
	if wh == nil {
		wh = &workspaceHub{subs: make(map[chan StreamEvent]struct{})}
		h.workspaces[id] = wh
	}
	return wh
}

type workspaceHub struct {
	seq     uint64
	history []StreamEvent
	subs    map[chan StreamEvent]struct{}
}
