package forgecode

import (
	"pkt.systems/forgecode/core"
	"pkt.systems/forgecode/schema"
)

// eventFanout delivers each console event to every sink in order.
type eventFanout []core.EventSink

func (f eventFanout) OnConsoleEvent(event schema.ConsoleEvent) {
	for _, sink := range f {
		if sink != nil {
			sink.OnConsoleEvent(event)
		}
	}
}

// ForgetWorkspace forwards to every sink that keeps workspace state.
func (f eventFanout) ForgetWorkspace(id schema.WorkspaceID) {
	for _, sink := range f {
		if forgetter, ok := sink.(core.WorkspaceForgetter); ok {
			forgetter.ForgetWorkspace(id)
		}
	}
}

// fanout collapses sinks into one, dropping nils.
func fanout(sinks ...core.EventSink) core.EventSink {
	out := make(eventFanout, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			out = append(out, sink)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}
