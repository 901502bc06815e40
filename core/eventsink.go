package core

import "pkt.systems/forgecode/schema"

// EventSink receives console events from sessions. Implementations must not
// block and must not call back into the session.
type EventSink interface {
	OnConsoleEvent(event schema.ConsoleEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(event schema.ConsoleEvent)

// OnConsoleEvent calls f.
func (f EventSinkFunc) OnConsoleEvent(event schema.ConsoleEvent) {
	f(event)
}

// WorkspaceForgetter is implemented by sinks that keep per-workspace state.
// The manager calls ForgetWorkspace once a workspace's console is closed.
type WorkspaceForgetter interface {
	ForgetWorkspace(id schema.WorkspaceID)
}
