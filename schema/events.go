package schema

// ConsoleEventType identifies a console event.
type ConsoleEventType string

const (
	// ConsoleEcho is the echoed input line.
	ConsoleEcho ConsoleEventType = "echo"
	// ConsoleOutput is a result or streamed output line.
	ConsoleOutput ConsoleEventType = "output"
	// ConsoleClear resets the transcript.
	ConsoleClear ConsoleEventType = "clear"
	// ConsoleModeChanged reports a mode transition.
	ConsoleModeChanged ConsoleEventType = "mode"
	// ConsoleIdle reports that a submission finished.
	ConsoleIdle ConsoleEventType = "idle"
)

// ConsoleEvent is emitted for every transcript mutation.
type ConsoleEvent struct {
	WorkspaceID WorkspaceID      `json:"workspace_id"`
	Type        ConsoleEventType `json:"type"`
	Lines       []string         `json:"lines,omitempty"`
	Mode        ConsoleMode      `json:"mode,omitempty"`
}
