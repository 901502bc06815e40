package schema

// WorkspaceID identifies a workspace (one file store plus one console).
type WorkspaceID string

// VMID identifies a remote execution session on the backend.
type VMID string

// Language names a backend execution language.
type Language string

const (
	// LanguagePython executes Python code.
	LanguagePython Language = "python"
	// LanguageLua executes Lua code.
	LanguageLua Language = "lua"
)

// ConsoleMode is the interpreter state of a console.
type ConsoleMode string

const (
	// ModeShell is the initial command mode.
	ModeShell ConsoleMode = "shell"
	// ModeRepl executes every submitted line as code.
	ModeRepl ConsoleMode = "repl"
)

// Prompt returns the echo prefix for the mode.
func (m ConsoleMode) Prompt() string {
	if m == ModeRepl {
		return ">>> "
	}
	return "$ "
}

// VMSlotKey is the persisted slot key holding the remote session id.
const VMSlotKey = "forgecode_vm_uuid"

// TranscriptSnapshot is a view of a console transcript.
type TranscriptSnapshot struct {
	Lines      []string    `json:"lines"`
	TotalLines int         `json:"total_lines"`
	Mode       ConsoleMode `json:"mode"`
	Busy       bool        `json:"busy"`
}
