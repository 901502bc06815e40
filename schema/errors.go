package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidName indicates an empty or malformed file name.
	ErrInvalidName = errors.New("invalid file name")
	// ErrFileExists indicates the target file name is already taken.
	ErrFileExists = errors.New("file already exists")
	// ErrFileNotFound indicates a requested file does not exist.
	ErrFileNotFound = errors.New("file not found")
	// ErrUnknownFileType indicates an unsupported new-file type.
	ErrUnknownFileType = errors.New("unknown file type")
	// ErrWorkspaceNotFound indicates a requested workspace does not exist.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrSessionUnavailable indicates the backend did not hand out a session id.
	ErrSessionUnavailable = errors.New("execution session unavailable")
)
