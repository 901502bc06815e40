package vfs

import (
	"fmt"
	"strings"

	"pkt.systems/forgecode/schema"
)

// FileType is a kind of file offered by the new-file dialog.
type FileType string

// Supported file types.
const (
	TypePython   FileType = ".py"
	TypeMarkdown FileType = ".md"
	TypeText     FileType = ".txt"
	TypeWebSpace FileType = "Web Space"
)

var fileTypes = []FileType{TypePython, TypeMarkdown, TypeText, TypeWebSpace}

var fileTypeSynonyms = map[FileType]string{
	TypePython:   "python",
	TypeMarkdown: "markdown",
	TypeText:     "text",
	TypeWebSpace: "web html css javascript",
}

// FileTypes returns every supported file type in dialog order.
func FileTypes() []FileType {
	return append([]FileType(nil), fileTypes...)
}

// BaseName is the name new files of this type are numbered from.
func (t FileType) BaseName() string {
	switch t {
	case TypePython:
		return "script"
	case TypeMarkdown:
		return "note"
	case TypeWebSpace:
		return "webspace"
	default:
		return "document"
	}
}

// Label is the human readable name of the type.
func (t FileType) Label() string {
	switch t {
	case TypePython:
		return "Python File"
	case TypeMarkdown:
		return "Markdown File"
	case TypeWebSpace:
		return "Web Space"
	default:
		return "Text File"
	}
}

// Description is the one-line dialog hint for the type.
func (t FileType) Description() string {
	switch t {
	case TypePython:
		return "Python script with syntax highlighting"
	case TypeMarkdown:
		return "Markdown with live preview"
	case TypeWebSpace:
		return "HTML, CSS & JS workspace with live preview"
	default:
		return "Plain text document"
	}
}

// ParseFileType accepts an extension, a type label or a synonym.
func ParseFileType(value string) (FileType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case ".py", "py", "python":
		return TypePython, nil
	case ".md", "md", "markdown":
		return TypeMarkdown, nil
	case ".txt", "txt", "text":
		return TypeText, nil
	case "web space", "webspace", "web":
		return TypeWebSpace, nil
	}
	return "", fmt.Errorf("%w: %q", schema.ErrUnknownFileType, value)
}

// MatchFileTypes filters file types by a case-insensitive query. A type
// matches when its name contains the query or the query is part of its synonyms.
func MatchFileTypes(query string) []FileType {
	q := strings.ToLower(query)
	out := make([]FileType, 0, len(fileTypes))
	for _, t := range fileTypes {
		if q == "" ||
			strings.Contains(strings.ToLower(string(t)), q) ||
			strings.Contains(fileTypeSynonyms[t], q) {
			out = append(out, t)
		}
	}
	return out
}

// NewFile creates a file (or workspace group) of the given type and returns
// the created names, the selected one first.
func (s *Store) NewFile(t FileType) ([]string, error) {
	switch t {
	case TypeWebSpace:
		html, css, js := s.CreateWorkspaceGroup(t.BaseName())
		return []string{html, css, js}, nil
	case TypePython, TypeMarkdown, TypeText:
		return []string{s.Create(t.BaseName(), string(t))}, nil
	default:
		return nil, fmt.Errorf("%w: %q", schema.ErrUnknownFileType, string(t))
	}
}
