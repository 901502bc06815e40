package command

import "strings"

// Command is one parsed console line. Raw is the trimmed input.
type Command struct {
	Name string
	Args []string
	Raw  string
}

// Parse splits a console line on whitespace. It reports false for blank input.
func Parse(input string) (Command, bool) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{
		Name: fields[0],
		Args: fields[1:],
		Raw:  strings.TrimSpace(input),
	}, true
}
