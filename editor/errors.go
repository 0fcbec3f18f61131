package editor

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrUnknownField is returned when setting a field the editor does not
	// declare.
	ErrUnknownField = errors.New("editor: unknown field")

	// ErrClosed is returned by Submit when the editor is not open.
	ErrClosed = errors.New("editor: not open")

	// ErrSubmitting is returned by Submit while a previous submit is running.
	ErrSubmitting = errors.New("editor: submit in progress")
)

// ValidationErrors maps field names to messages.
type ValidationErrors map[string]string

// Error implements the error interface
func (v ValidationErrors) Error() string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("editor: invalid input")
	for i, name := range names {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(v[name])
	}
	return b.String()
}

func (v ValidationErrors) clone() ValidationErrors {
	if len(v) == 0 {
		return nil
	}
	out := make(ValidationErrors, len(v))
	for k, msg := range v {
		out[k] = msg
	}
	return out
}
