package editor

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/youssefsiam38/activitypg/draft"
)

// Field declares one editable input, the draft slot it is mirrored to and
// its validation rule.
type Field struct {
	Name  string
	Label string
	Slot  draft.Slot

	// MinLen is the minimum length in characters. Zero makes the field
	// optional.
	MinLen int

	// Choices restricts the value to a fixed set when non-empty.
	Choices []string

	// Default is used when neither a draft nor a current value exists.
	Default string
}

// Check returns the validation message for value, or "" when it is valid.
func (f Field) Check(value string) string {
	if f.MinLen > 0 {
		if strings.TrimSpace(value) == "" {
			return fmt.Sprintf("%s is required.", f.Label)
		}
		if utf8.RuneCountInString(value) < f.MinLen {
			return fmt.Sprintf("%s must be at least %d characters.", f.Label, f.MinLen)
		}
	}
	if len(f.Choices) > 0 && !slices.Contains(f.Choices, value) {
		return fmt.Sprintf("%s must be one of %s.", f.Label, strings.Join(f.Choices, ", "))
	}
	return ""
}

// Field sets for each editor kind.
var (
	NoteFields = []Field{
		{Name: "title", Label: "Title", Slot: draft.NoteTitle, MinLen: 2},
		{Name: "content", Label: "Content", Slot: draft.NoteContent, MinLen: 5},
	}

	TodoFields = []Field{
		{Name: "title", Label: "Title", Slot: draft.TodoTitle, MinLen: 2},
		{Name: "content", Label: "Content", Slot: draft.TodoContent, MinLen: 5},
		{Name: "level", Label: "Level", Slot: draft.TodoLevel, Choices: []string{"low", "medium", "high"}, Default: "low"},
	}

	PhotoFields = []Field{
		{Name: "name", Label: "Name", Slot: draft.PhotoName, MinLen: 2},
		{Name: "category", Label: "Category", Slot: draft.PhotoCategory, MinLen: 1},
	}

	ReviewFields = []Field{
		{Name: "content", Label: "Review", Slot: draft.ReviewContent, MinLen: 1},
	}
)

// Slots returns the draft slots of fields.
func Slots(fields []Field) []draft.Slot {
	slots := make([]draft.Slot, 0, len(fields))
	for _, f := range fields {
		slots = append(slots, f.Slot)
	}
	return slots
}
