package idgen

import "github.com/google/uuid"

// NewFunc returns a new globally unique identifier. Tests may replace it to
// get predictable task and session ids.
var NewFunc = func() string { return uuid.New().String() }

func New() string { return NewFunc() }

// Prefixed returns "<prefix>-<id>", e.g. "task-1b9d6bcd...".
func Prefixed(prefix string) string {
	if prefix == "" {
		return New()
	}
	return prefix + "-" + New()
}
