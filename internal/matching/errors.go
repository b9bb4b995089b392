package matching

import (
	"errors"
	"fmt"
)

// ErrParseFailure means the model output held no usable ranking. It never
// reaches callers of Ranker; the heuristic takes over.
var ErrParseFailure = errors.New("unparseable model output")

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Detail
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Detail)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Detail: fmt.Sprintf(format, args...)}
}
