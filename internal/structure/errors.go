package structure

import "fmt"

// ValidationError reports a bad fragment definition or a malformed
// structure. It is always raised before any calculator work starts.
type ValidationError struct {
	Index int // offending atom index, -1 when not index-specific
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("structure: %s (atom %d)", e.Msg, e.Index)
	}
	return "structure: " + e.Msg
}

func validationErr(index int, format string, args ...any) *ValidationError {
	return &ValidationError{Index: index, Msg: fmt.Sprintf(format, args...)}
}
