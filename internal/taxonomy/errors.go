package taxonomy

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedLevel = errors.New("malformed level")
	ErrDuplicateCode  = errors.New("duplicate organism code")
	ErrUnknownClade   = errors.New("unknown clade")
	ErrNotNested      = errors.New("clade is not nested in parent")
)

// MalformedLevelError reports a level letter more than one level below the
// previous line.
type MalformedLevelError struct {
	Line     int
	Level    int
	Previous int
	Reason   string
}

func (e *MalformedLevelError) Error() string {
	return fmt.Sprintf("line %d: level %d after level %d: %s", e.Line, e.Level, e.Previous, e.Reason)
}

func (e *MalformedLevelError) Unwrap() error { return ErrMalformedLevel }

// DuplicateCodeError reports a second organism line reusing a code.
type DuplicateCodeError struct {
	Code      string
	Line      int
	FirstLine int
}

func (e *DuplicateCodeError) Error() string {
	return fmt.Sprintf("line %d: organism code %q already defined on line %d", e.Line, e.Code, e.FirstLine)
}

func (e *DuplicateCodeError) Unwrap() error { return ErrDuplicateCode }

// UnknownCladeError is returned when a clade path selects no organisms.
type UnknownCladeError struct {
	Path string
}

func (e *UnknownCladeError) Error() string {
	return fmt.Sprintf("no clade of this path found: %s", e.Path)
}

func (e *UnknownCladeError) Unwrap() error { return ErrUnknownClade }
