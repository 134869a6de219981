package asf

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Parse.
var (
	ErrNotHeader          = errors.New("asf: not a header object")
	ErrTruncated          = errors.New("asf: truncated object")
	ErrNoFileProperties   = errors.New("asf: header has no file properties object")
	ErrInvalidObjectSize  = errors.New("asf: invalid object size")
	ErrInvalidStreamIndex = errors.New("asf: invalid stream number")
)

// ParseError records which header object was being decoded when parsing
// failed.
type ParseError struct {
	Object string
	Offset int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("asf: parse %s at offset %d: %v", e.Object, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
