package cardx

import (
	"errors"
	"fmt"
)

var (
	// ErrStructural is returned when a delimiter shows up where the property
	// line grammar does not allow it, e.g. ':' right after ';'.
	ErrStructural = errors.New("structural parse error")
	// ErrDecode is returned for an invalid base64 symbol.
	ErrDecode = errors.New("encoding decode error")
	// ErrLineTooLong is returned when a token outgrows Config.MaxLineLength.
	ErrLineTooLong = errors.New("maximum line length exceeded")
	// ErrFreed is returned by Parse after Free was called.
	ErrFreed = errors.New("parser has been freed")
)

type ReaderError string

func (e ReaderError) Error() string {
	return string(e)
}

// LimitError is returned by ParseReader when the input exceeds Config.MaxSize.
const LimitError ReaderError = "read limit reached"

// ParseError describes where the parser gave up. Kind is one of ErrStructural,
// ErrDecode or ErrLineTooLong, so errors.Is works on the taxonomy.
type ParseError struct {
	Kind   error
	Line   int
	Column int
	State  ParserState
	Char   byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v at line %d, column %d: unexpected %q in state %s", e.Kind, e.Line, e.Column, e.Char, e.State)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

// handlerError wraps an error returned by a registered callback.
type handlerError struct {
	event string
	err   error
}

func (e *handlerError) Error() string {
	return fmt.Sprintf("%s handler: %v", e.event, e.err)
}

func (e *handlerError) Unwrap() error {
	return e.err
}
