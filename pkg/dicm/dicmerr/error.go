// Package dicmerr implements the error taxonomy of spec §7.
package dicmerr

import "fmt"

// Kind classifies a parse/encode failure.
type Kind int

const (
	// Io wraps a lower-level failure from the byte source/sink.
	Io Kind = iota
	// UnexpectedEof means fewer bytes than required arrived mid-header
	// or mid-value.
	UnexpectedEof
	// InvalidVr means the two VR bytes are not both ASCII A-Z.
	InvalidVr
	// ReservedNotZero means the long-form header's reserved field was
	// nonzero.
	ReservedNotZero
	// InvalidLength means an odd definite length, or an undefined
	// length on a VR/tag pair that doesn't allow it.
	InvalidLength
	// OutOfOrder means a tag did not strictly increase over the
	// previous tag within the same item.
	OutOfOrder
	// InvalidGroup means a dataset-body attribute used a group reserved
	// for command-set or file-meta context.
	InvalidGroup
	// InvalidArgument means the caller passed a malformed descriptor
	// to the writer.
	InvalidArgument
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "Io"
	case UnexpectedEof:
		return "UnexpectedEof"
	case InvalidVr:
		return "InvalidVr"
	case ReservedNotZero:
		return "ReservedNotZero"
	case InvalidLength:
		return "InvalidLength"
	case OutOfOrder:
		return "OutOfOrder"
	case InvalidGroup:
		return "InvalidGroup"
	case InvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// Error is the taxonomy carrier: a Kind, a message, and (usually) the
// wrapped lower-level cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dicm: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("dicm: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error around a lower-level cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and ok
// reports whether one was found.
func KindOf(err error) (Kind, bool) {
	var e *Error
	for err != nil {
		if de, ok := err.(*Error); ok {
			e = de
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return 0, false
	}
	return e.Kind, true
}
