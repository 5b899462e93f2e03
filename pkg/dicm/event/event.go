// Package event defines the tagged-sum Event type shared by the
// reader and writer (spec §3, §6).
package event

import (
	"fmt"

	"github.com/jpfielding/dicm/pkg/dicm/tag"
)

// Kind distinguishes the Event variants of spec §3.
type Kind int

const (
	StartModel Kind = iota
	EndModel
	StartAttribute
	EndAttribute
	Value
	StartSequence
	EndSequence
	StartItem
	EndItem
	StartFragments
	EndFragments
	StartFragment
	EndFragment
	Invalid
	Eof
)

func (k Kind) String() string {
	switch k {
	case StartModel:
		return "StartModel"
	case EndModel:
		return "EndModel"
	case StartAttribute:
		return "StartAttribute"
	case EndAttribute:
		return "EndAttribute"
	case Value:
		return "Value"
	case StartSequence:
		return "StartSequence"
	case EndSequence:
		return "EndSequence"
	case StartItem:
		return "StartItem"
	case EndItem:
		return "EndItem"
	case StartFragments:
		return "StartFragments"
	case EndFragments:
		return "EndFragments"
	case StartFragment:
		return "StartFragment"
	case EndFragment:
		return "EndFragment"
	case Invalid:
		return "Invalid"
	case Eof:
		return "Eof"
	default:
		return "Unknown"
	}
}

// Attribute is the (tag, VR, VL) triple of spec §3, without its value.
type Attribute struct {
	Tag    tag.Tag
	VR     string
	Length uint32 // 0xFFFFFFFF means undefined length
}

// UndefinedLength is the VL sentinel of spec §3/§6.
const UndefinedLength uint32 = 0xFFFFFFFF

// IsUndefinedLength reports whether a's length is the undefined-length
// sentinel.
func (a Attribute) IsUndefinedLength() bool {
	return a.Length == UndefinedLength
}

// Event is one item of the reader's output stream, and the writer's
// input stream. Only the fields relevant to Kind are meaningful; the
// zero value of the others is ignored.
type Event struct {
	Kind Kind

	// Valid for StartAttribute and any event produced while an
	// attribute is the active scope (Value, EndAttribute).
	Attribute Attribute

	// Valid for Value: the chunk copied out of the stream by the last
	// ReadValue call that produced this event's payload. The reader
	// itself only ever sets this for the zero-length "empty value"
	// case (spec §4.4); callers drain the rest via Reader.ReadValue.
	Chunk []byte

	// Valid for StartFragment: the fragment's definite length as read
	// from its item header.
	FragmentLength uint32

	// Valid for Invalid: the error describing why the reader/writer
	// poisoned.
	Err error
}

func (e Event) String() string {
	switch e.Kind {
	case StartAttribute, Value, EndAttribute:
		return fmt.Sprintf("%s{%s %s vl=%d}", e.Kind, e.Attribute.Tag, e.Attribute.VR, e.Attribute.Length)
	case StartFragment:
		return fmt.Sprintf("%s{len=%d}", e.Kind, e.FragmentLength)
	case Invalid:
		return fmt.Sprintf("%s{%v}", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}
