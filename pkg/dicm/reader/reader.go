// Package reader implements the streaming event-driven DICOM reader
// of spec §4: Reader pulls bytes from a bytestream.Source and exposes
// them as a flat sequence of Events via repeated calls to Next,
// without ever holding more than one scope's worth of state in memory
// at a time (spec §1's no-DOM constraint).
//
// The reader composes three small state machines, one per nesting
// level of the wire format: attrReader drives a flat attribute list
// (the top-level dataset, or one sequence item's content); seqReader
// drives the item-start/item-end/sequence-end boundary of a single
// sequence value; fragmentReader drives the flat item run of an
// encapsulated pixel data value. Reader itself owns the frame stack
// that links them and is the only place that decides when one scope's
// end unblocks its parent (spec §4.4's single source of truth for
// stack discipline).
package reader

import (
	"fmt"

	"github.com/jpfielding/dicm/pkg/dicm/bytestream"
	"github.com/jpfielding/dicm/pkg/dicm/dicmerr"
	"github.com/jpfielding/dicm/pkg/dicm/event"
)

// frame is one level of the reader's scope stack.
type frame interface {
	next() (event.Event, error)
	isDone() bool
	isPoisoned() bool
}

// Reader is a pull-based, single-pass DICOM event reader. It is not
// safe for concurrent use.
type Reader struct {
	src *bytestream.CountingSource

	stack    []frame
	started  bool
	finished bool
	poisoned bool
	lastErr  error

	// eofReturned is set once Next has handed out its terminal Eof.
	eofReturned bool
}

// New wraps src in a Reader. The returned Reader reads Explicit VR
// Little Endian data starting at src's current position; callers that
// need to skip a Part 10 preamble call bytestream.SkipPreamble first.
func New(src bytestream.Source) *Reader {
	return &Reader{src: bytestream.NewCountingSource(src)}
}

// Next advances the reader by one step and returns the next Event.
// Once the reader is poisoned (an Invalid event has been returned) or
// exhausted, every subsequent call returns an Eof event with a nil
// error (spec §4.6's "poison once, then behave like clean Eof").
func (r *Reader) Next() (event.Event, error) {
	if r.poisoned || r.finished {
		r.eofReturned = true
		return event.Event{Kind: event.Eof}, nil
	}
	if !r.started {
		r.started = true
		r.stack = []frame{newRootAttrReader(r.src)}
		return event.Event{Kind: event.StartModel}, nil
	}

	for {
		if len(r.stack) == 0 {
			r.finished = true
			return event.Event{Kind: event.EndModel}, nil
		}

		top := r.stack[len(r.stack)-1]
		ev, err := top.next()
		if err != nil {
			r.poisoned = true
			r.lastErr = err
			return ev, err
		}

		switch f := top.(type) {
		case *attrReader:
			switch ev.Kind {
			case event.StartSequence:
				r.stack = append(r.stack, newSeqReader(r.src, f.attr.Length))
				return ev, nil
			case event.StartFragments:
				r.stack = append(r.stack, newFragmentReader(r.src))
				return ev, nil
			case event.Eof:
				r.stack = r.stack[:len(r.stack)-1]
				if f.bound == boundEOF {
					continue
				}
				parent, ok := r.top().(*seqReader)
				if !ok {
					return event.Event{}, fmt.Errorf("reader: item content frame closed without a sequence parent")
				}
				parent.noteItemClosed()
				return event.Event{Kind: event.EndItem}, nil
			default:
				return ev, nil
			}

		case *seqReader:
			switch ev.Kind {
			case event.StartItem:
				r.stack = append(r.stack, newItemContentAttrReader(r.src, f.openItemHeader()))
				return ev, nil
			case event.EndSequence:
				r.stack = r.stack[:len(r.stack)-1]
				parent, ok := r.top().(*attrReader)
				if !ok {
					return event.Event{}, fmt.Errorf("reader: sequence frame closed without an attribute parent")
				}
				parent.resumeAfterNested()
				return ev, nil
			default:
				return ev, nil
			}

		case *fragmentReader:
			switch ev.Kind {
			case event.EndFragments:
				r.stack = r.stack[:len(r.stack)-1]
				parent, ok := r.top().(*attrReader)
				if !ok {
					return event.Event{}, fmt.Errorf("reader: fragments frame closed without an attribute parent")
				}
				parent.resumeAfterNested()
				return ev, nil
			default:
				return ev, nil
			}

		default:
			return event.Event{}, fmt.Errorf("reader: unreachable frame type %T", top)
		}
	}
}

func (r *Reader) top() frame {
	if len(r.stack) == 0 {
		return nil
	}
	return r.stack[len(r.stack)-1]
}

// ReadValue copies up to len(dst) bytes of the value belonging to the
// most recently returned Value event, advancing the reader's position.
// It returns (0, nil) once the current value is fully drained; callers
// must call Next again to move on (spec §4.4).
func (r *Reader) ReadValue(dst []byte) (int, error) {
	switch f := r.top().(type) {
	case *attrReader:
		return f.readValue(dst)
	case *fragmentReader:
		return f.readValue(dst)
	default:
		return 0, dicmerr.New(dicmerr.InvalidArgument, "ReadValue called outside an active value scope")
	}
}

// ValueLength returns the declared length of the value currently being
// read, or the current fragment's length inside a fragments scope.
func (r *Reader) ValueLength() uint32 {
	switch f := r.top().(type) {
	case *attrReader:
		return f.valueLength()
	case *fragmentReader:
		return f.valueLength()
	default:
		return 0
	}
}

// Attribute returns the (tag, VR, VL) triple of the attribute whose
// scope is currently open. It is only meaningful between a
// StartAttribute and its matching EndAttribute.
func (r *Reader) Attribute() event.Attribute {
	if f, ok := r.top().(*attrReader); ok {
		return f.attribute()
	}
	return event.Attribute{}
}

// Position returns the number of bytes pulled from the underlying
// source so far.
func (r *Reader) Position() int64 {
	return r.src.Position()
}

// Poisoned reports whether the reader has returned an Invalid event,
// and if so the error that caused it.
func (r *Reader) Poisoned() (bool, error) {
	return r.poisoned, r.lastErr
}

// HasNext reports whether the stream still has events to deliver, the
// closing Eof included: it stays true after EndModel and turns false
// once the reader is poisoned or has returned its Eof (spec §2.4/§4.4's
// has_next accessor).
func (r *Reader) HasNext() bool {
	return !r.poisoned && !r.eofReturned
}
