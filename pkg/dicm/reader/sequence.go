package reader

import (
	"fmt"
	"io"

	"github.com/jpfielding/dicm/pkg/dicm/bytestream"
	"github.com/jpfielding/dicm/pkg/dicm/dicmerr"
	"github.com/jpfielding/dicm/pkg/dicm/event"
	"github.com/jpfielding/dicm/pkg/dicm/tag"
	"github.com/jpfielding/dicm/pkg/dicm/wire"
)

// seqState is the sequence-of-items state machine of spec §4.2: the
// scope opened by a StartSequence event, a run of StartItem/EndItem
// pairs terminated by EndSequence.
type seqState int

const (
	seqReadBoundary seqState = iota
	seqInItem
	seqDone
	seqInvalid
)

// seqReader owns the item boundary (StartItem/EndItem/EndSequence)
// of one sequence value; the content of each item is driven by a
// child attrReader pushed onto the Reader's frame stack.
//
// A sequence is either undefined-length, closed by a Sequence
// Delimitation item, or definite-length, closed by reaching a
// precomputed byte offset (spec §3: VL's undefined sentinel is legal
// for SQ, not mandatory). This mirrors attrReader's bound/endAt.
type seqReader struct {
	src   *bytestream.CountingSource
	state seqState

	bound bound
	endAt int64 // used when bound == boundLength

	lastItemHeader wire.Header
}

func newSeqReader(src *bytestream.CountingSource, length uint32) *seqReader {
	sr := &seqReader{src: src, state: seqReadBoundary}
	if length == event.UndefinedLength {
		sr.bound = boundDelimiter
	} else {
		sr.bound = boundLength
		sr.endAt = src.Position() + int64(length)
	}
	return sr
}

func (sr *seqReader) next() (event.Event, error) {
	switch sr.state {
	case seqReadBoundary:
		return sr.readBoundary()
	case seqInItem:
		return event.Event{}, fmt.Errorf("reader: Next called on sequence frame while an item is open")
	case seqDone, seqInvalid:
		return event.Event{Kind: event.Eof}, nil
	default:
		return event.Event{}, fmt.Errorf("reader: sequence reader in unreachable state %d", sr.state)
	}
}

func (sr *seqReader) readBoundary() (event.Event, error) {
	if sr.bound == boundLength && sr.src.Position() >= sr.endAt {
		sr.state = seqDone
		return event.Event{Kind: event.EndSequence}, nil
	}

	h, err := wire.DecodeHeader(sr.src)
	if err == io.EOF {
		return sr.poison(dicmerr.New(dicmerr.UnexpectedEof, "eof inside sequence, missing sequence delimiter"))
	}
	if err != nil {
		return sr.poison(err)
	}
	switch h.Tag {
	case tag.ItemStart:
		sr.lastItemHeader = h
		sr.state = seqInItem
		return event.Event{Kind: event.StartItem, Attribute: event.Attribute{Length: h.Length}}, nil
	case tag.SequenceEnd:
		if sr.bound != boundDelimiter {
			return sr.poison(dicmerr.New(dicmerr.OutOfOrder, "unexpected sequence delimiter in a definite-length sequence"))
		}
		sr.state = seqDone
		return event.Event{Kind: event.EndSequence}, nil
	default:
		return sr.poison(dicmerr.New(dicmerr.InvalidLength,
			fmt.Sprintf("expected item-start or sequence-end, got %s", h.Tag)))
	}
}

// noteItemClosed is called by the Reader once the child attrReader
// for the current item has reached stateDone, including consuming the
// item's own Item Delimitation tag for undefined-length items (spec
// §4.2: a definite-length item's end is a byte-count boundary, not a
// tag, so the sequence reader never sees ItemEnd directly).
func (sr *seqReader) noteItemClosed() {
	sr.state = seqReadBoundary
}

func (sr *seqReader) openItemHeader() wire.Header { return sr.lastItemHeader }

func (sr *seqReader) poison(err error) (event.Event, error) {
	sr.state = seqInvalid
	return event.Event{Kind: event.Invalid, Err: err}, err
}

func (sr *seqReader) isDone() bool     { return sr.state == seqDone }
func (sr *seqReader) isPoisoned() bool { return sr.state == seqInvalid }
