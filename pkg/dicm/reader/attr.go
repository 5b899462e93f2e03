package reader

import (
	"fmt"
	"io"

	"github.com/jpfielding/dicm/pkg/dicm/bytestream"
	"github.com/jpfielding/dicm/pkg/dicm/dicmerr"
	"github.com/jpfielding/dicm/pkg/dicm/event"
	"github.com/jpfielding/dicm/pkg/dicm/tag"
	"github.com/jpfielding/dicm/pkg/dicm/vr"
	"github.com/jpfielding/dicm/pkg/dicm/wire"
)

// bound describes how an attrReader knows its scope has ended.
type bound int

const (
	// boundEOF is the top-level dataset: the scope ends at a clean
	// end of stream (spec §4.4).
	boundEOF bound = iota
	// boundLength is a definite-length item's content: the scope ends
	// once the counting source reaches a precomputed byte offset.
	boundLength
	// boundDelimiter is an undefined-length item's content: the scope
	// ends at an Item Delimitation tag (spec §4.2).
	boundDelimiter
)

// attrState is the attribute-list state machine of spec §4.2/§4.4:
// a flat run of StartAttribute/Value/EndAttribute triples, where a
// sequence- or fragments-valued attribute recurses into a nested
// scope owned by the outer Reader's frame stack.
type attrState int

const (
	stateHeader attrState = iota
	stateClassify
	stateValue
	statePendingEndAttribute
	stateParkedNested
	statePendingNestedEndAttribute
	stateDone
	stateInvalid
)

// attrReader drives one attribute-list scope: the top-level dataset,
// or the content of a single sequence item.
type attrReader struct {
	src *bytestream.CountingSource

	bound bound
	endAt int64 // used when bound == boundLength
	state attrState

	attr   event.Attribute
	cursor uint32

	haveLastTag bool
	lastTag     tag.Tag
}

func newRootAttrReader(src *bytestream.CountingSource) *attrReader {
	return &attrReader{src: src, bound: boundEOF, state: stateHeader}
}

func newItemContentAttrReader(src *bytestream.CountingSource, h wire.Header) *attrReader {
	ar := &attrReader{src: src, state: stateHeader}
	if h.Length == event.UndefinedLength {
		ar.bound = boundDelimiter
	} else {
		ar.bound = boundLength
		ar.endAt = src.Position() + int64(h.Length)
	}
	return ar
}

func (ar *attrReader) next() (event.Event, error) {
	switch ar.state {
	case stateHeader:
		return ar.readHeader()
	case stateClassify:
		return ar.classify()
	case stateValue:
		return ar.afterValue()
	case statePendingEndAttribute, statePendingNestedEndAttribute:
		ar.state = stateHeader
		return event.Event{Kind: event.EndAttribute, Attribute: ar.attr}, nil
	case stateParkedNested:
		return event.Event{}, fmt.Errorf("reader: next() called on attribute reader parked for a nested scope")
	case stateDone, stateInvalid:
		return event.Event{Kind: event.Eof}, nil
	default:
		return event.Event{}, fmt.Errorf("reader: attribute reader in unreachable state %d", ar.state)
	}
}

// classify decides, right after a StartAttribute event, whether the
// value is a nested sequence, an encapsulated-fragments run, or a
// plain byte value (spec §4.2's Attribute transition row). For the
// nested cases it parks this frame and returns the StartSequence or
// StartFragments event; the outer Reader pushes the matching child
// frame and later calls resumeAfterNested once that scope closes.
func (ar *attrReader) classify() (event.Event, error) {
	isSequence, isFragments := ar.classifyValue()
	switch {
	case isSequence:
		ar.state = stateParkedNested
		return event.Event{Kind: event.StartSequence}, nil
	case isFragments:
		ar.state = stateParkedNested
		return event.Event{Kind: event.StartFragments}, nil
	default:
		return ar.beginPlainValue(), nil
	}
}

// resumeAfterNested is called by the outer Reader once a nested
// sequence-of-items or fragments scope owned by this attribute has
// fully closed (EndSequence/EndFragments consumed). It arranges for
// the next next() call to emit this attribute's EndAttribute.
func (ar *attrReader) resumeAfterNested() {
	ar.state = statePendingNestedEndAttribute
}

func (ar *attrReader) atScopeEnd() bool {
	switch ar.bound {
	case boundLength:
		return ar.src.Position() >= ar.endAt
	default:
		return false
	}
}

func (ar *attrReader) readHeader() (event.Event, error) {
	if ar.atScopeEnd() {
		ar.state = stateDone
		return event.Event{Kind: event.Eof}, nil
	}

	h, err := wire.DecodeHeader(ar.src)
	if err == io.EOF {
		if ar.bound == boundEOF {
			ar.state = stateDone
			return event.Event{Kind: event.Eof}, nil
		}
		return ar.poison(dicmerr.New(dicmerr.UnexpectedEof, "eof inside item content, missing item delimiter"))
	}
	if err != nil {
		return ar.poison(err)
	}

	if h.Tag == tag.ItemEnd {
		if ar.bound != boundDelimiter {
			return ar.poison(dicmerr.New(dicmerr.OutOfOrder, "unexpected item delimiter in this scope"))
		}
		ar.state = stateDone
		return event.Event{Kind: event.Eof}, nil
	}
	if h.Tag.IsDelimiter() {
		return ar.poison(dicmerr.New(dicmerr.OutOfOrder, fmt.Sprintf("unexpected delimiter tag %s reading attribute header", h.Tag)))
	}

	if err := ar.checkAttributeTag(h.Tag); err != nil {
		return ar.poison(err)
	}
	if err := checkUserAttribute(h); err != nil {
		return ar.poison(err)
	}

	ar.attr = event.Attribute{Tag: h.Tag, VR: h.VR, Length: h.Length}
	ar.state = stateClassify
	return event.Event{Kind: event.StartAttribute, Attribute: ar.attr}, nil
}

func (ar *attrReader) checkAttributeTag(t tag.Tag) error {
	if ar.haveLastTag && !ar.lastTag.Less(t) {
		return dicmerr.New(dicmerr.OutOfOrder,
			fmt.Sprintf("tag %s did not strictly increase over previous tag %s", t, ar.lastTag))
	}
	ar.lastTag = t
	ar.haveLastTag = true
	return nil
}

func checkUserAttribute(h wire.Header) error {
	if !h.Tag.IsUserData() {
		return dicmerr.New(dicmerr.InvalidGroup,
			fmt.Sprintf("tag %s uses a group reserved for command-set/file-meta context, not the dataset body", h.Tag))
	}
	if h.Tag.IsCreator() && h.VR != string(vr.LO) && h.VR != "" {
		return dicmerr.New(dicmerr.InvalidLength,
			fmt.Sprintf("creator tag %s must have VR LO, got %s", h.Tag, h.VR))
	}
	return nil
}

// classifyValue inspects the just-parsed attribute header to decide
// the value's shape: nested sequence, encapsulated fragments, or a
// plain byte run (spec §4.2's Attribute transition row).
func (ar *attrReader) classifyValue() (isSequence, isFragments bool) {
	v := vr.VR(ar.attr.VR)
	if v == vr.SQ {
		return true, false
	}
	if ar.attr.Length == event.UndefinedLength && ar.attr.Tag.IsEncapsulatedPixelData(ar.attr.VR) {
		return false, true
	}
	return false, false
}

// beginPlainValue transitions into stateValue for a plain, non-nested
// value. Returns the Value event; for a zero-length value the Chunk is
// explicitly empty (spec §4.4's "observable VL=0 Value event").
func (ar *attrReader) beginPlainValue() event.Event {
	ar.cursor = 0
	ar.state = stateValue
	ev := event.Event{Kind: event.Value, Attribute: ar.attr}
	if ar.attr.Length == 0 {
		ev.Chunk = []byte{}
	}
	return ev
}

func (ar *attrReader) afterValue() (event.Event, error) {
	if ar.cursor != ar.attr.Length {
		return event.Event{}, fmt.Errorf("reader: value not fully drained (cursor=%d length=%d)", ar.cursor, ar.attr.Length)
	}
	ar.state = statePendingEndAttribute
	return ar.next()
}

// readValue copies up to len(dst) bytes of the current attribute's
// plain value, advancing the cursor.
func (ar *attrReader) readValue(dst []byte) (int, error) {
	remaining := ar.attr.Length - ar.cursor
	if remaining == 0 {
		return 0, nil
	}
	n := len(dst)
	if uint32(n) > remaining {
		n = int(remaining)
	}
	read, err := io.ReadFull(bytestream.AsReader(ar.src), dst[:n])
	ar.cursor += uint32(read)
	if err != nil {
		return read, dicmerr.Wrap(dicmerr.UnexpectedEof, "reading attribute value", err)
	}
	return read, nil
}

func (ar *attrReader) valueLength() uint32        { return ar.attr.Length }
func (ar *attrReader) attribute() event.Attribute { return ar.attr }

func (ar *attrReader) poison(err error) (event.Event, error) {
	ar.state = stateInvalid
	return event.Event{Kind: event.Invalid, Err: err}, err
}

func (ar *attrReader) isDone() bool     { return ar.state == stateDone }
func (ar *attrReader) isPoisoned() bool { return ar.state == stateInvalid }
