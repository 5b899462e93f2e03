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

// fragmentState is the simplified state machine of spec §4.3: a
// fragments scope is a flat run of items (the first of which is the
// basic offset table), each carrying a plain byte run rather than a
// nested attribute list, terminated by a sequence delimiter.
type fragmentState int

const (
	fragStartItem fragmentState = iota
	fragValue
	fragInFragment
	fragDone
	fragInvalid
)

// fragmentReader drives one StartFragments..EndFragments scope (the
// encapsulated-pixel-data case of spec §4.3).
type fragmentReader struct {
	src   bytestream.Source
	state fragmentState

	length uint32
	cursor uint32
}

func newFragmentReader(src bytestream.Source) *fragmentReader {
	return &fragmentReader{src: src, state: fragStartItem}
}

func (fr *fragmentReader) next() (event.Event, error) {
	switch fr.state {
	case fragStartItem:
		return fr.readFragmentHeader()
	case fragValue:
		return fr.beginFragmentValue(), nil
	case fragInFragment:
		return fr.afterFragmentValue()
	case fragDone, fragInvalid:
		return event.Event{Kind: event.Eof}, nil
	default:
		return event.Event{}, fmt.Errorf("reader: fragment reader in unreachable state %d", fr.state)
	}
}

func (fr *fragmentReader) readFragmentHeader() (event.Event, error) {
	h, err := wire.DecodeHeader(fr.src)
	if err == io.EOF {
		return fr.poison(dicmerr.New(dicmerr.UnexpectedEof, "eof inside fragments scope, missing sequence delimiter"))
	}
	if err != nil {
		return fr.poison(err)
	}
	switch h.Tag {
	case tag.ItemStart:
		if h.Length == event.UndefinedLength {
			return fr.poison(dicmerr.New(dicmerr.InvalidLength, "fragment item may not have undefined length"))
		}
		fr.length = h.Length
		fr.cursor = 0
		fr.state = fragValue
		return event.Event{Kind: event.StartFragment, FragmentLength: h.Length}, nil
	case tag.SequenceEnd:
		fr.state = fragDone
		return event.Event{Kind: event.EndFragments}, nil
	default:
		return fr.poison(dicmerr.New(dicmerr.InvalidLength,
			fmt.Sprintf("expected fragment item or sequence-end, got %s", h.Tag)))
	}
}

// beginFragmentValue transitions into fragInFragment and emits the
// fragment's Value event, mirroring attrReader.beginPlainValue
// (including the empty-VL case for a zero-length fragment).
func (fr *fragmentReader) beginFragmentValue() event.Event {
	fr.state = fragInFragment
	ev := event.Event{Kind: event.Value}
	if fr.length == 0 {
		ev.Chunk = []byte{}
	}
	return ev
}

func (fr *fragmentReader) afterFragmentValue() (event.Event, error) {
	if fr.cursor != fr.length {
		return event.Event{}, fmt.Errorf("reader: fragment value not fully drained (cursor=%d length=%d)", fr.cursor, fr.length)
	}
	fr.state = fragStartItem
	return event.Event{Kind: event.EndFragment}, nil
}

// readValue copies up to len(dst) bytes of the current fragment's raw
// byte run.
func (fr *fragmentReader) readValue(dst []byte) (int, error) {
	remaining := fr.length - fr.cursor
	if remaining == 0 {
		return 0, nil
	}
	n := len(dst)
	if uint32(n) > remaining {
		n = int(remaining)
	}
	read, err := io.ReadFull(bytestream.AsReader(fr.src), dst[:n])
	fr.cursor += uint32(read)
	if err != nil {
		return read, dicmerr.Wrap(dicmerr.UnexpectedEof, "reading fragment value", err)
	}
	return read, nil
}

func (fr *fragmentReader) valueLength() uint32 { return fr.length }

func (fr *fragmentReader) poison(err error) (event.Event, error) {
	fr.state = fragInvalid
	return event.Event{Kind: event.Invalid, Err: err}, err
}

func (fr *fragmentReader) isDone() bool     { return fr.state == fragDone }
func (fr *fragmentReader) isPoisoned() bool { return fr.state == fragInvalid }
