// Package writer implements the push-driven DICOM event writer of
// spec §5: callers push the same Event stream a Reader would produce
// and the Writer serializes it back to Explicit VR Little Endian
// wire bytes, including synthesizing the Item/Sequence/Fragments
// delimiters the caller's Events imply.
package writer

import (
	"fmt"

	"github.com/jpfielding/dicm/pkg/dicm/bytestream"
	"github.com/jpfielding/dicm/pkg/dicm/dicmerr"
	"github.com/jpfielding/dicm/pkg/dicm/event"
	"github.com/jpfielding/dicm/pkg/dicm/tag"
	"github.com/jpfielding/dicm/pkg/dicm/vr"
	"github.com/jpfielding/dicm/pkg/dicm/wire"
)

// scopeKind distinguishes the kinds of frame the writer's stack can
// hold, mirroring the reader's frame stack (spec §5 mirrors §4).
type scopeKind int

const (
	scopeAttributeList scopeKind = iota
	scopeItem
	scopeFragments
)

type scope struct {
	kind scopeKind

	// attr/haveAttr/written track an open StartAttribute whose value
	// has not yet been fully written, so EndAttribute can validate a
	// definite length was satisfied.
	attr     event.Attribute
	haveAttr bool
	written  uint32

	haveLastTag bool
	lastTag     tag.Tag

	// itemLength is the declared length of the item whose content this
	// attribute-list scope holds (unused for the root scope).
	itemLength uint32
}

// Writer is a push-based, single-pass DICOM event writer. It is not
// safe for concurrent use.
type Writer struct {
	sink *bytestream.CountingSink

	stack    []*scope
	started  bool
	finished bool
	poisoned bool
}

// New wraps sink in a Writer. Callers that need a Part 10 preamble
// call bytestream.WritePreamble first.
func New(sink bytestream.Sink) *Writer {
	return &Writer{sink: bytestream.NewCountingSink(sink)}
}

// Put pushes one Event into the writer. Events must arrive in the same
// grammar a Reader produces (spec §3/§8): StartModel first, EndModel
// last (a trailing Eof is accepted once EndModel has been written), and
// every Start* balanced by its End* in LIFO order.
func (w *Writer) Put(ev event.Event) error {
	if w.poisoned {
		return dicmerr.New(dicmerr.InvalidArgument, "writer already poisoned by a previous error")
	}
	err := w.put(ev)
	if err != nil {
		w.poisoned = true
	}
	return err
}

func (w *Writer) put(ev event.Event) error {
	switch ev.Kind {
	case event.StartModel:
		if w.started {
			return dicmerr.New(dicmerr.InvalidArgument, "StartModel received twice")
		}
		w.started = true
		w.stack = append(w.stack, &scope{kind: scopeAttributeList})
		return nil

	case event.EndModel:
		if len(w.stack) != 1 {
			return dicmerr.New(dicmerr.InvalidArgument, "EndModel received with scopes still open")
		}
		w.stack = w.stack[:0]
		w.finished = true
		return nil

	case event.StartAttribute:
		return w.startAttribute(ev.Attribute)

	case event.Value:
		return w.writeValue(ev.Chunk)

	case event.EndAttribute:
		return w.endAttribute()

	case event.StartSequence:
		return w.startSequence()

	case event.EndSequence:
		return w.endSequence()

	case event.StartItem:
		return w.startItem(ev.Attribute)

	case event.EndItem:
		return w.endItem()

	case event.StartFragments:
		return w.startFragments()

	case event.EndFragments:
		return w.endFragments()

	case event.StartFragment:
		return w.startFragment(ev.FragmentLength)

	case event.EndFragment:
		return w.endFragment()

	case event.Eof:
		if !w.finished {
			return dicmerr.New(dicmerr.InvalidArgument, "Eof received before EndModel")
		}
		return nil

	default:
		return dicmerr.New(dicmerr.InvalidArgument, fmt.Sprintf("unexpected event kind %s", ev.Kind))
	}
}

func (w *Writer) top() *scope {
	if len(w.stack) == 0 {
		return nil
	}
	return w.stack[len(w.stack)-1]
}

func (w *Writer) startAttribute(attr event.Attribute) error {
	s := w.top()
	if s == nil || s.kind != scopeAttributeList {
		return dicmerr.New(dicmerr.InvalidArgument, "StartAttribute outside an attribute list scope")
	}
	if s.haveAttr {
		return dicmerr.New(dicmerr.InvalidArgument, "StartAttribute received while another attribute is open")
	}
	if s.haveLastTag && !s.lastTag.Less(attr.Tag) {
		return dicmerr.New(dicmerr.OutOfOrder,
			fmt.Sprintf("tag %s did not strictly increase over previous tag %s", attr.Tag, s.lastTag))
	}
	s.lastTag = attr.Tag
	s.haveLastTag = true
	s.attr = attr
	s.haveAttr = true
	s.written = 0

	h := wire.Header{Tag: attr.Tag, VR: attr.VR, Length: attr.Length}
	return wire.EncodeHeader(w.sink, h)
}

func (w *Writer) writeValue(chunk []byte) error {
	s := w.top()
	if s == nil || !s.haveAttr {
		return dicmerr.New(dicmerr.InvalidArgument, "Value received outside an open attribute")
	}
	if len(chunk) == 0 {
		return nil
	}
	n, err := w.sink.Write(chunk)
	if err != nil {
		return dicmerr.Wrap(dicmerr.Io, "writing attribute value", err)
	}
	s.written += uint32(n)
	if s.written > s.attr.Length && s.attr.Length != event.UndefinedLength {
		return dicmerr.New(dicmerr.InvalidLength,
			fmt.Sprintf("wrote %d bytes, exceeding declared length %d for %s", s.written, s.attr.Length, s.attr.Tag))
	}
	return nil
}

func (w *Writer) endAttribute() error {
	s := w.top()
	if s == nil || !s.haveAttr {
		return dicmerr.New(dicmerr.InvalidArgument, "EndAttribute received without a matching StartAttribute")
	}
	// Sequence- and fragments-valued attributes have their bytes
	// written by a nested scope, not tracked in s.written, so the
	// byte-count check below only applies to plain values.
	isNested := vr.VR(s.attr.VR) == vr.SQ ||
		(s.attr.Length == event.UndefinedLength && s.attr.Tag.IsEncapsulatedPixelData(s.attr.VR))
	if !isNested && s.attr.Length != event.UndefinedLength && s.written != s.attr.Length {
		return dicmerr.New(dicmerr.InvalidLength,
			fmt.Sprintf("wrote %d of %d declared bytes for %s before EndAttribute", s.written, s.attr.Length, s.attr.Tag))
	}
	s.haveAttr = false
	return nil
}

func (w *Writer) startSequence() error {
	s := w.top()
	if s == nil || !s.haveAttr || vr.VR(s.attr.VR) != vr.SQ {
		return dicmerr.New(dicmerr.InvalidArgument, "StartSequence received without an open SQ attribute")
	}
	w.stack = append(w.stack, &scope{kind: scopeItem, attr: s.attr})
	return nil
}

func (w *Writer) endSequence() error {
	s := w.top()
	if s == nil || s.kind != scopeItem {
		return dicmerr.New(dicmerr.InvalidArgument, "EndSequence received outside a sequence scope")
	}
	undefined := s.attr.Length == event.UndefinedLength
	w.stack = w.stack[:len(w.stack)-1]
	parent := w.top()
	if parent == nil {
		return dicmerr.New(dicmerr.InvalidArgument, "EndSequence closed the root scope")
	}
	if undefined {
		if err := wire.EncodeHeader(w.sink, wire.Header{Tag: tag.SequenceEnd}); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) startItem(attr event.Attribute) error {
	s := w.top()
	if s == nil || s.kind != scopeItem {
		return dicmerr.New(dicmerr.InvalidArgument, "StartItem received outside a sequence scope")
	}
	if err := wire.EncodeHeader(w.sink, wire.Header{Tag: tag.ItemStart, Length: attr.Length}); err != nil {
		return err
	}
	w.stack = append(w.stack, &scope{kind: scopeAttributeList, itemLength: attr.Length})
	return nil
}

func (w *Writer) endItem() error {
	s := w.top()
	if s == nil || s.kind != scopeAttributeList {
		return dicmerr.New(dicmerr.InvalidArgument, "EndItem received outside an item content scope")
	}
	if s.haveAttr {
		return dicmerr.New(dicmerr.InvalidArgument, "EndItem received with an attribute still open")
	}
	undefined := s.itemLength == event.UndefinedLength
	w.stack = w.stack[:len(w.stack)-1]
	if undefined {
		return wire.EncodeHeader(w.sink, wire.Header{Tag: tag.ItemEnd})
	}
	return nil
}

func (w *Writer) startFragments() error {
	s := w.top()
	if s == nil || !s.haveAttr {
		return dicmerr.New(dicmerr.InvalidArgument, "StartFragments received without an open attribute")
	}
	if !s.attr.Tag.IsEncapsulatedPixelData(s.attr.VR) {
		return dicmerr.New(dicmerr.InvalidArgument, "StartFragments received for a non-pixel-data attribute")
	}
	w.stack = append(w.stack, &scope{kind: scopeFragments})
	return nil
}

func (w *Writer) endFragments() error {
	s := w.top()
	if s == nil || s.kind != scopeFragments {
		return dicmerr.New(dicmerr.InvalidArgument, "EndFragments received outside a fragments scope")
	}
	w.stack = w.stack[:len(w.stack)-1]
	parent := w.top()
	if parent == nil {
		return dicmerr.New(dicmerr.InvalidArgument, "EndFragments closed the root scope")
	}
	if err := wire.EncodeHeader(w.sink, wire.Header{Tag: tag.SequenceEnd}); err != nil {
		return err
	}
	return nil
}

func (w *Writer) startFragment(length uint32) error {
	s := w.top()
	if s == nil || s.kind != scopeFragments {
		return dicmerr.New(dicmerr.InvalidArgument, "StartFragment received outside a fragments scope")
	}
	if s.haveAttr {
		return dicmerr.New(dicmerr.InvalidArgument, "StartFragment received while another fragment is open")
	}
	s.haveAttr = true
	s.written = 0
	s.attr = event.Attribute{Length: length}
	return wire.EncodeHeader(w.sink, wire.Header{Tag: tag.ItemStart, Length: length})
}

func (w *Writer) endFragment() error {
	s := w.top()
	if s == nil || s.kind != scopeFragments || !s.haveAttr {
		return dicmerr.New(dicmerr.InvalidArgument, "EndFragment received without a matching StartFragment")
	}
	if s.written != s.attr.Length {
		return dicmerr.New(dicmerr.InvalidLength,
			fmt.Sprintf("wrote %d of %d declared fragment bytes before EndFragment", s.written, s.attr.Length))
	}
	s.haveAttr = false
	return nil
}

// Position returns the number of bytes written to the underlying sink
// so far.
func (w *Writer) Position() int64 {
	return w.sink.Position()
}

// Finished reports whether a balanced StartModel..EndModel pair has
// been fully written.
func (w *Writer) Finished() bool {
	return w.finished
}
