// Package dataset materializes a full Reader event stream into an
// in-memory tree, for callers that want random access to a dataset's
// elements instead of driving the event stream themselves. It sits
// on top of the core, not inside it: values stay raw ([]byte), and
// sequences/items stay nested Datasets, matching the teacher's
// Dataset/Element shape without interpreting what any of it means.
package dataset

import (
	"fmt"
	"io"

	"github.com/jpfielding/dicm/pkg/dicm/bytestream"
	"github.com/jpfielding/dicm/pkg/dicm/event"
	"github.com/jpfielding/dicm/pkg/dicm/reader"
	"github.com/jpfielding/dicm/pkg/dicm/tag"
)

// Dataset is a flat run of Elements keyed by Tag, as read from one
// attribute-list scope (the root model, or one sequence item).
type Dataset struct {
	Elements map[tag.Tag]*Element
	// Order preserves the on-wire attribute order; Elements alone does
	// not, since map iteration order is unspecified.
	Order []tag.Tag
}

// Element is one data element: its tag, VR, and value. Exactly one of
// Value, Items, or Fragments is populated, depending on Kind.
type Element struct {
	Tag  tag.Tag
	VR   string
	Kind ElementKind

	// Value holds the raw bytes for a plain (non-nested) element.
	Value []byte
	// Items holds one nested Dataset per sequence item, for Kind ==
	// Sequence.
	Items []*Dataset
	// Fragments holds the raw bytes of each fragment (including a
	// possibly-empty first entry, the basic offset table), for
	// Kind == EncapsulatedPixelData.
	Fragments [][]byte
}

// ElementKind distinguishes how an Element's payload is shaped.
type ElementKind int

const (
	Plain ElementKind = iota
	Sequence
	EncapsulatedPixelData
)

func newDataset() *Dataset {
	return &Dataset{Elements: map[tag.Tag]*Element{}}
}

func (ds *Dataset) add(e *Element) {
	ds.Elements[e.Tag] = e
	ds.Order = append(ds.Order, e.Tag)
}

// FindElement looks up an element by tag.
func (ds *Dataset) FindElement(group, element uint16) (*Element, bool) {
	e, ok := ds.Elements[tag.Tag{Group: group, Element: element}]
	return e, ok
}

// Read drains a full StartModel..EndModel event stream from r and
// materializes it into a Dataset. r must be freshly constructed (not
// yet advanced past StartModel).
func Read(r *reader.Reader) (*Dataset, error) {
	ev, err := r.Next()
	if err != nil {
		return nil, err
	}
	if ev.Kind != event.StartModel {
		return nil, fmt.Errorf("dataset: expected StartModel, got %s", ev.Kind)
	}

	ds, err := readAttributeList(r, event.EndModel)
	if err != nil {
		return nil, err
	}

	ev, err = r.Next()
	if err != nil {
		return nil, err
	}
	if ev.Kind != event.Eof {
		return nil, fmt.Errorf("dataset: expected Eof after EndModel, got %s", ev.Kind)
	}
	return ds, nil
}

// readAttributeList consumes StartAttribute/.../EndAttribute elements
// until the terminating event kind (EndModel or EndItem) is seen.
func readAttributeList(r *reader.Reader, terminator event.Kind) (*Dataset, error) {
	ds := newDataset()
	for {
		ev, err := r.Next()
		if err != nil {
			return nil, err
		}
		switch ev.Kind {
		case terminator:
			return ds, nil
		case event.StartAttribute:
			e, err := readElement(r, ev.Attribute)
			if err != nil {
				return nil, err
			}
			ds.add(e)
		default:
			return nil, fmt.Errorf("dataset: unexpected event %s while reading attribute list", ev.Kind)
		}
	}
}

func readElement(r *reader.Reader, attr event.Attribute) (*Element, error) {
	ev, err := r.Next()
	if err != nil {
		return nil, err
	}
	switch ev.Kind {
	case event.Value:
		value, err := readFullValue(r)
		if err != nil {
			return nil, err
		}
		if err := expect(r, event.EndAttribute); err != nil {
			return nil, err
		}
		return &Element{Tag: attr.Tag, VR: attr.VR, Kind: Plain, Value: value}, nil

	case event.StartSequence:
		items, err := readItems(r)
		if err != nil {
			return nil, err
		}
		if err := expect(r, event.EndAttribute); err != nil {
			return nil, err
		}
		return &Element{Tag: attr.Tag, VR: attr.VR, Kind: Sequence, Items: items}, nil

	case event.StartFragments:
		fragments, err := readFragments(r)
		if err != nil {
			return nil, err
		}
		if err := expect(r, event.EndAttribute); err != nil {
			return nil, err
		}
		return &Element{Tag: attr.Tag, VR: attr.VR, Kind: EncapsulatedPixelData, Fragments: fragments}, nil

	default:
		return nil, fmt.Errorf("dataset: unexpected event %s after StartAttribute", ev.Kind)
	}
}

func readItems(r *reader.Reader) ([]*Dataset, error) {
	var items []*Dataset
	for {
		ev, err := r.Next()
		if err != nil {
			return nil, err
		}
		switch ev.Kind {
		case event.EndSequence:
			return items, nil
		case event.StartItem:
			ds, err := readAttributeList(r, event.EndItem)
			if err != nil {
				return nil, err
			}
			items = append(items, ds)
		default:
			return nil, fmt.Errorf("dataset: unexpected event %s while reading sequence items", ev.Kind)
		}
	}
}

func readFragments(r *reader.Reader) ([][]byte, error) {
	var fragments [][]byte
	for {
		ev, err := r.Next()
		if err != nil {
			return nil, err
		}
		switch ev.Kind {
		case event.EndFragments:
			return fragments, nil
		case event.StartFragment:
			data, err := readFullValue(r)
			if err != nil {
				return nil, err
			}
			if err := expect(r, event.Value); err != nil {
				return nil, err
			}
			if err := expect(r, event.EndFragment); err != nil {
				return nil, err
			}
			fragments = append(fragments, data)
		default:
			return nil, fmt.Errorf("dataset: unexpected event %s while reading fragments", ev.Kind)
		}
	}
}

// readFullValue drains the active value scope (a Value event or the
// byte run inside a fragment item) into one contiguous slice.
func readFullValue(r *reader.Reader) ([]byte, error) {
	var out []byte
	buf := make([]byte, 32*1024)
	for {
		n, err := r.ReadValue(buf)
		if err != nil && err != io.EOF {
			return nil, err
		}
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if n == 0 {
			return out, nil
		}
	}
}

func expect(r *reader.Reader, kind event.Kind) error {
	ev, err := r.Next()
	if err != nil {
		return err
	}
	if ev.Kind != kind {
		return fmt.Errorf("dataset: expected %s, got %s", kind, ev.Kind)
	}
	return nil
}

// ReadBytes is a convenience wrapper that constructs a Reader over src
// and materializes the whole model.
func ReadBytes(src bytestream.Source) (*Dataset, error) {
	return Read(reader.New(src))
}
