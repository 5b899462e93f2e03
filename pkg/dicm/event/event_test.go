package event

import (
	"errors"
	"testing"

	"github.com/jpfielding/dicm/pkg/dicm/tag"
)

func TestKindString(t *testing.T) {
	if StartModel.String() != "StartModel" {
		t.Errorf("got %q", StartModel.String())
	}
	if Kind(999).String() != "Unknown" {
		t.Errorf("got %q for out-of-range Kind", Kind(999).String())
	}
}

func TestAttributeIsUndefinedLength(t *testing.T) {
	a := Attribute{Tag: tag.PixelData, VR: "OB", Length: UndefinedLength}
	if !a.IsUndefinedLength() {
		t.Error("expected undefined length")
	}
	a.Length = 4
	if a.IsUndefinedLength() {
		t.Error("4 should not be undefined length")
	}
}

func TestEventString(t *testing.T) {
	ev := Event{Kind: StartAttribute, Attribute: Attribute{Tag: tag.Rows, VR: "US", Length: 2}}
	if got, want := ev.String(), "StartAttribute{(0028,0010) US vl=2}"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	inv := Event{Kind: Invalid, Err: errors.New("boom")}
	if got, want := inv.String(), "Invalid{boom}"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	if got, want := (Event{Kind: EndModel}).String(), "EndModel"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
