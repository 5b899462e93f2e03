package vr

import "testing"

func TestValid(t *testing.T) {
	cases := []struct {
		b0, b1 byte
		want   bool
	}{
		{'O', 'B', true},
		{'u', 'S', false},
		{'1', 'B', false},
		{'Z', 'Z', true},
	}
	for _, c := range cases {
		if got := Valid(c.b0, c.b1); got != c.want {
			t.Errorf("Valid(%q,%q) = %v, want %v", c.b0, c.b1, got, c.want)
		}
	}
}

func TestHeaderLen(t *testing.T) {
	cases := []struct {
		v    VR
		want int
	}{
		{US, 8},
		{UI, 8},
		{OB, 12},
		{SQ, 12},
		{UN, 12},
		{VR("ZZ"), 12}, // unrecognized VR defaults to long-form
	}
	for _, c := range cases {
		if got := c.v.HeaderLen(); got != c.want {
			t.Errorf("%s.HeaderLen() = %d, want %d", c.v, got, c.want)
		}
	}
}

func TestIsShortFormComplementsIsLongForm(t *testing.T) {
	for _, v := range []VR{US, OB, SQ, VR("ZZ")} {
		if v.IsShortForm() == v.IsLongForm() {
			t.Errorf("%s: IsShortForm and IsLongForm agree", v)
		}
	}
}

func TestKnown(t *testing.T) {
	if !US.Known() {
		t.Error("US should be known")
	}
	if VR("ZZ").Known() {
		t.Error("ZZ should not be known")
	}
}

func TestAllowsUndefinedLength(t *testing.T) {
	if !SQ.AllowsUndefinedLength() {
		t.Error("SQ should allow undefined length")
	}
	if OB.AllowsUndefinedLength() {
		t.Error("OB should not allow undefined length on its own")
	}
}
