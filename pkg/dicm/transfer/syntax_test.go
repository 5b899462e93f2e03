package transfer

import "testing"

func TestNegotiate(t *testing.T) {
	if err := Negotiate(ExplicitVRLittleEndian); err != nil {
		t.Errorf("Explicit VR Little Endian should be accepted, got %v", err)
	}
	for _, s := range []Syntax{ImplicitVRLittleEndian, ExplicitVRBigEndian, JPEGLSLossless} {
		err := Negotiate(s)
		if err == nil {
			t.Errorf("%s should be rejected", s)
			continue
		}
		if _, ok := err.(*ErrUnsupported); !ok {
			t.Errorf("%s: got %T, want *ErrUnsupported", s, err)
		}
	}
}

func TestIsEncapsulated(t *testing.T) {
	for _, s := range []Syntax{ImplicitVRLittleEndian, ExplicitVRLittleEndian, ExplicitVRLittleEndianExt, ExplicitVRBigEndian} {
		if s.IsEncapsulated() {
			t.Errorf("%s should not be encapsulated", s)
		}
	}
	for _, s := range []Syntax{JPEGLSLossless, JPEG2000Lossless, RLELossless} {
		if !s.IsEncapsulated() {
			t.Errorf("%s should be encapsulated", s)
		}
	}
}

func TestIsExplicitVRAndLittleEndian(t *testing.T) {
	if ImplicitVRLittleEndian.IsExplicitVR() {
		t.Error("implicit VR syntax should report IsExplicitVR() == false")
	}
	if !ExplicitVRLittleEndian.IsExplicitVR() {
		t.Error("explicit VR syntax should report IsExplicitVR() == true")
	}
	if ExplicitVRBigEndian.IsLittleEndian() {
		t.Error("big endian syntax should report IsLittleEndian() == false")
	}
}

func TestNameFallsBackToUID(t *testing.T) {
	unknown := Syntax("1.2.3.4.5")
	if got := unknown.Name(); got != "1.2.3.4.5" {
		t.Errorf("Name() = %q, want the raw UID", got)
	}
}
