// Package vr defines the DICOM Value Representation codes and the
// short-form/long-form header classification of spec §3/§4.1.
package vr

// VR is a two-ASCII-uppercase-letter Value Representation code.
type VR string

// The closed set of ~30 standard VRs (spec §3).
const (
	AE VR = "AE"
	AS VR = "AS"
	AT VR = "AT"
	CS VR = "CS"
	DA VR = "DA"
	DS VR = "DS"
	DT VR = "DT"
	FL VR = "FL"
	FD VR = "FD"
	IS VR = "IS"
	LO VR = "LO"
	LT VR = "LT"
	OB VR = "OB"
	OD VR = "OD"
	OF VR = "OF"
	OL VR = "OL"
	OW VR = "OW"
	PN VR = "PN"
	SH VR = "SH"
	SL VR = "SL"
	SQ VR = "SQ"
	SS VR = "SS"
	ST VR = "ST"
	TM VR = "TM"
	UC VR = "UC"
	UI VR = "UI"
	UL VR = "UL"
	UN VR = "UN"
	UR VR = "UR"
	US VR = "US"
	UT VR = "UT"
)

// longForm holds the VRs whose header is the 12-byte explicit-long
// shape (4-byte length, 2-byte reserved). Every other recognized VR is
// short-form (8-byte header, 2-byte length). An unrecognized but
// lexically valid VR (two uppercase ASCII letters) defaults to
// long-form, per spec §3.
var longForm = map[VR]bool{
	OB: true, OD: true, OF: true, OL: true, OW: true,
	SQ: true, UC: true, UN: true, UR: true, UT: true,
}

var known = map[VR]bool{
	AE: true, AS: true, AT: true, CS: true, DA: true, DS: true, DT: true,
	FL: true, FD: true, IS: true, LO: true, LT: true, OB: true, OD: true,
	OF: true, OL: true, OW: true, PN: true, SH: true, SL: true, SQ: true,
	SS: true, ST: true, TM: true, UC: true, UI: true, UL: true, UN: true,
	UR: true, US: true, UT: true,
}

// Valid reports whether the two bytes form a lexically valid VR:
// two ASCII uppercase letters. It does not require membership in the
// known set — an unrecognized-but-lexical VR is still Valid, and
// IsLongForm will classify it as long-form.
func Valid(b0, b1 byte) bool {
	return b0 >= 'A' && b0 <= 'Z' && b1 >= 'A' && b1 <= 'Z'
}

// Known reports whether v is one of the ~30 standard VRs.
func (v VR) Known() bool {
	return known[v]
}

// IsLongForm reports whether v uses the 12-byte explicit-long header
// shape (4-byte VL, 2-byte reserved). Unknown VRs default to true.
func (v VR) IsLongForm() bool {
	if longForm[v] {
		return true
	}
	return !known[v]
}

// IsShortForm is the complement of IsLongForm.
func (v VR) IsShortForm() bool {
	return !v.IsLongForm()
}

// HeaderLen returns the on-wire header length for this VR's class: 8
// for short-form, 12 for long-form (spec §6).
func (v VR) HeaderLen() int {
	if v.IsLongForm() {
		return 12
	}
	return 8
}

// AllowsUndefinedLength reports whether VL = 0xFFFFFFFF is legal for
// this VR on its own (i.e. for a sequence). Encapsulated pixel data is
// the other undefined-length case and is keyed off the tag, not the
// VR alone — see tag.Tag.IsEncapsulatedPixelData.
func (v VR) AllowsUndefinedLength() bool {
	return v == SQ
}
