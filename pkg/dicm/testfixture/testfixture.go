// Package testfixture builds golden Explicit VR Little Endian byte
// streams for the concrete scenarios of spec §8, for use by the
// reader/writer/dataset tests across the module.
package testfixture

import (
	"bytes"
	"encoding/binary"
	"math/big"

	"github.com/google/uuid"
)

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func header(group, element uint16, vrStr string, length uint32) []byte {
	var buf bytes.Buffer
	buf.Write(u16(group))
	buf.Write(u16(element))
	buf.WriteString(vrStr)
	switch vrStr {
	case "OB", "OD", "OF", "OL", "OW", "SQ", "UC", "UN", "UR", "UT":
		buf.Write([]byte{0, 0})
		buf.Write(u32(length))
	default:
		buf.Write(u16(uint16(length)))
	}
	return buf.Bytes()
}

func delimiter(group, element uint16, length uint32) []byte {
	var buf bytes.Buffer
	buf.Write(u16(group))
	buf.Write(u16(element))
	buf.Write(u32(length))
	return buf.Bytes()
}

func itemStart(length uint32) []byte { return delimiter(0xFFFE, 0xE000, length) }
func itemEnd() []byte                { return delimiter(0xFFFE, 0xE00D, 0) }
func sequenceEnd() []byte            { return delimiter(0xFFFE, 0xE0DD, 0) }

// MinimalExplicitShortVR returns a single short-form-VR attribute:
// (0008,0018) UI "1.2.3\x00".
func MinimalExplicitShortVR() []byte {
	value := []byte("1.2.3\x00")
	var buf bytes.Buffer
	buf.Write(header(0x0008, 0x0018, "UI", uint32(len(value))))
	buf.Write(value)
	return buf.Bytes()
}

// LongFormUndefinedLengthSequence returns a (0008,1140) SQ attribute
// with undefined length, containing one item with a single nested
// short-VR attribute, terminated by item and sequence delimiters.
func LongFormUndefinedLengthSequence() []byte {
	inner := header(0x0008, 0x1150, "UI", 4)
	inner = append(inner, []byte("1.2\x00")...)

	var item bytes.Buffer
	item.Write(itemStart(0xFFFFFFFF))
	item.Write(inner)
	item.Write(itemEnd())

	var buf bytes.Buffer
	buf.Write(header(0x0008, 0x1140, "SQ", 0xFFFFFFFF))
	buf.Write(item.Bytes())
	buf.Write(sequenceEnd())
	return buf.Bytes()
}

// DefiniteLengthSequence returns a (0008,1140) SQ attribute whose
// Length is the exact byte count of its single item, with no trailing
// sequence delimiter.
func DefiniteLengthSequence() []byte {
	inner := header(0x0008, 0x1150, "UI", 4)
	inner = append(inner, []byte("1.2\x00")...)

	var item bytes.Buffer
	item.Write(itemStart(uint32(len(inner))))
	item.Write(inner)

	var buf bytes.Buffer
	buf.Write(header(0x0008, 0x1140, "SQ", uint32(item.Len())))
	buf.Write(item.Bytes())
	return buf.Bytes()
}

// StrayLowGroupAttribute returns a dataset-body attribute whose group,
// 0x0002, is reserved for file-meta context.
func StrayLowGroupAttribute() []byte {
	value := []byte("1.2.3\x00")
	var buf bytes.Buffer
	buf.Write(header(0x0002, 0x0010, "UI", uint32(len(value))))
	buf.Write(value)
	return buf.Bytes()
}

// EncapsulatedPixelData returns a (7FE0,0010) OB attribute with
// undefined length: an empty basic offset table item followed by one
// fragment, terminated by a sequence delimiter.
func EncapsulatedPixelData(fragment []byte) []byte {
	var buf bytes.Buffer
	buf.Write(header(0x7FE0, 0x0010, "OB", 0xFFFFFFFF))
	buf.Write(itemStart(0)) // empty basic offset table
	buf.Write(itemStart(uint32(len(fragment))))
	buf.Write(fragment)
	buf.Write(sequenceEnd())
	return buf.Bytes()
}

// ReservedNotZero returns a long-form header whose reserved bytes are
// corrupted to a nonzero value.
func ReservedNotZero() []byte {
	buf := header(0x0028, 0x0001, "OB", 4)
	buf[7] = 0x01 // reserved byte, should be 0
	return buf
}

// OddLength returns a short-form header declaring an odd value length.
func OddLength() []byte {
	return header(0x0008, 0x0018, "UI", 5)
}

// GeneratedSOPInstanceUID synthesizes a UID-shaped numeric string
// rooted at the 2.25 (UUID-derived OID) arc, for use as a unique
// attribute value in generated fixtures.
func GeneratedSOPInstanceUID() string {
	id := uuid.New()
	n := new(big.Int).SetBytes(id[:])
	return "2.25." + n.String()
}
