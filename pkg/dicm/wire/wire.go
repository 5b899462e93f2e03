// Package wire implements the element-header codec of spec §4.1/§6:
// the three on-wire header shapes (explicit short, explicit long,
// implicit delimiter), little-endian throughout, for Explicit VR
// Little Endian — the only transfer syntax this core supports.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jpfielding/dicm/pkg/dicm/bytestream"
	"github.com/jpfielding/dicm/pkg/dicm/dicmerr"
	"github.com/jpfielding/dicm/pkg/dicm/event"
	"github.com/jpfielding/dicm/pkg/dicm/tag"
	"github.com/jpfielding/dicm/pkg/dicm/vr"
)

// Header is a decoded element header. VR is empty for the three
// group-0xFFFE delimiter tags, which carry no VR on the wire.
type Header struct {
	Tag    tag.Tag
	VR     string
	Length uint32
}

// DecodeHeader reads one element header from src.
//
// A clean end of stream before any header bytes are read is reported
// as io.EOF verbatim, per spec §4.6 ("short read at a scope boundary
// = clean EOF"); every other short read — including a partial tag —
// is a *dicmerr.Error{Kind: UnexpectedEof} ("short read mid-header =
// InvalidData").
func DecodeHeader(src bytestream.Source) (Header, error) {
	var tagBuf [4]byte
	n, err := io.ReadFull(bytestream.AsReader(src), tagBuf[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return Header{}, io.EOF
		}
		return Header{}, dicmerr.Wrap(dicmerr.UnexpectedEof, "reading tag", err)
	}
	t := tag.New(
		binary.LittleEndian.Uint16(tagBuf[0:2]),
		binary.LittleEndian.Uint16(tagBuf[2:4]),
	)

	if t.IsDelimiter() {
		return decodeDelimiter(src, t)
	}
	return decodeExplicit(src, t)
}

func decodeDelimiter(src bytestream.Source, t tag.Tag) (Header, error) {
	var lenBuf [4]byte
	if err := readMidHeader(src, lenBuf[:]); err != nil {
		return Header{}, err
	}
	vl := binary.LittleEndian.Uint32(lenBuf[:])

	if (t == tag.ItemEnd || t == tag.SequenceEnd) && vl != 0 {
		return Header{}, dicmerr.New(dicmerr.InvalidLength,
			fmt.Sprintf("%s must carry VL=0, got %d", t, vl))
	}
	if t == tag.ItemStart && vl != event.UndefinedLength && vl%2 != 0 {
		return Header{}, dicmerr.New(dicmerr.InvalidLength,
			fmt.Sprintf("item length %d must be even or undefined", vl))
	}
	return Header{Tag: t, Length: vl}, nil
}

func decodeExplicit(src bytestream.Source, t tag.Tag) (Header, error) {
	var vrBuf [2]byte
	if err := readMidHeader(src, vrBuf[:]); err != nil {
		return Header{}, err
	}
	if !vr.Valid(vrBuf[0], vrBuf[1]) {
		return Header{}, dicmerr.New(dicmerr.InvalidVr,
			fmt.Sprintf("invalid VR bytes %q for %s", vrBuf[:], t))
	}
	v := vr.VR(vrBuf[:])

	var length uint32
	if v.IsLongForm() {
		var reserved [2]byte
		if err := readMidHeader(src, reserved[:]); err != nil {
			return Header{}, err
		}
		if reserved[0] != 0 || reserved[1] != 0 {
			return Header{}, dicmerr.New(dicmerr.ReservedNotZero,
				fmt.Sprintf("reserved bytes %v nonzero for %s %s", reserved, t, v))
		}
		var lenBuf [4]byte
		if err := readMidHeader(src, lenBuf[:]); err != nil {
			return Header{}, err
		}
		length = binary.LittleEndian.Uint32(lenBuf[:])
	} else {
		var lenBuf [2]byte
		if err := readMidHeader(src, lenBuf[:]); err != nil {
			return Header{}, err
		}
		length = uint32(binary.LittleEndian.Uint16(lenBuf[:]))
	}

	if err := validateLength(t, v, length); err != nil {
		return Header{}, err
	}
	return Header{Tag: t, VR: string(v), Length: length}, nil
}

func validateLength(t tag.Tag, v vr.VR, length uint32) error {
	if length == event.UndefinedLength {
		if v.AllowsUndefinedLength() || t.IsEncapsulatedPixelData(string(v)) {
			return nil
		}
		return dicmerr.New(dicmerr.InvalidLength,
			fmt.Sprintf("undefined length not legal for %s %s", t, v))
	}
	if length%2 != 0 {
		return dicmerr.New(dicmerr.InvalidLength,
			fmt.Sprintf("odd length %d for %s %s", length, t, v))
	}
	return nil
}

func readMidHeader(src bytestream.Source, buf []byte) error {
	if _, err := io.ReadFull(bytestream.AsReader(src), buf); err != nil {
		return dicmerr.Wrap(dicmerr.UnexpectedEof,
			fmt.Sprintf("reading %d bytes mid-header", len(buf)), err)
	}
	return nil
}

// EncodeHeader writes h to sink in the shape appropriate to its VR
// (or the implicit-delimiter shape, for the three group-0xFFFE tags).
func EncodeHeader(sink bytestream.Sink, h Header) error {
	if h.Tag.IsDelimiter() {
		return encodeDelimiter(sink, h)
	}
	if len(h.VR) != 2 || !vr.Valid(h.VR[0], h.VR[1]) {
		return dicmerr.New(dicmerr.InvalidArgument, fmt.Sprintf("invalid VR %q for %s", h.VR, h.Tag))
	}
	v := vr.VR(h.VR)
	if err := validateLength(h.Tag, v, h.Length); err != nil {
		return err
	}

	var tagBuf [4]byte
	binary.LittleEndian.PutUint16(tagBuf[0:2], h.Tag.Group)
	binary.LittleEndian.PutUint16(tagBuf[2:4], h.Tag.Element)
	if err := write(sink, tagBuf[:]); err != nil {
		return err
	}
	if err := write(sink, []byte(h.VR)); err != nil {
		return err
	}

	if v.IsLongForm() {
		if err := write(sink, []byte{0, 0}); err != nil {
			return err
		}
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], h.Length)
		return write(sink, lenBuf[:])
	}
	if h.Length > 0xFFFF {
		return dicmerr.New(dicmerr.InvalidArgument,
			fmt.Sprintf("length %d exceeds short-form max for VR %s", h.Length, v))
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(h.Length))
	return write(sink, lenBuf[:])
}

func encodeDelimiter(sink bytestream.Sink, h Header) error {
	if (h.Tag == tag.ItemEnd || h.Tag == tag.SequenceEnd) && h.Length != 0 {
		return dicmerr.New(dicmerr.InvalidArgument, fmt.Sprintf("%s must carry VL=0", h.Tag))
	}
	var buf [8]byte
	binary.LittleEndian.PutUint16(buf[0:2], h.Tag.Group)
	binary.LittleEndian.PutUint16(buf[2:4], h.Tag.Element)
	binary.LittleEndian.PutUint32(buf[4:8], h.Length)
	return write(sink, buf[:])
}

func write(sink bytestream.Sink, buf []byte) error {
	n, err := sink.Write(buf)
	if err != nil {
		return dicmerr.Wrap(dicmerr.Io, "writing header bytes", err)
	}
	if n != len(buf) {
		return dicmerr.New(dicmerr.Io, fmt.Sprintf("short write: wrote %d of %d bytes", n, len(buf)))
	}
	return nil
}
