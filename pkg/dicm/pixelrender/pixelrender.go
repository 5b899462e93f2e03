// Package pixelrender decodes the raw fragment bytes the core reader
// yields for encapsulated pixel data into an image.Image. It is an
// event sink, not part of the core: the core never decodes pixels
// itself (spec §1's Non-goal), it only hands back the fragment's raw
// byte run via Reader.ReadValue during a StartFragment scope. This
// package is where a caller that wants pixels, rather than bytes,
// goes next.
package pixelrender

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/jpfielding/dicm/pkg/compress/jpeg2k"
	"github.com/jpfielding/dicm/pkg/compress/jpegli"
	"github.com/jpfielding/dicm/pkg/compress/jpegls"
	"github.com/jpfielding/dicm/pkg/compress/rle"
)

// Codec decodes (and, for round-trip tooling, encodes) one
// encapsulated pixel data transfer syntax's frame format.
type Codec interface {
	// Encode compresses an image to the writer.
	Encode(w io.Writer, img image.Image) error
	// Decode decompresses one frame's fragment bytes to an image.
	// width/height are required by codecs whose frame format doesn't
	// carry its own dimensions (RLE).
	Decode(data []byte, width, height int) (image.Image, error)
	// Name is the codec's short identifier (e.g. "jpeg-ls").
	Name() string
	// TransferSyntaxUID is the DICOM transfer syntax this codec
	// implements.
	TransferSyntaxUID() string
}

type jpegLSCodec struct{}

func (c *jpegLSCodec) Encode(w io.Writer, img image.Image) error {
	return jpegls.Encode(w, img, nil)
}

func (c *jpegLSCodec) Decode(data []byte, _, _ int) (image.Image, error) {
	return jpegls.Decode(bytes.NewReader(data))
}
func (c *jpegLSCodec) Name() string              { return "jpeg-ls" }
func (c *jpegLSCodec) TransferSyntaxUID() string { return "1.2.840.10008.1.2.4.80" }

type jpegLiCodec struct{}

func (c *jpegLiCodec) Encode(w io.Writer, img image.Image) error {
	return jpegli.Encode(w, img, nil)
}

func (c *jpegLiCodec) Decode(data []byte, _, _ int) (image.Image, error) {
	return jpegli.Decode(bytes.NewReader(data))
}
func (c *jpegLiCodec) Name() string              { return "jpeg-li" }
func (c *jpegLiCodec) TransferSyntaxUID() string { return "1.2.840.10008.1.2.4.70" }

type rleCodec struct{}

func (c *rleCodec) Encode(w io.Writer, img image.Image) error {
	return rle.Encode(w, img)
}
func (c *rleCodec) Decode(data []byte, width, height int) (image.Image, error) {
	return rle.Decode(data, width, height)
}
func (c *rleCodec) Name() string              { return "rle" }
func (c *rleCodec) TransferSyntaxUID() string { return "1.2.840.10008.1.2.5" }

type jpeg2kCodec struct{}

func (c *jpeg2kCodec) Encode(w io.Writer, img image.Image) error {
	return jpeg2k.Encode(w, img, nil)
}
func (c *jpeg2kCodec) Decode(data []byte, _, _ int) (image.Image, error) {
	return jpeg2k.Decode(bytes.NewReader(data))
}
func (c *jpeg2kCodec) Name() string              { return "jpeg-2000" }
func (c *jpeg2kCodec) TransferSyntaxUID() string { return "1.2.840.10008.1.2.4.90" }

var jpeg2000 = &jpeg2kCodec{}

var byName = map[string]Codec{
	"jpeg-ls":   &jpegLSCodec{},
	"jpeg-li":   &jpegLiCodec{},
	"rle":       &rleCodec{},
	"jpeg-2000": jpeg2000,
	"jpeg2000":  jpeg2000, // alias
}

var byTransferSyntax = map[string]Codec{
	"1.2.840.10008.1.2.4.80": &jpegLSCodec{}, // JPEG-LS Lossless
	"1.2.840.10008.1.2.4.81": &jpegLSCodec{}, // JPEG-LS Near-Lossless
	"1.2.840.10008.1.2.4.70": &jpegLiCodec{}, // JPEG Lossless First-Order
	"1.2.840.10008.1.2.5":    &rleCodec{},    // RLE Lossless
	"1.2.840.10008.1.2.4.90": &jpeg2kCodec{}, // JPEG 2000 Lossless
}

// ByName returns a codec by its short identifier, or nil if unknown.
func ByName(name string) Codec { return byName[name] }

// ByTransferSyntax returns a codec for a transfer syntax UID, or nil
// if unsupported.
func ByTransferSyntax(uid string) Codec { return byTransferSyntax[uid] }

// DecodeFragment decodes one fragment's raw bytes (as read from the
// core's Reader during a StartFragment scope) using the codec
// registered for transferSyntaxUID.
func DecodeFragment(transferSyntaxUID string, fragment []byte, width, height int) (image.Image, error) {
	codec := ByTransferSyntax(transferSyntaxUID)
	if codec == nil {
		return nil, fmt.Errorf("pixelrender: no codec registered for transfer syntax %s", transferSyntaxUID)
	}
	return codec.Decode(fragment, width, height)
}
