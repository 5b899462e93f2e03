package rle

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"io"
)

// Header is the DICOM RLE frame header: a segment count followed by
// up to 15 segment offsets, each a little-endian uint32, padded to
// 64 bytes total (PS3.5 Annex G.2).
const headerSize = 64
const maxSegments = 15

// Encode writes img as a DICOM RLE frame. Gray encodes as a single
// segment; Gray16 splits each sample into its most-significant and
// least-significant byte planes, written as two segments in that
// order, matching how DICOM stores multi-byte samples.
func Encode(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	var planes [][]byte
	switch src := img.(type) {
	case *image.Gray:
		plane := make([]byte, width*height)
		for y := 0; y < height; y++ {
			copy(plane[y*width:(y+1)*width], src.Pix[y*src.Stride:y*src.Stride+width])
		}
		planes = [][]byte{plane}
	case *image.Gray16:
		hi := make([]byte, width*height)
		lo := make([]byte, width*height)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v := src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y
				idx := y*width + x
				hi[idx] = byte(v >> 8)
				lo[idx] = byte(v)
			}
		}
		planes = [][]byte{hi, lo}
	default:
		return fmt.Errorf("rle: unsupported image type %T", img)
	}

	if len(planes) > maxSegments {
		return fmt.Errorf("rle: %d segments exceeds DICOM RLE limit of %d", len(planes), maxSegments)
	}

	segments := make([][]byte, len(planes))
	for i, p := range planes {
		segments[i] = encodePackBits(p)
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(segments)))
	offset := uint32(headerSize)
	for i, seg := range segments {
		binary.LittleEndian.PutUint32(header[4+4*i:8+4*i], offset)
		offset += uint32(len(seg))
	}
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("rle: write header: %w", err)
	}
	for _, seg := range segments {
		if _, err := w.Write(seg); err != nil {
			return fmt.Errorf("rle: write segment: %w", err)
		}
	}
	return nil
}

// Decode reconstructs a frame from DICOM RLE-compressed data. One
// segment decodes to *image.Gray; two segments decode to
// *image.Gray16, recombining the most-significant/least-significant
// byte planes Encode produced.
func Decode(data []byte, width, height int) (image.Image, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("rle: data too short for header: %d bytes", len(data))
	}
	count := binary.LittleEndian.Uint32(data[0:4])
	if count == 0 || count > maxSegments {
		return nil, fmt.Errorf("rle: invalid segment count %d", count)
	}

	offsets := make([]uint32, count)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(data[4+4*i : 8+4*i])
	}

	planeLen := width * height
	planes := make([][]byte, count)
	for i := range offsets {
		start := offsets[i]
		end := uint32(len(data))
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		if int(start) > len(data) || int(end) > len(data) || start > end {
			return nil, fmt.Errorf("rle: corrupt segment offsets")
		}
		plane, err := decodePackBits(data[start:end], planeLen)
		if err != nil {
			return nil, fmt.Errorf("rle: segment %d: %w", i, err)
		}
		if len(plane) != planeLen {
			return nil, fmt.Errorf("rle: segment %d decoded to %d bytes, want %d", i, len(plane), planeLen)
		}
		planes[i] = plane
	}

	switch len(planes) {
	case 1:
		img := image.NewGray(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			copy(img.Pix[y*img.Stride:y*img.Stride+width], planes[0][y*width:(y+1)*width])
		}
		return img, nil
	case 2:
		img := image.NewGray16(image.Rect(0, 0, width, height))
		hi, lo := planes[0], planes[1]
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				idx := y*width + x
				v := uint16(hi[idx])<<8 | uint16(lo[idx])
				img.SetGray16(x, y, color.Gray16{Y: v})
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("rle: unsupported segment count %d", len(planes))
	}
}
