package jpegls

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
)

// Decoder decodes JPEG-LS (ITU-T T.87) data, the read-side counterpart
// of Encoder.
type Decoder struct {
	br      *BitReader
	params  FrameHeader
	scan    ScanHeader
	context *ContextModel
}

// Decode reads JPEG-LS data from r and returns an image.Image.
func Decode(r io.Reader) (image.Image, error) {
	d := &Decoder{br: NewBitReader(r)}
	return d.decode()
}

func (d *Decoder) decode() (image.Image, error) {
	if err := d.expectMarker(MarkerSOI); err != nil {
		return nil, err
	}

	for {
		marker, length, err := d.readMarker()
		if err != nil {
			return nil, err
		}

		switch marker {
		case MarkerSOF55:
			if err := d.readSOF(length); err != nil {
				return nil, err
			}
		case MarkerSOS:
			if err := d.readSOS(length); err != nil {
				return nil, err
			}
			return d.finishDecode()
		case MarkerEOI:
			return nil, errors.New("jpegls: unexpected EOI before SOS")
		default:
			if err := d.skip(length); err != nil {
				return nil, err
			}
		}
	}
}

func (d *Decoder) finishDecode() (image.Image, error) {
	maxVal := (1 << d.params.Precision) - 1
	d.context = NewContextModel(maxVal, d.scan.Near, 64)

	var img draw.Image
	if d.params.Precision <= 8 {
		img = image.NewGray(image.Rect(0, 0, d.params.Width, d.params.Height))
	} else {
		img = image.NewGray16(image.Rect(0, 0, d.params.Width, d.params.Height))
	}

	if err := d.decodeScan(img); err != nil {
		return nil, err
	}
	return img, nil
}

// expectMarker reads one marker and fails unless it equals tm; markers
// in this package's low-byte constants are always preceded by an
// explicit 0xFF (see Encoder.writeMarker).
func (d *Decoder) expectMarker(tm int) error {
	b1, err := d.br.r.ReadByte()
	if err != nil {
		return err
	}
	if b1 != 0xFF {
		return fmt.Errorf("jpegls: expected marker FF, got %X", b1)
	}
	b2, err := d.br.r.ReadByte()
	if err != nil {
		return err
	}
	if int(b2) != tm {
		return fmt.Errorf("jpegls: expected marker %X, got %X", tm, b2)
	}
	return nil
}

// readMarker reads a 0xFFxx marker followed by its 2-byte segment
// length, returning the length of the segment body (length field
// excluded).
func (d *Decoder) readMarker() (int, int, error) {
	b1, err := d.br.r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	if b1 != 0xFF {
		return 0, 0, fmt.Errorf("jpegls: expected marker FF, got %X", b1)
	}
	b2, err := d.br.r.ReadByte()
	if err != nil {
		return 0, 0, err
	}

	l1, err := d.br.r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	l2, err := d.br.r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	length := (int(l1) << 8) | int(l2)
	return int(b2), length - 2, nil
}

func (d *Decoder) skip(n int) error {
	_, err := d.br.r.Discard(n)
	return err
}

func (d *Decoder) readSOF(n int) error {
	p, err := d.br.r.ReadByte()
	if err != nil {
		return err
	}
	d.params.Precision = int(p)

	h1, err := d.br.r.ReadByte()
	if err != nil {
		return err
	}
	h2, err := d.br.r.ReadByte()
	if err != nil {
		return err
	}
	d.params.Height = (int(h1) << 8) | int(h2)

	w1, err := d.br.r.ReadByte()
	if err != nil {
		return err
	}
	w2, err := d.br.r.ReadByte()
	if err != nil {
		return err
	}
	d.params.Width = (int(w1) << 8) | int(w2)

	nf, err := d.br.r.ReadByte()
	if err != nil {
		return err
	}
	d.params.Components = int(nf)

	return d.skip(n - 6)
}

func (d *Decoder) readSOS(n int) error {
	ns, err := d.br.r.ReadByte()
	if err != nil {
		return err
	}
	d.scan.Components = int(ns)

	if err := d.skip(d.scan.Components * 2); err != nil {
		return err
	}

	near, err := d.br.r.ReadByte()
	if err != nil {
		return err
	}
	d.scan.Near = int(near)

	ilv, err := d.br.r.ReadByte()
	if err != nil {
		return err
	}
	d.scan.ILV = int(ilv)

	// Al/Ah (successive approximation) are unused by the lossless-only
	// scan this package writes; consume the byte and move on.
	_, err = d.br.r.ReadByte()
	return err
}

func (d *Decoder) decodeScan(img draw.Image) error {
	w := d.params.Width
	h := d.params.Height
	currLine := make([]int, w)
	prevLine := make([]int, w)

	maxVal := d.context.MaxVal
	maxValPlus1 := maxVal + 1

	for y := 0; y < h; y++ {
		d.context.RunIndex = 0

		for x := 0; x < w; x++ {
			var Ra, Rb, Rc int

			if y > 0 {
				Rb = prevLine[x]
				if x > 0 {
					Rc = prevLine[x-1]
				} else {
					Rc = prevLine[0]
				}
			}
			if x > 0 {
				Ra = currLine[x-1]
			} else if y > 0 {
				Ra = prevLine[0]
			}

			var Rd int
			if y > 0 {
				if x < w-1 {
					Rd = prevLine[x+1]
				} else {
					Rd = Rb
				}
			}

			D1 := Rd - Rb
			D2 := Rb - Rc
			D3 := Rc - Ra

			Q, sign := d.context.GetContextIndex(D1, D2, D3)

			Px := PredictMED(Ra, Rb, Rc)
			Px += sign * d.context.C[Q]
			Px = clip(Px, 0, maxVal)

			k := d.context.ComputeK(Q)
			mapped, err := d.br.ReadGolomb(k)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return fmt.Errorf("jpegls: ReadGolomb failed at x=%d, y=%d: %w", x, y, err)
			}

			em := int(mapped)
			var errVal int
			if em&1 == 0 {
				errVal = em >> 1
			} else {
				errVal = -(em + 1) >> 1
			}
			statsErrVal := errVal
			if sign == -1 {
				errVal = -errVal
			}
			d.context.UpdateStats(Q, statsErrVal)

			rx := Px + errVal
			if rx < 0 {
				rx += maxValPlus1
			}
			if rx > maxVal {
				rx -= maxValPlus1
			}
			rx = clip(rx, 0, maxVal)

			currLine[x] = rx
			switch gi := img.(type) {
			case *image.Gray:
				gi.SetGray(x, y, color.Gray{Y: uint8(rx)})
			case *image.Gray16:
				gi.SetGray16(x, y, color.Gray16{Y: uint16(rx)})
			}
		}
		copy(prevLine, currLine)
	}
	return nil
}
