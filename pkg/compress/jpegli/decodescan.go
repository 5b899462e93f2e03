package jpegli

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
)

// decodeScan decodes the entropy-coded scan data that follows SOS.
func (d *Decoder) decodeScan() (image.Image, error) {
	if err := d.readSOS(); err != nil {
		return nil, err
	}

	br := newBitReader(d.r)

	var img image.Image
	if d.precision <= 8 {
		img = image.NewGray(image.Rect(0, 0, d.width, d.height))
	} else {
		img = image.NewGray16(image.Rect(0, 0, d.width, d.height))
	}

	tableIdx := 0
	if len(d.compInfo) > 0 {
		tableIdx = d.compInfo[0].tableIndex
	}
	ht := d.dcTables[tableIdx]
	if ht == nil {
		return nil, errors.New("jpegli: missing Huffman table")
	}

	maxVal := (1 << d.precision) - 1

	prevRow := make([]int, d.width)
	currRow := make([]int, d.width)

	mcuCount := 0

	for y := 0; y < d.height; y++ {
		for x := 0; x < d.width; x++ {
			if d.restartInterval > 0 && mcuCount > 0 && mcuCount%d.restartInterval == 0 {
				if err := br.alignToByte(); err != nil {
					return nil, err
				}
				b1, _ := br.readByte()
				b2, _ := br.readByte()
				if b1 != 0xFF || (b2&0xF8) != 0xD0 {
					slog.Debug("jpegli: missed restart marker", slog.Int("x", x), slog.Int("y", y))
				}
				for i := range prevRow {
					prevRow[i] = 0
				}
			}

			ssss, err := d.decodeHuffman(br, ht)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return img, nil
				}
				return nil, err
			}

			var diff int
			if ssss > 0 {
				bits, err := br.readBits(ssss)
				if err != nil {
					if errors.Is(err, io.EOF) {
						return img, nil
					}
					return nil, err
				}
				diff = extend(bits, ssss)
			}

			pred := d.predict(currRow, prevRow, x, y)

			if d.pointTrans > 0 {
				diff <<= d.pointTrans
			}

			val := (pred + diff) & maxVal
			currRow[x] = val
			mcuCount++

			switch gi := img.(type) {
			case *image.Gray:
				gi.SetGray(x, y, color.Gray{Y: uint8(val)})
			case *image.Gray16:
				gi.SetGray16(x, y, color.Gray16{Y: uint16(val)})
			}
		}
		prevRow, currRow = currRow, prevRow
		for i := range currRow {
			currRow[i] = 0
		}
	}

	return img, nil
}

// predict computes the lossless predictor of spec Annex H.1.2: the
// first row/column fall back to a flat or edge prediction, and every
// other pixel uses one of the eight JPEG Lossless predictors selected
// by Ss in the SOS header.
func (d *Decoder) predict(currRow, prevRow []int, x, y int) int {
	var Ra, Rb, Rc int

	if x > 0 {
		Ra = currRow[x-1]
	}
	if y > 0 {
		Rb = prevRow[x]
		if x > 0 {
			Rc = prevRow[x-1]
		}
	}

	if y == 0 && x == 0 {
		return 1 << (d.precision - 1)
	}
	if y == 0 {
		return Ra
	}
	if x == 0 {
		return Rb
	}

	switch d.predictor {
	case 0:
		return 0
	case 1:
		return Ra
	case 2:
		return Rb
	case 3:
		return Rc
	case 4:
		return Ra + Rb - Rc
	case 5:
		return Ra + (Rb-Rc)/2
	case 6:
		return Rb + (Ra-Rc)/2
	case 7:
		return (Ra + Rb) / 2
	default:
		return Ra
	}
}

// extend sign-extends an SSSS-category difference value per T.81 Table H.2.
func extend(bits, ssss int) int {
	if ssss == 0 {
		return 0
	}
	vt := 1 << (ssss - 1)
	if bits < vt {
		return bits - (1<<ssss - 1)
	}
	return bits
}

// decodeHuffman decodes a single DC-category symbol, using the 8-bit
// lookup table for the common case and falling back to a bit-by-bit
// search for longer codes.
func (d *Decoder) decodeHuffman(br *bitReader, ht *huffmanTable) (int, error) {
	peek, err := br.peekBits(8)
	if err != nil && err != io.EOF {
		return 0, err
	}
	peek &= 0xFF

	if lookup := ht.lookup[peek]; lookup >= 0 {
		size := int(lookup >> 8)
		value := int(lookup & 0xFF)
		br.consumeBits(size)
		return value, nil
	}

	code := 0
	for size := 1; size <= 16; size++ {
		bit, err := br.readBit()
		if err != nil {
			return 0, err
		}
		code = code<<1 | bit

		codeIdx := 0
		for i := 1; i < size; i++ {
			codeIdx += ht.bits[i]
		}
		for i := 0; i < ht.bits[size]; i++ {
			if ht.codes[codeIdx+i] == uint16(code) {
				return int(ht.values[codeIdx+i]), nil
			}
		}
	}

	return 0, fmt.Errorf("jpegli: invalid Huffman code: reached 16 bits without match, code=%b", code)
}
