package jpegli

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
)

// Decoder decodes JPEG Lossless (ITU-T T.81 Annex H) images, the
// DICOM-side counterpart of Encoder.
type Decoder struct {
	r io.Reader

	precision  int // bits per sample
	height     int
	width      int
	components int

	compInfo []componentInfo

	// dcTables holds the DC Huffman tables lossless JPEG uses, indexed
	// by table ID.
	dcTables [4]*huffmanTable

	predictor  int // 1-7
	pointTrans int // point transform (right shift)

	restartInterval int
}

type componentInfo struct {
	id         int
	hSampling  int
	vSampling  int
	tableIndex int
}

// Decode reads a JPEG Lossless image from r.
func Decode(r io.Reader) (image.Image, error) {
	d := &Decoder{r: r}
	return d.decode()
}

func (d *Decoder) decode() (image.Image, error) {
	if err := d.expectMarker(MarkerSOI); err != nil {
		return nil, fmt.Errorf("jpegli: expected SOI: %w", err)
	}

	for {
		marker, err := d.readMarker()
		if err != nil {
			return nil, err
		}

		switch marker {
		case MarkerSOF3:
			if err := d.readSOF(); err != nil {
				return nil, err
			}
		case MarkerDHT:
			if err := d.readDHT(); err != nil {
				return nil, err
			}
		case MarkerSOS:
			return d.decodeScan()
		case MarkerDRI:
			if err := d.readDRI(); err != nil {
				return nil, err
			}
		case MarkerAPP0, MarkerCOM:
			if err := d.skipMarkerData(); err != nil {
				return nil, err
			}
		case MarkerEOI:
			return nil, errors.New("jpegli: unexpected EOI before scan data")
		default:
			switch {
			case marker >= 0xFFE0 && marker <= 0xFFEF:
				if err := d.skipMarkerData(); err != nil {
					return nil, err
				}
			case marker >= 0xFFC0 && marker <= 0xFFCF:
				return nil, fmt.Errorf("jpegli: unsupported SOF marker: 0x%04X", marker)
			default:
				if err := d.skipMarkerData(); err != nil {
					return nil, err
				}
			}
		}
	}
}

func (d *Decoder) expectMarker(expected int) error {
	var buf [2]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return err
	}
	marker := int(buf[0])<<8 | int(buf[1])
	if marker != expected {
		return fmt.Errorf("jpegli: expected marker 0x%04X, got 0x%04X", expected, marker)
	}
	return nil
}

func (d *Decoder) readMarker() (int, error) {
	var buf [2]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, err
	}
	if buf[0] != 0xFF {
		return 0, fmt.Errorf("jpegli: expected marker, got 0x%02X", buf[0])
	}
	for buf[1] == 0xFF {
		if _, err := io.ReadFull(d.r, buf[1:]); err != nil {
			return 0, err
		}
	}
	return int(buf[0])<<8 | int(buf[1]), nil
}

func (d *Decoder) skipMarkerData() error {
	var lenBuf [2]byte
	if _, err := io.ReadFull(d.r, lenBuf[:]); err != nil {
		return err
	}
	length := int(lenBuf[0])<<8 | int(lenBuf[1]) - 2
	if length > 0 {
		_, err := io.CopyN(io.Discard, d.r, int64(length))
		return err
	}
	return nil
}

func (d *Decoder) readSOF() error {
	var lenBuf [2]byte
	if _, err := io.ReadFull(d.r, lenBuf[:]); err != nil {
		return err
	}
	length := int(lenBuf[0])<<8 | int(lenBuf[1]) - 2

	data := make([]byte, length)
	if _, err := io.ReadFull(d.r, data); err != nil {
		return err
	}

	d.precision = int(data[0])
	d.height = int(data[1])<<8 | int(data[2])
	d.width = int(data[3])<<8 | int(data[4])
	d.components = int(data[5])

	d.compInfo = make([]componentInfo, d.components)
	for i := 0; i < d.components; i++ {
		offset := 6 + i*3
		d.compInfo[i] = componentInfo{
			id:         int(data[offset]),
			hSampling:  int(data[offset+1]) >> 4,
			vSampling:  int(data[offset+1]) & 0x0F,
			tableIndex: int(data[offset+2]),
		}
	}

	slog.Debug("jpegli: SOF3 parsed",
		slog.Int("precision", d.precision),
		slog.Int("width", d.width),
		slog.Int("height", d.height),
		slog.Int("components", d.components))

	return nil
}

func (d *Decoder) readDHT() error {
	var lenBuf [2]byte
	if _, err := io.ReadFull(d.r, lenBuf[:]); err != nil {
		return err
	}
	length := int(lenBuf[0])<<8 | int(lenBuf[1]) - 2

	data := make([]byte, length)
	if _, err := io.ReadFull(d.r, data); err != nil {
		return err
	}

	offset := 0
	for offset < len(data) {
		tableInfo := data[offset]
		tableClass := int(tableInfo >> 4) // 0 = DC, 1 = AC
		tableID := int(tableInfo & 0x0F)
		offset++

		if tableClass != 0 {
			// Lossless JPEG never uses AC tables; skip the definition.
			var count int
			for i := 0; i < 16; i++ {
				count += int(data[offset+i])
			}
			offset += 16 + count
			continue
		}

		if tableID >= 4 {
			return fmt.Errorf("jpegli: invalid Huffman table ID: %d", tableID)
		}

		ht := &huffmanTable{}

		var totalCodes int
		for i := 0; i < 16; i++ {
			ht.bits[i+1] = int(data[offset+i])
			totalCodes += ht.bits[i+1]
		}
		offset += 16

		ht.values = make([]byte, totalCodes)
		copy(ht.values, data[offset:offset+totalCodes])
		offset += totalCodes

		d.generateHuffmanCodes(ht)

		slog.Debug("jpegli: DHT parsed",
			slog.Int("tableID", tableID),
			slog.Int("totalCodes", totalCodes))

		d.dcTables[tableID] = ht
	}

	return nil
}

func (d *Decoder) generateHuffmanCodes(ht *huffmanTable) {
	var totalCodes int
	for i := 1; i <= 16; i++ {
		totalCodes += ht.bits[i]
	}

	ht.codes = make([]uint16, totalCodes)
	ht.sizes = make([]int, totalCodes)

	k := 0
	for i := 1; i <= 16; i++ {
		for j := 0; j < ht.bits[i]; j++ {
			ht.sizes[k] = i
			k++
		}
	}

	code := uint16(0)
	si := ht.sizes[0]
	for k := 0; k < totalCodes; k++ {
		for ht.sizes[k] > si {
			code <<= 1
			si++
		}
		ht.codes[k] = code
		code++
	}

	for i := range ht.lookup {
		ht.lookup[i] = -1
	}
	for k := 0; k < totalCodes; k++ {
		size := ht.sizes[k]
		if size <= 8 {
			code := ht.codes[k] << (8 - size)
			count := 1 << (8 - size)
			for i := 0; i < count; i++ {
				ht.lookup[int(code)+i] = int16(size)<<8 | int16(ht.values[k])
			}
		}
	}
}

func (d *Decoder) readDRI() error {
	var buf [4]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return err
	}
	d.restartInterval = int(buf[2])<<8 | int(buf[3])
	return nil
}

func (d *Decoder) readSOS() error {
	var lenBuf [2]byte
	if _, err := io.ReadFull(d.r, lenBuf[:]); err != nil {
		return err
	}
	length := int(lenBuf[0])<<8 | int(lenBuf[1]) - 2

	data := make([]byte, length)
	if _, err := io.ReadFull(d.r, data); err != nil {
		return err
	}

	numComponents := int(data[0])

	offset := 1
	for i := 0; i < numComponents; i++ {
		selector := int(data[offset])
		tableMapping := int(data[offset+1])
		offset += 2

		for j := range d.compInfo {
			if d.compInfo[j].id == selector {
				d.compInfo[j].tableIndex = tableMapping >> 4
				break
			}
		}
	}

	// Spectral selection Ss is the predictor in lossless; Se is always 0.
	d.predictor = int(data[offset])
	offset++
	offset++

	// Al (low nibble of the successive-approximation byte) is the point
	// transform.
	d.pointTrans = int(data[offset]) & 0x0F

	slog.Debug("jpegli: SOS parsed",
		slog.Int("predictor", d.predictor),
		slog.Int("pointTrans", d.pointTrans),
		slog.Int("numComponents", numComponents))

	return nil
}
