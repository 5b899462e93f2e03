package jpegls_test

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/jpfielding/dicm/pkg/compress/jpegls"
)

func TestRoundTrip16(t *testing.T) {
	width, height := 96, 96

	original := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var val uint16
			switch {
			case x < 30 && y < 30:
				val = 0
			case x > 60 && y < 30:
				val = 65535
			default:
				val = uint16((x + y*width) % 65536)
			}
			original.SetGray16(x, y, color.Gray16{Y: val})
		}
	}

	var buf bytes.Buffer
	if err := jpegls.Encode(&buf, original, nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := jpegls.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	bounds := decoded.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		t.Fatalf("dimension mismatch: got %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), width, height)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			origVal := original.Gray16At(x, y).Y
			r, _, _, _ := decoded.At(x, y).RGBA()
			if origVal != uint16(r) {
				t.Fatalf("mismatch at (%d,%d): got %d, want %d", x, y, uint16(r), origVal)
			}
		}
	}
}

func TestRoundTripRowOrder(t *testing.T) {
	width, height := 100, 50 // asymmetric to catch transposition bugs

	original := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			original.SetGray16(x, y, color.Gray16{Y: uint16((y*1000 + x) % 65536)})
		}
	}

	var buf bytes.Buffer
	if err := jpegls.Encode(&buf, original, nil); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := jpegls.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	testCases := []struct {
		x, y    int
		wantVal uint16
	}{
		{0, 0, 0},
		{99, 0, 99},
		{0, 49, 49000 % 65536},
		{50, 25, (25*1000 + 50) % 65536},
	}
	for _, tc := range testCases {
		r, _, _, _ := decoded.At(tc.x, tc.y).RGBA()
		if got := uint16(r); got != tc.wantVal {
			t.Errorf("at (%d,%d): got %d, want %d", tc.x, tc.y, got, tc.wantVal)
		}
	}
}
