package pixelrender

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByTransferSyntax(t *testing.T) {
	assert.Equal(t, "rle", ByTransferSyntax("1.2.840.10008.1.2.5").Name())
	assert.Equal(t, "jpeg-2000", ByTransferSyntax("1.2.840.10008.1.2.4.90").Name())
	assert.Nil(t, ByTransferSyntax("1.2.840.10008.1.2.1")) // Explicit VR LE, not encapsulated
}

func TestByName(t *testing.T) {
	assert.Equal(t, "1.2.840.10008.1.2.5", ByName("rle").TransferSyntaxUID())
	assert.Equal(t, ByName("jpeg2000"), ByName("jpeg-2000")) // alias
	assert.Nil(t, ByName("no-such-codec"))
}

func TestDecodeFragment_RLERoundTrip(t *testing.T) {
	width, height := 8, 8
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x + y)})
		}
	}

	var buf bytes.Buffer
	codec := ByTransferSyntax("1.2.840.10008.1.2.5")
	require.NoError(t, codec.Encode(&buf, img))

	decoded, err := DecodeFragment("1.2.840.10008.1.2.5", buf.Bytes(), width, height)
	require.NoError(t, err)
	assert.Equal(t, img, decoded)
}

func TestDecodeFragment_UnsupportedTransferSyntax(t *testing.T) {
	_, err := DecodeFragment("1.2.840.10008.1.2.1", nil, 1, 1)
	require.Error(t, err)
}

func TestDecodeFragment_JpegLiRoundTrip(t *testing.T) {
	width, height := 8, 8
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(16*x + y)})
		}
	}

	var buf bytes.Buffer
	codec := ByTransferSyntax("1.2.840.10008.1.2.4.70")
	require.NoError(t, codec.Encode(&buf, img))

	decoded, err := DecodeFragment("1.2.840.10008.1.2.4.70", buf.Bytes(), width, height)
	require.NoError(t, err)
	assert.Equal(t, img, decoded)
}

func TestDecodeFragment_JpegLSRoundTrip(t *testing.T) {
	width, height := 8, 8
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(16*x + y)})
		}
	}

	var buf bytes.Buffer
	codec := ByTransferSyntax("1.2.840.10008.1.2.4.80")
	require.NoError(t, codec.Encode(&buf, img))

	decoded, err := DecodeFragment("1.2.840.10008.1.2.4.80", buf.Bytes(), width, height)
	require.NoError(t, err)
	assert.Equal(t, img, decoded)
}
