package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpfielding/dicm/pkg/dicm/bytestream"
	"github.com/jpfielding/dicm/pkg/dicm/dicmerr"
	"github.com/jpfielding/dicm/pkg/dicm/tag"
)

func src(b []byte) bytestream.Source { return bytestream.FromReader(bytes.NewReader(b)) }

func TestDecodeHeader_ShortFormExplicit(t *testing.T) {
	buf := []byte{
		0x08, 0x00, 0x18, 0x00, // (0008,0018)
		'U', 'I', // VR
		0x04, 0x00, // VL = 4
	}
	h, err := DecodeHeader(src(buf))
	require.NoError(t, err)
	assert.Equal(t, tag.SOPInstanceUID, h.Tag)
	assert.Equal(t, "UI", h.VR)
	assert.Equal(t, uint32(4), h.Length)
}

func TestDecodeHeader_LongFormExplicit(t *testing.T) {
	buf := []byte{
		0x28, 0x00, 0x00, 0x01, // made-up tag
		'O', 'B', // VR (long form)
		0x00, 0x00, // reserved
		0x10, 0x00, 0x00, 0x00, // VL = 16
	}
	h, err := DecodeHeader(src(buf))
	require.NoError(t, err)
	assert.Equal(t, "OB", h.VR)
	assert.Equal(t, uint32(16), h.Length)
}

func TestDecodeHeader_ReservedNotZero(t *testing.T) {
	buf := []byte{
		0x28, 0x00, 0x00, 0x01,
		'O', 'B',
		0x01, 0x00, // reserved, nonzero
		0x10, 0x00, 0x00, 0x00,
	}
	_, err := DecodeHeader(src(buf))
	require.Error(t, err)
	kind, ok := dicmerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, dicmerr.ReservedNotZero, kind)
}

func TestDecodeHeader_InvalidVR(t *testing.T) {
	buf := []byte{
		0x08, 0x00, 0x18, 0x00,
		0x00, 0x00, // not ASCII uppercase
		0x04, 0x00,
	}
	_, err := DecodeHeader(src(buf))
	require.Error(t, err)
	kind, ok := dicmerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, dicmerr.InvalidVr, kind)
}

func TestDecodeHeader_OddLength(t *testing.T) {
	buf := []byte{
		0x08, 0x00, 0x18, 0x00,
		'U', 'I',
		0x05, 0x00, // odd VL
	}
	_, err := DecodeHeader(src(buf))
	require.Error(t, err)
	kind, ok := dicmerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, dicmerr.InvalidLength, kind)
}

func TestDecodeHeader_CleanEOF(t *testing.T) {
	_, err := DecodeHeader(src(nil))
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeHeader_ShortReadMidHeader(t *testing.T) {
	buf := []byte{0x08, 0x00, 0x18} // truncated tag
	_, err := DecodeHeader(src(buf))
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
	kind, ok := dicmerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, dicmerr.UnexpectedEof, kind)
}

func TestDecodeHeader_ItemDelimiter(t *testing.T) {
	buf := []byte{0xFE, 0xFF, 0x00, 0xE0, 0xFF, 0xFF, 0xFF, 0xFF} // item start, undefined length
	h, err := DecodeHeader(src(buf))
	require.NoError(t, err)
	assert.Equal(t, tag.ItemStart, h.Tag)
	assert.Equal(t, uint32(0xFFFFFFFF), h.Length)
}

func TestDecodeHeader_ItemEndNonzeroLength(t *testing.T) {
	buf := []byte{0xFE, 0xFF, 0x0D, 0xE0, 0x02, 0x00, 0x00, 0x00}
	_, err := DecodeHeader(src(buf))
	require.Error(t, err)
	kind, ok := dicmerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, dicmerr.InvalidLength, kind)
}

func TestEncodeDecodeHeader_RoundTrip(t *testing.T) {
	cases := []Header{
		{Tag: tag.SOPInstanceUID, VR: "UI", Length: 8},
		{Tag: tag.PixelData, VR: "OB", Length: 0xFFFFFFFF},
		{Tag: tag.New(0x0028, 0x0010), VR: "US", Length: 2},
	}
	for _, h := range cases {
		var buf bytes.Buffer
		sink := bytestream.FromWriter(&buf)
		require.NoError(t, EncodeHeader(sink, h))

		got, err := DecodeHeader(bytestream.FromReader(bytes.NewReader(buf.Bytes())))
		require.NoError(t, err)
		assert.Equal(t, h, got)
	}
}

func TestEncodeHeader_Delimiters(t *testing.T) {
	var buf bytes.Buffer
	sink := bytestream.FromWriter(&buf)
	require.NoError(t, EncodeHeader(sink, Header{Tag: tag.SequenceEnd}))
	assert.Equal(t, []byte{0xFE, 0xFF, 0xDD, 0xE0, 0x00, 0x00, 0x00, 0x00}, buf.Bytes())
}
