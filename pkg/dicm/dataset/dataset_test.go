package dataset

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpfielding/dicm/pkg/dicm/bytestream"
	"github.com/jpfielding/dicm/pkg/dicm/tag"
	"github.com/jpfielding/dicm/pkg/dicm/testfixture"
)

func TestRead_MinimalShortVR(t *testing.T) {
	ds, err := ReadBytes(bytestream.FromReader(bytes.NewReader(testfixture.MinimalExplicitShortVR())))
	require.NoError(t, err)

	e, ok := ds.FindElement(0x0008, 0x0018)
	require.True(t, ok)
	assert.Equal(t, "UI", e.VR)
	assert.Equal(t, Plain, e.Kind)
	assert.Equal(t, []byte("1.2.3\x00"), e.Value)
	assert.Equal(t, []tag.Tag{{Group: 0x0008, Element: 0x0018}}, ds.Order)
}

func TestRead_UndefinedLengthSequence(t *testing.T) {
	ds, err := ReadBytes(bytestream.FromReader(bytes.NewReader(testfixture.LongFormUndefinedLengthSequence())))
	require.NoError(t, err)

	e, ok := ds.FindElement(0x0008, 0x1140)
	require.True(t, ok)
	assert.Equal(t, "SQ", e.VR)
	assert.Equal(t, Sequence, e.Kind)
	require.Len(t, e.Items, 1)

	nested, ok := e.Items[0].FindElement(0x0008, 0x1150)
	require.True(t, ok)
	assert.Equal(t, "UI", nested.VR)
	assert.Equal(t, []byte("1.2\x00"), nested.Value)
}

func TestRead_EncapsulatedPixelData(t *testing.T) {
	fragment := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	ds, err := ReadBytes(bytestream.FromReader(bytes.NewReader(testfixture.EncapsulatedPixelData(fragment))))
	require.NoError(t, err)

	e, ok := ds.FindElement(0x7FE0, 0x0010)
	require.True(t, ok)
	assert.Equal(t, EncapsulatedPixelData, e.Kind)
	require.Len(t, e.Fragments, 2)
	assert.Empty(t, e.Fragments[0])
	assert.Equal(t, fragment, e.Fragments[1])
}
