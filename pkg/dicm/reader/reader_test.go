package reader

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpfielding/dicm/pkg/dicm/bytestream"
	"github.com/jpfielding/dicm/pkg/dicm/event"
	"github.com/jpfielding/dicm/pkg/dicm/testfixture"
)

func newReader(b []byte) *Reader {
	return New(bytestream.FromReader(bytes.NewReader(b)))
}

func drainValue(t *testing.T, r *Reader) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, 4)
	for {
		n, err := r.ReadValue(buf)
		require.NoError(t, err)
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
	}
}

func TestReader_MinimalShortVR(t *testing.T) {
	r := newReader(testfixture.MinimalExplicitShortVR())

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, event.StartModel, ev.Kind)

	ev, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, event.StartAttribute, ev.Kind)
	assert.Equal(t, "UI", ev.Attribute.VR)
	assert.Equal(t, uint32(6), ev.Attribute.Length)

	ev, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, event.Value, ev.Kind)
	assert.Equal(t, []byte("1.2.3\x00"), drainValue(t, r))

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, event.EndAttribute, ev.Kind)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, event.EndModel, ev.Kind)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, event.Eof, ev.Kind)
}

func TestReader_UndefinedLengthSequence(t *testing.T) {
	r := newReader(testfixture.LongFormUndefinedLengthSequence())

	var kinds []event.Kind
	for {
		ev, err := r.Next()
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
		if ev.Kind == event.Value {
			drainValue(t, r)
		}
		if ev.Kind == event.Eof {
			break
		}
	}

	assert.Equal(t, []event.Kind{
		event.StartModel,
		event.StartAttribute, // SQ
		event.StartSequence,
		event.StartItem,
		event.StartAttribute, // nested UI
		event.Value,
		event.EndAttribute,
		event.EndItem,
		event.EndSequence,
		event.EndAttribute, // SQ
		event.EndModel,
		event.Eof,
	}, kinds)
}

func TestReader_EncapsulatedPixelData(t *testing.T) {
	fragment := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	r := newReader(testfixture.EncapsulatedPixelData(fragment))

	var kinds []event.Kind
	var fragments [][]byte
	for {
		ev, err := r.Next()
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
		if ev.Kind == event.Value {
			fragments = append(fragments, drainValue(t, r))
		}
		if ev.Kind == event.Eof {
			break
		}
	}

	assert.Equal(t, []event.Kind{
		event.StartModel,
		event.StartAttribute,
		event.StartFragments,
		event.StartFragment, // basic offset table (empty)
		event.Value,
		event.EndFragment,
		event.StartFragment, // the pixel fragment
		event.Value,
		event.EndFragment,
		event.EndFragments,
		event.EndAttribute,
		event.EndModel,
		event.Eof,
	}, kinds)
	require.Len(t, fragments, 2)
	assert.Empty(t, fragments[0])
	assert.Equal(t, fragment, fragments[1])
}

func TestReader_DefiniteLengthSequence(t *testing.T) {
	r := newReader(testfixture.DefiniteLengthSequence())

	var kinds []event.Kind
	for {
		ev, err := r.Next()
		require.NoError(t, err)
		kinds = append(kinds, ev.Kind)
		if ev.Kind == event.Value {
			drainValue(t, r)
		}
		if ev.Kind == event.Eof {
			break
		}
	}

	assert.Equal(t, []event.Kind{
		event.StartModel,
		event.StartAttribute, // SQ
		event.StartSequence,
		event.StartItem,
		event.StartAttribute, // nested UI
		event.Value,
		event.EndAttribute,
		event.EndItem,
		event.EndSequence, // no delimiter consumed: bound by Length
		event.EndAttribute, // SQ
		event.EndModel,
		event.Eof,
	}, kinds)
}

func TestReader_StrayLowGroupAttribute_Poisons(t *testing.T) {
	r := newReader(testfixture.StrayLowGroupAttribute())
	_, err := r.Next() // StartModel
	require.NoError(t, err)

	_, err = r.Next() // StartAttribute rejects group 0x0002
	require.Error(t, err)

	poisoned, perr := r.Poisoned()
	assert.True(t, poisoned)
	assert.Equal(t, err, perr)
}

func TestReader_HasNext(t *testing.T) {
	r := newReader(testfixture.MinimalExplicitShortVR())
	assert.True(t, r.HasNext())

	for {
		ev, err := r.Next()
		require.NoError(t, err)
		if ev.Kind == event.Value {
			drainValue(t, r)
		}
		if ev.Kind == event.Eof {
			break
		}
		assert.True(t, r.HasNext())
	}
	assert.False(t, r.HasNext())
}

func TestReader_ReservedNotZero_Poisons(t *testing.T) {
	r := newReader(testfixture.ReservedNotZero())
	_, err := r.Next() // StartModel
	require.NoError(t, err)

	_, err = r.Next() // StartAttribute header decode fails
	require.Error(t, err)

	poisoned, perr := r.Poisoned()
	assert.True(t, poisoned)
	assert.Equal(t, err, perr)

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, event.Eof, ev.Kind)
}

func TestReader_OddLength_Poisons(t *testing.T) {
	r := newReader(testfixture.OddLength())
	_, err := r.Next()
	require.NoError(t, err)

	_, err = r.Next()
	require.Error(t, err)
}

func TestReader_CleanEOFOnEmptyStream(t *testing.T) {
	r := newReader(nil)
	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, event.StartModel, ev.Kind)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, event.EndModel, ev.Kind)

	ev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, event.Eof, ev.Kind)
}

func TestReader_PositionAdvances(t *testing.T) {
	r := newReader(testfixture.MinimalExplicitShortVR())
	assert.Equal(t, int64(0), r.Position())
	_, _ = r.Next() // StartModel
	_, _ = r.Next() // StartAttribute
	assert.Equal(t, int64(8), r.Position())
	_, _ = r.Next() // Value
	drainValue(t, r)
	assert.Equal(t, int64(14), r.Position())
}
