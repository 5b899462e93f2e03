package writer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpfielding/dicm/pkg/dicm/bytestream"
	"github.com/jpfielding/dicm/pkg/dicm/event"
	"github.com/jpfielding/dicm/pkg/dicm/reader"
	"github.com/jpfielding/dicm/pkg/dicm/testfixture"
)

// copyStream drives a Reader over src and pushes every event it
// produces into a fresh Writer, mirroring cmd/dicmctl copy and
// exercising the writer's delimiter-reinsertion logic (spec §8
// scenario 6: reader->writer round trip is byte-identical).
func copyStream(t *testing.T, src []byte) []byte {
	t.Helper()
	r := reader.New(bytestream.FromReader(bytes.NewReader(src)))

	var out bytes.Buffer
	w := New(bytestream.FromWriter(&out))

	for {
		ev, err := r.Next()
		require.NoError(t, err)

		if ev.Kind == event.Value {
			buf := make([]byte, 4096)
			n, err := r.ReadValue(buf)
			require.NoError(t, err)
			wrote := false
			for n > 0 {
				wrote = true
				require.NoError(t, w.Put(event.Event{Kind: event.Value, Attribute: ev.Attribute, Chunk: buf[:n]}))
				n, err = r.ReadValue(buf)
				require.NoError(t, err)
			}
			if !wrote {
				require.NoError(t, w.Put(ev))
			}
		} else {
			require.NoError(t, w.Put(ev))
		}

		if ev.Kind == event.Eof {
			break
		}
	}

	return out.Bytes()
}

func TestWriter_RoundTrip_MinimalShortVR(t *testing.T) {
	src := testfixture.MinimalExplicitShortVR()
	assert.Equal(t, src, copyStream(t, src))
}

func TestWriter_RoundTrip_UndefinedLengthSequence(t *testing.T) {
	src := testfixture.LongFormUndefinedLengthSequence()
	assert.Equal(t, src, copyStream(t, src))
}

func TestWriter_RoundTrip_DefiniteLengthSequence(t *testing.T) {
	src := testfixture.DefiniteLengthSequence()
	assert.Equal(t, src, copyStream(t, src))
}

func TestWriter_RoundTrip_EncapsulatedPixelData(t *testing.T) {
	src := testfixture.EncapsulatedPixelData([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	assert.Equal(t, src, copyStream(t, src))
}

func TestWriter_RejectsOutOfOrderEvents(t *testing.T) {
	var out bytes.Buffer
	w := New(bytestream.FromWriter(&out))
	require.NoError(t, w.Put(event.Event{Kind: event.StartModel}))

	err := w.Put(event.Event{Kind: event.EndAttribute})
	require.Error(t, err)

	// The writer is poisoned after the first error.
	err = w.Put(event.Event{Kind: event.StartModel})
	require.Error(t, err)
}
