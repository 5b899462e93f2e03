package bytestream

import (
	"bytes"
	"testing"
)

func TestCountingSource(t *testing.T) {
	src := NewCountingSource(FromReader(bytes.NewReader([]byte("hello world"))))
	buf := make([]byte, 5)
	if _, err := src.Read(buf); err != nil {
		t.Fatal(err)
	}
	if got, want := src.Position(), int64(5); got != want {
		t.Errorf("Position() = %d, want %d", got, want)
	}
	if _, err := src.Read(buf); err != nil {
		t.Fatal(err)
	}
	if got, want := src.Position(), int64(10); got != want {
		t.Errorf("Position() = %d, want %d", got, want)
	}
}

func TestCountingSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewCountingSink(FromWriter(&buf))
	if _, err := sink.Write([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	if _, err := sink.Write([]byte("de")); err != nil {
		t.Fatal(err)
	}
	if got, want := sink.Position(), int64(5); got != want {
		t.Errorf("Position() = %d, want %d", got, want)
	}
	if got, want := buf.String(), "abcde"; got != want {
		t.Errorf("buf = %q, want %q", got, want)
	}
}

func TestFromReaderIdempotent(t *testing.T) {
	src := FromReader(bytes.NewReader(nil))
	if got := FromReader(AsReader(src)); got != src {
		t.Fatalf("FromReader(AsReader(src)) = %v, want the original Source %v", got, src)
	}
}

func TestPreambleRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePreamble(FromWriter(&buf)); err != nil {
		t.Fatal(err)
	}
	if err := SkipPreamble(FromReader(bytes.NewReader(buf.Bytes()))); err != nil {
		t.Fatalf("SkipPreamble failed on a just-written preamble: %v", err)
	}
}

func TestSkipPreambleMissingPrefix(t *testing.T) {
	bad := make([]byte, 132)
	copy(bad[128:], "NOPE")
	if err := SkipPreamble(FromReader(bytes.NewReader(bad))); err != ErrMissingDicmPrefix {
		t.Errorf("got %v, want ErrMissingDicmPrefix", err)
	}
}

func TestSkipPreambleShortRead(t *testing.T) {
	if err := SkipPreamble(FromReader(bytes.NewReader([]byte("short")))); err == nil {
		t.Error("expected an error on a truncated preamble")
	}
}
