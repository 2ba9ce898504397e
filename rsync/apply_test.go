package rsync

import (
	"bytes"
	"errors"
	"testing"
)

func TestApplyRejectsUnknownOpcode(t *testing.T) {
	delta := deltaWithMagic(t, []byte{0xff})
	if _, err := ApplyToBytes(nil, delta); !errors.Is(err, ErrInvalidDelta) {
		t.Fatalf("expected ErrInvalidDelta, got %v", err)
	}
}

func TestApplyRejectsMissingEnd(t *testing.T) {
	delta := deltaWithMagic(t) // magic only, no commands at all
	if _, err := ApplyToBytes(nil, delta); !errors.Is(err, ErrInvalidDelta) {
		t.Fatalf("expected ErrInvalidDelta, got %v", err)
	}
}

func TestApplyRejectsTrailingData(t *testing.T) {
	delta := deltaWithMagic(t, []byte{opcodeEnd, 0x01})
	if _, err := ApplyToBytes(nil, delta); !errors.Is(err, ErrInvalidDelta) {
		t.Fatalf("expected ErrInvalidDelta, got %v", err)
	}
}

func TestApplyRejectsOutOfBoundsCopy(t *testing.T) {
	base := []byte("hello world")
	// COPY with 1-byte offset/length operands: offset=5, length=100 (out of
	// bounds for an 11-byte base).
	delta := deltaWithMagic(t, []byte{0x45, 5, 100, opcodeEnd})
	if _, err := ApplyToBytes(base, delta); !errors.Is(err, ErrInvalidDelta) {
		t.Fatalf("expected ErrInvalidDelta, got %v", err)
	}
}

func TestApplyRejectsZeroLengthCopy(t *testing.T) {
	base := []byte("hello world")
	delta := deltaWithMagic(t, []byte{0x45, 0, 0, opcodeEnd})
	if _, err := ApplyToBytes(base, delta); !errors.Is(err, ErrInvalidDelta) {
		t.Fatalf("expected ErrInvalidDelta, got %v", err)
	}
}

func TestApplyLiteralAndCopyRoundTrip(t *testing.T) {
	base := []byte("0123456789")
	// LITERAL "AB" (inline length 2), then COPY base[2:7) (offset=2,len=5).
	delta := deltaWithMagic(t, append([]byte{0x02, 'A', 'B', 0x45, 2, 5}, opcodeEnd))
	out, err := ApplyToBytes(base, delta)
	if err != nil {
		t.Fatalf("ApplyToBytes failed: %v", err)
	}
	if !bytes.Equal(out, []byte("AB23456")) {
		t.Errorf("got %q, expected %q", out, "AB23456")
	}
}

// deltaWithMagic prepends the delta magic to the given raw command bytes,
// matching what a deltaDecoder expects to read.
func deltaWithMagic(t *testing.T, commands ...[]byte) []byte {
	t.Helper()
	var buffer bytes.Buffer
	if _, err := newDeltaEncoder(&buffer); err != nil {
		t.Fatalf("newDeltaEncoder failed: %v", err)
	}
	for _, c := range commands {
		buffer.Write(c)
	}
	return buffer.Bytes()
}
