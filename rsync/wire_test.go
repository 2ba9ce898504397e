package rsync

import (
	"bytes"
	"testing"
)

func TestMinimalWidth(t *testing.T) {
	cases := []struct {
		value uint64
		width int
	}{
		{0, 1},
		{0xFF, 1},
		{0x100, 2},
		{0xFFFF, 2},
		{0x10000, 4},
		{0xFFFFFFFF, 4},
		{0x100000000, 8},
	}
	for _, c := range cases {
		if got := minimalWidth(c.value); got != c.width {
			t.Errorf("minimalWidth(%d) = %d, expected %d", c.value, got, c.width)
		}
	}
}

func TestDeltaEncoderUsesInlineLiteralForShortRuns(t *testing.T) {
	var buffer bytes.Buffer
	encoder, err := newDeltaEncoder(&buffer)
	if err != nil {
		t.Fatalf("newDeltaEncoder failed: %v", err)
	}
	data := bytes.Repeat([]byte{'x'}, 64)
	if err := encoder.writeLiteral(data); err != nil {
		t.Fatalf("writeLiteral failed: %v", err)
	}
	encoded := buffer.Bytes()
	// magic (4 bytes) + opcode (1 byte, inline length 64) + 64 data bytes.
	if len(encoded) != 4+1+64 {
		t.Fatalf("unexpected encoded length %d", len(encoded))
	}
	if encoded[4] != 64 {
		t.Errorf("expected inline opcode 64, got %d", encoded[4])
	}
}

func TestDeltaEncoderUsesOperandLiteralForLongRuns(t *testing.T) {
	var buffer bytes.Buffer
	encoder, err := newDeltaEncoder(&buffer)
	if err != nil {
		t.Fatalf("newDeltaEncoder failed: %v", err)
	}
	data := bytes.Repeat([]byte{'y'}, 300)
	if err := encoder.writeLiteral(data); err != nil {
		t.Fatalf("writeLiteral failed: %v", err)
	}
	encoded := buffer.Bytes()
	if encoded[4] != opcodeLiteralOperandMin+1 { // 300 needs a 2-byte operand
		t.Errorf("expected opcode 0x%02x, got 0x%02x", opcodeLiteralOperandMin+1, encoded[4])
	}
}

func TestDeltaRoundTripLiteralAndCopy(t *testing.T) {
	var buffer bytes.Buffer
	encoder, err := newDeltaEncoder(&buffer)
	if err != nil {
		t.Fatalf("newDeltaEncoder failed: %v", err)
	}
	if err := encoder.writeLiteral([]byte("hello")); err != nil {
		t.Fatalf("writeLiteral failed: %v", err)
	}
	if err := encoder.writeCopy(100, 300); err != nil {
		t.Fatalf("writeCopy failed: %v", err)
	}
	if err := encoder.writeEnd(); err != nil {
		t.Fatalf("writeEnd failed: %v", err)
	}

	decoder, err := newDeltaDecoder(bytes.NewReader(buffer.Bytes()))
	if err != nil {
		t.Fatalf("newDeltaDecoder failed: %v", err)
	}

	kind, data, _, _, err := decoder.next()
	if err != nil || kind != commandLiteral || string(data) != "hello" {
		t.Fatalf("unexpected literal command: kind=%v data=%q err=%v", kind, data, err)
	}

	kind, _, offset, length, err := decoder.next()
	if err != nil || kind != commandCopy || offset != 100 || length != 300 {
		t.Fatalf("unexpected copy command: kind=%v offset=%d length=%d err=%v", kind, offset, length, err)
	}

	kind, _, _, _, err = decoder.next()
	if err != nil || kind != commandEnd {
		t.Fatalf("unexpected end command: kind=%v err=%v", kind, err)
	}
}
