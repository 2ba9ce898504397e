package rsync

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Delta command opcodes.
const (
	opcodeEnd = 0x00
	// opcodeLiteralInlineMin/Max bound the range of opcodes that encode a
	// LITERAL whose length equals the opcode value itself (1..64 bytes).
	opcodeLiteralInlineMin = 0x01
	opcodeLiteralInlineMax = 0x40
	// opcodeLiteralOperandMin/Max bound the range of opcodes that encode a
	// LITERAL whose length follows as a 1/2/4/8-byte big-endian operand.
	opcodeLiteralOperandMin = 0x41
	opcodeLiteralOperandMax = 0x44
	// opcodeCopyMin/Max bound the range of opcodes that encode a COPY. The
	// low 4 bits of the opcode select the offset and length operand widths.
	opcodeCopyMin = 0x45
	opcodeCopyMax = 0x54
)

// maxLiteralChunk is the largest number of bytes a single LITERAL command
// may carry inline before the run must be split into multiple commands.
const maxLiteralChunk = 1 << 31

// operandWidths lists the four operand widths selectable by a 2-bit field,
// in index order.
var operandWidths = [4]int{1, 2, 4, 8}

// widthIndex maps an operand width in bytes to its 2-bit field index. It
// panics on an invalid width, since callers only ever pass the output of
// minimalWidth.
func widthIndex(width int) int {
	for i, w := range operandWidths {
		if w == width {
			return i
		}
	}
	panic(fmt.Sprintf("invalid operand width %d", width))
}

// minimalWidth returns the smallest of {1, 2, 4, 8} bytes that can represent
// value as a big-endian unsigned integer. Encoders are required to use the
// smallest width that fits, so that two implementations of the same command
// sequence produce byte-identical output.
func minimalWidth(value uint64) int {
	switch {
	case value <= 0xFF:
		return 1
	case value <= 0xFFFF:
		return 2
	case value <= 0xFFFFFFFF:
		return 4
	default:
		return 8
	}
}

// putOperand writes value into buf[:width] as a big-endian unsigned integer
// of the given width (1, 2, 4, or 8 bytes).
func putOperand(buf []byte, value uint64, width int) {
	switch width {
	case 1:
		buf[0] = byte(value)
	case 2:
		binary.BigEndian.PutUint16(buf, uint16(value))
	case 4:
		binary.BigEndian.PutUint32(buf, uint32(value))
	case 8:
		binary.BigEndian.PutUint64(buf, value)
	default:
		panic(fmt.Sprintf("invalid operand width %d", width))
	}
}

// readOperand reads a big-endian unsigned integer of the given width (1, 2,
// 4, or 8 bytes) from buf[:width].
func readOperand(buf []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(buf))
	case 4:
		return uint64(binary.BigEndian.Uint32(buf))
	case 8:
		return binary.BigEndian.Uint64(buf)
	default:
		panic(fmt.Sprintf("invalid operand width %d", width))
	}
}

// deltaEncoder writes a canonical delta command stream to an underlying
// sink, handling literal chunking and minimal-width operand selection.
type deltaEncoder struct {
	w io.Writer
}

// newDeltaEncoder creates an encoder that writes the delta magic followed by
// commands.
func newDeltaEncoder(w io.Writer) (*deltaEncoder, error) {
	var magic [4]byte
	binary.BigEndian.PutUint32(magic[:], MagicDelta)
	if _, err := w.Write(magic[:]); err != nil {
		return nil, &OutputError{Err: err}
	}
	return &deltaEncoder{w: w}, nil
}

// writeLiteral emits one or more LITERAL commands carrying data, splitting
// at maxLiteralChunk. data must be non-empty; callers never emit a
// zero-length literal (a zero-length LITERAL or COPY is invalid).
func (e *deltaEncoder) writeLiteral(data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if n > maxLiteralChunk {
			n = maxLiteralChunk
		}
		chunk := data[:n]

		if n >= opcodeLiteralInlineMin && n <= opcodeLiteralInlineMax {
			if _, err := e.w.Write([]byte{byte(n)}); err != nil {
				return &OutputError{Err: err}
			}
		} else {
			width := minimalWidth(uint64(n))
			opcode := byte(opcodeLiteralOperandMin + widthIndex(width))
			header := make([]byte, 1+width)
			header[0] = opcode
			putOperand(header[1:], uint64(n), width)
			if _, err := e.w.Write(header); err != nil {
				return &OutputError{Err: err}
			}
		}

		if _, err := e.w.Write(chunk); err != nil {
			return &OutputError{Err: err}
		}
		data = data[n:]
	}
	return nil
}

// writeCopy emits a COPY command for the span [offset, offset+length) of the
// base. length must be non-zero. Go slice lengths can never exceed the
// 8-byte operand's range, so unlike writeLiteral this never needs to split a
// single call into multiple commands.
func (e *deltaEncoder) writeCopy(offset, length uint64) error {
	offWidth := minimalWidth(offset)
	lenWidth := minimalWidth(length)
	opcode := byte(opcodeCopyMin + widthIndex(offWidth)*4 + widthIndex(lenWidth))

	buf := make([]byte, 1+offWidth+lenWidth)
	buf[0] = opcode
	putOperand(buf[1:1+offWidth], offset, offWidth)
	putOperand(buf[1+offWidth:], length, lenWidth)
	if _, err := e.w.Write(buf); err != nil {
		return &OutputError{Err: err}
	}
	return nil
}

// writeEnd emits the terminating END command.
func (e *deltaEncoder) writeEnd() error {
	if _, err := e.w.Write([]byte{opcodeEnd}); err != nil {
		return &OutputError{Err: err}
	}
	return nil
}

// deltaCommandKind identifies which of the three command kinds a decoded
// command is.
type deltaCommandKind int

const (
	commandLiteral deltaCommandKind = iota
	commandCopy
	commandEnd
)

// deltaDecoder reads a delta command stream, including the data bytes that
// follow LITERAL opcodes.
type deltaDecoder struct {
	r   io.Reader
	buf [8]byte
}

// newDeltaDecoder reads and validates the delta magic, returning a decoder
// positioned at the first command.
func newDeltaDecoder(r io.Reader) (*deltaDecoder, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated magic: %v", ErrInvalidDelta, err)
	}
	if got := binary.BigEndian.Uint32(magic[:]); got != MagicDelta {
		return nil, fmt.Errorf("%w: unknown delta magic 0x%08x", ErrInvalidDelta, got)
	}
	return &deltaDecoder{r: r}, nil
}

// next decodes the next command. For commandLiteral, data holds the
// literal's bytes (freshly allocated). For commandCopy, offset and length
// are populated. For commandEnd, all other fields are zero.
func (d *deltaDecoder) next() (kind deltaCommandKind, data []byte, offset, length uint64, err error) {
	var opcodeBuf [1]byte
	if _, err = io.ReadFull(d.r, opcodeBuf[:]); err != nil {
		return 0, nil, 0, 0, fmt.Errorf("%w: missing END: %v", ErrInvalidDelta, err)
	}
	opcode := opcodeBuf[0]

	switch {
	case opcode == opcodeEnd:
		return commandEnd, nil, 0, 0, nil

	case opcode >= opcodeLiteralInlineMin && opcode <= opcodeLiteralInlineMax:
		n := uint64(opcode)
		data, err = d.readLiteralData(n)
		return commandLiteral, data, 0, 0, err

	case opcode >= opcodeLiteralOperandMin && opcode <= opcodeLiteralOperandMax:
		width := operandWidths[opcode-opcodeLiteralOperandMin]
		n, err := d.readUint(width)
		if err != nil {
			return 0, nil, 0, 0, err
		}
		if n == 0 {
			return 0, nil, 0, 0, fmt.Errorf("%w: zero-length literal", ErrInvalidDelta)
		}
		data, err = d.readLiteralData(n)
		return commandLiteral, data, 0, 0, err

	case opcode >= opcodeCopyMin && opcode <= opcodeCopyMax:
		bits := opcode - opcodeCopyMin
		offWidth := operandWidths[bits>>2]
		lenWidth := operandWidths[bits&0x3]
		off, err := d.readUint(offWidth)
		if err != nil {
			return 0, nil, 0, 0, err
		}
		ln, err := d.readUint(lenWidth)
		if err != nil {
			return 0, nil, 0, 0, err
		}
		if ln == 0 {
			return 0, nil, 0, 0, fmt.Errorf("%w: zero-length copy", ErrInvalidDelta)
		}
		return commandCopy, nil, off, ln, nil

	default:
		return 0, nil, 0, 0, fmt.Errorf("%w: unknown opcode 0x%02x", ErrInvalidDelta, opcode)
	}
}

// readUint reads a big-endian unsigned integer of the given width from the
// underlying reader.
func (d *deltaDecoder) readUint(width int) (uint64, error) {
	if _, err := io.ReadFull(d.r, d.buf[:width]); err != nil {
		return 0, fmt.Errorf("%w: truncated operand: %v", ErrInvalidDelta, err)
	}
	return readOperand(d.buf[:width], width), nil
}

// readLiteralData reads n literal bytes, reporting ErrInvalidDelta if the
// stream runs out early.
func (d *deltaDecoder) readLiteralData(n uint64) ([]byte, error) {
	data := make([]byte, n)
	if _, err := io.ReadFull(d.r, data); err != nil {
		return nil, fmt.Errorf("%w: literal truncated: %v", ErrInvalidDelta, err)
	}
	return data, nil
}
