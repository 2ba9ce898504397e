package rsync

import (
	"bytes"
	"fmt"
	"io"
)

// Apply reconstructs target by replaying delta (as produced by Diff or
// DiffParallel) against base, writing the result to sink.
//
// Every COPY is bounds-checked against base (offset+length must not exceed
// len(base)); a COPY or LITERAL with length zero is rejected; and any data
// appearing after END is rejected.
func Apply(base []byte, delta []byte, sink io.Writer) error {
	return ApplyReader(base, bytes.NewReader(delta), sink)
}

// ApplyReader is the streaming-source counterpart to Apply.
func ApplyReader(base []byte, delta io.Reader, sink io.Writer) error {
	decoder, err := newDeltaDecoder(delta)
	if err != nil {
		return err
	}

	baseLen := uint64(len(base))

	for {
		kind, data, offset, length, err := decoder.next()
		if err != nil {
			return err
		}

		switch kind {
		case commandEnd:
			return rejectTrailingData(delta)

		case commandLiteral:
			if _, err := sink.Write(data); err != nil {
				return &OutputError{Err: err}
			}

		case commandCopy:
			if offset > baseLen || length > baseLen-offset {
				return fmt.Errorf("%w: copy [%d, %d) out of bounds for base of length %d",
					ErrInvalidDelta, offset, offset+length, baseLen)
			}
			if _, err := sink.Write(base[offset : offset+length]); err != nil {
				return &OutputError{Err: err}
			}

		default:
			return fmt.Errorf("%w: unknown command kind %d", ErrInvalidDelta, kind)
		}
	}
}

// ApplyToBytes is a convenience wrapper around Apply for in-memory callers.
func ApplyToBytes(base []byte, delta []byte) ([]byte, error) {
	var buffer bytes.Buffer
	if err := Apply(base, delta, &buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// rejectTrailingData reports ErrInvalidDelta if anything follows the END
// command.
func rejectTrailingData(r io.Reader) error {
	var probe [1]byte
	n, err := r.Read(probe[:])
	if n > 0 || (err != nil && err != io.EOF) {
		return fmt.Errorf("%w: trailing data after END", ErrInvalidDelta)
	}
	return nil
}
