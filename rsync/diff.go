package rsync

import (
	"bytes"
	"io"
)

// extendMatch grows a verified block match starting at target position pos
// (copying from base position offset, currently length bytes long) as far
// right as the two byte sequences keep agreeing. This is the longest-match
// policy: a hash match only proves the first L bytes agree, but the actual
// edit boundary in target may fall anywhere past that, not just on a block
// boundary. Extension is forward-only; the match start is never moved
// left.
func extendMatch(target, base []byte, pos, offset, length uint64) uint64 {
	targetLen, baseLen := uint64(len(target)), uint64(len(base))
	for pos+length < targetLen && offset+length < baseLen && target[pos+length] == base[offset+length] {
		length++
	}
	return length
}

// Diff computes a delta that transforms the base underlying index into
// target, writing the encoded delta command stream to sink.
//
// The scan is a single left-to-right pass over target: at each position,
// probe the index for a full-length window match; on the first match (in
// ascending block-record order - see index.go's candidates), extend it
// forward byte-by-byte past the block boundary for as long as target and
// base keep agreeing, emit or fold the extended span into a pending COPY,
// and jump the scan past it; otherwise accumulate the byte into a pending
// literal run and advance by one. A COPY immediately followed by another
// whose base offset picks up exactly where the first left off is folded
// into one COPY rather than emitted as two.
func Diff(index *Index, target []byte, sink io.Writer) error {
	encoder, err := newDeltaEncoder(sink)
	if err != nil {
		return err
	}

	blockLen := uint64(index.blockLen())
	targetLen := uint64(len(target))

	index.logger.Debugf("diffing target of %d bytes against %d blocks", targetLen, index.numBlocks())

	var literalStart uint64 // first byte, if any, of the pending unflushed literal run
	var literalLen uint64
	var haveCopy bool
	var copyOffset, copyLen uint64

	flushLiteral := func() error {
		if literalLen == 0 {
			return nil
		}
		if err := encoder.writeLiteral(target[literalStart : literalStart+literalLen]); err != nil {
			return err
		}
		literalLen = 0
		return nil
	}

	flushCopy := func() error {
		if !haveCopy {
			return nil
		}
		if err := encoder.writeCopy(copyOffset, copyLen); err != nil {
			return err
		}
		haveCopy = false
		return nil
	}

	// Degenerate case: no block in the base can ever match (block length
	// larger than the whole target, or an empty base/index). Everything is
	// literal.
	if blockLen == 0 || blockLen > targetLen || index.numBlocks() == 0 {
		if targetLen > 0 {
			if err := encoder.writeLiteral(target); err != nil {
				return err
			}
		}
		return encoder.writeEnd()
	}

	var pos uint64
	var weak, r1, r2 uint32
	haveWindow := false

	for pos+blockLen <= targetLen {
		if !haveWindow {
			weak, r1, r2 = weakHash(target[pos:pos+blockLen], uint32(blockLen))
			haveWindow = true
		}

		matchedIndex := -1
		for _, candidate := range index.candidates(weak) {
			strong := strongHash(index.algorithm(), index.strongLen(), target[pos:pos+blockLen])
			if bytes.Equal(strong, index.strongHashAt(candidate)) {
				matchedIndex = candidate
				break
			}
		}

		if matchedIndex >= 0 {
			if err := flushLiteral(); err != nil {
				return err
			}

			offset, blockSpanLen := index.blockSpan(matchedIndex)
			length := extendMatch(target, index.baseBytes(), pos, offset, blockSpanLen)
			if length > blockSpanLen {
				index.logger.Tracef("extended match at target offset %d past block boundary, %d -> %d bytes", pos, blockSpanLen, length)
			}

			if haveCopy && copyOffset+copyLen == offset {
				copyLen += length
				index.logger.Tracef("coalesced match at target offset %d into pending copy, now [%d, %d)", pos, copyOffset, copyOffset+copyLen)
			} else {
				if err := flushCopy(); err != nil {
					return err
				}
				haveCopy = true
				copyOffset, copyLen = offset, length
				index.logger.Tracef("matched block at target offset %d -> base [%d, %d)", pos, offset, offset+length)
			}

			pos += length
			haveWindow = false
			continue
		}

		// No match at pos: the byte at pos becomes part of the pending
		// literal run, and any pending copy is no longer extensible (the
		// scan is about to move by one byte instead of a full block, so the
		// next match, if any, cannot be base-adjacent to this one in a way
		// that corresponds to a contiguous target span).
		if err := flushCopy(); err != nil {
			return err
		}
		if literalLen == 0 {
			literalStart = pos
		}
		literalLen++

		if pos+blockLen < targetLen {
			weak, r1, r2 = rollWeakHash(r1, r2, target[pos], target[pos+blockLen], uint32(blockLen))
		} else {
			haveWindow = false
		}
		pos++
	}

	// Tail shorter than blockLen: never matchable (see index.go), so it is
	// pure literal data.
	if pos < targetLen {
		if literalLen == 0 {
			literalStart = pos
		}
		literalLen += targetLen - pos
	}

	// A pending copy precedes any tail bytes in target, so it goes first.
	if err := flushCopy(); err != nil {
		return err
	}
	if err := flushLiteral(); err != nil {
		return err
	}
	return encoder.writeEnd()
}

// DiffToBytes is a convenience wrapper around Diff for in-memory callers.
func DiffToBytes(index *Index, target []byte) ([]byte, error) {
	var buffer bytes.Buffer
	if err := Diff(index, target, &buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// DiffReader reads all of target into memory and diffs it against index.
// It exists alongside the slice-based Diff to give callers a choice between
// the streaming-source and in-memory-source entry points; the scan itself
// always operates on a fully materialized target, since forward scanning
// with coalescing requires random access to bytes already consumed by a
// prior window.
func DiffReader(index *Index, target io.Reader, sink io.Writer) error {
	data, err := io.ReadAll(target)
	if err != nil {
		return err
	}
	return Diff(index, data, sink)
}
