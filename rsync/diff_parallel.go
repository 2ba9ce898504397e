package rsync

import (
	"bytes"
	"context"
	"io"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// opKind distinguishes the two spans a chunk worker can emit.
type opKind int

const (
	opLiteral opKind = iota
	opCopy
)

// diffOp is one span of a chunk's local scan result, expressed in absolute
// target positions (for literals) or base positions (for copies). Workers
// build these instead of writing directly to the sink so that the driver
// can reconcile chunk boundaries before anything is encoded.
type diffOp struct {
	kind opKind
	// start/end are positions in target, valid for both kinds (a copy's
	// start/end span is the target range it replaces).
	start, end uint64
	// baseOffset/baseLen are valid only for opCopy.
	baseOffset, baseLen uint64
}

// DefaultParallelChunkLen is the target size of each chunk handed to a
// worker goroutine in DiffParallel. It is large relative to any realistic
// block length so that per-chunk overhead (boundary reconciliation, goroutine
// scheduling) stays a small fraction of the work each chunk does.
const DefaultParallelChunkLen = 4 << 20

// DiffParallel computes the same delta Diff would, but scans disjoint
// chunks of target concurrently (bounded by workers, or runtime.NumCPU() if
// workers <= 0) before reconciling them into a single command stream.
//
// Output is byte-identical to Diff on the same inputs: each chunk worker
// may read (not start new matches from) bytes past its nominal end, and a
// verified match's forward extension can run arbitrarily far past that —
// same as Diff, since target and base are shared in-memory slices and
// reading past a chunk boundary costs nothing. A chunk whose own scan stepped
// over the end of that overrun while inside a copy is scanned again from that
// end. The reconciliation pass in mergeChunks then discards or clips whatever
// a chunk's neighbor(s) already consumed across the boundary, however far
// that overrun reaches, and coalesces adjacent copies exactly as the
// sequential scan would.
func DiffParallel(ctx context.Context, index *Index, target []byte, sink io.Writer, workers int) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}

	blockLen := uint64(index.blockLen())
	targetLen := uint64(len(target))

	// Small or block-less inputs aren't worth splitting; fall back to the
	// sequential path, which also correctly handles the degenerate cases
	// (empty target, empty index, blockLen > targetLen).
	if targetLen == 0 || blockLen == 0 || blockLen > targetLen || targetLen <= DefaultParallelChunkLen {
		return Diff(index, target, sink)
	}

	chunkLen := uint64(DefaultParallelChunkLen)
	numChunks := int((targetLen + chunkLen - 1) / chunkLen)

	logger := index.logger.Sublogger("parallel")
	logger.Debugf("splitting target of %d bytes into %d chunks across up to %d workers", targetLen, numChunks, workers)

	results := make([][]diffOp, numChunks)

	group, groupCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(workers))

	for c := 0; c < numChunks; c++ {
		c := c
		chunkStart := uint64(c) * chunkLen
		chunkEnd := chunkStart + chunkLen
		if chunkEnd > targetLen {
			chunkEnd = targetLen
		}

		if err := sem.Acquire(groupCtx, 1); err != nil {
			return &WorkerError{Err: err}
		}
		group.Go(func() error {
			defer sem.Release(1)
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}
			results[c] = scanChunk(index, target, chunkStart, chunkEnd)
			logger.Tracef("chunk %d scanned [%d, %d) -> %d ops", c, chunkStart, chunkEnd, len(results[c]))
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return &WorkerError{Err: err}
	}

	// Rescan, from the point where the preceding chunks' output ends, any
	// chunk whose own scan stepped over that point inside a copy.
	var covered uint64
	for c := range results {
		inStep := covered <= uint64(c)*chunkLen
		for _, op := range results[c] {
			inStep = inStep || op.start == covered || (op.kind == opLiteral && op.start < covered && covered < op.end)
		}
		if !inStep {
			results[c] = scanChunk(index, target, covered, min(uint64(c+1)*chunkLen, targetLen))
		}
		if n := len(results[c]); n > 0 && results[c][n-1].end > covered {
			covered = results[c][n-1].end
		}
	}

	merged := mergeChunks(results)
	logger.Debugf("stitched %d chunks into %d commands", numChunks, len(merged))

	encoder, err := newDeltaEncoder(sink)
	if err != nil {
		return err
	}
	for _, op := range merged {
		if op.kind == opLiteral {
			if err := encoder.writeLiteral(target[op.start:op.end]); err != nil {
				return err
			}
		} else {
			if err := encoder.writeCopy(op.baseOffset, op.baseLen); err != nil {
				return err
			}
		}
	}
	return encoder.writeEnd()
}

// DiffParallelToBytes is a convenience wrapper around DiffParallel for
// in-memory callers.
func DiffParallelToBytes(ctx context.Context, index *Index, target []byte, workers int) ([]byte, error) {
	var buffer bytes.Buffer
	if err := DiffParallel(ctx, index, target, &buffer, workers); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// scanChunk runs the same greedy scan Diff does, restricted to match starts
// in [chunkStart, chunkEnd). Because a window's weak/strong hash, and a
// matched block's forward extension, depend only on target/base bytes (not
// on scan history), this produces exactly the matches and extensions the
// sequential scan would find at each of those positions, independent of
// anything to its left. Window reads and match extension (but not match
// starts) may run past chunkEnd, using target and base bytes that belong to
// a later chunk's nominal range; target and base are shared read-only
// slices, so this is free.
func scanChunk(index *Index, target []byte, chunkStart, chunkEnd uint64) []diffOp {
	blockLen := uint64(index.blockLen())
	targetLen := uint64(len(target))

	var ops []diffOp
	appendLiteralByte := func(pos uint64) {
		if n := len(ops); n > 0 && ops[n-1].kind == opLiteral && ops[n-1].end == pos {
			ops[n-1].end = pos + 1
			return
		}
		ops = append(ops, diffOp{kind: opLiteral, start: pos, end: pos + 1})
	}
	appendCopy := func(pos, offset, length uint64) {
		if n := len(ops); n > 0 && ops[n-1].kind == opCopy && ops[n-1].baseOffset+ops[n-1].baseLen == offset {
			ops[n-1].baseLen += length
			ops[n-1].end += length
			return
		}
		ops = append(ops, diffOp{kind: opCopy, start: pos, end: pos + length, baseOffset: offset, baseLen: length})
	}

	pos := chunkStart
	var weak, r1, r2 uint32
	haveWindow := false

	for pos < chunkEnd && pos+blockLen <= targetLen {
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
			offset, blockSpanLen := index.blockSpan(matchedIndex)
			length := extendMatch(target, index.baseBytes(), pos, offset, blockSpanLen)
			appendCopy(pos, offset, length)
			pos += length
			haveWindow = false
			continue
		}

		appendLiteralByte(pos)
		if pos+blockLen < targetLen {
			weak, r1, r2 = rollWeakHash(r1, r2, target[pos], target[pos+blockLen], uint32(blockLen))
		} else {
			haveWindow = false
		}
		pos++
	}

	// A worker's leftover tail (pos < chunkEnd but no full window fits, which
	// only happens in the final chunk) is appended here as literal bytes.
	if pos < chunkEnd {
		for ; pos < chunkEnd; pos++ {
			appendLiteralByte(pos)
		}
	}

	return ops
}

// mergeChunks reconciles independently scanned chunk results into the
// single ordered command list Diff would have produced.
func mergeChunks(chunks [][]diffOp) []diffOp {
	var merged []diffOp
	var trueEnd uint64 // the position, in absolute target terms, through which prior chunks' output is authoritative

	appendOp := func(op diffOp) {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.kind == opLiteral && op.kind == opLiteral && last.end == op.start {
				last.end = op.end
				return
			}
			if last.kind == opCopy && op.kind == opCopy && last.baseOffset+last.baseLen == op.baseOffset {
				last.baseLen += op.baseLen
				last.end += (op.end - op.start)
				return
			}
		}
		merged = append(merged, op)
	}

	for _, ops := range chunks {
		for _, op := range ops {
			if op.end <= trueEnd {
				continue // entirely shadowed by a preceding chunk's overrun
			}
			if op.start < trueEnd {
				if op.kind == opLiteral {
					op.start = trueEnd // partially shadowed literal: clip
				} else {
					continue // a copy can't be partially kept; drop it
				}
			}
			appendOp(op)
		}
		if len(ops) > 0 {
			last := ops[len(ops)-1]
			if last.end > trueEnd {
				trueEnd = last.end
			}
		}
	}

	return merged
}
