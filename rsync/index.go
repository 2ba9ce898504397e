package rsync

import (
	"fmt"

	"github.com/run0-ai/superfast-rsync/internal/logging"
)

// Index is a read-only, concurrency-safe lookup structure built from a
// Signature. It maps a weak hash to the block records sharing it, letting
// Diff probe a candidate window in O(1) average time instead of scanning
// every record. It also retains the exact base bytes the signature was
// computed over: the sequential and parallel searches need them to grow a
// verified block match byte-by-byte past its block boundary (the longest-
// match extension step), not just hashes to confirm a match exists.
//
// The signature's short final block (if any) is omitted from the lookup
// table: a COPY can never legitimately match a run shorter than BlockLen
// against any block but the last, and excluding it from lookup saves every
// candidate probe from having to special-case it.
type Index struct {
	signature *Signature
	base      []byte
	// buckets maps a weak hash to the indices (into signature.Hashes) of
	// every full-length block sharing that weak hash, in ascending order.
	buckets map[uint32][]int
	// logger receives trace-level diagnostics from Diff/DiffParallel scans
	// performed against this index. It defaults to logging.Discard, so it
	// is always safe to call without a nil check.
	logger *logging.Logger
}

// NewIndex builds an Index from a signature and the exact base bytes it was
// computed over. The signature and base are not copied; callers must not
// mutate either afterward. logger may be nil, in which case construction
// and scan diagnostics are discarded; pass one in directly (rather than
// only via SetLogger) so that construction-time diagnostics have somewhere
// to go.
func NewIndex(signature *Signature, base []byte, logger *logging.Logger) (*Index, error) {
	if err := signature.EnsureValid(); err != nil {
		return nil, err
	}
	if uint64(len(base)) != signature.BaseLength {
		return nil, fmt.Errorf("%w: base has length %d, signature was computed over length %d",
			ErrInvalidSignature, len(base), signature.BaseLength)
	}
	if logger == nil {
		logger = logging.Discard
	}

	index := &Index{
		signature: signature,
		base:      base,
		buckets:   make(map[uint32][]int, len(signature.Hashes)),
		logger:    logger,
	}

	last := len(signature.Hashes) - 1
	for i, h := range signature.Hashes {
		if i == last && signature.lastBlockLen() != uint64(signature.BlockLen) {
			// Short final block: excluded from the lookup table (see the
			// doc comment above), but still reachable by index via
			// blockSpan/strongHashAt.
			continue
		}
		index.buckets[h.Weak] = append(index.buckets[h.Weak], i)
	}

	index.logger.Debugf("built index: %d blocks, %d distinct weak hashes", len(signature.Hashes), len(index.buckets))

	return index, nil
}

// SetLogger attaches a logger that Diff and DiffParallel will use to report
// trace-level diagnostics about scans performed against this index. Passing
// nil restores the default of discarding all log output.
func (idx *Index) SetLogger(logger *logging.Logger) {
	if logger == nil {
		logger = logging.Discard
	}
	idx.logger = logger
}

// blockLen returns the configured block length L.
func (idx *Index) blockLen() uint32 {
	return idx.signature.BlockLen
}

// strongLen returns the configured strong-hash width S.
func (idx *Index) strongLen() uint32 {
	return idx.signature.StrongLen
}

// algorithm returns the configured strong-hash algorithm.
func (idx *Index) algorithm() HashAlgorithm {
	return idx.signature.Algorithm
}

// numBlocks returns the number of block records in the underlying
// signature.
func (idx *Index) numBlocks() int {
	return len(idx.signature.Hashes)
}

// candidates returns the block indices (ascending) sharing the given weak
// hash, excluding any short final block. The returned slice is owned by the
// index and must not be mutated.
func (idx *Index) candidates(weak uint32) []int {
	return idx.buckets[weak]
}

// strongHashAt returns the recorded strong hash for block i.
func (idx *Index) strongHashAt(i int) []byte {
	return idx.signature.Hashes[i].Strong
}

// blockSpan returns the [offset, length) of block i within the base that
// this index's signature was computed over.
func (idx *Index) blockSpan(i int) (offset uint64, length uint64) {
	blockLen := uint64(idx.signature.BlockLen)
	offset = uint64(i) * blockLen
	if i == idx.numBlocks()-1 {
		length = idx.signature.lastBlockLen()
	} else {
		length = blockLen
	}
	return offset, length
}

// baseLength returns the exact length of the base this index's signature
// was computed over.
func (idx *Index) baseLength() uint64 {
	return idx.signature.BaseLength
}

// baseBytes returns the exact base bytes this index's signature was
// computed over, for match-extension byte comparisons. The returned slice
// is owned by the index and must not be mutated.
func (idx *Index) baseBytes() []byte {
	return idx.base
}
