package rsync

import (
	"fmt"
	"math"
)

const (
	// minimumOptimalBlockLen is the minimum block length that will be
	// returned by OptimalBlockLen. It has to be chosen so that it is at
	// least a few orders of magnitude larger than the size of a block
	// record.
	minimumOptimalBlockLen = 1 << 10
	// maximumOptimalBlockLen is the maximum block length that will be
	// returned by OptimalBlockLen. It mostly just needs to be bounded by
	// what can fit into a reasonably sized in-memory buffer.
	maximumOptimalBlockLen = 1 << 16
	// DefaultBlockLen is a fixed 8 KiB block length. SignatureOptions does
	// not apply it: a zero BlockLen there picks OptimalBlockLen instead.
	DefaultBlockLen = 1 << 13
	// DefaultStrongLen is used if a zero StrongLen is passed in
	// SignatureOptions. It's wide enough to make accidental strong-hash
	// collisions between unrelated blocks vanishingly unlikely without
	// paying for a full digest in every signature record.
	DefaultStrongLen = 8
	// maxBlockLen is the hard limit on block length: it must fit in the
	// 4-byte wire field and must be representable as the weak hash's
	// weighting factor.
	maxBlockLen = 1<<31 - 1
	// maxStrongLenOverall is the hard limit on strong-hash truncation
	// length across all algorithms.
	maxStrongLenOverall = 32
)

// OptimalBlockLen uses the heuristic from the rsync thesis to pick a block
// length based on the base length, assuming roughly one change per file. It
// then clamps the result to a sensible range.
func OptimalBlockLen(baseLength uint64) uint32 {
	result := uint64(math.Sqrt(24.0 * float64(baseLength)))
	if result < minimumOptimalBlockLen {
		result = minimumOptimalBlockLen
	} else if result > maximumOptimalBlockLen {
		result = maximumOptimalBlockLen
	}
	return uint32(result)
}

// SignatureOptions configures signature construction.
type SignatureOptions struct {
	// BlockLen is the block length L. If zero, OptimalBlockLen(len(base)) is
	// used.
	BlockLen uint32
	// StrongLen is the strong-hash truncation length S, in bytes. If zero,
	// DefaultStrongLen is used. Must satisfy 1 <= StrongLen <=
	// Algorithm.maxStrongLen().
	StrongLen uint32
	// Algorithm selects the strong-hash algorithm.
	Algorithm HashAlgorithm
}

// normalize fills in zero-valued fields and validates the result, returning
// ErrInvalidOptions if the (possibly defaulted) options are out of range.
func (o SignatureOptions) normalize(baseLength uint64) (SignatureOptions, error) {
	if !o.Algorithm.valid() {
		return o, fmt.Errorf("%w: unknown hash algorithm %d", ErrInvalidOptions, int(o.Algorithm))
	}

	if o.BlockLen == 0 {
		o.BlockLen = OptimalBlockLen(baseLength)
	}
	if o.BlockLen == 0 || uint64(o.BlockLen) > maxBlockLen {
		return o, fmt.Errorf("%w: block length %d out of range", ErrInvalidOptions, o.BlockLen)
	}

	if o.StrongLen == 0 {
		o.StrongLen = DefaultStrongLen
	}
	max := o.Algorithm.maxStrongLen()
	if o.StrongLen < 1 || o.StrongLen > max {
		return o, fmt.Errorf("%w: strong length %d out of range [1, %d] for %s",
			ErrInvalidOptions, o.StrongLen, max, o.Algorithm)
	}

	return o, nil
}
