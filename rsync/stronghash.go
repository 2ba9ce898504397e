package rsync

import (
	"hash"

	"golang.org/x/crypto/md4"
	"lukechampine.com/blake3"
)

// HashAlgorithm identifies the strong-hash algorithm used to disambiguate
// weak-hash collisions and selects which signature magic number is written
// on the wire. Adding a third algorithm requires a new magic number and is a
// backward-incompatible change.
type HashAlgorithm int

const (
	// AlgorithmMD4 selects the legacy 16-byte MD4 digest, truncated to S
	// bytes. This is the algorithm used by classic librsync signatures.
	AlgorithmMD4 HashAlgorithm = iota
	// AlgorithmBLAKE3 selects the extensible-output BLAKE3 hash, truncated
	// (by construction, rather than by slicing a larger digest) to S bytes.
	AlgorithmBLAKE3
)

// String returns a human-readable name for the algorithm.
func (a HashAlgorithm) String() string {
	switch a {
	case AlgorithmMD4:
		return "md4"
	case AlgorithmBLAKE3:
		return "blake3"
	default:
		return "unknown"
	}
}

// maxStrongLen returns the widest digest the algorithm can produce, used to
// clamp a caller-specified strong-hash truncation length.
func (a HashAlgorithm) maxStrongLen() uint32 {
	switch a {
	case AlgorithmMD4:
		return 16
	case AlgorithmBLAKE3:
		return 32
	default:
		return 0
	}
}

// valid reports whether the algorithm is one this package knows about.
func (a HashAlgorithm) valid() bool {
	return a == AlgorithmMD4 || a == AlgorithmBLAKE3
}

// newStrongHasher constructs a hash.Hash that produces exactly strongLen
// bytes of digest for the given algorithm. Callers are responsible for
// ensuring strongLen has already been validated against maxStrongLen.
func newStrongHasher(algorithm HashAlgorithm, strongLen uint32) hash.Hash {
	switch algorithm {
	case AlgorithmBLAKE3:
		// BLAKE3 is an extensible-output function: a digest of size bytes
		// is the first size bytes of its output stream, so
		// blake3.New(size, nil) yields the truncated hash directly and
		// deterministically.
		return blake3.New(int(strongLen), nil)
	case AlgorithmMD4:
		return md4.New()
	default:
		panic("unsupported strong-hash algorithm")
	}
}

// strongHash computes the strong hash of data for the given algorithm,
// truncated to strongLen bytes. For MD4 (a fixed 16-byte digest), truncation
// is a slice of the full sum; for BLAKE3 it is produced directly at the
// requested width.
func strongHash(algorithm HashAlgorithm, strongLen uint32, data []byte) []byte {
	if algorithm == AlgorithmMD4 {
		h := md4.New()
		h.Write(data)
		return h.Sum(nil)[:strongLen]
	}
	h := newStrongHasher(algorithm, strongLen)
	h.Write(data)
	return h.Sum(nil)
}
