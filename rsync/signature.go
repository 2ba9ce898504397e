package rsync

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Signature wire magic numbers. MagicSignatureMD4 and MagicDelta match
// classic librsync (RS_MD4_SIG_MAGIC / RS_DELTA_MAGIC); MagicSignatureBLAKE3
// is an extension produced and consumed only by this library and compatible
// peers.
const (
	MagicSignatureMD4    uint32 = 0x72730136
	MagicSignatureBLAKE3 uint32 = 0x72730137
	MagicDelta           uint32 = 0x72730236
)

func magicForAlgorithm(algorithm HashAlgorithm) uint32 {
	if algorithm == AlgorithmBLAKE3 {
		return MagicSignatureBLAKE3
	}
	return MagicSignatureMD4
}

func algorithmForMagic(magic uint32) (HashAlgorithm, bool) {
	switch magic {
	case MagicSignatureMD4:
		return AlgorithmMD4, true
	case MagicSignatureBLAKE3:
		return AlgorithmBLAKE3, true
	default:
		return 0, false
	}
}

// BlockHash is a single block record: a weak rolling checksum paired with a
// strong hash truncated to the signature's configured width.
type BlockHash struct {
	// Weak is the weak hash for the block.
	Weak uint32
	// Strong is the strong hash for the block, truncated to StrongLen bytes.
	Strong []byte
}

// EnsureValid verifies that block hash invariants are respected.
func (h *BlockHash) EnsureValid(strongLen uint32) error {
	if h == nil {
		return errors.New("nil block hash")
	}
	if uint32(len(h.Strong)) != strongLen {
		return errors.Errorf("strong hash has length %d, expected %d", len(h.Strong), strongLen)
	}
	return nil
}

// Signature is an rsync base signature: the block length and strong-hash
// width used to compute it, the algorithm, the exact base length (carried
// explicitly so a parsed signature can tell whether its final block is
// short without needing the original base bytes), and the per-block hash
// records.
type Signature struct {
	// Algorithm is the strong-hash algorithm used for this signature.
	Algorithm HashAlgorithm
	// BlockLen is the block length L used to compute the signature.
	BlockLen uint32
	// StrongLen is the strong-hash truncation length S, in bytes.
	StrongLen uint32
	// BaseLength is the exact byte length of the base (A) this signature was
	// computed over.
	BaseLength uint64
	// Hashes are the per-block hash records, one per block of the base, in
	// ascending block-index order.
	Hashes []BlockHash
}

// isEmpty reports whether the signature represents an empty base.
func (s *Signature) isEmpty() bool {
	return s.BaseLength == 0
}

// lastBlockLen returns the length, in bytes, of the final block of the base.
// It equals BlockLen unless BaseLength isn't an exact multiple of BlockLen.
func (s *Signature) lastBlockLen() uint64 {
	if s.BlockLen == 0 {
		return 0
	}
	remainder := s.BaseLength % uint64(s.BlockLen)
	if remainder == 0 {
		return uint64(s.BlockLen)
	}
	return remainder
}

// numBlocks returns the number of blocks the base was partitioned into.
func (s *Signature) numBlocks() uint64 {
	if s.BaseLength == 0 || s.BlockLen == 0 {
		return 0
	}
	n := s.BaseLength / uint64(s.BlockLen)
	if s.BaseLength%uint64(s.BlockLen) != 0 {
		n++
	}
	return n
}

// EnsureValid verifies that signature invariants are respected: valid
// algorithm and strong length, and a record count consistent with the base
// length and block length.
func (s *Signature) EnsureValid() error {
	if s == nil {
		return fmt.Errorf("%w: nil signature", ErrInvalidSignature)
	}
	if !s.Algorithm.valid() {
		return fmt.Errorf("%w: unknown hash algorithm %d", ErrInvalidSignature, int(s.Algorithm))
	}
	if s.StrongLen == 0 || s.StrongLen > s.Algorithm.maxStrongLen() {
		return fmt.Errorf("%w: strong length %d out of range for %s", ErrInvalidSignature, s.StrongLen, s.Algorithm)
	}

	if s.isEmpty() {
		if len(s.Hashes) != 0 {
			return fmt.Errorf("%w: empty base with non-zero number of hashes", ErrInvalidSignature)
		}
		return nil
	}

	if s.BlockLen == 0 {
		return fmt.Errorf("%w: zero block length with non-empty base", ErrInvalidSignature)
	}

	expected := s.numBlocks()
	if uint64(len(s.Hashes)) != expected {
		return fmt.Errorf("%w: record count %d does not match expected %d for base length %d and block length %d",
			ErrInvalidSignature, len(s.Hashes), expected, s.BaseLength, s.BlockLen)
	}
	for i := range s.Hashes {
		if err := s.Hashes[i].EnsureValid(s.StrongLen); err != nil {
			return fmt.Errorf("%w: block record %d: %v", ErrInvalidSignature, i, err)
		}
	}

	return nil
}

// Calculate computes the signature of base using the given options. A zero
// BlockLen picks OptimalBlockLen(len(base)); a zero StrongLen picks
// DefaultStrongLen.
//
// It is a thin wrapper around CalculateReader, mirroring it the way
// SerializeToBytes wraps Serialize.
func Calculate(base []byte, options SignatureOptions) (*Signature, error) {
	return CalculateReader(bytes.NewReader(base), options)
}

// CalculateReader computes the signature of the data read from r, exactly
// as Calculate does for an in-memory base. It exists alongside Calculate to
// give callers a choice between the streaming-source and in-memory-source
// entry points, the same choice DiffReader/ApplyReader offer on the search
// and apply side.
func CalculateReader(r io.Reader, options SignatureOptions) (*Signature, error) {
	base, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	options, err = options.normalize(uint64(len(base)))
	if err != nil {
		return nil, err
	}

	signature := &Signature{
		Algorithm:  options.Algorithm,
		BlockLen:   options.BlockLen,
		StrongLen:  options.StrongLen,
		BaseLength: uint64(len(base)),
	}

	if len(base) == 0 {
		return signature, nil
	}

	blockLen := uint64(options.BlockLen)
	numBlocks := signature.numBlocks()
	signature.Hashes = make([]BlockHash, 0, numBlocks)

	for offset := uint64(0); offset < uint64(len(base)); offset += blockLen {
		end := offset + blockLen
		if end > uint64(len(base)) {
			end = uint64(len(base))
		}
		block := base[offset:end]

		// For short final blocks, the weak hash is still weighted using the
		// full configured block length rather than the block's actual
		// length, so that its weighting is consistent with the full-length
		// windows Diff scans for (see weakHash's doc comment).
		weak, _, _ := weakHash(block, options.BlockLen)
		strong := strongHash(options.Algorithm, options.StrongLen, block)

		signature.Hashes = append(signature.Hashes, BlockHash{Weak: weak, Strong: strong})
	}

	return signature, nil
}

// Serialize writes the signature to w: magic, block length, strong-hash
// length, base length, then one (weak, strong) record per block.
func (s *Signature) Serialize(w io.Writer) error {
	if err := s.EnsureValid(); err != nil {
		return err
	}

	var header [20]byte
	binary.BigEndian.PutUint32(header[0:4], magicForAlgorithm(s.Algorithm))
	binary.BigEndian.PutUint32(header[4:8], s.BlockLen)
	binary.BigEndian.PutUint32(header[8:12], s.StrongLen)
	binary.BigEndian.PutUint64(header[12:20], s.BaseLength)
	if _, err := w.Write(header[:]); err != nil {
		return &OutputError{Err: err}
	}

	record := make([]byte, 4+s.StrongLen)
	for _, h := range s.Hashes {
		binary.BigEndian.PutUint32(record[0:4], h.Weak)
		copy(record[4:], h.Strong)
		if _, err := w.Write(record); err != nil {
			return &OutputError{Err: err}
		}
	}

	return nil
}

// SerializeToBytes is a convenience wrapper around Serialize for in-memory
// callers.
func (s *Signature) SerializeToBytes() ([]byte, error) {
	var buffer bytes.Buffer
	if err := s.Serialize(&buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// ParseSignature decodes a signature previously written by Serialize.
func ParseSignature(r io.Reader) (*Signature, error) {
	var header [20]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated header: %v", ErrInvalidSignature, err)
	}

	magic := binary.BigEndian.Uint32(header[0:4])
	algorithm, ok := algorithmForMagic(magic)
	if !ok {
		return nil, fmt.Errorf("%w: unknown signature magic 0x%08x", ErrInvalidSignature, magic)
	}

	signature := &Signature{
		Algorithm:  algorithm,
		BlockLen:   binary.BigEndian.Uint32(header[4:8]),
		StrongLen:  binary.BigEndian.Uint32(header[8:12]),
		BaseLength: binary.BigEndian.Uint64(header[12:20]),
	}

	if signature.StrongLen == 0 || signature.StrongLen > algorithm.maxStrongLen() {
		return nil, fmt.Errorf("%w: strong length %d out of range for %s", ErrInvalidSignature, signature.StrongLen, algorithm)
	}

	if signature.isEmpty() {
		// A zero base length has no records. Its block length (the one
		// Calculate was given or picked) is carried but never used.
		return signature, nil
	}
	if signature.BlockLen == 0 {
		return nil, fmt.Errorf("%w: zero block length with non-empty base", ErrInvalidSignature)
	}

	recordLen := 4 + int(signature.StrongLen)
	numBlocks := signature.numBlocks()
	signature.Hashes = make([]BlockHash, 0, numBlocks)

	record := make([]byte, recordLen)
	for i := uint64(0); i < numBlocks; i++ {
		if _, err := io.ReadFull(r, record); err != nil {
			return nil, fmt.Errorf("%w: truncated record %d: %v", ErrInvalidSignature, i, err)
		}
		strong := make([]byte, signature.StrongLen)
		copy(strong, record[4:])
		signature.Hashes = append(signature.Hashes, BlockHash{
			Weak:   binary.BigEndian.Uint32(record[0:4]),
			Strong: strong,
		})
	}

	// Reject trailing data: a well-formed signature blob contains exactly
	// the header plus numBlocks records.
	var probe [1]byte
	if n, err := r.Read(probe[:]); n > 0 || (err != nil && err != io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after last record", ErrInvalidSignature)
	}

	return signature, nil
}

// ParseSignatureBytes is a convenience wrapper around ParseSignature for
// in-memory callers.
func ParseSignatureBytes(data []byte) (*Signature, error) {
	return ParseSignature(bytes.NewReader(data))
}
