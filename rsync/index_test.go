package rsync

import "testing"

func TestIndexExcludesShortFinalBlock(t *testing.T) {
	base := testDataGenerator{1000, 3, 0}.generate() // blockLen 300 -> last block is 100 bytes
	signature, err := Calculate(base, SignatureOptions{BlockLen: 300, StrongLen: 8})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	index, err := NewIndex(signature, base, nil)
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}

	lastRecord := signature.Hashes[len(signature.Hashes)-1]
	for _, candidate := range index.candidates(lastRecord.Weak) {
		if candidate == len(signature.Hashes)-1 {
			t.Error("expected short final block to be excluded from the lookup table")
		}
	}
}

func TestIndexBlockSpans(t *testing.T) {
	base := testDataGenerator{1000, 3, 0}.generate()
	signature, err := Calculate(base, SignatureOptions{BlockLen: 300, StrongLen: 8})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	index, err := NewIndex(signature, base, nil)
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}

	offset, length := index.blockSpan(0)
	if offset != 0 || length != 300 {
		t.Errorf("block 0 span = (%d, %d), expected (0, 300)", offset, length)
	}
	last := index.numBlocks() - 1
	offset, length = index.blockSpan(last)
	if offset != 900 || length != 100 {
		t.Errorf("last block span = (%d, %d), expected (900, 100)", offset, length)
	}
}
