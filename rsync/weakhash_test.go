package rsync

import "testing"

// TestWeakHashKnownVector reproduces a hand-computed weak value for a fixed
// input, rather than only checking self-consistency against a fresh
// recomputation: for data = "abcd" (bytes 97, 98, 99, 100) with windowLen 4,
// a = 97+98+99+100 = 394 and b = 4*97 + 3*98 + 2*99 + 1*100 = 980, giving
// weak = a + 65536*b = 64225674.
func TestWeakHashKnownVector(t *testing.T) {
	weak, r1, r2 := weakHash([]byte("abcd"), 4)
	if r1 != 394 {
		t.Errorf("r1 = %d, expected 394", r1)
	}
	if r2 != 980 {
		t.Errorf("r2 = %d, expected 980", r2)
	}
	if weak != 64225674 {
		t.Errorf("weak = %d, expected 64225674", weak)
	}
}

func TestRollWeakHashMatchesFreshComputation(t *testing.T) {
	data := testDataGenerator{4096, 55, 0}.generate()
	windowLen := uint32(128)

	weak, r1, r2 := weakHash(data[:windowLen], windowLen)

	for pos := uint32(0); pos+windowLen < uint32(len(data)); pos++ {
		out := data[pos]
		in := data[pos+windowLen]
		weak, r1, r2 = rollWeakHash(r1, r2, out, in, windowLen)

		expected, _, _ := weakHash(data[pos+1:pos+1+windowLen], windowLen)
		if weak != expected {
			t.Fatalf("rolled hash at pos %d = %d, expected %d", pos+1, weak, expected)
		}
	}
}
