package rsync

// weakHashModulus is the modulus for each half of the rolling checksum. This
// particular hash is detailed on page 55 of the rsync thesis and in the
// rsync technical report's "Checksum searching" section. It is not
// theoretically optimal, but it rolls in O(1) and that's what matters here.
const weakHashModulus = 1 << 16

// weakHash computes the rolling checksum over data, treating data as a
// window of length windowLen (which may exceed len(data) for a short final
// block - see signature construction, where the weak hash of a short last
// block is still computed using the full configured block length as the
// weighting factor so that it stays consistent with how Diff computes weak
// hashes for full-length windows).
//
// The returned r1, r2 are the two halves of the checksum and must be
// supplied back into rollWeakHash to slide the window by one byte without
// recomputing from scratch.
func weakHash(data []byte, windowLen uint32) (weak, r1, r2 uint32) {
	for i, b := range data {
		r1 += uint32(b)
		r2 += (windowLen - uint32(i)) * uint32(b)
	}
	r1 %= weakHashModulus
	r2 %= weakHashModulus
	weak = r1 + weakHashModulus*r2
	return weak, r1, r2
}

// rollWeakHash updates the checksum computed by weakHash by removing the
// byte leaving the window on the left (out) and adding the byte entering on
// the right (in). windowLen is the (constant) window length. Order matters
// here: r1 must be updated (subtract out, add in) before it's folded into
// the r2 update, matching the thesis's b' = b - (j-i)*x_i + a' (using the
// already-updated a', not the stale one).
func rollWeakHash(r1, r2 uint32, out, in byte, windowLen uint32) (weak, newR1, newR2 uint32) {
	newR1 = (r1 - uint32(out) + uint32(in)) % weakHashModulus
	newR2 = (r2 - windowLen*uint32(out) + newR1) % weakHashModulus
	weak = newR1 + weakHashModulus*newR2
	return weak, newR1, newR2
}
