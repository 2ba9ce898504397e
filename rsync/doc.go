// Package rsync provides an in-memory implementation of the rsync
// differential-transfer algorithm as described in Andrew Tridgell's thesis
// (https://www.samba.org/~tridge/phd_thesis.pdf) and the rsync technical
// report (https://rsync.samba.org/tech_report). Signature construction,
// sequential and parallel delta computation, and delta application are
// provided as free functions operating on byte slices and streams; there is
// no network transport or filesystem traversal here, only the algorithm
// itself and its wire formats. The delta command stream and the signature
// magic numbers and block records follow classic librsync; the signature
// header adds an 8-byte base-length field after the strong-hash length, so
// serialized signatures are not in librsync's own header layout.
package rsync
