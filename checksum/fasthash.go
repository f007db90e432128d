package checksum

import "golang.org/x/crypto/sha3"

// FastHash64 returns the first 8 bytes of SHA3-256(b) as a little-endian
// uint64. It backs the WriteSet header's 8-byte "fast hash" CRC slot
// (spec.md §3's header layout, offset 56-63). Using the first bytes of a
// wide cryptographic digest for a non-cryptographic integrity check is the
// same trade-off the teacher makes in crypto/devstd.go's checksum4 (first 4
// bytes of SHA3-256 for the P2P message checksum); here the slot is 8 bytes
// wide rather than 4.
func FastHash64(b []byte) uint64 {
	sum := sha3.Sum256(b)
	return uint64(sum[0]) | uint64(sum[1])<<8 | uint64(sum[2])<<16 | uint64(sum[3])<<24 |
		uint64(sum[4])<<32 | uint64(sum[5])<<40 | uint64(sum[6])<<48 | uint64(sum[7])<<56
}
