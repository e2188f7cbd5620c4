package bucket

import (
	"crypto/sha256"
	"encoding/binary"
)

// Buckets is the size of the bucket space. Bucket always returns a value in [0, Buckets).
const Buckets = 100

// Bucket maps identifier and salt to a bucket in [0,100).
// The digest is SHA-256 over "salt:identifier"; the first eight bytes are
// read as a big-endian integer and reduced modulo 100. The bias introduced by
// the modulo on a 64-bit value is far below anything measurable.
func Bucket(identifier, salt string) int {
	buf := make([]byte, 0, len(salt)+1+len(identifier))
	buf = append(buf, salt...)
	buf = append(buf, ':')
	buf = append(buf, identifier...)

	sum := sha256.Sum256(buf)
	return int(binary.BigEndian.Uint64(sum[:8]) % Buckets)
}

// InRollout reports whether identifier falls inside a rollout of the given percentage.
// Percentages at or below 0 are never in rollout, at or above 100 always are.
func InRollout(identifier, salt string, percentage int) bool {
	if percentage <= 0 {
		return false
	}
	if percentage >= Buckets {
		return true
	}
	return Bucket(identifier, salt) < percentage
}
