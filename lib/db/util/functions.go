package util

// FNV-1a parameters
const (
	fnvOffset = 14695981039346656037
	fnvPrime  = 1099511628211
)

// HashString returns the seeded FNV-1a hash of s. It is used for shard selection in the
// engine and for deriving replica ids from node names, so the result must stay stable
// across releases.
func HashString(s string, seed uint64) uint64 {
	h := uint64(fnvOffset) ^ seed
	for i := 0; i < len(s); i++ {
		h = (h ^ uint64(s[i])) * fnvPrime
	}
	return h
}

// Bucket maps s onto one of n buckets. n must be positive.
func Bucket(s string, seed uint64, n int) int {
	return int(HashString(s, seed) % uint64(n))
}
