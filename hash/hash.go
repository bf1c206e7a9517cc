// Package hash implements a fast salted modular hash and the stable bucketing built on it
package hash

// Hash maps n into [0, max) under salt s
func Hash(n uint32, s uint32, max uint32) uint32 {
	var m = n - s

	// xor shift with prime coefficients
	m ^= m << 2
	m ^= m << 3
	m ^= m >> 5
	m ^= m >> 7
	m ^= m << 11
	m ^= m << 13
	m ^= m >> 17
	m ^= m << 19

	m += s

	// Lemire's multiply shift instead of a modulo
	return uint32((uint64(m) * uint64(max)) >> 32)
}

// String folds the bytes of str into a 32 bit value
func String(str string, salt uint32) uint32 {
	h := salt
	for i := 0; i < len(str); i++ {
		h = Hash(h^uint32(str[i]), salt+uint32(i), 0xFFFFFFFF)
	}
	return h
}

// Bucket assigns name to one of buckets. The result only depends on the name and the salt,
// so it does not change when other names are added or removed.
func Bucket(name string, salt, buckets uint32) uint32 {
	return Hash(String(name, salt), salt, buckets)
}
