// Package hasher provides one-way password transforms used to store and
// verify account credentials. Repositories depend on the Hasher interface so
// the algorithm can be swapped without touching storage code.
package hasher

// Hasher hashes passwords for storage and verifies candidates against a
// stored hash.
type Hasher interface {
	// Hash returns the encoded hash of password.
	Hash(password string) (string, error)

	// Verify reports whether password matches the encoded hash.
	// A malformed hash never matches.
	Verify(hash, password string) bool
}

// Default returns the hasher used when none is configured.
func Default() Hasher {
	return NewBcrypt(0)
}
