package security

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"

	"golang.org/x/crypto/argon2"
)

// CharacterSet is the alphabet used for generated salts.
const CharacterSet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// SaltLength is the length of generated password salts.
const SaltLength = 32

// Default argon2 cost parameters, per the x/crypto recommendations.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// RandString returns a random string of the given length drawn from the
// provided alphabet, using crypto/rand.
func RandString(length int, alphabet string) string {
	out := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform entropy source is
			// broken; nothing sensible can continue from there.
			panic(err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out)
}

// NewSalt generates a fresh 32-character alphanumeric salt.
func NewSalt() string {
	return RandString(SaltLength, CharacterSet)
}

// HashPassword derives the stored password hash from a password and salt
// using argon2 with default cost parameters.
func HashPassword(password, salt string) []byte {
	return argon2.IDKey([]byte(password), []byte(salt), argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifyPassword recomputes the hash for the supplied password and salt and
// compares it against the stored hash in constant time.
func VerifyPassword(password, salt string, hash []byte) bool {
	computed := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(computed, hash) == 1
}
