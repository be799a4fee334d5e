/*
Package security provides password hashing for manager credentials.

Passwords are never stored; the catalog keeps a random 32-character
alphanumeric salt and an argon2-derived hash per manager. Verification
recomputes the hash and compares in constant time.

# Usage

	salt := security.NewSalt()
	hash := security.HashPassword(password, salt)

	// later, on authentication
	if !security.VerifyPassword(password, manager.Salt, manager.Hash) {
		// reject
	}

# Design Notes

  - argon2 (memory-hard KDF) with the x/crypto default cost parameters
  - constant-time comparison via crypto/subtle
  - salts come from crypto/rand, not math/rand

# Integration Points

  - pkg/catalog: RegisterManager and AuthManager are the only callers
*/
package security
