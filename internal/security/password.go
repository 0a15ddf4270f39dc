package security

import "golang.org/x/crypto/bcrypt"

// HashPassword hashes a plain text password with bcrypt. The salt is
// embedded in the returned hash.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// VerifyPassword compares a bcrypt hash with a plaintext password. A
// malformed stored hash verifies as false rather than surfacing an error,
// so a corrupt row can never turn into an auth bypass.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
