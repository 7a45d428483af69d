package helpers

import "golang.org/x/crypto/bcrypt"

// PasswordHasher wraps bcrypt with a configurable cost factor. bcrypt salts
// every hash, so the same plaintext never produces the same stored value, and
// comparison is constant-time inside the library.
type PasswordHasher struct {
	Cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{Cost: cost}
}

// Hash returns the bcrypt hash of plain. A failure here must abort the calling
// operation; there is no fallback that stores plaintext.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Check reports whether plain matches the stored bcrypt hash.
func (h *PasswordHasher) Check(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
