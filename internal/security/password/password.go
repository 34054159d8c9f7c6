package password

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// CostEnvKey is the env var controlling the bcrypt work factor.
const CostEnvKey = "PORTAL_BCRYPT_COST"

// ErrInvalidCost is returned when the configured work factor is out of bounds.
var ErrInvalidCost = errors.New("invalid bcrypt cost")

// Hasher is the abstract one-way hash/verify capability consumed by the
// session service.
type Hasher interface {
	// Hash returns an opaque hash of the plaintext.
	Hash(plain string) (string, error)
	// Verify reports whether plain matches the stored hash. A malformed hash
	// verifies false without error; the stored value is untrusted input.
	Verify(plain, hash string) bool
}

// Bcrypt implements Hasher using golang.org/x/crypto/bcrypt.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a Hasher with the given work factor.
// A cost of 0 selects bcrypt.DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, ErrInvalidCost
	}
	return &Bcrypt{cost: cost}, nil
}

// NewBcryptFromEnv reads PORTAL_BCRYPT_COST (default bcrypt.DefaultCost).
func NewBcryptFromEnv() (*Bcrypt, error) {
	v := strings.TrimSpace(os.Getenv(CostEnvKey))
	if v == "" {
		return NewBcrypt(0)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, ErrInvalidCost
	}
	return NewBcrypt(n)
}

func (b *Bcrypt) Hash(plain string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (b *Bcrypt) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
