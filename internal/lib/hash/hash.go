// Package hash wraps bcrypt behind the session service's hashing interface.
package hash

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

type Bcrypt struct {
	cost int
}

func NewBcrypt() Bcrypt {
	return Bcrypt{cost: bcrypt.DefaultCost}
}

func (b Bcrypt) Hash(password string) ([]byte, error) {
	const op = "lib.hash.Hash"

	h, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return h, nil
}

func (b Bcrypt) Verify(password string, hash []byte) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}
