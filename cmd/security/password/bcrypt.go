package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

func (c Config) hashBcrypt(plain string) (Encoded, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), c.Bcrypt.Cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("%w: bcrypt: %w", ErrHashing, err)
	}
	return Encoded(b), nil
}

func (c Config) verifyBcrypt(encoded Encoded, plain string) (bool, error) {
	cost, err := bcryptCost(encoded)
	if err != nil || cost > maxBcryptCost {
		return false, ErrInvalidHash
	}

	err = bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrInvalidHash
	}
}

func bcryptCost(encoded Encoded) (int, error) {
	return bcrypt.Cost([]byte(encoded))
}
