package randcode

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const digits = "0123456789"

var ErrInvalidLength = errors.New("randcode: length must be positive")

// GenerateNumericCode returns a code of length decimal digits drawn from crypto/rand.
// Leading zeros are kept, so "004217" is a valid 6 digit code.
func GenerateNumericCode(length int) (string, error) {
	return generate(length, digits)
}

func generate(length int, alphabet string) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}

	upper := big.NewInt(int64(len(alphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, upper)
		if err != nil {
			return "", err
		}
		b[i] = alphabet[n.Int64()]
	}

	return string(b), nil
}
