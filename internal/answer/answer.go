// Package answer produces uniformly random yes/no answers.
package answer

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// The two possible answers.
const (
	Yes = "yes"
	No  = "no"
)

// Source draws one answer. Implementations must return exactly Yes or No.
type Source interface {
	Draw() (string, error)
}

// CryptoSource draws answers from crypto/rand. The bounded-range read
// guarantees a uniform pick over the two outcomes; there is no modulo or
// float comparison to skew it.
type CryptoSource struct{}

var _ Source = CryptoSource{}

var two = big.NewInt(2)

func (CryptoSource) Draw() (string, error) {
	n, err := rand.Int(rand.Reader, two)
	if err != nil {
		return "", fmt.Errorf("error reading random source: %w", err)
	}
	if n.Sign() == 0 {
		return No, nil
	}
	return Yes, nil
}

// Fixed is a Source that always returns the same answer. It exists for
// tests that need a deterministic outcome.
type Fixed string

var _ Source = Fixed("")

func (f Fixed) Draw() (string, error) {
	return string(f), nil
}
