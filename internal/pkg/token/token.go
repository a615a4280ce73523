package token

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// NewOTPCode returns a six-digit code drawn uniformly from 100000-999999.
func NewOTPCode() (string, error) {
	return newOTPCode(rand.Reader)
}

func newOTPCode(r io.Reader) (string, error) {
	n, err := rand.Int(r, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}
