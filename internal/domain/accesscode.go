package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// AccessCodeAlphabet leaves out characters that read alike (0/O, 1/I).
const AccessCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultAccessCodeLength matches the codes sent in invitation emails.
const DefaultAccessCodeLength = 6

// NewAccessCode draws a code of n characters from AccessCodeAlphabet.
func NewAccessCode(n int) (string, error) {
	if n <= 0 {
		n = DefaultAccessCodeLength
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate access code: %w", err)
	}
	for i := range buf {
		buf[i] = AccessCodeAlphabet[int(buf[i])%len(AccessCodeAlphabet)]
	}
	return string(buf), nil
}

// NormalizeAccessCode upper-cases and trims a code typed by a user.
func NormalizeAccessCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
