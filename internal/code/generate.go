package code

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet deliberately omits ambiguous characters (0/O, 1/I) so codes
// survive being read aloud or retyped from a screenshot.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generatedCodeLength gives 32^8 ≈ 1.1e12 possible codes, which keeps the
// collision retry loop a formality rather than a load-bearing mechanism.
const generatedCodeLength = 8

// maxGenerateAttempts bounds the collision retry loop in Issue. Exhausting
// it signals the code space is under-provisioned.
const maxGenerateAttempts = 10

// generateCode draws a random code from the alphabet using crypto/rand.
func generateCode() (string, error) {
	buf := make([]byte, generatedCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
