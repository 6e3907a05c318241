// Package keygen produces activation key strings.
package keygen

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// Alphabet is the set of characters a key segment is drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	segments      = 3
	segmentLength = 4
)

// DefaultPrefix is used when a caller does not supply one.
const DefaultPrefix = "ECP"

// Generator produces candidate activation keys. Candidates are not
// guaranteed unique; the store's unique constraint decides.
type Generator interface {
	Generate(prefix string) (string, error)
}

// Random draws key characters from a cryptographically secure source.
type Random struct {
	src io.Reader
}

// New returns a generator backed by crypto/rand.
func New() *Random {
	return &Random{src: rand.Reader}
}

// NewWithSource returns a generator reading randomness from src.
func NewWithSource(src io.Reader) *Random {
	return &Random{src: src}
}

// Generate returns a key of the form PREFIX-XXXX-XXXX-XXXX. Each character is
// drawn uniformly and independently from Alphabet.
func (g *Random) Generate(prefix string) (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	var b strings.Builder
	b.Grow(len(prefix) + segments*(segmentLength+1))
	b.WriteString(prefix)
	for i := 0; i < segments; i++ {
		b.WriteByte('-')
		for j := 0; j < segmentLength; j++ {
			n, err := rand.Int(g.src, max)
			if err != nil {
				return "", fmt.Errorf("reading random source: %w", err)
			}
			b.WriteByte(Alphabet[n.Int64()])
		}
	}
	return b.String(), nil
}

// Generate returns a key from the default generator.
func Generate(prefix string) (string, error) {
	return New().Generate(prefix)
}

// Valid reports whether value has the shape PREFIX-XXXX-XXXX-XXXX with
// a non-empty prefix and segments drawn from Alphabet.
func Valid(value string) bool {
	parts := strings.Split(value, "-")
	if len(parts) < segments+1 {
		return false
	}
	// The prefix itself may contain dashes; the last three parts are the segments.
	prefix := strings.Join(parts[:len(parts)-segments], "-")
	if prefix == "" {
		return false
	}
	for _, seg := range parts[len(parts)-segments:] {
		if len(seg) != segmentLength {
			return false
		}
		for i := 0; i < len(seg); i++ {
			if strings.IndexByte(Alphabet, seg[i]) < 0 {
				return false
			}
		}
	}
	return true
}
