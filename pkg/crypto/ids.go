package crypto

import (
	"crypto/rand"
	"errors"
	"math"

	"github.com/google/uuid"

	"github.com/lborres/gatekeep/core"
)

var (
	_ core.IDGenerator = UUIDGenerator{}
	_ core.IDGenerator = (*NanoIDGenerator)(nil)
)

// UUIDGenerator issues random (version 4) UUIDs. It is the default.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

const (
	defaultAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
	defaultSize     = 22 // 22 * 6 = 132 bits (uuid is 128 bits) of entropy
	maxAlphabetSize = 255
	minAlphabetSize = 8
)

var (
	ErrAlphabetTooLong  = errors.New("alphabet must contain no more than 255 characters")
	ErrAlphabetTooShort = errors.New("alphabet must contain at least 8 characters")
	ErrAlphabetNotASCII = errors.New("alphabet must contain only ASCII characters")
)

// NanoIDGenerator issues short URL-safe random ids.
type NanoIDGenerator struct {
	alphabet string
	mask     byte
	size     int
}

// NewNanoID builds a generator over alphabet (default URL-safe set when
// empty) producing ids of size characters (default 22 when size <= 0).
func NewNanoID(alphabet string, size int) (*NanoIDGenerator, error) {
	if alphabet == "" {
		alphabet = defaultAlphabet
	}
	if size <= 0 {
		size = defaultSize
	}

	// Generate indexes by byte position, so multi-byte runes are rejected.
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] > 127 {
			return nil, ErrAlphabetNotASCII
		}
	}
	switch {
	case len(alphabet) > maxAlphabetSize:
		return nil, ErrAlphabetTooLong
	case len(alphabet) < minAlphabetSize:
		return nil, ErrAlphabetTooShort
	}

	return &NanoIDGenerator{alphabet: alphabet, mask: maskFor(len(alphabet)), size: size}, nil
}

// maskFor returns the smallest 2^n-1 covering every alphabet index.
func maskFor(alphabetLen int) byte {
	mask := 1
	for mask < alphabetLen-1 {
		mask = mask<<1 | 1
	}
	return byte(mask)
}

func (n *NanoIDGenerator) NewID() (string, error) {
	alphabetLen := len(n.alphabet)
	step := int(math.Ceil(1.6 * float64(int(n.mask)*n.size) / float64(alphabetLen)))

	id := make([]byte, 0, n.size)
	buffer := make([]byte, step)

	for len(id) < n.size {
		if _, err := rand.Read(buffer); err != nil {
			return "", err
		}
		for _, b := range buffer {
			// rejection sampling keeps the distribution uniform
			if index := int(b & n.mask); index < alphabetLen {
				id = append(id, n.alphabet[index])
				if len(id) == n.size {
					break
				}
			}
		}
	}

	return string(id), nil
}
