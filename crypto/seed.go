package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
)

// SeedBytes is the amount of entropy behind every server seed.
const SeedBytes = 32

// GenerateServerSeed reads SeedBytes from r (crypto/rand when nil) and returns
// the hex-encoded seed together with its public sha256 hash.
func GenerateServerSeed(r io.Reader) (seed string, hash string, err error) {
	if r == nil {
		r = rand.Reader
	}
	bytes := make([]byte, SeedBytes)
	if _, err := io.ReadFull(r, bytes); err != nil {
		return "", "", fmt.Errorf("read seed entropy: %w", err)
	}

	seed = hex.EncodeToString(bytes)
	hash = HashSeed(seed)
	return seed, hash, nil
}

// HashSeed returns the hex sha256 of the seed's text form.
func HashSeed(seed string) string {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:])
}

func VerifySeed(seed, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashSeed(seed)), []byte(hash)) == 1
}
