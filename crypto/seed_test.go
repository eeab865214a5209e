package crypto

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestGenerateServerSeed(t *testing.T) {
	t.Run("Random", func(t *testing.T) {
		seed, hash, err := GenerateServerSeed(nil)
		if err != nil {
			t.Fatalf("GenerateServerSeed failed: %v", err)
		}
		if len(seed) != 2*SeedBytes {
			t.Errorf("expected %d hex chars, got %d", 2*SeedBytes, len(seed))
		}
		if !VerifySeed(seed, hash) {
			t.Error("hash should verify against its own seed")
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		src := bytes.Repeat([]byte{0xab}, SeedBytes)
		seed, hash, err := GenerateServerSeed(bytes.NewReader(src))
		if err != nil {
			t.Fatalf("GenerateServerSeed failed: %v", err)
		}
		if seed != strings.Repeat("ab", SeedBytes) {
			t.Errorf("unexpected seed %s", seed)
		}
		if hash != HashSeed(seed) {
			t.Errorf("hash mismatch")
		}
	})

	t.Run("ShortEntropy", func(t *testing.T) {
		_, _, err := GenerateServerSeed(bytes.NewReader([]byte{1, 2, 3}))
		if err == nil {
			t.Fatal("expected error for short entropy")
		}
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("expected unexpected EOF, got %v", err)
		}
	})
}

func TestVerifySeed(t *testing.T) {
	seed := strings.Repeat("0", 64)
	hash := HashSeed(seed)
	if !VerifySeed(seed, hash) {
		t.Error("expected valid")
	}
	if VerifySeed(seed, strings.Repeat("f", 64)) {
		t.Error("expected invalid for wrong hash")
	}
	if VerifySeed(seed+"1", hash) {
		t.Error("expected invalid for wrong seed")
	}
}
