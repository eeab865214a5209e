package contract

import (
	"math/big"
	"strings"
	"testing"

	"aviatorServer/game"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestRoundKeyIsStable(t *testing.T) {
	if RoundKey("round-1") != RoundKey("round-1") {
		t.Fatal("round key must be deterministic")
	}
	if RoundKey("round-1") == RoundKey("round-2") {
		t.Fatal("distinct rounds must have distinct keys")
	}
}

func TestCommitPacksRoundAndHash(t *testing.T) {
	parsed, err := parseABI()
	if err != nil {
		t.Fatal(err)
	}
	hash := strings.Repeat("ab", 32)

	args, err := commitArgs("round-7", hash)
	if err != nil {
		t.Fatal(err)
	}
	input, err := parsed.Pack("commitRound", args...)
	if err != nil {
		t.Fatal(err)
	}

	selector := crypto.Keccak256([]byte("commitRound(bytes32,bytes32)"))[:4]
	if string(input[:4]) != string(selector) {
		t.Errorf("unexpected selector %x", input[:4])
	}
	if got := common.BytesToHash(input[36:68]); got != common.HexToHash(hash) {
		t.Errorf("hash word = %s", got.Hex())
	}
}

func TestRevealPacksMultiplierAsWei(t *testing.T) {
	parsed, err := parseABI()
	if err != nil {
		t.Fatal(err)
	}
	args, err := revealArgs(game.FinishedRound{RoundID: "round-7", Seed: "0x" + strings.Repeat("11", 32), FinalMultiplier: 2, Forced: true})
	if err != nil {
		t.Fatal(err)
	}
	input, err := parsed.Pack("revealRound", args...)
	if err != nil {
		t.Fatal(err)
	}

	values, err := parsed.Methods["revealRound"].Inputs.Unpack(input[4:])
	if err != nil {
		t.Fatal(err)
	}
	wei := values[2].(*big.Int)
	want := new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18))
	if wei.Cmp(want) != 0 {
		t.Errorf("multiplier = %s, want %s", wei, want)
	}
	if forced := values[3].(bool); !forced {
		t.Error("forced flag lost")
	}
}

func TestMalformedWordsAreRejected(t *testing.T) {
	if _, err := commitArgs("r", "abcd"); err == nil {
		t.Error("short hash should be rejected")
	}
	if _, err := revealArgs(game.FinishedRound{RoundID: "r", Seed: "zz"}); err == nil {
		t.Error("non-hex seed should be rejected")
	}
}
