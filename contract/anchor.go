package contract

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"aviatorServer/config"
	"aviatorServer/game"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// roundAnchorABI covers the two calls the server makes. The contract stores
// the hash at commit time and rejects a reveal whose seed does not hash to it.
const roundAnchorABI = `[
	{"type":"function","name":"commitRound","stateMutability":"nonpayable","inputs":[
		{"name":"roundId","type":"bytes32"},
		{"name":"seedHash","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"revealRound","stateMutability":"nonpayable","inputs":[
		{"name":"roundId","type":"bytes32"},
		{"name":"seed","type":"bytes32"},
		{"name":"multiplier","type":"uint256"},
		{"name":"forced","type":"bool"}],"outputs":[]}
]`

const defaultGasLimit = uint64(200000)

// RoundAnchor publishes each round's commitment and reveal on chain. It
// satisfies engine.RoundService so it can sit next to the database store.
type RoundAnchor struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	abi      abi.ABI
	address  common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	logger   *zap.Logger

	// Serializes sends so pending-nonce lookups do not collide.
	mu sync.Mutex
}

func parseABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(roundAnchorABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	return parsed, nil
}

// NewRoundAnchor dials the RPC endpoint and loads the signing key.
func NewRoundAnchor(ctx context.Context, cfg config.Config, logger *zap.Logger) (*RoundAnchor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	contractABI, err := parseABI()
	if err != nil {
		return nil, err
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.ServerPrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	publicKey, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to get public key")
	}

	client, err := ethclient.DialContext(ctx, cfg.AnchorRPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.AnchorRPCURL, err)
	}

	address := common.HexToAddress(cfg.AnchorContract)
	a := &RoundAnchor{
		client:   client,
		contract: bind.NewBoundContract(address, contractABI, client, client, client),
		abi:      contractABI,
		address:  address,
		key:      key,
		from:     crypto.PubkeyToAddress(*publicKey),
		chainID:  big.NewInt(cfg.AnchorChainID),
		logger:   logger.Named("anchor"),
	}
	a.logger.Info("✅ Round anchor initialized",
		zap.String("contract", address.Hex()),
		zap.String("signer", a.from.Hex()))
	return a, nil
}

// RoundKey maps a round id onto the contract's bytes32 key.
func RoundKey(roundID string) common.Hash {
	return crypto.Keccak256Hash([]byte(roundID))
}

func hexWord(name, value string) (common.Hash, error) {
	b := common.FromHex(value)
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%s must be %d bytes, got %d", name, common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

func commitArgs(roundID, publicHash string) ([]any, error) {
	hash, err := hexWord("public hash", publicHash)
	if err != nil {
		return nil, err
	}
	return []any{RoundKey(roundID), hash}, nil
}

func revealArgs(r game.FinishedRound) ([]any, error) {
	seed, err := hexWord("seed", r.Seed)
	if err != nil {
		return nil, err
	}
	return []any{RoundKey(r.RoundID), seed, config.MultiplierToWei(r.FinalMultiplier), r.Forced}, nil
}

// CreateRound commits the round's public hash.
func (a *RoundAnchor) CreateRound(ctx context.Context, roundID, publicHash string) error {
	args, err := commitArgs(roundID, publicHash)
	if err != nil {
		return fmt.Errorf("anchor commit %s: %w", roundID, err)
	}
	return a.send(ctx, "commitRound", args...)
}

// FinishRound reveals the seed and final multiplier.
func (a *RoundAnchor) FinishRound(ctx context.Context, r game.FinishedRound) error {
	args, err := revealArgs(r)
	if err != nil {
		return fmt.Errorf("anchor reveal %s: %w", r.RoundID, err)
	}
	return a.send(ctx, "revealRound", args...)
}

// send signs and submits a call without waiting for confirmation.
func (a *RoundAnchor) send(ctx context.Context, method string, args ...any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	auth, err := bind.NewKeyedTransactorWithChainID(a.key, a.chainID)
	if err != nil {
		return fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx
	auth.Value = big.NewInt(0)

	nonce, err := a.client.PendingNonceAt(ctx, a.from)
	if err != nil {
		return fmt.Errorf("failed to get nonce: %w", err)
	}
	auth.Nonce = new(big.Int).SetUint64(nonce)

	input, err := a.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", method, err)
	}
	gasLimit, err := a.client.EstimateGas(ctx, ethereum.CallMsg{From: a.from, To: &a.address, Data: input})
	if err != nil {
		a.logger.Warn("⚠️ Gas estimation failed, using default", zap.String("method", method), zap.Error(err))
		auth.GasLimit = defaultGasLimit
	} else {
		auth.GasLimit = gasLimit + gasLimit/5
	}

	tx, err := a.contract.Transact(auth, method, args...)
	if err != nil {
		return fmt.Errorf("%s transact: %w", method, err)
	}
	a.logger.Info("📤 Anchor tx sent",
		zap.String("method", method),
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("gasLimit", auth.GasLimit))
	return nil
}

// Close closes the RPC connection.
func (a *RoundAnchor) Close() {
	a.client.Close()
}
