// Package wallet holds the signing account and sends contract transactions
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/mbd888/tenderbid/internal/tender"
)

// -----------------------------------------------------------------------------
// Errors - typed errors for programmatic handling
// -----------------------------------------------------------------------------

var (
	ErrInvalidPrivateKey = errors.New("wallet: invalid private key")
	ErrTransactionFailed = errors.New("wallet: transaction reverted")
	ErrRPCConnection     = errors.New("wallet: RPC connection failed")
	ErrNoAccount         = errors.New("wallet: no account connected")
)

// TxError wraps transaction failures with context
type TxError struct {
	Op     string // Step that failed
	TxHash string // Transaction hash if available
	Err    error  // Underlying error
}

func (e *TxError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("wallet: %s failed (tx: %s): %v", e.Op, e.TxHash, e.Err)
	}
	return fmt.Sprintf("wallet: %s failed: %v", e.Op, e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }

// -----------------------------------------------------------------------------
// Interfaces - for testability and flexibility
// -----------------------------------------------------------------------------

// EthClient abstracts go-ethereum client for testing
type EthClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	NetworkID(ctx context.Context) (*big.Int, error)
	Close()
}

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	// DefaultGasLimit is used when gas estimation is unavailable
	DefaultGasLimit = uint64(500000)

	// DefaultPollInterval between receipt checks
	DefaultPollInterval = 2 * time.Second
)

// -----------------------------------------------------------------------------
// Types
// -----------------------------------------------------------------------------

// Config for creating a new wallet
type Config struct {
	RPCURL       string
	PrivateKey   string // Hex string, with or without 0x prefix
	ChainID      int64
	GasLimit     uint64        // fallback when estimation is unavailable
	PollInterval time.Duration // between receipt checks
}

// Option configures the wallet
type Option func(*Wallet)

// WithClient sets a custom Ethereum client (useful for testing)
func WithClient(client EthClient) Option {
	return func(w *Wallet) {
		w.client = client
	}
}

// account is the signer handed to the session.
type account struct {
	address common.Address
}

func (a account) Address() common.Address { return a.address }

// Wallet signs and sends transactions for the connected account.
type Wallet struct {
	client       EthClient
	chainID      *big.Int
	gasLimit     uint64
	pollInterval time.Duration

	mu        sync.RWMutex
	key       *ecdsa.PrivateKey
	address   common.Address
	listeners map[int]func(common.Address, bool)
	nextID    int
}

// Compile-time interface check
var _ tender.Wallet = (*Wallet)(nil)

// New creates a new Wallet instance
func New(cfg Config, opts ...Option) (*Wallet, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	key, err := parseKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	w := &Wallet{
		chainID:      big.NewInt(cfg.ChainID),
		gasLimit:     cfg.GasLimit,
		pollInterval: cfg.PollInterval,
		key:          key,
		address:      crypto.PubkeyToAddress(key.PublicKey),
		listeners:    make(map[int]func(common.Address, bool)),
	}
	if w.gasLimit == 0 {
		w.gasLimit = DefaultGasLimit
	}
	if w.pollInterval <= 0 {
		w.pollInterval = DefaultPollInterval
	}

	// Apply options
	for _, opt := range opts {
		opt(w)
	}

	// Connect to RPC if no client provided
	if w.client == nil {
		client, err := ethclient.Dial(cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRPCConnection, err)
		}
		w.client = client
	}

	return w, nil
}

func validateConfig(cfg Config) error {
	if cfg.RPCURL == "" {
		return fmt.Errorf("%w: RPC URL required", ErrRPCConnection)
	}
	if cfg.PrivateKey == "" {
		return fmt.Errorf("%w: private key required", ErrInvalidPrivateKey)
	}
	if cfg.ChainID == 0 {
		return fmt.Errorf("chain ID required")
	}
	return nil
}

func parseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	// Allow both with and without 0x prefix
	key := strings.TrimPrefix(hexKey, "0x")
	if len(key) != 64 {
		return nil, fmt.Errorf("%w: must be 64 hex characters", ErrInvalidPrivateKey)
	}
	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return privateKey, nil
}

// -----------------------------------------------------------------------------
// Account capability
// -----------------------------------------------------------------------------

// Address returns the connected account, or "" when disconnected
func (w *Wallet) Address() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.key == nil {
		return ""
	}
	return w.address.Hex()
}

// Signer returns the connected account.
func (w *Wallet) Signer() (tender.Signer, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.key == nil {
		return nil, fmt.Errorf("%w: %v", tender.ErrBoundaryUnavailable, ErrNoAccount)
	}
	return account{address: w.address}, nil
}

// OnAccountChanged registers fn for account switches and disconnects.
func (w *Wallet) OnAccountChanged(fn func(addr common.Address, connected bool)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

// SwitchAccount replaces the signing key and notifies listeners.
func (w *Wallet) SwitchAccount(hexKey string) error {
	key, err := parseKey(hexKey)
	if err != nil {
		return err
	}
	addr := crypto.PubkeyToAddress(key.PublicKey)

	w.mu.Lock()
	w.key = key
	w.address = addr
	listeners := w.snapshotListeners()
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(addr, true)
	}
	return nil
}

// Disconnect drops the signing key and notifies listeners.
func (w *Wallet) Disconnect() {
	w.mu.Lock()
	w.key = nil
	w.address = common.Address{}
	listeners := w.snapshotListeners()
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(common.Address{}, false)
	}
}

// snapshotListeners must be called with w.mu held.
func (w *Wallet) snapshotListeners() []func(common.Address, bool) {
	out := make([]func(common.Address, bool), 0, len(w.listeners))
	for _, fn := range w.listeners {
		out = append(out, fn)
	}
	return out
}

func (w *Wallet) current() (*ecdsa.PrivateKey, common.Address, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.key == nil {
		return nil, common.Address{}, fmt.Errorf("%w: %v", tender.ErrBoundaryUnavailable, ErrNoAccount)
	}
	return w.key, w.address, nil
}

// -----------------------------------------------------------------------------
// Calls and transactions
// -----------------------------------------------------------------------------

// Call runs a read-only contract call from the connected account, so
// contracts that gate views on msg.sender see the right caller.
func (w *Wallet) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}
	if _, from, err := w.current(); err == nil {
		msg.From = from
	}
	out, err := w.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, Classify(err)
	}
	return out, nil
}

// Send signs and broadcasts a contract call, then waits for it to be mined.
// There is no timeout beyond ctx.
func (w *Wallet) Send(ctx context.Context, to common.Address, data []byte) (*tender.Receipt, error) {
	key, from, err := w.current()
	if err != nil {
		return nil, err
	}

	nonce, err := w.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, &TxError{Op: "nonce", Err: Classify(err)}
	}

	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &TxError{Op: "gas_price", Err: Classify(err)}
	}

	gasLimit, err := w.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: big.NewInt(0),
		Data:  data,
	})
	if err != nil {
		// A node that answers with an error is predicting a revert.
		if classified := Classify(err); errors.Is(classified, tender.ErrBoundaryRejected) {
			return nil, &TxError{Op: "estimate_gas", Err: classified}
		}
		gasLimit = w.gasLimit
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(w.chainID), key)
	if err != nil {
		return nil, &TxError{Op: "sign", Err: err}
	}

	if err := w.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, &TxError{Op: "send", TxHash: signedTx.Hash().Hex(), Err: Classify(err)}
	}

	return w.WaitMined(ctx, signedTx.Hash())
}

// WaitMined polls for the receipt of hash until it is mined or ctx ends.
func (w *Wallet) WaitMined(ctx context.Context, hash common.Hash) (*tender.Receipt, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return nil, &TxError{
					Op:     "confirm",
					TxHash: hash.Hex(),
					Err:    fmt.Errorf("%w: %v", tender.ErrBoundaryRejected, ErrTransactionFailed),
				}
			}
			out := &tender.Receipt{TxHash: hash.Hex(), GasUsed: receipt.GasUsed}
			if receipt.BlockNumber != nil {
				out.BlockNumber = receipt.BlockNumber.Uint64()
			}
			return out, nil
		case errors.Is(err, ethereum.NotFound):
			// Not mined yet
		default:
			return nil, &TxError{Op: "receipt", TxHash: hash.Hex(), Err: Classify(err)}
		}

		select {
		case <-ctx.Done():
			return nil, &TxError{Op: "confirm", TxHash: hash.Hex(), Err: ctx.Err()}
		case <-ticker.C:
		}
	}
}

// Ping checks that the RPC endpoint answers
func (w *Wallet) Ping(ctx context.Context) error {
	if _, err := w.client.NetworkID(ctx); err != nil {
		return Classify(err)
	}
	return nil
}

// Close closes the client connection
func (w *Wallet) Close() error {
	if w.client != nil {
		w.client.Close()
	}
	return nil
}

// Classify maps an RPC error onto the boundary taxonomy. An error response
// from the node (revert, bad params) is a rejection; anything that kept the
// request from being answered means the provider is unavailable.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, tender.ErrBoundaryRejected) || errors.Is(err, tender.ErrBoundaryUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%w: %v", tender.ErrBoundaryRejected, err)
	}
	return fmt.Errorf("%w: %v", tender.ErrBoundaryUnavailable, err)
}
