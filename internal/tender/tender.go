// Package tender keeps the client-side view of one procurement contract and
// drives every read and write against it.
//
// Flow:
//  1. Owner creates a contract through the factory and loads it
//  2. Owner whitelists bidders and sets the bidding duration
//  3. Whitelisted bidders submit bid payloads while the window is open
//  4. Owner ends bidding; the ledger is rebuilt and the lowest bid ranked
//
// The contract enforces every rule on chain. The session only mirrors what
// the contract reports and rejects actions that would obviously fail before
// any transaction is sent.
package tender

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mbd888/tenderbid/internal/bidcodec"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	ErrInvalidAddress      = errors.New("tender: invalid address")
	ErrInvalidAmount       = bidcodec.ErrInvalidAmount
	ErrMalformedPayload    = bidcodec.ErrMalformedPayload
	ErrInvalidDuration     = errors.New("tender: invalid bid duration")
	ErrNotLoaded           = errors.New("tender: no contract loaded")
	ErrNotWhitelisted      = errors.New("tender: address not whitelisted")
	ErrBiddingClosed       = errors.New("tender: bidding closed")
	ErrNotOwner            = errors.New("tender: caller is not the contract owner")
	ErrBoundaryUnavailable = errors.New("tender: wallet or provider unavailable")
	ErrBoundaryRejected    = errors.New("tender: call rejected")
)

// BoundaryError wraps a failed contract call with its method and transaction.
type BoundaryError struct {
	Method string // ABI method name
	TxHash string // set once a transaction was sent
	Err    error
}

func (e *BoundaryError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("tender: %s failed (tx: %s): %v", e.Method, e.TxHash, e.Err)
	}
	return fmt.Sprintf("tender: %s failed: %v", e.Method, e.Err)
}

func (e *BoundaryError) Unwrap() error { return e.Err }

// IsLocal reports whether err was raised by local validation, before any
// contract call.
func IsLocal(err error) bool {
	return errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrNotLoaded) ||
		errors.Is(err, ErrNotWhitelisted) ||
		errors.Is(err, ErrBiddingClosed) ||
		errors.Is(err, ErrNotOwner)
}

// -----------------------------------------------------------------------------
// Interfaces - the contract boundary and the wallet capability
// -----------------------------------------------------------------------------

// Receipt is the mined result of a transaction.
type Receipt struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
}

// Contract is one deployed procurement contract. Writes return only after the
// transaction is mined.
type Contract interface {
	Owner(ctx context.Context) (common.Address, error)
	BiddingEndTime(ctx context.Context) (int64, error)
	Ended(ctx context.Context) (bool, error)
	CheckIfWhitelisted(ctx context.Context, addr common.Address) (bool, error)
	GetWhitelist(ctx context.Context) ([]common.Address, error)
	// GetBids returns the amount and address payloads as 0x-prefixed hex,
	// positionally paired.
	GetBids(ctx context.Context) (amounts, addresses []string, err error)

	WhitelistBidder(ctx context.Context, addr common.Address) (*Receipt, error)
	RemoveWhitelistBidder(ctx context.Context, addr common.Address) (*Receipt, error)
	SetBidDuration(ctx context.Context, seconds int64) (*Receipt, error)
	SubmitBid(ctx context.Context, payload []byte) (*Receipt, error)
	EndBidding(ctx context.Context) (*Receipt, error)
}

// Factory deploys procurement contracts and lists them by owner.
type Factory interface {
	GetContractsByOwner(ctx context.Context, owner common.Address) ([]common.Address, error)
	CreateProcurementContract(ctx context.Context) (*Receipt, error)
}

// Dialer binds a contract address to a Contract.
type Dialer interface {
	Procurement(addr common.Address) Contract
}

// Signer is the account that signs transactions.
type Signer interface {
	Address() common.Address
}

// Wallet exposes the current signer and account switches.
type Wallet interface {
	// Signer fails with ErrBoundaryUnavailable while no account is connected.
	Signer() (Signer, error)
	// OnAccountChanged registers fn and returns a function that removes it.
	// connected is false when the wallet no longer has an account.
	OnAccountChanged(fn func(addr common.Address, connected bool)) (unsubscribe func())
}

// -----------------------------------------------------------------------------
// Address helpers
// -----------------------------------------------------------------------------

// ParseAddress accepts 0x followed by exactly 40 hex digits, any case.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if len(s) != 42 || !strings.HasPrefix(s, "0x") || !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// SameAddress compares two addresses without regard to case.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
