// Package chain binds the procurement contract and its factory to go-ethereum.
// It is the only package that knows the ABI; everything above it works with
// tender.Contract and tender.Factory.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/mbd888/tenderbid/internal/bidcodec"
	"github.com/mbd888/tenderbid/internal/metrics"
	"github.com/mbd888/tenderbid/internal/tender"
	"github.com/mbd888/tenderbid/internal/traces"
	"github.com/mbd888/tenderbid/internal/wallet"
)

// Backend executes calls and transactions for the connected account.
// *wallet.Wallet implements it.
type Backend interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	Send(ctx context.Context, to common.Address, data []byte) (*tender.Receipt, error)
}

var _ Backend = (*wallet.Wallet)(nil)

// Client holds the parsed ABIs and hands out contract bindings.
type Client struct {
	backend     Backend
	procurement abi.ABI
	factory     abi.ABI
}

var _ tender.Dialer = (*Client)(nil)

// New parses both ABIs.
func New(backend Backend) (*Client, error) {
	procurement, err := abi.JSON(strings.NewReader(procurementABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse procurement ABI: %w", err)
	}
	factory, err := abi.JSON(strings.NewReader(factoryABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %w", err)
	}
	return &Client{backend: backend, procurement: procurement, factory: factory}, nil
}

// Procurement binds the procurement contract at addr.
func (c *Client) Procurement(addr common.Address) tender.Contract {
	return &Procurement{binding{backend: c.backend, abi: c.procurement, addr: addr}}
}

// Factory binds the factory contract at addr.
func (c *Client) Factory(addr common.Address) *Factory {
	return &Factory{binding{backend: c.backend, abi: c.factory, addr: addr}}
}

// -----------------------------------------------------------------------------
// binding - shared call/transact plumbing
// -----------------------------------------------------------------------------

type binding struct {
	backend Backend
	abi     abi.ABI
	addr    common.Address
}

func (b binding) call(ctx context.Context, method string, args ...interface{}) (out []interface{}, err error) {
	ctx, span := traces.StartSpan(ctx, "chain.call."+method, traces.Contract(b.addr.Hex()), traces.Method(method))
	started := time.Now()
	defer func() {
		metrics.ObserveBoundaryCall(method, resultLabel(err), started)
		traces.End(span, err)
	}()

	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, &tender.BoundaryError{Method: method, Err: fmt.Errorf("pack: %w", err)}
	}

	raw, err := b.backend.Call(ctx, b.addr, data)
	if err != nil {
		return nil, &tender.BoundaryError{Method: method, Err: err}
	}

	out, err = b.abi.Unpack(method, raw)
	if err != nil {
		// An empty or short return usually means no contract lives at addr.
		return nil, &tender.BoundaryError{
			Method: method,
			Err:    fmt.Errorf("%w: unexpected return data: %v", tender.ErrBoundaryRejected, err),
		}
	}
	return out, nil
}

func (b binding) transact(ctx context.Context, method string, args ...interface{}) (receipt *tender.Receipt, err error) {
	ctx, span := traces.StartSpan(ctx, "chain.transact."+method, traces.Contract(b.addr.Hex()), traces.Method(method))
	started := time.Now()
	defer func() {
		if receipt != nil {
			span.SetAttributes(traces.TxHash(receipt.TxHash))
		}
		metrics.ObserveBoundaryCall(method, resultLabel(err), started)
		traces.End(span, err)
	}()

	data, err := b.abi.Pack(method, args...)
	if err != nil {
		return nil, &tender.BoundaryError{Method: method, Err: fmt.Errorf("pack: %w", err)}
	}

	receipt, err = b.backend.Send(ctx, b.addr, data)
	if err != nil {
		be := &tender.BoundaryError{Method: method, Err: err}
		var txErr *wallet.TxError
		if errors.As(err, &txErr) {
			be.TxHash = txErr.TxHash
		}
		return nil, be
	}
	return receipt, nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, tender.ErrBoundaryRejected):
		return "rejected"
	case errors.Is(err, tender.ErrBoundaryUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func unexpected(method string, v interface{}) error {
	return &tender.BoundaryError{
		Method: method,
		Err:    fmt.Errorf("%w: unexpected result type %T", tender.ErrBoundaryRejected, v),
	}
}

// -----------------------------------------------------------------------------
// Procurement
// -----------------------------------------------------------------------------

// Procurement is a bound procurement contract.
type Procurement struct {
	binding
}

var _ tender.Contract = (*Procurement)(nil)

// Owner calls owner().
func (p *Procurement) Owner(ctx context.Context) (common.Address, error) {
	out, err := p.call(ctx, "owner")
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, unexpected("owner", out[0])
	}
	return addr, nil
}

// BiddingEndTime calls biddingEndTime() and returns unix seconds.
func (p *Procurement) BiddingEndTime(ctx context.Context) (int64, error) {
	out, err := p.call(ctx, "biddingEndTime")
	if err != nil {
		return 0, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return 0, unexpected("biddingEndTime", out[0])
	}
	if !v.IsInt64() {
		return 0, &tender.BoundaryError{
			Method: "biddingEndTime",
			Err:    fmt.Errorf("%w: end time %s out of range", tender.ErrBoundaryRejected, v),
		}
	}
	return v.Int64(), nil
}

// Ended calls ended().
func (p *Procurement) Ended(ctx context.Context) (bool, error) {
	return p.boolCall(ctx, "ended")
}

// CheckIfWhitelisted calls checkIfWhitelisted(addr).
func (p *Procurement) CheckIfWhitelisted(ctx context.Context, addr common.Address) (bool, error) {
	return p.boolCall(ctx, "checkIfWhitelisted", addr)
}

func (p *Procurement) boolCall(ctx context.Context, method string, args ...interface{}) (bool, error) {
	out, err := p.call(ctx, method, args...)
	if err != nil {
		return false, err
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, unexpected(method, out[0])
	}
	return v, nil
}

// GetWhitelist calls getWhitelist().
func (p *Procurement) GetWhitelist(ctx context.Context) ([]common.Address, error) {
	out, err := p.call(ctx, "getWhitelist")
	if err != nil {
		return nil, err
	}
	list, ok := out[0].([]common.Address)
	if !ok {
		return nil, unexpected("getWhitelist", out[0])
	}
	return list, nil
}

// GetBids calls getBids() and renders both byte arrays as hex payloads.
func (p *Procurement) GetBids(ctx context.Context) ([]string, []string, error) {
	out, err := p.call(ctx, "getBids")
	if err != nil {
		return nil, nil, err
	}
	amounts, ok := out[0].([][]byte)
	if !ok {
		return nil, nil, unexpected("getBids", out[0])
	}
	addresses, ok := out[1].([][]byte)
	if !ok {
		return nil, nil, unexpected("getBids", out[1])
	}
	return hexPayloads(amounts), hexPayloads(addresses), nil
}

// hexPayloads renders each entry; an empty entry becomes "" so the ledger skips it.
func hexPayloads(raw [][]byte) []string {
	out := make([]string, len(raw))
	for i, b := range raw {
		if len(b) == 0 {
			continue
		}
		out[i] = bidcodec.EncodeHex(b)
	}
	return out
}

// WhitelistBidder sends whitelistBidder(addr).
func (p *Procurement) WhitelistBidder(ctx context.Context, addr common.Address) (*tender.Receipt, error) {
	return p.transact(ctx, "whitelistBidder", addr)
}

// RemoveWhitelistBidder sends removeWhitelistBidder(addr).
func (p *Procurement) RemoveWhitelistBidder(ctx context.Context, addr common.Address) (*tender.Receipt, error) {
	return p.transact(ctx, "removeWhitelistBidder", addr)
}

// SetBidDuration sends setBidDuration(seconds).
func (p *Procurement) SetBidDuration(ctx context.Context, seconds int64) (*tender.Receipt, error) {
	return p.transact(ctx, "setBidDuration", big.NewInt(seconds))
}

// SubmitBid sends submitBid(payload).
func (p *Procurement) SubmitBid(ctx context.Context, payload []byte) (*tender.Receipt, error) {
	return p.transact(ctx, "submitBid", payload)
}

// EndBidding sends endBidding().
func (p *Procurement) EndBidding(ctx context.Context) (*tender.Receipt, error) {
	return p.transact(ctx, "endBidding")
}

// -----------------------------------------------------------------------------
// Factory
// -----------------------------------------------------------------------------

// Factory is a bound procurement factory.
type Factory struct {
	binding
}

var _ tender.Factory = (*Factory)(nil)

// GetContractsByOwner calls getContractsByOwner(owner).
func (f *Factory) GetContractsByOwner(ctx context.Context, owner common.Address) ([]common.Address, error) {
	out, err := f.call(ctx, "getContractsByOwner", owner)
	if err != nil {
		return nil, err
	}
	list, ok := out[0].([]common.Address)
	if !ok {
		return nil, unexpected("getContractsByOwner", out[0])
	}
	return list, nil
}

// CreateProcurementContract sends createProcurementContract().
func (f *Factory) CreateProcurementContract(ctx context.Context) (*tender.Receipt, error) {
	return f.transact(ctx, "createProcurementContract")
}
