package tender

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Deployments lists and creates the caller's procurement contracts through
// the factory.
type Deployments struct {
	factory Factory
	wallet  Wallet
	ops     *tracker
}

// NewDeployments creates a factory-backed deployment service.
func NewDeployments(factory Factory, wallet Wallet, logger *slog.Logger) *Deployments {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployments{
		factory: factory,
		wallet:  wallet,
		ops:     newTracker(wallet, logger, time.Now),
	}
}

// Contracts returns the contracts deployed by the current account.
func (d *Deployments) Contracts(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	_, err := d.ops.run(ctx, OpListContracts, func(ctx context.Context) (*Receipt, error) {
		owner, err := d.caller()
		if err != nil {
			return nil, err
		}
		out, err = d.factory.GetContractsByOwner(ctx, owner)
		return nil, err
	})
	if out == nil && err == nil {
		out = []common.Address{}
	}
	return out, err
}

// Create deploys a new procurement contract and returns the mined receipt
// along with the refreshed contract list.
func (d *Deployments) Create(ctx context.Context) (*Receipt, []common.Address, error) {
	receipt, err := d.ops.run(ctx, OpCreateContract, func(ctx context.Context) (*Receipt, error) {
		if _, err := d.caller(); err != nil {
			return nil, err
		}
		return d.factory.CreateProcurementContract(ctx)
	})
	if err != nil {
		return nil, nil, err
	}

	list, err := d.Contracts(ctx)
	if err != nil {
		d.ops.log(ctx).Warn("listing contracts after create failed", "error", err)
		return receipt, nil, nil
	}
	return receipt, list, nil
}

// Operations returns recent factory operations, newest last.
func (d *Deployments) Operations() []Operation {
	return d.ops.recent()
}

func (d *Deployments) caller() (common.Address, error) {
	signer, err := d.wallet.Signer()
	if err != nil {
		return common.Address{}, err
	}
	return signer.Address(), nil
}
