package tender

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mbd888/tenderbid/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeployments_Contracts(t *testing.T) {
	factory := &mockFactory{deployed: map[common.Address][]common.Address{}}
	d := NewDeployments(factory, newMockWallet(ownerAddr), logging.Discard())

	list, err := d.Contracts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	factory.deployed[ownerAddr] = []common.Address{contractA}
	list, err = d.Contracts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{contractA}, list)
}

func TestDeployments_Create(t *testing.T) {
	factory := &mockFactory{
		owner:    ownerAddr,
		next:     contractB,
		deployed: map[common.Address][]common.Address{ownerAddr: {contractA}},
	}
	d := NewDeployments(factory, newMockWallet(ownerAddr), logging.Discard())

	receipt, list, err := d.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0xcreate", receipt.TxHash)
	assert.Equal(t, []common.Address{contractA, contractB}, list)

	ops := d.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, OpCreateContract, ops[0].Kind)
	assert.Equal(t, OpListContracts, ops[1].Kind)
}

func TestDeployments_CreateListFailureKeepsReceipt(t *testing.T) {
	factory := &mockFactory{
		owner:    ownerAddr,
		deployed: map[common.Address][]common.Address{},
		listErr:  ErrBoundaryUnavailable,
	}
	d := NewDeployments(factory, newMockWallet(ownerAddr), nil)

	receipt, list, err := d.Create(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, receipt)
	assert.Nil(t, list)
}

func TestDeployments_Disconnected(t *testing.T) {
	factory := &mockFactory{deployed: map[common.Address][]common.Address{}}
	wallet := newMockWallet(ownerAddr)
	wallet.disconnect()
	d := NewDeployments(factory, wallet, logging.Discard())

	_, err := d.Contracts(context.Background())
	assert.True(t, errors.Is(err, ErrBoundaryUnavailable))
	_, _, err = d.Create(context.Background())
	assert.True(t, errors.Is(err, ErrBoundaryUnavailable))
	assert.Zero(t, factory.calls)
}
