package tender

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	contractA = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	contractB = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	ownerAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bidderOne = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bidderTwo = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

var fixedNow = time.Unix(1_700_000_000, 0)

func fixedClock() time.Time { return fixedNow }

// mockContract is an in-memory procurement contract that counts every call.
type mockContract struct {
	mu sync.Mutex

	owner     common.Address
	endTime   int64
	ended     bool
	whitelist []common.Address
	amounts   []string
	addresses []string

	whitelistErr error
	bidsErr      error
	writeErr     error

	calls     map[string]int
	submitted [][]byte
}

func newMockContract() *mockContract {
	return &mockContract{
		owner:   ownerAddr,
		endTime: fixedNow.Unix() + 3661,
		calls:   map[string]int{},
	}
}

func (m *mockContract) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
}

func (m *mockContract) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockContract) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *mockContract) resetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = map[string]int{}
}

func (m *mockContract) Owner(ctx context.Context) (common.Address, error) {
	m.record("owner")
	return m.owner, nil
}

func (m *mockContract) BiddingEndTime(ctx context.Context) (int64, error) {
	m.record("biddingEndTime")
	return m.endTime, nil
}

func (m *mockContract) Ended(ctx context.Context) (bool, error) {
	m.record("ended")
	return m.ended, nil
}

func (m *mockContract) CheckIfWhitelisted(ctx context.Context, addr common.Address) (bool, error) {
	m.record("checkIfWhitelisted")
	for _, a := range m.whitelist {
		if a == addr {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockContract) GetWhitelist(ctx context.Context) ([]common.Address, error) {
	m.record("getWhitelist")
	if m.whitelistErr != nil {
		return nil, m.whitelistErr
	}
	return append([]common.Address(nil), m.whitelist...), nil
}

func (m *mockContract) GetBids(ctx context.Context) ([]string, []string, error) {
	m.record("getBids")
	if m.bidsErr != nil {
		return nil, nil, m.bidsErr
	}
	return m.amounts, m.addresses, nil
}

func (m *mockContract) receipt(method string) (*Receipt, error) {
	if m.writeErr != nil {
		return nil, &BoundaryError{Method: method, TxHash: "0xbad", Err: m.writeErr}
	}
	return &Receipt{TxHash: "0x" + method, BlockNumber: 1}, nil
}

func (m *mockContract) WhitelistBidder(ctx context.Context, addr common.Address) (*Receipt, error) {
	m.record("whitelistBidder")
	if m.writeErr == nil {
		m.whitelist = append(m.whitelist, addr)
	}
	return m.receipt("whitelistBidder")
}

func (m *mockContract) RemoveWhitelistBidder(ctx context.Context, addr common.Address) (*Receipt, error) {
	m.record("removeWhitelistBidder")
	if m.writeErr == nil {
		m.whitelist = setMember(m.whitelist, addr, false)
	}
	return m.receipt("removeWhitelistBidder")
}

func (m *mockContract) SetBidDuration(ctx context.Context, seconds int64) (*Receipt, error) {
	m.record("setBidDuration")
	if m.writeErr == nil {
		m.endTime = fixedNow.Unix() + seconds
		m.ended = false
	}
	return m.receipt("setBidDuration")
}

func (m *mockContract) SubmitBid(ctx context.Context, payload []byte) (*Receipt, error) {
	m.record("submitBid")
	if m.writeErr == nil {
		m.submitted = append(m.submitted, payload)
	}
	return m.receipt("submitBid")
}

func (m *mockContract) EndBidding(ctx context.Context) (*Receipt, error) {
	m.record("endBidding")
	if m.writeErr == nil {
		m.ended = true
	}
	return m.receipt("endBidding")
}

// mockDialer returns a fixed contract per address.
type mockDialer struct {
	contracts map[common.Address]*mockContract
}

func (d *mockDialer) Procurement(addr common.Address) Contract {
	return d.contracts[addr]
}

type mockSigner common.Address

func (s mockSigner) Address() common.Address { return common.Address(s) }

// mockWallet holds one account and fans out account changes.
type mockWallet struct {
	mu        sync.Mutex
	account   common.Address
	connected bool
	listeners []func(common.Address, bool)
}

func newMockWallet(account common.Address) *mockWallet {
	return &mockWallet{account: account, connected: true}
}

func (w *mockWallet) Signer() (Signer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return nil, ErrBoundaryUnavailable
	}
	return mockSigner(w.account), nil
}

func (w *mockWallet) OnAccountChanged(fn func(common.Address, bool)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
	return func() {}
}

func (w *mockWallet) switchTo(addr common.Address) {
	w.mu.Lock()
	w.account = addr
	w.connected = true
	listeners := append(([]func(common.Address, bool))(nil), w.listeners...)
	w.mu.Unlock()
	for _, fn := range listeners {
		fn(addr, true)
	}
}

func (w *mockWallet) disconnect() {
	w.mu.Lock()
	w.connected = false
	listeners := append(([]func(common.Address, bool))(nil), w.listeners...)
	w.mu.Unlock()
	for _, fn := range listeners {
		fn(common.Address{}, false)
	}
}

// mockFactory records deployments per owner.
type mockFactory struct {
	owner    common.Address
	deployed map[common.Address][]common.Address
	next     common.Address
	listErr  error
	calls    int
}

func (f *mockFactory) GetContractsByOwner(ctx context.Context, owner common.Address) ([]common.Address, error) {
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.deployed[owner], nil
}

func (f *mockFactory) CreateProcurementContract(ctx context.Context) (*Receipt, error) {
	f.calls++
	f.deployed[f.owner] = append(f.deployed[f.owner], f.next)
	return &Receipt{TxHash: "0xcreate", BlockNumber: 3}, nil
}
