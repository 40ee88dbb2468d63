package tender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mbd888/tenderbid/internal/bidcodec"
	"github.com/mbd888/tenderbid/internal/bidledger"
	"github.com/mbd888/tenderbid/internal/countdown"
	"github.com/mbd888/tenderbid/internal/metrics"
)

// State is an immutable snapshot of one loaded contract. Every change
// publishes a new State; nothing edits a published one.
type State struct {
	Contract  common.Address   `json:"contract"`
	Owner     common.Address   `json:"owner"`
	Caller    common.Address   `json:"caller"`
	IsOwner   bool             `json:"isOwner"`
	EndTime   int64            `json:"biddingEndTime"`
	Active    bool             `json:"isActive"`
	Whitelist []common.Address `json:"whitelist"`
	Ledger    bidledger.Ledger `json:"ledger"`
	LoadedAt  time.Time        `json:"loadedAt"`

	contract Contract
}

// IsWhitelisted reports whether addr is in the cached whitelist.
func (s State) IsWhitelisted(addr common.Address) bool {
	for _, a := range s.Whitelist {
		if a == addr {
			return true
		}
	}
	return false
}

// Session is the client-side view of one procurement contract.
//
// Session state is not locked. Each action reads the current snapshot, talks
// to the contract, and stores a new snapshot; when two actions overlap the one
// that finishes last wins, even if its data is older.
type Session struct {
	dialer Dialer
	wallet Wallet
	logger *slog.Logger
	now    func() time.Time
	ops    *tracker

	state       atomic.Pointer[State]
	connected   atomic.Bool
	unsubscribe func()
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClock overrides the wall clock (useful for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// NewSession creates an empty session bound to a wallet and a contract dialer.
func NewSession(dialer Dialer, wallet Wallet, opts ...Option) *Session {
	s := &Session{
		dialer: dialer,
		wallet: wallet,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ops = newTracker(wallet, s.logger, s.now)

	_, err := wallet.Signer()
	s.connected.Store(err == nil)
	s.unsubscribe = wallet.OnAccountChanged(s.accountChanged)

	return s
}

// Close stops listening for account changes.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Snapshot returns the current state. ok is false until a contract is loaded.
func (s *Session) Snapshot() (State, bool) {
	st := s.state.Load()
	if st == nil {
		return State{}, false
	}
	return *st, true
}

// Connected reports whether the wallet currently has an account.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Operations returns recent operations, newest last.
func (s *Session) Operations() []Operation {
	return s.ops.recent()
}

// Lowest returns the lowest decoded bid, or bidledger.NoBids.
func (s *Session) Lowest() bidledger.Bid {
	st, ok := s.Snapshot()
	if !ok {
		return bidledger.NoBids
	}
	return st.Ledger.Lowest
}

// Countdown renders the time left in the bidding window at now.
func (s *Session) Countdown(now time.Time, style countdown.Style) string {
	st, ok := s.Snapshot()
	if !ok {
		return countdown.Format(0, style)
	}
	return countdown.View(st.EndTime, now.Unix(), style)
}

// BiddingOpen reports whether the contract is active and its end time has not passed.
func (s *Session) BiddingOpen(now time.Time) bool {
	st, ok := s.Snapshot()
	return ok && st.biddingOpen(now)
}

func (st State) biddingOpen(now time.Time) bool {
	return st.Active && !countdown.Closed(st.EndTime, now.Unix())
}

// -----------------------------------------------------------------------------
// Load and refresh
// -----------------------------------------------------------------------------

// Load binds the session to the contract at address and reads its state.
// A caller who is not the owner still gets the read-only view; owner-only
// actions then fail with ErrNotOwner.
func (s *Session) Load(ctx context.Context, address string) (State, error) {
	var loaded State
	_, err := s.ops.run(ctx, OpLoad, func(ctx context.Context) (*Receipt, error) {
		addr, err := ParseAddress(address)
		if err != nil {
			return nil, err
		}
		signer, err := s.signer()
		if err != nil {
			return nil, err
		}
		caller := signer.Address()
		c := s.dialer.Procurement(addr)

		owner, err := c.Owner(ctx)
		if err != nil {
			return nil, err
		}
		endTime, err := c.BiddingEndTime(ctx)
		if err != nil {
			return nil, err
		}
		ended, err := c.Ended(ctx)
		if err != nil {
			return nil, err
		}
		whitelist, err := s.readWhitelist(ctx, c, caller)
		if err != nil {
			return nil, err
		}
		bids, err := s.readBids(ctx, c)
		if err != nil {
			return nil, err
		}

		loaded = State{
			Contract:  addr,
			Owner:     owner,
			Caller:    caller,
			IsOwner:   owner == caller,
			EndTime:   endTime,
			Active:    !ended,
			Whitelist: whitelist,
			Ledger:    bidledger.New(bids),
			LoadedAt:  s.now(),
			contract:  c,
		}
		s.state.Store(&loaded)

		if !loaded.IsOwner {
			s.ops.log(ctx).Info("contract loaded read-only",
				"contract", addr.Hex(),
				"owner", owner.Hex(),
				"caller", caller.Hex(),
			)
		}
		return nil, nil
	})
	if err != nil {
		return State{}, err
	}
	return loaded, nil
}

// readWhitelist reads getWhitelist. If the contract refuses it for this
// caller, the caller's own membership is asked instead.
func (s *Session) readWhitelist(ctx context.Context, c Contract, caller common.Address) ([]common.Address, error) {
	list, err := c.GetWhitelist(ctx)
	if err == nil {
		return list, nil
	}
	if !errors.Is(err, ErrBoundaryRejected) {
		return nil, err
	}

	s.ops.log(ctx).Debug("getWhitelist rejected, checking caller only", "error", err)
	ok, err := c.CheckIfWhitelisted(ctx, caller)
	if err != nil {
		return nil, err
	}
	if ok {
		return []common.Address{caller}, nil
	}
	return []common.Address{}, nil
}

// readBids reads getBids and decodes it. A rejected read leaves the ledger empty.
func (s *Session) readBids(ctx context.Context, c Contract) ([]bidledger.Bid, error) {
	amounts, addresses, err := c.GetBids(ctx)
	if err != nil {
		if errors.Is(err, ErrBoundaryRejected) {
			s.ops.log(ctx).Debug("getBids rejected, ledger left empty", "error", err)
			return []bidledger.Bid{}, nil
		}
		return nil, err
	}
	bids := bidledger.Rebuild(amounts, addresses)
	metrics.BidsDecoded.Set(float64(len(bids)))
	if skipped := countPaired(amounts, addresses) - len(bids); skipped > 0 {
		s.ops.log(ctx).Debug("skipped bid entries", "count", skipped)
	}
	return bids, nil
}

func countPaired(amounts, addresses []string) int {
	if len(addresses) < len(amounts) {
		return len(addresses)
	}
	return len(amounts)
}

// RefreshBids rebuilds the ledger from a fresh getBids read.
func (s *Session) RefreshBids(ctx context.Context) error {
	_, err := s.ops.run(ctx, OpRefreshBids, func(ctx context.Context) (*Receipt, error) {
		return nil, s.refreshBids(ctx)
	})
	return err
}

func (s *Session) refreshBids(ctx context.Context) error {
	st, err := s.loaded()
	if err != nil {
		return err
	}
	amounts, addresses, err := st.contract.GetBids(ctx)
	if err != nil {
		return err
	}
	bids := bidledger.Rebuild(amounts, addresses)
	metrics.BidsDecoded.Set(float64(len(bids)))

	s.update(st.Contract, func(next *State) {
		next.Ledger = bidledger.New(bids)
	})
	return nil
}

// RefreshWhitelist replaces the cached whitelist with a fresh getWhitelist read.
func (s *Session) RefreshWhitelist(ctx context.Context) error {
	_, err := s.ops.run(ctx, OpRefreshWhitelist, func(ctx context.Context) (*Receipt, error) {
		return nil, s.refreshWhitelist(ctx)
	})
	return err
}

func (s *Session) refreshWhitelist(ctx context.Context) error {
	st, err := s.loaded()
	if err != nil {
		return err
	}
	list, err := st.contract.GetWhitelist(ctx)
	if err != nil {
		return err
	}
	s.update(st.Contract, func(next *State) {
		next.Whitelist = list
	})
	return nil
}

// RefreshStatus re-reads the end time and the ended flag.
func (s *Session) RefreshStatus(ctx context.Context) error {
	_, err := s.ops.run(ctx, OpRefreshStatus, func(ctx context.Context) (*Receipt, error) {
		return nil, s.refreshStatus(ctx)
	})
	return err
}

func (s *Session) refreshStatus(ctx context.Context) error {
	st, err := s.loaded()
	if err != nil {
		return err
	}
	endTime, err := st.contract.BiddingEndTime(ctx)
	if err != nil {
		return err
	}
	ended, err := st.contract.Ended(ctx)
	if err != nil {
		return err
	}
	s.update(st.Contract, func(next *State) {
		next.EndTime = endTime
		next.Active = !ended
	})
	return nil
}

// CheckWhitelisted asks the contract whether the caller is whitelisted and
// folds the answer into the cached whitelist.
func (s *Session) CheckWhitelisted(ctx context.Context) (bool, error) {
	var whitelisted bool
	_, err := s.ops.run(ctx, OpCheckWhitelisted, func(ctx context.Context) (*Receipt, error) {
		st, err := s.loaded()
		if err != nil {
			return nil, err
		}
		signer, err := s.signer()
		if err != nil {
			return nil, err
		}
		caller := signer.Address()
		whitelisted, err = st.contract.CheckIfWhitelisted(ctx, caller)
		if err != nil {
			return nil, err
		}
		s.update(st.Contract, func(next *State) {
			next.Whitelist = setMember(next.Whitelist, caller, whitelisted)
		})
		return nil, nil
	})
	return whitelisted, err
}

// -----------------------------------------------------------------------------
// Writes
// -----------------------------------------------------------------------------

// AddWhitelist whitelists address. Duplicate adds are left to the contract.
func (s *Session) AddWhitelist(ctx context.Context, address string) (*Receipt, error) {
	return s.ops.run(ctx, OpWhitelistAdd, func(ctx context.Context) (*Receipt, error) {
		st, err := s.loaded()
		if err != nil {
			return nil, err
		}
		addr, err := ParseAddress(address)
		if err != nil {
			return nil, err
		}
		if err := s.requireOwner(st); err != nil {
			return nil, err
		}

		receipt, err := st.contract.WhitelistBidder(ctx, addr)
		if err != nil {
			return nil, err
		}
		s.afterWrite(ctx, OpWhitelistAdd, s.refreshWhitelist)
		return receipt, nil
	})
}

// RemoveWhitelist removes address from the whitelist. An address missing from
// the cached whitelist fails with ErrNotWhitelisted and no call is made.
func (s *Session) RemoveWhitelist(ctx context.Context, address string) (*Receipt, error) {
	return s.ops.run(ctx, OpWhitelistRemove, func(ctx context.Context) (*Receipt, error) {
		st, err := s.loaded()
		if err != nil {
			return nil, err
		}
		addr, err := ParseAddress(address)
		if err != nil {
			return nil, err
		}
		if err := s.requireOwner(st); err != nil {
			return nil, err
		}
		if !st.IsWhitelisted(addr) {
			return nil, fmt.Errorf("%w: %s", ErrNotWhitelisted, addr.Hex())
		}

		receipt, err := st.contract.RemoveWhitelistBidder(ctx, addr)
		if err != nil {
			return nil, err
		}
		s.afterWrite(ctx, OpWhitelistRemove, s.refreshWhitelist)
		return receipt, nil
	})
}

// SetBidDuration opens the bidding window for seconds from now.
func (s *Session) SetBidDuration(ctx context.Context, seconds int64) (*Receipt, error) {
	return s.ops.run(ctx, OpSetBidDuration, func(ctx context.Context) (*Receipt, error) {
		st, err := s.loaded()
		if err != nil {
			return nil, err
		}
		if seconds <= 0 {
			return nil, fmt.Errorf("%w: must be positive, got %d", ErrInvalidDuration, seconds)
		}
		if err := s.requireOwner(st); err != nil {
			return nil, err
		}

		receipt, err := st.contract.SetBidDuration(ctx, seconds)
		if err != nil {
			return nil, err
		}
		s.afterWrite(ctx, OpSetBidDuration, s.refreshStatus)
		return receipt, nil
	})
}

// SubmitBid encodes amountText and submits it. The window must be open and
// the caller whitelisted in the cached state.
func (s *Session) SubmitBid(ctx context.Context, amountText string) (*Receipt, error) {
	return s.ops.run(ctx, OpSubmitBid, func(ctx context.Context) (*Receipt, error) {
		st, err := s.loaded()
		if err != nil {
			return nil, err
		}
		signer, err := s.signer()
		if err != nil {
			return nil, err
		}
		if !st.biddingOpen(s.now()) {
			return nil, ErrBiddingClosed
		}
		if !st.IsWhitelisted(signer.Address()) {
			return nil, fmt.Errorf("%w: %s", ErrNotWhitelisted, signer.Address().Hex())
		}

		payload, err := bidcodec.EncodeBid(amountText)
		if err != nil {
			return nil, err
		}
		return st.contract.SubmitBid(ctx, payload)
	})
}

// EndBidding closes the bidding window and rebuilds the ledger.
func (s *Session) EndBidding(ctx context.Context) (*Receipt, error) {
	return s.ops.run(ctx, OpEndBidding, func(ctx context.Context) (*Receipt, error) {
		st, err := s.loaded()
		if err != nil {
			return nil, err
		}
		if err := s.requireOwner(st); err != nil {
			return nil, err
		}

		receipt, err := st.contract.EndBidding(ctx)
		if err != nil {
			return nil, err
		}
		s.update(st.Contract, func(next *State) {
			next.Active = false
		})
		s.afterWrite(ctx, OpEndBidding, s.refreshBids)
		return receipt, nil
	})
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// afterWrite runs the refresh that follows a confirmed write. The write has
// already been mined, so a failed refresh only leaves the snapshot stale.
func (s *Session) afterWrite(ctx context.Context, kind OpKind, refresh func(context.Context) error) {
	if err := refresh(ctx); err != nil {
		s.ops.log(ctx).Warn("refresh after write failed", "op", kind, "error", err)
	}
}

func (s *Session) loaded() (*State, error) {
	if !s.connected.Load() {
		return nil, ErrBoundaryUnavailable
	}
	st := s.state.Load()
	if st == nil {
		return nil, ErrNotLoaded
	}
	return st, nil
}

func (s *Session) signer() (Signer, error) {
	if !s.connected.Load() {
		return nil, ErrBoundaryUnavailable
	}
	signer, err := s.wallet.Signer()
	if err != nil {
		if errors.Is(err, ErrBoundaryUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrBoundaryUnavailable, err)
	}
	return signer, nil
}

func (s *Session) requireOwner(st *State) error {
	signer, err := s.signer()
	if err != nil {
		return err
	}
	if signer.Address() != st.Owner {
		return ErrNotOwner
	}
	return nil
}

// update publishes a modified copy of the current state, unless a different
// contract has been loaded in the meantime.
func (s *Session) update(contract common.Address, fn func(next *State)) {
	cur := s.state.Load()
	if cur == nil || cur.Contract != contract {
		return
	}
	next := *cur
	fn(&next)
	s.state.Store(&next)
}

func (s *Session) accountChanged(addr common.Address, connected bool) {
	s.connected.Store(connected)
	if !connected {
		s.logger.Warn("wallet disconnected; actions disabled until an account returns")
		return
	}

	s.logger.Info("account switched", "account", addr.Hex())
	if cur := s.state.Load(); cur != nil {
		s.update(cur.Contract, func(next *State) {
			next.Caller = addr
			next.IsOwner = next.Owner == addr
		})
	}
}

// setMember returns a copy of list with addr present or absent.
func setMember(list []common.Address, addr common.Address, present bool) []common.Address {
	out := make([]common.Address, 0, len(list)+1)
	found := false
	for _, a := range list {
		if a == addr {
			found = true
			if !present {
				continue
			}
		}
		out = append(out, a)
	}
	if present && !found {
		out = append(out, addr)
	}
	return out
}
