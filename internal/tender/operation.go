package tender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mbd888/tenderbid/internal/bidcodec"
	"github.com/mbd888/tenderbid/internal/idgen"
	"github.com/mbd888/tenderbid/internal/logging"
	"github.com/mbd888/tenderbid/internal/metrics"
	"github.com/mbd888/tenderbid/internal/traces"
	"go.opentelemetry.io/otel/attribute"
)

// OpKind names a user-triggered action.
type OpKind string

const (
	OpLoad             OpKind = "load"
	OpWhitelistAdd     OpKind = "whitelist_add"
	OpWhitelistRemove  OpKind = "whitelist_remove"
	OpSetBidDuration   OpKind = "set_bid_duration"
	OpSubmitBid        OpKind = "submit_bid"
	OpEndBidding       OpKind = "end_bidding"
	OpRefreshBids      OpKind = "refresh_bids"
	OpRefreshWhitelist OpKind = "refresh_whitelist"
	OpRefreshStatus    OpKind = "refresh_status"
	OpCheckWhitelisted OpKind = "check_whitelisted"
	OpCreateContract   OpKind = "create_contract"
	OpListContracts    OpKind = "list_contracts"
)

// OpState is the position of one operation in Idle -> Submitting -> {Confirmed, Failed}.
type OpState string

const (
	OpIdle       OpState = "idle"
	OpSubmitting OpState = "submitting"
	OpConfirmed  OpState = "confirmed"
	OpFailed     OpState = "failed"
)

// IsTerminal returns true once the operation has resolved either way.
func (s OpState) IsTerminal() bool {
	return s == OpConfirmed || s == OpFailed
}

// Operation records one invocation of a session action.
type Operation struct {
	ID         string     `json:"id"`
	Kind       OpKind     `json:"kind"`
	State      OpState    `json:"state"`
	TxHash     string     `json:"txHash,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// maxOps bounds the operation history kept for display.
const maxOps = 50

// tracker runs actions through the operation state machine and keeps the
// most recent ones.
type tracker struct {
	mu     sync.Mutex
	ops    []Operation
	wallet Wallet // may be nil
	logger *slog.Logger
	now    func() time.Time
}

func newTracker(wallet Wallet, logger *slog.Logger, now func() time.Time) *tracker {
	return &tracker{wallet: wallet, logger: logger, now: now}
}

// run executes fn as one operation. The returned error is fn's error.
func (t *tracker) run(ctx context.Context, kind OpKind, fn func(ctx context.Context) (*Receipt, error)) (*Receipt, error) {
	id := idgen.WithPrefix("op_")
	t.begin(id, kind)

	attrs := []attribute.KeyValue{traces.OperationID(id)}
	if t.wallet != nil {
		if signer, err := t.wallet.Signer(); err == nil {
			attrs = append(attrs, traces.Caller(bidcodec.CanonicalAddress(signer.Address())))
		}
	}
	ctx, span := traces.StartSpan(ctx, "tender."+string(kind), attrs...)
	t.transition(id, OpSubmitting)
	metrics.OperationsInFlight.Inc()
	receipt, err := fn(ctx)
	metrics.OperationsInFlight.Dec()
	traces.End(span, err)

	state := t.finish(id, receipt, err)
	metrics.OperationsTotal.WithLabelValues(string(kind), string(state)).Inc()

	logger := t.log(ctx).With("op", kind, "op_id", id)
	switch {
	case err == nil:
		if receipt != nil {
			logger.Info("operation confirmed", "tx", receipt.TxHash, "block", receipt.BlockNumber)
		} else {
			logger.Debug("operation confirmed")
		}
	case IsLocal(err):
		logger.Info("operation rejected locally", "error", err)
	case errors.Is(err, ErrBoundaryUnavailable):
		logger.Error("operation failed: boundary unavailable", "error", err)
	default:
		logger.Warn("operation failed", "error", err)
	}
	return receipt, err
}

func (t *tracker) begin(id string, kind OpKind) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ops = append(t.ops, Operation{
		ID:        id,
		Kind:      kind,
		State:     OpIdle,
		StartedAt: t.now(),
	})
	if len(t.ops) > maxOps {
		t.ops = append([]Operation(nil), t.ops[len(t.ops)-maxOps:]...)
	}
}

func (t *tracker) transition(id string, state OpState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.ops {
		if t.ops[i].ID == id {
			t.ops[i].State = state
			return
		}
	}
}

func (t *tracker) finish(id string, receipt *Receipt, err error) OpState {
	state := OpConfirmed
	if err != nil {
		state = OpFailed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.ops {
		if t.ops[i].ID != id {
			continue
		}
		now := t.now()
		t.ops[i].State = state
		t.ops[i].FinishedAt = &now
		if receipt != nil {
			t.ops[i].TxHash = receipt.TxHash
		}
		if err != nil {
			t.ops[i].Error = err.Error()
		}
		break
	}
	return state
}

// recent returns the operation history, newest last.
func (t *tracker) recent() []Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Operation, len(t.ops))
	copy(out, t.ops)
	return out
}

func (t *tracker) log(ctx context.Context) *slog.Logger {
	if reqID := logging.RequestID(ctx); reqID != "" {
		return t.logger.With("request_id", reqID)
	}
	return t.logger
}
