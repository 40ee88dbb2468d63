// Package bidledger turns the raw payload arrays returned by getBids into
// decoded bids and picks the lowest one.
package bidledger

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/mbd888/tenderbid/internal/bidcodec"
	"github.com/mbd888/tenderbid/internal/metrics"
)

// Bid is one decoded bid. Amount is the bidder's text, trimmed but otherwise
// untouched.
type Bid struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// NoBids is returned by Lowest when there is nothing to rank.
var NoBids = Bid{Address: "No bids yet", Amount: "N/A"}

// numericPrefix matches the longest leading float literal, the same prefix a
// lenient float parser would consume before giving up on trailing text.
var numericPrefix = regexp.MustCompile(`^[+-]?(Infinity|(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?)`)

// Rebuild pairs amounts[i] with addresses[i]. Indexes where either payload is
// missing or empty are skipped, and so is any index that fails to decode.
func Rebuild(amounts, addresses []string) []Bid {
	bids := make([]Bid, 0, len(amounts))
	for i, amountHex := range amounts {
		if i >= len(addresses) {
			break
		}
		addressHex := addresses[i]
		if isEmptyPayload(amountHex) || isEmptyPayload(addressHex) {
			continue
		}

		amount, err := bidcodec.DecodeAmount(amountHex)
		if err != nil {
			metrics.MalformedPayloadsTotal.WithLabelValues("amount").Inc()
			continue
		}
		addr, err := bidcodec.DecodeAddress(addressHex)
		if err != nil {
			metrics.MalformedPayloadsTotal.WithLabelValues("address").Inc()
			continue
		}

		bids = append(bids, Bid{Address: bidcodec.CanonicalAddress(addr), Amount: amount})
	}
	return bids
}

// Lowest returns the bid with the smallest amount. Ties keep the earliest bid.
// Amounts are compared as float64, so bids that differ only beyond float
// precision rank as equal.
func Lowest(bids []Bid) Bid {
	if len(bids) == 0 {
		return NoBids
	}

	lowest := NoBids
	var best float64
	found := false
	for _, b := range bids {
		v, ok := ParseAmount(b.Amount)
		if !ok {
			continue
		}
		if !found || v < best {
			lowest, best, found = b, v, true
		}
	}
	return lowest
}

// ParseAmount reads the numeric prefix of s and ignores whatever follows.
// ok is false when s does not start with a number.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	m := numericPrefix.FindString(s)
	if m == "" {
		return 0, false
	}
	switch m {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		// ErrRange still yields ±Inf or 0, which is the value we want.
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return v, true
		}
		return 0, false
	}
	return v, true
}

// Ledger is an immutable view of the bids decoded from one getBids read.
type Ledger struct {
	Bids   []Bid `json:"bids"`
	Lowest Bid   `json:"lowest"`
}

// New builds a Ledger and caches its lowest bid.
func New(bids []Bid) Ledger {
	if bids == nil {
		bids = []Bid{}
	}
	return Ledger{Bids: bids, Lowest: Lowest(bids)}
}

func isEmptyPayload(p string) bool {
	return p == "" || strings.EqualFold(p, "0x")
}
