// Package bidcodec converts bid amounts and bidder addresses to and from the
// byte payloads exchanged with the procurement contract.
//
// The payload is the bid text itself, UTF-8 encoded. Anyone who can read the
// contract storage can read every bid; there is no encryption step.
package bidcodec

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount    = errors.New("bidcodec: invalid amount")
	ErrMalformedPayload = errors.New("bidcodec: malformed payload")
)

// EncodeBid validates amountText and returns its UTF-8 bytes.
// The original text is kept as typed; only validation sees the trimmed value.
func EncodeBid(amountText string) ([]byte, error) {
	trimmed := strings.TrimSpace(amountText)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}

	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, amountText)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}

	// Bids are ranked as float64, so the amount must survive that conversion.
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsInf(f, 0) || f <= 0 {
		return nil, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, amountText)
	}

	return []byte(amountText), nil
}

// DecodeAmount turns a 0x-prefixed hex payload back into the bid text.
func DecodeAmount(hexPayload string) (string, error) {
	raw, err := payloadBytes(hexPayload)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), "�")), nil
}

// DecodeAddress turns a 0x-prefixed hex payload holding 20 raw bytes into an address.
func DecodeAddress(hexPayload string) (common.Address, error) {
	raw, err := payloadBytes(hexPayload)
	if err != nil {
		return common.Address{}, err
	}
	if len(raw) != common.AddressLength {
		return common.Address{}, fmt.Errorf("%w: address payload is %d bytes, want %d",
			ErrMalformedPayload, len(raw), common.AddressLength)
	}
	return common.BytesToAddress(raw), nil
}

// CanonicalAddress renders addr as 0x followed by 40 lowercase hex digits.
func CanonicalAddress(addr common.Address) string {
	return "0x" + hex.EncodeToString(addr.Bytes())
}

// EncodeHex renders raw contract bytes as a payload string.
func EncodeHex(raw []byte) string {
	return hexutil.Encode(raw)
}

func payloadBytes(hexPayload string) ([]byte, error) {
	if len(hexPayload) < 2 || !strings.EqualFold(hexPayload[:2], "0x") {
		return nil, fmt.Errorf("%w: missing 0x prefix", ErrMalformedPayload)
	}
	digits := hexPayload[2:]
	if digits == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}
	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("%w: odd hex length %d", ErrMalformedPayload, len(digits))
	}
	raw, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return raw, nil
}
