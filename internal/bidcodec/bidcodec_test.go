package bidcodec

import (
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBid(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		want    []byte
		wantErr bool
	}{
		{name: "integer", amount: "100", want: []byte("100")},
		{name: "decimal", amount: "150.5", want: []byte("150.5")},
		{name: "leading zeros kept", amount: "007.50", want: []byte("007.50")},
		{name: "explicit plus sign kept", amount: "+3", want: []byte("+3")},
		{name: "outer whitespace kept", amount: "  42 ", want: []byte("  42 ")},
		{name: "exponent", amount: "1e3", want: []byte("1e3")},
		{name: "leading dot", amount: ".25", want: []byte(".25")},
		{name: "empty", amount: "", wantErr: true},
		{name: "whitespace only", amount: "   ", wantErr: true},
		{name: "zero", amount: "0", wantErr: true},
		{name: "zero with decimals", amount: "0.000", wantErr: true},
		{name: "negative", amount: "-5", wantErr: true},
		{name: "letters", amount: "abc", wantErr: true},
		{name: "trailing garbage", amount: "12abc", wantErr: true},
		{name: "infinity", amount: "Infinity", wantErr: true},
		{name: "internal space", amount: "1 2", wantErr: true},
		{name: "overflows float", amount: "1e999999999", wantErr: true},
		{name: "underflows float", amount: "1e-400", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeBid(tt.amount)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidAmount))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	inputs := []string{"1", "150.5", "  99.99  ", "+7", "0001", "2.5e2", "\t12\n", "123456789012345678901234567890.123"}

	for _, in := range inputs {
		payload, err := EncodeBid(in)
		require.NoError(t, err, in)

		got, err := DecodeAmount(EncodeHex(payload))
		require.NoError(t, err, in)
		assert.Equal(t, strings.TrimSpace(in), got, in)
	}
}

func TestDecodeAmount(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{name: "ten", payload: "0x3130", want: "10"},
		{name: "uppercase prefix and digits", payload: "0X3231", want: "21"},
		{name: "embedded space", payload: "0x3130 3130", wantErr: true},
		{name: "trims spaces", payload: "0x203135302e3520", want: "150.5"},
		{name: "missing prefix", payload: "3130", wantErr: true},
		{name: "empty after prefix", payload: "0x", wantErr: true},
		{name: "empty string", payload: "", wantErr: true},
		{name: "odd length", payload: "0x313", wantErr: true},
		{name: "non hex", payload: "0x31zz", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAmount(tt.payload)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformedPayload))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeAmount_InvalidUTF8(t *testing.T) {
	got, err := DecodeAmount("0x31ff32")
	require.NoError(t, err)
	assert.Equal(t, "1�2", got)
}

func TestDecodeAddress(t *testing.T) {
	payload := "0x00000000000000000000000000000000000000AB"

	addr, err := DecodeAddress(payload)
	require.NoError(t, err)

	got := CanonicalAddress(addr)
	assert.Equal(t, "0x00000000000000000000000000000000000000ab", got)
	assert.Len(t, got, 42)
	assert.Equal(t, strings.ToLower(got), got)
}

func TestDecodeAddress_Checksummed(t *testing.T) {
	want := common.HexToAddress("0xBa691fF03DBA107CB362A124b4cE7981C4a9963D")

	addr, err := DecodeAddress(EncodeHex(want.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, want, addr)
	assert.Equal(t, "0xba691ff03dba107cb362a124b4ce7981c4a9963d", CanonicalAddress(addr))
}

func TestDecodeAddress_Malformed(t *testing.T) {
	for _, payload := range []string{"", "0x", "0x123", "0xzz", "0x0102", "0x" + strings.Repeat("ab", 32)} {
		_, err := DecodeAddress(payload)
		assert.True(t, errors.Is(err, ErrMalformedPayload), payload)
	}
}
