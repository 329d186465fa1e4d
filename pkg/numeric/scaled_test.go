package numeric

import (
	"encoding/json"
	"testing"

	"github.com/felis2803/TradeForge-sub000/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ExactConversion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		scale int32
		want  string
	}{
		{"integer", "30000", 2, "3000000"},
		{"fraction at scale", "0.01", 2, "1"},
		{"partial fraction", "29.9", 2, "2990"},
		{"zero", "0", 8, "0"},
		{"negative", "-1.5", 3, "-1500"},
		{"scale zero", "42", 0, "42"},
		{"large value", "92233720368547758.08", 2, "9223372036854775808"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.input, tt.scale)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestParse_RejectsExcessPrecisionAndGarbage(t *testing.T) {
	tests := []struct {
		name  string
		input string
		scale int32
	}{
		{"too many fractional digits", "0.001", 2},
		{"not a number", "abc", 2},
		{"empty", "", 2},
		{"double dot", "1.2.3", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input, tt.scale)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ValidationError))
		})
	}
}

func TestFormat_RoundTripsParse(t *testing.T) {
	inputs := []string{"30000", "0.01", "29.9", "0", "-1.5", "123456789.123456789"}
	for _, input := range inputs {
		v, err := Parse(input, 9)
		require.NoError(t, err)
		back, err := Parse(Format(v, 9), 9)
		require.NoError(t, err)
		assert.Equal(t, 0, v.Cmp(back), "round trip changed %s", input)
	}
}

func TestZeroValueIsUsable(t *testing.T) {
	var v ScaledInt
	assert.True(t, v.IsZero())
	assert.Equal(t, "0", v.String())
	assert.Equal(t, 0, v.Cmp(Zero()))
	assert.Equal(t, "5", v.Add(FromInt64(5)).String())
}

func TestFee_FloorsTowardZero(t *testing.T) {
	// 10 bps of 999 raw units floors to 0.
	assert.Equal(t, "0", Fee(FromInt64(999), 10).String())
	// 20 bps of 2995000 is exactly 5990.
	assert.Equal(t, "5990", Fee(FromInt64(2995000), 20).String())
	assert.Equal(t, "0", Fee(FromInt64(100), 0).String())
}

func TestNotional_RescalesOutOfQtyScale(t *testing.T) {
	price := MustParse("30000", 2)
	qty := MustParse("0.5", 3)
	notional := Notional(price, qty, 3)
	assert.Equal(t, "15000.00", Format(notional, 2))

	// Truncation: 0.001 * 0.01 at these scales floors to zero quote units.
	tiny := Notional(MustParse("0.01", 2), MustParse("0.001", 3), 3)
	assert.True(t, tiny.IsZero())
}

func TestApplyBps_Headroom(t *testing.T) {
	v := MustParse("30000", 2)
	padded := ApplyBps(v, FeeDenominator+500)
	assert.Equal(t, "31500.00", Format(padded, 2))
}

func TestMinAndComparisons(t *testing.T) {
	a := FromInt64(10)
	b := FromInt64(3)
	assert.Equal(t, "3", Min(a, b).String())
	assert.Equal(t, "3", Min(b, a).String())
	assert.Equal(t, 1, a.Cmp(b))
	assert.True(t, FromInt64(-1).IsNegative())
	assert.False(t, Zero().IsNegative())
}

func TestJSON_StringEncodingNeverFloat(t *testing.T) {
	v := MustParse("92233720368547758.08", 2)
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `"9223372036854775808"`, string(data))

	var back ScaledInt
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 0, v.Cmp(back))
}

func TestJSON_RejectsNonNumericString(t *testing.T) {
	var v ScaledInt
	err := json.Unmarshal([]byte(`"12x"`), &v)
	require.Error(t, err)
}
