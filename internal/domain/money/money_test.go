package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NormalizesCurrency(t *testing.T) {
	m, err := New(decimal.NewFromInt(10), " usd ")

	require.NoError(t, err)
	assert.Equal(t, "USD", m.Currency())
	assert.True(t, m.Amount().Equal(decimal.NewFromInt(10)))
}

func TestNew_InvalidCurrency(t *testing.T) {
	tests := []string{"", "US", "USDT", "U$D", "12A"}

	for _, code := range tests {
		t.Run(code, func(t *testing.T) {
			_, err := New(decimal.NewFromInt(1), code)
			assert.ErrorIs(t, err, ErrInvalidCurrency)
		})
	}
}

func TestMoney_Arithmetic(t *testing.T) {
	a := MustNew("10.50", "EUR")
	b := MustNew("2.25", "EUR")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "12.75 EUR", sum.String())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, "8.25 EUR", diff.String())

	assert.Equal(t, "31.50 EUR", a.Mul(3).String())

	gt, err := a.GreaterThan(b)
	require.NoError(t, err)
	assert.True(t, gt)
}

func TestMoney_CurrencyMismatch(t *testing.T) {
	eur := MustNew("1", "EUR")
	usd := MustNew("1", "USD")

	_, err := eur.Add(usd)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = eur.Sub(usd)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = eur.GreaterThan(usd)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	assert.False(t, eur.Equal(usd))
}

func TestMoney_Equal_IgnoresTrailingZeros(t *testing.T) {
	assert.True(t, MustNew("5.0", "USD").Equal(MustNew("5", "USD")))
}

func TestMoney_JSON(t *testing.T) {
	m := MustNew("19.99", "USD")

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"19.99","currency":"USD"}`, string(data))

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, m.Equal(decoded))
}

func TestMoney_UnmarshalJSON_InvalidCurrency(t *testing.T) {
	var m Money
	err := json.Unmarshal([]byte(`{"amount":"1","currency":"dollars"}`), &m)
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}
