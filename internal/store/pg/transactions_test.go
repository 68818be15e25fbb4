package pg

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
)

func TestParseAmounts(t *testing.T) {
	var tx repository.Transaction
	require.NoError(t, parseAmounts(&tx, "100.5", "0", "2.000000000000000000"))
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("100.5")))
	assert.True(t, tx.MaxFeePerGas.IsZero())
	assert.True(t, tx.MaxPriorityFeePerGas.Equal(decimal.NewFromInt(2)))
}

func TestParseAmounts_Unreadable(t *testing.T) {
	cases := []struct {
		name                    string
		amount, maxFee, maxPrio string
		field                   string
	}{
		{"amount", "NaN", "0", "0", "amount"},
		{"max fee", "1", "", "0", "max_fee_per_gas"},
		{"max priority", "1", "0", "1e", "max_priority_fee_per_gas"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := repository.Transaction{ID: "tx-1"}
			err := parseAmounts(&tx, tc.amount, tc.maxFee, tc.maxPrio)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.field)
			assert.Contains(t, err.Error(), "tx-1")
		})
	}
}
