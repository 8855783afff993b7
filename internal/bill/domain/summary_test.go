package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	bills := []Bill{
		{Amount: 80, Currency: "USD", Status: StatusUnpaid},
		{Amount: 20, Currency: "USD", Status: StatusPaid},
	}
	s := Summarize(5, "USD", bills)
	assert.Equal(t, 100.0, s.TotalAmount)
	assert.Equal(t, 80.0, s.UnpaidAmount)
	assert.Equal(t, 20.0, s.PaidAmount)
	assert.Equal(t, 2, s.BillCount)
	assert.LessOrEqual(t, s.UnpaidAmount, s.TotalAmount)

	empty := Summarize(5, "EGP", nil)
	assert.Equal(t, BillSummary{PackageID: 5, Currency: "EGP"}, empty)
}

func TestGroupByCurrency(t *testing.T) {
	totals := GroupByCurrency([]Bill{
		{Amount: 10, Currency: "USD", Status: StatusPaid},
		{Amount: 300, Currency: "EGP", Status: StatusUnpaid},
		{Amount: 5, Currency: "USD", Status: StatusUnpaid},
	})
	require.Len(t, totals, 2)
	assert.Equal(t, CurrencyTotal{Currency: "EGP", TotalAmount: 300, UnpaidAmount: 300, BillCount: 1}, totals[0])
	assert.Equal(t, CurrencyTotal{Currency: "USD", TotalAmount: 15, UnpaidAmount: 5, PaidAmount: 10, BillCount: 2}, totals[1])
}

func TestNewAutoBill(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	terms := PackageTerms{ID: 9, StudentID: 3, TotalHours: 8, HourPrice: 10, Currency: "USD"}

	b, err := NewAutoBill(1, terms, "usd", now)
	require.NoError(t, err)
	assert.Equal(t, 80.0, b.Amount)
	assert.Equal(t, StatusUnpaid, b.Status)
	assert.False(t, b.IsCustom)
	require.NotNil(t, b.PackageID)
	assert.EqualValues(t, 9, *b.PackageID)

	_, err = NewAutoBill(2, terms, "EGP", now)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}
