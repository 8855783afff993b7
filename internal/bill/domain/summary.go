package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Summarize folds the bills of one package. currency is used when no bill exists yet.
func Summarize(packageID snowflake.ID, currency string, bills []Bill) BillSummary {
	summary := BillSummary{PackageID: packageID, Currency: currency}
	for _, b := range bills {
		summary.TotalAmount += b.Amount
		if b.IsPaid() {
			summary.PaidAmount += b.Amount
		} else {
			summary.UnpaidAmount += b.Amount
		}
		summary.BillCount++
		if summary.Currency == "" {
			summary.Currency = b.Currency
		}
	}
	return summary
}

// GroupByCurrency never converts between currencies. Buckets are sorted by code.
func GroupByCurrency(bills []Bill) []CurrencyTotal {
	buckets := map[string]*CurrencyTotal{}
	for _, b := range bills {
		t, ok := buckets[b.Currency]
		if !ok {
			t = &CurrencyTotal{Currency: b.Currency}
			buckets[b.Currency] = t
		}
		t.TotalAmount += b.Amount
		if b.IsPaid() {
			t.PaidAmount += b.Amount
		} else {
			t.UnpaidAmount += b.Amount
		}
		t.BillCount++
	}
	out := make([]CurrencyTotal, 0, len(buckets))
	for _, t := range buckets {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}

// NewAutoBill prices a closed package as total_hours x hour_price.
func NewAutoBill(id snowflake.ID, terms PackageTerms, currency string, now time.Time) (Bill, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency != strings.ToUpper(terms.Currency) {
		return Bill{}, ErrCurrencyMismatch
	}
	packageID := terms.ID
	return Bill{
		ID:        id,
		PackageID: &packageID,
		StudentID: terms.StudentID,
		Amount:    terms.TotalHours * terms.HourPrice,
		Currency:  currency,
		Status:    StatusUnpaid,
		BillDate:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
