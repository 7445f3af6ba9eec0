package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/mela/internal/listing"
	"github.com/evcraddock/mela/internal/market"
	"github.com/evcraddock/mela/internal/notification"
	"github.com/evcraddock/mela/internal/wanted"
)

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		amount   string
		expected string
	}{
		{"0", "€0.00"},
		{"25", "€25.00"},
		{"999.5", "€999.50"},
		{"1250", "€1,250.00"},
		{"100000", "€100,000.00"},
		{"1234567.891", "€1,234,567.89"},
		{"-12.5", "-€12.50"},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatPrice(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world!", 8, "hello..."},
		{"multibyte", "Ħamrun ġnien żgħir", 9, "Ħamrun..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, truncate(tt.input, tt.max))
		})
	}
}

func TestPrintListingTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printListingTable(&out, []*listing.Listing{{
		ID:       "l1",
		Title:    "Zara linen dress",
		Category: market.Category("Clothing"),
		PriceEUR: decimal.NewFromInt(25),
		Locality: "Sliema",
		Status:   market.ListingStatus("Active"),
	}}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.True(t, strings.HasPrefix(lines[1], "--"))
	assert.Contains(t, lines[2], "Zara linen dress")
	assert.Contains(t, lines[2], "€25.00")
	assert.Equal(t, "Total: 1 listings", lines[4])
}

func TestPrintEmptyTables(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printListingTable(&out, nil))
	require.NoError(t, printWantedTable(&out, nil))
	require.NoError(t, printNotificationTable(&out, nil))
	assert.Equal(t, "No listings found.\nNo wanted ads found.\nNo notifications.\n", out.String())
}

func TestPrintWantedTableBudget(t *testing.T) {
	budget := decimal.NewFromInt(40)
	var out bytes.Buffer
	require.NoError(t, printWantedTable(&out, []*wanted.Ad{
		{ID: "w1", Title: "Nike running shoes", BudgetEUR: &budget},
		{ID: "w2", Title: "Any bicycle"},
	}))

	assert.Contains(t, out.String(), "€40.00")
	assert.Regexp(t, `w2\s+Any bicycle\s+-`, out.String())
}

func TestPrintNotificationTable(t *testing.T) {
	created := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	var out bytes.Buffer
	require.NoError(t, printNotificationTable(&out, []*notification.Notification{
		{ID: "n1", Type: notification.TypeMatchWishlist, Title: "Zara item available!", CreatedAt: created},
		{ID: "n2", Type: notification.TypeMessage, Title: "New message", IsRead: true, CreatedAt: created},
	}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[2], "*"))
	assert.Contains(t, lines[2], "2026-05-01 09:30")
	assert.False(t, strings.HasPrefix(lines[3], "*"))
}
