package entities

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
)

func TestTotals_TwoItemScenario(t *testing.T) {
	items := []CartItem{
		{ID: "1", Price: 1000, Quantity: 2, Currency: "TZS", ExpatID: "a"},
		{ID: "2", Price: 500, Quantity: 1, Currency: "TZS", ExpatID: "a"},
	}

	totals := Totals(items)
	assert.Equal(t, 3, totals.ItemCount)
	assert.True(t, totals.Subtotal.Equal(decimal.NewFromInt(2500)))
	assert.False(t, totals.HasMixedCurrencies)
	assert.Equal(t, "TZS", totals.Currency)
	assert.Equal(t, 1, totals.ExpatCount)
	assert.True(t, totals.Savings.IsZero())
}

func TestTotals_SavingsIsOriginalMinusSubtotal(t *testing.T) {
	items := []CartItem{
		{ID: "1", Price: 19.99, OriginalPrice: null.Float64From(24.5), Quantity: 3, Currency: "USD", ExpatID: "a"},
		{ID: "2", Price: 0.1, Quantity: 7, Currency: "USD", ExpatID: "b"},
		{ID: "3", Price: 80, OriginalPrice: null.Float64From(80), Quantity: 1, Currency: "EUR", ExpatID: "b"},
	}

	totals := Totals(items)
	assert.True(t, totals.Savings.Equal(totals.OriginalTotal.Sub(totals.Subtotal)))
	assert.True(t, totals.Savings.Equal(decimal.RequireFromString("13.53")))
	assert.True(t, totals.HasMixedCurrencies)
	assert.Equal(t, 2, totals.ExpatCount)
	assert.Equal(t, 11, totals.ItemCount)
}

func TestTotals_Empty(t *testing.T) {
	totals := Totals(nil)
	assert.Zero(t, totals.ItemCount)
	assert.True(t, totals.Subtotal.IsZero())
	assert.Equal(t, DefaultCurrency, totals.Currency)
	assert.Zero(t, totals.ExpatCount)
}

func TestSummarizeCart_GroupsAndSelection(t *testing.T) {
	items := []CartItem{
		{ID: "1", Price: 10, Quantity: 1, ExpatID: "s2", ExpatName: "Zed", Selected: true},
		{ID: "2", Price: 20, Quantity: 2, ExpatID: "s1", ExpatName: "Amy"},
		{ID: "3", Price: 5, Quantity: 1, ExpatID: "s2", ExpatName: "Zed", Selected: true},
	}

	summary := SummarizeCart(items)
	require.Len(t, summary.Groups, 2)
	assert.Equal(t, "Amy", summary.Groups[0].ExpatName)
	assert.True(t, summary.Groups[0].Subtotal.Equal(decimal.NewFromInt(40)))
	assert.Len(t, summary.Groups[1].Items, 2)

	assert.Equal(t, 4, summary.ItemCount)
	assert.Len(t, summary.SelectedItems, 2)
	assert.Equal(t, 2, summary.Selected.ItemCount)
	assert.True(t, summary.Selected.Subtotal.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, 1, summary.Selected.ExpatCount)
}

func TestCartItem_JSONOptionalOriginalPrice(t *testing.T) {
	var item CartItem
	require.NoError(t, json.Unmarshal([]byte(`{"id":"7","price":12,"originalPrice":null,"quantity":1}`), &item))
	assert.False(t, item.OriginalPrice.Valid)
	assert.True(t, item.OriginalLineTotal().Equal(decimal.NewFromInt(12)))
}

func TestProduct_ToCartItem(t *testing.T) {
	p := Product{
		ID:     42,
		Title:  "Desk lamp",
		Price:  15000,
		Images: []string{"a.jpg", "b.jpg"},
		Seller: ProductSeller{ID: "s", Name: "Sam", Verified: true},
	}
	item := p.ToCartItem()
	assert.Equal(t, "42", item.ID)
	assert.Equal(t, "a.jpg", item.Image)
	assert.Equal(t, DefaultCurrency, item.Currency)
	assert.Equal(t, 1, item.Quantity)
	assert.True(t, item.Verified)
}
