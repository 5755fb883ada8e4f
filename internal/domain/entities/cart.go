package entities

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

const (
	// MaxItemQuantity is the per-line quantity ceiling.
	MaxItemQuantity = 10
	DefaultCurrency = "TZS"
)

// CartItem is a cart line as the backend reports it.
type CartItem struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Price         float64      `json:"price"`
	OriginalPrice null.Float64 `json:"originalPrice"`
	Image         string       `json:"image"`
	Condition     string       `json:"condition"`
	ExpatID       string       `json:"expatId"`
	ExpatName     string       `json:"expatName"`
	Quantity      int          `json:"quantity"`
	Category      string       `json:"category"`
	Location      string       `json:"location"`
	Verified      bool         `json:"verified"`
	Currency      string       `json:"currency"`
	Available     bool         `json:"isAvailable"`
	Selected      bool         `json:"selected"`
}

// LineTotal is price × quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return decimal.NewFromFloat(i.Price).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OriginalLineTotal uses the original price when one is set.
func (i CartItem) OriginalLineTotal() decimal.Decimal {
	unit := i.Price
	if i.OriginalPrice.Valid {
		unit = i.OriginalPrice.Float64
	}
	return decimal.NewFromFloat(unit).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartTotals are the figures derived from a set of lines.
type CartTotals struct {
	ItemCount          int             `json:"itemCount"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	OriginalTotal      decimal.Decimal `json:"originalTotal"`
	Savings            decimal.Decimal `json:"savings"`
	HasMixedCurrencies bool            `json:"hasMixedCurrencies"`
	Currency           string          `json:"currency"`
	ExpatCount         int             `json:"expatCount"`
}

// SellerGroup is the lines one expat sells.
type SellerGroup struct {
	ExpatID   string          `json:"expatId"`
	ExpatName string          `json:"expatName"`
	Verified  bool            `json:"verified"`
	Items     []CartItem      `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartSummary holds totals for the whole cart and for the selected lines.
type CartSummary struct {
	CartTotals
	Groups        []SellerGroup `json:"groups"`
	SelectedItems []CartItem    `json:"selectedItems"`
	Selected      CartTotals    `json:"selected"`
}

// Totals computes CartTotals for items.
func Totals(items []CartItem) CartTotals {
	t := CartTotals{
		Subtotal:      decimal.Zero,
		OriginalTotal: decimal.Zero,
		Savings:       decimal.Zero,
		Currency:      DefaultCurrency,
	}
	currencies := map[string]struct{}{}
	sellers := map[string]struct{}{}

	for _, item := range items {
		t.ItemCount += item.Quantity
		t.Subtotal = t.Subtotal.Add(item.LineTotal())
		t.OriginalTotal = t.OriginalTotal.Add(item.OriginalLineTotal())
		if item.Currency != "" {
			if len(currencies) == 0 {
				t.Currency = item.Currency
			}
			currencies[item.Currency] = struct{}{}
		}
		sellers[item.ExpatID] = struct{}{}
	}

	t.Savings = t.OriginalTotal.Sub(t.Subtotal)
	t.HasMixedCurrencies = len(currencies) > 1
	t.ExpatCount = len(sellers)
	return t
}

// SummarizeCart derives every selector from the item list. Items whose
// Selected flag is set make up the partial-checkout figures.
func SummarizeCart(items []CartItem) CartSummary {
	selected := make([]CartItem, 0, len(items))
	groupIndex := map[string]int{}
	var groups []SellerGroup

	for _, item := range items {
		if item.Selected {
			selected = append(selected, item)
		}
		idx, ok := groupIndex[item.ExpatID]
		if !ok {
			idx = len(groups)
			groupIndex[item.ExpatID] = idx
			groups = append(groups, SellerGroup{
				ExpatID:   item.ExpatID,
				ExpatName: item.ExpatName,
				Verified:  item.Verified,
				Subtotal:  decimal.Zero,
			})
		}
		groups[idx].Items = append(groups[idx].Items, item)
		groups[idx].Subtotal = groups[idx].Subtotal.Add(item.LineTotal())
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].ExpatName < groups[j].ExpatName
	})

	return CartSummary{
		CartTotals:    Totals(items),
		Groups:        groups,
		SelectedItems: selected,
		Selected:      Totals(selected),
	}
}
