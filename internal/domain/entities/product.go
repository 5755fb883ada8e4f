package entities

import (
	"strconv"
	"time"

	"github.com/volatiletech/null/v8"
)

// ProductSeller is the public view of the expat selling a product.
type ProductSeller struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Verified bool   `json:"verified"`
}

// Product is the listing/detail read model.
type Product struct {
	ID            int64         `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Price         float64       `json:"price"`
	OriginalPrice null.Float64  `json:"originalPrice"`
	Currency      string        `json:"currency"`
	Condition     string        `json:"condition"`
	Category      string        `json:"category"`
	Location      string        `json:"location"`
	Images        []string      `json:"images"`
	Seller        ProductSeller `json:"seller"`
	Available     bool          `json:"isAvailable"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// ProductPage is one page of a listing or search.
type ProductPage struct {
	Items      []Product `json:"items"`
	Page       int       `json:"page"`
	Size       int       `json:"size"`
	Total      int64     `json:"total"`
	TotalPages int       `json:"totalPages"`
}

// ProductFilter narrows listings and searches.
type ProductFilter struct {
	Query     string
	Category  string
	Condition string
	Location  string
	MinPrice  null.Float64
	MaxPrice  null.Float64
	Sort      string
	Page      int
	Size      int
}

// ToCartItem builds the cart line added when a shopper picks this product.
func (p Product) ToCartItem() CartItem {
	item := CartItem{
		ID:            strconv.FormatInt(p.ID, 10),
		Title:         p.Title,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Condition:     p.Condition,
		ExpatID:       p.Seller.ID,
		ExpatName:     p.Seller.Name,
		Quantity:      1,
		Category:      p.Category,
		Location:      p.Location,
		Verified:      p.Seller.Verified,
		Currency:      p.Currency,
		Available:     p.Available,
		Selected:      true,
	}
	if len(p.Images) > 0 {
		item.Image = p.Images[0]
	}
	if item.Currency == "" {
		item.Currency = DefaultCurrency
	}
	return item
}
