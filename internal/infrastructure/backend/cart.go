package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/volatiletech/null/v8"

	"expat-market.storefront/internal/domain/entities"
	domainerrors "expat-market.storefront/internal/domain/errors"
	"expat-market.storefront/internal/domain/repositories"
)

var _ repositories.CartGateway = (*Client)(nil)

type cartItemDTO struct {
	ProductID     flexID       `json:"productId"`
	ProductName   string       `json:"productName"`
	Title         string       `json:"title"`
	Price         float64      `json:"price"`
	OriginalPrice null.Float64 `json:"originalPrice"`
	ImageURL      string       `json:"imageUrl"`
	Image         string       `json:"image"`
	Condition     string       `json:"condition"`
	SellerID      flexID       `json:"sellerId"`
	SellerName    string       `json:"sellerName"`
	Quantity      int          `json:"quantity"`
	Category      string       `json:"category"`
	Location      string       `json:"location"`
	Verified      bool         `json:"verified"`
	Currency      string       `json:"currency"`
	IsAvailable   null.Bool    `json:"isAvailable"`
}

func (d cartItemDTO) toEntity() entities.CartItem {
	item := entities.CartItem{
		ID:            d.ProductID.String(),
		Title:         firstNonEmpty(d.ProductName, d.Title),
		Price:         d.Price,
		OriginalPrice: d.OriginalPrice,
		Image:         firstNonEmpty(d.ImageURL, d.Image),
		Condition:     d.Condition,
		ExpatID:       d.SellerID.String(),
		ExpatName:     d.SellerName,
		Quantity:      d.Quantity,
		Category:      d.Category,
		Location:      d.Location,
		Verified:      d.Verified,
		Currency:      firstNonEmpty(d.Currency, entities.DefaultCurrency),
		Available:     !d.IsAvailable.Valid || d.IsAvailable.Bool,
	}
	return item
}

type cartMutation struct {
	ProductID int64 `json:"productId,omitempty"`
	Quantity  int   `json:"quantity"`
}

func numericProductID(id string) (int64, error) {
	n, err := flexID(id).Int64()
	if err != nil {
		return 0, domainerrors.BadRequest("product id must be numeric")
	}
	return n, nil
}

// GetUserCart returns the signed-in user's cart lines.
func (c *Client) GetUserCart(ctx context.Context) ([]entities.CartItem, error) {
	raw, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/cart/user-cart"})
	if err != nil {
		return nil, err
	}

	dtos, _, err := decodeList[cartItemDTO](raw)
	if err != nil {
		return nil, domainerrors.NewAppError(http.StatusBadGateway, domainerrors.CodeBadGateway, "unreadable cart", err)
	}

	items := make([]entities.CartItem, 0, len(dtos))
	for _, d := range dtos {
		// lines without a product or a positive quantity are dropped
		if d.ProductID == "" || d.Quantity < 1 {
			continue
		}
		items = append(items, d.toEntity())
	}
	return items, nil
}

func (c *Client) AddToCart(ctx context.Context, productID string, quantity int) error {
	id, err := numericProductID(productID)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/cart/add-to-cart",
		body:   cartMutation{ProductID: id, Quantity: quantity},
	})
	return err
}

func (c *Client) UpdateCartItem(ctx context.Context, productID string, quantity int) error {
	id, err := numericProductID(productID)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, request{
		method: http.MethodPut,
		path:   "/api/v1/cart/update/" + url.PathEscape(productID),
		body:   cartMutation{ProductID: id, Quantity: quantity},
	})
	return err
}

func (c *Client) RemoveFromCart(ctx context.Context, productID string) error {
	if _, err := numericProductID(productID); err != nil {
		return err
	}
	_, err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/api/v1/cart/remove/" + url.PathEscape(productID),
	})
	return err
}

func (c *Client) ClearCart(ctx context.Context) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/api/v1/cart/clear"})
	return err
}
