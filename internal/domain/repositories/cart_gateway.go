package repositories

import (
	"context"

	"expat-market.storefront/internal/domain/entities"
)

// CartGateway defines the backend's cart endpoints
type CartGateway interface {
	GetUserCart(ctx context.Context) ([]entities.CartItem, error)
	AddToCart(ctx context.Context, productID string, quantity int) error
	UpdateCartItem(ctx context.Context, productID string, quantity int) error
	RemoveFromCart(ctx context.Context, productID string) error
	ClearCart(ctx context.Context) error
}
