package repositories

import (
	"context"

	"expat-market.storefront/internal/domain/entities"
)

// ProductGateway defines read-only catalogue queries
type ProductGateway interface {
	ListProducts(ctx context.Context, filter entities.ProductFilter) (*entities.ProductPage, error)
	GetProduct(ctx context.Context, id int64) (*entities.Product, error)
	SearchProducts(ctx context.Context, filter entities.ProductFilter) (*entities.ProductPage, error)
}
