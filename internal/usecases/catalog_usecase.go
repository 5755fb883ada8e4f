package usecases

import (
	"context"
	"strings"

	"expat-market.storefront/internal/domain/entities"
	domainerrors "expat-market.storefront/internal/domain/errors"
	"expat-market.storefront/internal/domain/repositories"
	"expat-market.storefront/pkg/utils"
)

// CatalogUsecase serves product listings, search and detail reads.
type CatalogUsecase struct {
	gateway repositories.ProductGateway
}

func NewCatalogUsecase(gateway repositories.ProductGateway) *CatalogUsecase {
	return &CatalogUsecase{gateway: gateway}
}

// ListProducts returns one page of the catalogue.
func (u *CatalogUsecase) ListProducts(ctx context.Context, filter entities.ProductFilter) (*entities.ProductPage, error) {
	filter = normalizeFilter(filter)
	if filter.MinPrice.Valid && filter.MaxPrice.Valid && filter.MinPrice.Float64 > filter.MaxPrice.Float64 {
		return nil, domainerrors.BadRequest("minimum price is above maximum price").
			WithUserMessage("Minimum price cannot be higher than maximum price.")
	}
	return u.gateway.ListProducts(ctx, filter)
}

// SearchProducts runs a keyword search. The query is required.
func (u *CatalogUsecase) SearchProducts(ctx context.Context, filter entities.ProductFilter) (*entities.ProductPage, error) {
	filter = normalizeFilter(filter)
	if filter.Query == "" {
		return nil, domainerrors.BadRequest("search query is required").
			WithUserMessage("Enter something to search for.")
	}
	return u.gateway.SearchProducts(ctx, filter)
}

func (u *CatalogUsecase) GetProduct(ctx context.Context, id int64) (*entities.Product, error) {
	if id <= 0 {
		return nil, domainerrors.BadRequest("product id must be positive")
	}
	return u.gateway.GetProduct(ctx, id)
}

func normalizeFilter(f entities.ProductFilter) entities.ProductFilter {
	f.Query = strings.TrimSpace(f.Query)
	f.Category = strings.TrimSpace(f.Category)
	f.Location = strings.TrimSpace(f.Location)
	p := utils.GetPaginationParams(f.Page, f.Size)
	f.Page, f.Size = p.Page, p.Size
	return f
}
