package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/volatiletech/null/v8"

	"expat-market.storefront/internal/domain/entities"
	domainerrors "expat-market.storefront/internal/domain/errors"
	"expat-market.storefront/internal/domain/repositories"
	"expat-market.storefront/pkg/utils"
)

var _ repositories.ProductGateway = (*Client)(nil)

type productDTO struct {
	ProductID          flexID       `json:"productId"`
	ID                 flexID       `json:"id"`
	ProductName        string       `json:"productName"`
	Title              string       `json:"title"`
	ProductDescription string       `json:"productDescription"`
	Description        string       `json:"description"`
	Price              float64      `json:"price"`
	AskingPrice        float64      `json:"productAskingPrice"`
	OriginalPrice      null.Float64 `json:"originalPrice"`
	Currency           string       `json:"currency"`
	Condition          string       `json:"condition"`
	Category           string       `json:"category"`
	CategoryName       string       `json:"categoryName"`
	Location           string       `json:"location"`
	Images             []string     `json:"images"`
	ProductImages      []string     `json:"productImages"`
	SellerID           flexID       `json:"sellerId"`
	SellerName         string       `json:"sellerName"`
	SellerVerified     bool         `json:"sellerVerified"`
	IsAvailable        null.Bool    `json:"isAvailable"`
	CreatedAt          string       `json:"createdAt"`
}

var createdAtLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"}

func parseCreatedAt(s string) time.Time {
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (d productDTO) toEntity() (entities.Product, error) {
	id, err := flexID(firstNonEmpty(d.ProductID.String(), d.ID.String())).Int64()
	if err != nil {
		return entities.Product{}, err
	}

	price := d.Price
	if price == 0 {
		price = d.AskingPrice
	}
	images := d.Images
	if len(images) == 0 {
		images = d.ProductImages
	}

	return entities.Product{
		ID:            id,
		Title:         firstNonEmpty(d.ProductName, d.Title),
		Description:   firstNonEmpty(d.ProductDescription, d.Description),
		Price:         price,
		OriginalPrice: d.OriginalPrice,
		Currency:      firstNonEmpty(d.Currency, entities.DefaultCurrency),
		Condition:     d.Condition,
		Category:      firstNonEmpty(d.CategoryName, d.Category),
		Location:      d.Location,
		Images:        images,
		Seller: entities.ProductSeller{
			ID:       d.SellerID.String(),
			Name:     d.SellerName,
			Verified: d.SellerVerified,
		},
		Available: !d.IsAvailable.Valid || d.IsAvailable.Bool,
		CreatedAt: parseCreatedAt(d.CreatedAt),
	}, nil
}

func filterQuery(f entities.ProductFilter) url.Values {
	q := url.Values{}
	size := f.Size
	if size <= 0 {
		size = utils.DefaultPageSize
	}
	page := f.Page
	if page < 0 {
		page = 0
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	if f.Query != "" {
		q.Set("keyword", f.Query)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Condition != "" {
		q.Set("condition", f.Condition)
	}
	if f.Location != "" {
		q.Set("location", f.Location)
	}
	if f.MinPrice.Valid {
		q.Set("minPrice", strconv.FormatFloat(f.MinPrice.Float64, 'f', -1, 64))
	}
	if f.MaxPrice.Valid {
		q.Set("maxPrice", strconv.FormatFloat(f.MaxPrice.Float64, 'f', -1, 64))
	}
	if f.Sort != "" {
		q.Set("sort", f.Sort)
	}
	return q
}

func (c *Client) productPage(ctx context.Context, path string, f entities.ProductFilter) (*entities.ProductPage, error) {
	query := filterQuery(f)
	raw, err := c.do(ctx, request{method: http.MethodGet, path: path, query: query})
	if err != nil {
		return nil, err
	}

	dtos, info, err := decodeList[productDTO](raw)
	if err != nil {
		return nil, domainerrors.NewAppError(http.StatusBadGateway, domainerrors.CodeBadGateway, "unreadable product list", err)
	}

	items := make([]entities.Product, 0, len(dtos))
	for _, d := range dtos {
		p, err := d.toEntity()
		if err != nil {
			continue
		}
		items = append(items, p)
	}

	size, _ := strconv.Atoi(query.Get("size"))
	page, _ := strconv.Atoi(query.Get("page"))
	out := &entities.ProductPage{
		Items:      items,
		Page:       page,
		Size:       size,
		Total:      info.TotalElements,
		TotalPages: info.TotalPages,
	}
	if info.Number > 0 {
		out.Page = info.Number
	} else if info.Page > 0 {
		out.Page = info.Page
	}
	if info.Size > 0 {
		out.Size = info.Size
	}
	switch {
	case out.Total == 0 && out.TotalPages == 0:
		out.Total = int64(len(items))
		if len(items) > 0 {
			out.TotalPages = 1
		}
	case out.TotalPages == 0:
		out.TotalPages = utils.TotalPages(out.Total, out.Size)
	}
	return out, nil
}

// ListProducts returns one page of the catalogue.
func (c *Client) ListProducts(ctx context.Context, filter entities.ProductFilter) (*entities.ProductPage, error) {
	return c.productPage(ctx, "/api/v1/products/get-all-products", filter)
}

// SearchProducts runs a keyword search.
func (c *Client) SearchProducts(ctx context.Context, filter entities.ProductFilter) (*entities.ProductPage, error) {
	if filter.Query == "" {
		return nil, domainerrors.BadRequest("search query is required")
	}
	return c.productPage(ctx, "/api/v1/products/search", filter)
}

// GetProduct fetches a single product.
func (c *Client) GetProduct(ctx context.Context, id int64) (*entities.Product, error) {
	raw, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v1/products/get-product-by-id/" + strconv.FormatInt(id, 10),
	})
	if err != nil {
		return nil, err
	}

	dto, err := decodeObject[productDTO](raw)
	if err != nil {
		return nil, domainerrors.NewAppError(http.StatusBadGateway, domainerrors.CodeBadGateway, "unreadable product", err)
	}
	p, err := dto.toEntity()
	if err != nil {
		return nil, domainerrors.NewAppError(http.StatusBadGateway, domainerrors.CodeBadGateway, "product without id", err)
	}
	return &p, nil
}
