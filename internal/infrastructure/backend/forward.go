package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	domainerrors "expat-market.storefront/internal/domain/errors"
)

// ForwardRequest is a pass-through call whose body is already encoded.
type ForwardRequest struct {
	Method      string
	Path        string
	Body        io.Reader
	ContentType string
	// Authorization overrides the client's own bearer token when set.
	Authorization string
}

// ForwardResponse carries the backend answer untouched.
type ForwardResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

// IsJSON reports whether the backend answered with JSON.
func (r *ForwardResponse) IsJSON() bool {
	return strings.Contains(strings.ToLower(r.ContentType), "json")
}

// Forward sends req and returns whatever the backend answered. Only
// transport failures are errors; status codes are left to the caller.
func (c *Client) Forward(ctx context.Context, req ForwardRequest) (*ForwardResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.endpoint(req.Path, nil), req.Body)
	if err != nil {
		return nil, domainerrors.InternalError(fmt.Errorf("creating HTTP request: %w", err))
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	switch {
	case req.Authorization != "":
		httpReq.Header.Set("Authorization", req.Authorization)
	case c.BearerToken() != "":
		httpReq.Header.Set("Authorization", "Bearer "+c.BearerToken())
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domainerrors.Normalize(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domainerrors.Normalize(err)
	}

	return &ForwardResponse{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// UpdateProduct forwards an already-normalized multipart body to the
// backend's product update endpoint.
func (c *Client) UpdateProduct(ctx context.Context, id string, body io.Reader, contentType, authorization string) (*ForwardResponse, error) {
	return c.Forward(ctx, ForwardRequest{
		Method:        http.MethodPatch,
		Path:          "/api/v1/products/update/" + url.PathEscape(id),
		Body:          body,
		ContentType:   contentType,
		Authorization: authorization,
	})
}
