package backend

import (
	"context"
	"net/http"
	"net/url"

	domainerrors "expat-market.storefront/internal/domain/errors"
)

type oauthResponse struct {
	AuthURL string `json:"authUrl"`
	URL     string `json:"url"`
}

// GoogleOAuthURL asks the backend where to send the browser for Google
// sign-in. nextPath is where the user lands afterwards.
func (c *Client) GoogleOAuthURL(ctx context.Context, nextPath string) (string, error) {
	query := url.Values{}
	if nextPath != "" {
		query.Set("nextPath", nextPath)
	}

	raw, err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v1/oauth2/login/google",
		query:  query,
	})
	if err != nil {
		return "", err
	}

	resp, err := decodeObject[oauthResponse](raw)
	if err != nil {
		return "", domainerrors.NewAppError(http.StatusBadGateway, domainerrors.CodeBadGateway, "unreadable oauth response", err)
	}
	authURL := firstNonEmpty(resp.AuthURL, resp.URL)
	if authURL == "" {
		return "", domainerrors.NewAppError(http.StatusBadGateway, domainerrors.CodeBadGateway, "oauth response carried no url", nil)
	}
	return authURL, nil
}
