package backend

import (
	"context"
	"net/http"
	"strings"

	"github.com/volatiletech/null/v8"

	"expat-market.storefront/internal/domain/entities"
	domainerrors "expat-market.storefront/internal/domain/errors"
	"expat-market.storefront/internal/domain/repositories"
)

var _ repositories.AuthGateway = (*Client)(nil)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string   `json:"token"`
	AccessToken string   `json:"accessToken"`
	User        *userDTO `json:"user"`
}

// userDTO is the backend's user representation. Verification flags are
// sent either flat or nested under verificationStatus.
type userDTO struct {
	FirstName                   string                       `json:"firstName"`
	LastName                    string                       `json:"lastName"`
	Email                       string                       `json:"email"`
	OrganizationEmail           null.String                  `json:"organizationEmail"`
	Role                        string                       `json:"role"`
	IsIdentityVerified          bool                         `json:"isIdentityVerified"`
	IsOrganizationEmailVerified bool                         `json:"isOrganizationEmailVerified"`
	VerificationStatus          *entities.VerificationStatus `json:"verificationStatus"`
}

func (d *userDTO) toEntity() *entities.User {
	status := entities.VerificationStatus{}
	if d.VerificationStatus != nil {
		status = *d.VerificationStatus
	}
	status.IsIdentityVerified = status.IsIdentityVerified || d.IsIdentityVerified
	status.IsOrganizationEmailVerified = status.IsOrganizationEmailVerified || d.IsOrganizationEmailVerified

	role := entities.UserRoleUser
	if strings.EqualFold(d.Role, string(entities.UserRoleAdmin)) {
		role = entities.UserRoleAdmin
	}

	return &entities.User{
		ID:                entities.UserIDFromEmail(d.Email),
		FirstName:         d.FirstName,
		LastName:          d.LastName,
		Email:             d.Email,
		OrganizationEmail: d.OrganizationEmail,
		Role:              role,
		Verification:      status,
	}
}

// Login checks credentials and returns the bearer token.
func (c *Client) Login(ctx context.Context, input *entities.LoginInput) (*entities.LoginResult, error) {
	raw, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   loginRequest{Email: input.Email, Password: input.Password},
	})
	if err != nil {
		return nil, err
	}

	resp, err := decodeObject[loginResponse](raw)
	if err != nil {
		return nil, domainerrors.NewAppError(http.StatusBadGateway, domainerrors.CodeBadGateway, "unreadable login response", err)
	}

	token := firstNonEmpty(resp.Token, resp.AccessToken)
	if token == "" {
		return nil, domainerrors.NewAppError(http.StatusBadGateway, domainerrors.CodeBadGateway, "login response carried no token", nil)
	}

	result := &entities.LoginResult{Token: token}
	if resp.User != nil && resp.User.Email != "" {
		result.User = resp.User.toEntity()
	}
	return result, nil
}

// Register creates an account. It does not sign the user in.
func (c *Client) Register(ctx context.Context, input *entities.RegisterInput) error {
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/auth/register",
		body:   input,
	})
	return err
}

// Logout invalidates the token server-side.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, request{method: http.MethodPost, path: "/api/v1/auth/logout"})
	return err
}

// GetUserDetails fetches the authoritative profile and verification flags.
func (c *Client) GetUserDetails(ctx context.Context) (*entities.User, error) {
	raw, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/users/get-user-details"})
	if err != nil {
		return nil, err
	}

	dto, err := decodeObject[userDTO](raw)
	if err != nil {
		return nil, domainerrors.NewAppError(http.StatusBadGateway, domainerrors.CodeBadGateway, "unreadable user details", err)
	}
	if dto.Email == "" {
		return nil, domainerrors.NewAppError(http.StatusBadGateway, domainerrors.CodeBadGateway, "user details carried no email", nil)
	}
	return dto.toEntity(), nil
}

type profileUpdate struct {
	FirstName         *string `json:"firstName,omitempty"`
	LastName          *string `json:"lastName,omitempty"`
	Email             *string `json:"email,omitempty"`
	OrganizationEmail *string `json:"organizationEmail,omitempty"`
}

// UpdateProfile sends the editable profile fields of patch.
func (c *Client) UpdateProfile(ctx context.Context, patch entities.UserPatch) error {
	_, err := c.do(ctx, request{
		method: http.MethodPut,
		path:   "/api/v1/users/update-profile",
		body: profileUpdate{
			FirstName:         patch.FirstName,
			LastName:          patch.LastName,
			Email:             patch.Email,
			OrganizationEmail: patch.OrganizationEmail,
		},
	})
	return err
}

// RequestOrganizationEmailOTP asks the backend to mail a one-time code.
func (c *Client) RequestOrganizationEmailOTP(ctx context.Context, email string) error {
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/email/send-otp",
		body:   map[string]string{"email": email},
	})
	return err
}

// VerifyOrganizationEmail submits the one-time code.
func (c *Client) VerifyOrganizationEmail(ctx context.Context, email, otp, role string) error {
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/email/verify-otp",
		body:   map[string]string{"email": email, "otp": otp, "role": role},
	})
	return err
}
