package repositories

import (
	"context"

	"expat-market.storefront/internal/domain/entities"
)

// AuthGateway defines the backend's identity endpoints
type AuthGateway interface {
	SetBearerToken(token string)
	Login(ctx context.Context, input *entities.LoginInput) (*entities.LoginResult, error)
	Register(ctx context.Context, input *entities.RegisterInput) error
	Logout(ctx context.Context) error
	GetUserDetails(ctx context.Context) (*entities.User, error)
	UpdateProfile(ctx context.Context, patch entities.UserPatch) error
	RequestOrganizationEmailOTP(ctx context.Context, email string) error
	VerifyOrganizationEmail(ctx context.Context, email, otp, role string) error
}
