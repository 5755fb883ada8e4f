package usecases_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"expat-market.storefront/internal/domain/entities"
	"expat-market.storefront/internal/usecases"
)

// MockAuthGateway
type MockAuthGateway struct {
	mock.Mock
	mu    sync.Mutex
	token string
}

func (m *MockAuthGateway) SetBearerToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

func (m *MockAuthGateway) BearerToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *MockAuthGateway) Login(ctx context.Context, input *entities.LoginInput) (*entities.LoginResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LoginResult), args.Error(1)
}

func (m *MockAuthGateway) Register(ctx context.Context, input *entities.RegisterInput) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

func (m *MockAuthGateway) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAuthGateway) GetUserDetails(ctx context.Context) (*entities.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// hand out a copy so callers cannot alias the fixture
	return args.Get(0).(*entities.User).Clone(), args.Error(1)
}

func (m *MockAuthGateway) UpdateProfile(ctx context.Context, patch entities.UserPatch) error {
	args := m.Called(ctx, patch)
	return args.Error(0)
}

func (m *MockAuthGateway) RequestOrganizationEmailOTP(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockAuthGateway) VerifyOrganizationEmail(ctx context.Context, email, otp, role string) error {
	args := m.Called(ctx, email, otp, role)
	return args.Error(0)
}

// MockCartGateway
type MockCartGateway struct {
	mock.Mock
}

func (m *MockCartGateway) GetUserCart(ctx context.Context) ([]entities.CartItem, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return append([]entities.CartItem(nil), args.Get(0).([]entities.CartItem)...), args.Error(1)
}

func (m *MockCartGateway) AddToCart(ctx context.Context, productID string, quantity int) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

func (m *MockCartGateway) UpdateCartItem(ctx context.Context, productID string, quantity int) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

func (m *MockCartGateway) RemoveFromCart(ctx context.Context, productID string) error {
	args := m.Called(ctx, productID)
	return args.Error(0)
}

func (m *MockCartGateway) ClearCart(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// recordingNotifier keeps every toast.
type recordingNotifier struct {
	mu     sync.Mutex
	toasts []usecases.Toast
}

func (r *recordingNotifier) Notify(t usecases.Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
}

func (r *recordingNotifier) last() usecases.Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return usecases.Toast{}
	}
	return r.toasts[len(r.toasts)-1]
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.toasts)
}

// fakeAuth is a settable AuthReader.
type fakeAuth struct {
	mu         sync.Mutex
	user       *entities.User
	loggedIn   bool
	canContact bool
}

func (f *fakeAuth) IsLoggedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loggedIn
}

func (f *fakeAuth) CurrentUser() *entities.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user.Clone()
}

func (f *fakeAuth) CanContact() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canContact
}

// MockProductGateway
type MockProductGateway struct {
	mock.Mock
}

func (m *MockProductGateway) ListProducts(ctx context.Context, filter entities.ProductFilter) (*entities.ProductPage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ProductPage), args.Error(1)
}

func (m *MockProductGateway) GetProduct(ctx context.Context, id int64) (*entities.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Product), args.Error(1)
}

func (m *MockProductGateway) SearchProducts(ctx context.Context, filter entities.ProductFilter) (*entities.ProductPage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ProductPage), args.Error(1)
}
