package usecases_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"expat-market.storefront/internal/domain/entities"
	domainerrors "expat-market.storefront/internal/domain/errors"
	"expat-market.storefront/internal/domain/repositories"
	"expat-market.storefront/internal/infrastructure/sessionstore"
	"expat-market.storefront/internal/usecases"
)

type cartFixture struct {
	cart     *usecases.CartUsecase
	gateway  *MockCartGateway
	store    *sessionstore.Store
	auth     *fakeAuth
	notifier *recordingNotifier
	paths    []string
}

func newCartFixture(loggedIn bool) *cartFixture {
	f := &cartFixture{
		gateway:  new(MockCartGateway),
		store:    sessionstore.New(sessionstore.NewMemoryKV()),
		notifier: &recordingNotifier{},
		auth:     &fakeAuth{},
	}
	if loggedIn {
		f.auth.loggedIn = true
		f.auth.user = janeUser(entities.VerificationStatus{})
	}
	f.cart = usecases.NewCartUsecase(f.gateway, f.store, f.auth, f.notifier,
		usecases.NavigatorFunc(func(p string) { f.paths = append(f.paths, p) }))
	f.cart.SetClock(func() time.Time { return fixedNow })
	f.cart.SetPersistDelay(time.Hour)
	return f
}

func line(id string, qty int, price float64) entities.CartItem {
	return entities.CartItem{ID: id, Title: "item " + id, Price: price, Quantity: qty, Currency: "TZS", ExpatID: "s1", ExpatName: "Sam"}
}

func TestCartUsecase_RequiresLogin(t *testing.T) {
	f := newCartFixture(false)
	ctx := context.Background()

	for _, err := range []error{
		f.cart.AddToCart(ctx, "1", 1),
		f.cart.RemoveFromCart(ctx, "1"),
		f.cart.UpdateQuantity(ctx, "1", 2),
		f.cart.ClearCart(ctx),
		f.cart.ContactExpat(ctx, "s1", "1"),
	} {
		assert.ErrorIs(t, err, domainerrors.ErrLoginRequired)
		assert.Equal(t, domainerrors.KindAuthentication, domainerrors.KindOf(err))
	}
	assert.Equal(t, 5, f.notifier.count())
	assert.Equal(t, "Login required", f.notifier.last().Title)

	assert.NoError(t, f.cart.SyncCart(ctx))
	assert.NoError(t, f.cart.LoadCart(ctx))
	f.gateway.AssertNotCalled(t, "GetUserCart", mock.Anything)
}

func TestCartUsecase_AddToCart_RefetchesAndSelects(t *testing.T) {
	f := newCartFixture(true)
	ctx := context.Background()

	f.gateway.On("AddToCart", mock.Anything, "1", 1).Return(nil)
	f.gateway.On("GetUserCart", mock.Anything).Return([]entities.CartItem{line("1", 2, 1000), line("2", 1, 500)}, nil)

	require.NoError(t, f.cart.AddToCart(ctx, "1", 0))

	items := f.cart.Items()
	require.Len(t, items, 2)
	assert.True(t, items[0].Selected)
	assert.True(t, items[1].Selected)
	assert.False(t, f.cart.IsLoading())

	summary := f.cart.Summary()
	assert.Equal(t, 3, summary.ItemCount)
	assert.True(t, summary.Subtotal.Equal(decimal.NewFromInt(2500)))
	assert.False(t, summary.HasMixedCurrencies)
	assert.Equal(t, "Added to cart", f.notifier.last().Title)

	// persisted through the debounced path
	assert.Equal(t, 1, f.store.Pending())
	require.NoError(t, f.store.FlushPendingWrites(ctx))
	var snap entities.CartSnapshot
	require.NoError(t, f.store.GetItem(ctx, entities.CartKeyFor("jane@un.org"), &snap))
	assert.Equal(t, "jane@un.org", snap.UserID)
	assert.Equal(t, []string{"1", "2"}, snap.SelectedItems)
}

func TestCartUsecase_QuantityLimit(t *testing.T) {
	f := newCartFixture(true)
	ctx := context.Background()

	f.gateway.On("GetUserCart", mock.Anything).Return([]entities.CartItem{line("1", 9, 10)}, nil)
	require.NoError(t, f.cart.SyncCart(ctx))

	err := f.cart.AddToCart(ctx, "1", 2)
	assert.ErrorIs(t, err, domainerrors.ErrQuantityLimit)
	assert.Equal(t, domainerrors.KindValidation, domainerrors.KindOf(err))

	err = f.cart.UpdateQuantity(ctx, "1", 11)
	assert.ErrorIs(t, err, domainerrors.ErrQuantityLimit)

	f.gateway.AssertNotCalled(t, "AddToCart", mock.Anything, mock.Anything, mock.Anything)
	f.gateway.AssertNotCalled(t, "UpdateCartItem", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 9, f.cart.Items()[0].Quantity)
}

func TestCartUsecase_UpdateQuantity(t *testing.T) {
	f := newCartFixture(true)
	ctx := context.Background()

	f.gateway.On("UpdateCartItem", mock.Anything, "1", 4).Return(nil)
	f.gateway.On("RemoveFromCart", mock.Anything, "2").Return(nil)
	f.gateway.On("GetUserCart", mock.Anything).Return([]entities.CartItem{line("1", 4, 10)}, nil)

	require.NoError(t, f.cart.UpdateQuantity(ctx, "1", 4))
	require.NoError(t, f.cart.UpdateQuantity(ctx, "2", 0))

	f.gateway.AssertCalled(t, "RemoveFromCart", mock.Anything, "2")
	f.gateway.AssertNotCalled(t, "UpdateCartItem", mock.Anything, "2", 0)
	assert.Equal(t, "Removed from cart", f.notifier.last().Title)
}

func TestCartUsecase_FailureLeavesItemsUntouched(t *testing.T) {
	f := newCartFixture(true)
	ctx := context.Background()

	f.gateway.On("GetUserCart", mock.Anything).Return([]entities.CartItem{line("1", 1, 10)}, nil).Once()
	require.NoError(t, f.cart.SyncCart(ctx))

	f.gateway.On("RemoveFromCart", mock.Anything, "1").Return(domainerrors.FromStatus(http.StatusInternalServerError, ""))
	err := f.cart.RemoveFromCart(ctx, "1")
	require.Error(t, err)
	assert.Equal(t, domainerrors.KindServer, domainerrors.KindOf(err))
	assert.Len(t, f.cart.Items(), 1)
	assert.False(t, f.cart.IsLoading())
	assert.Equal(t, usecases.ToastDestructive, f.notifier.last().Variant)

	f.gateway.On("ClearCart", mock.Anything).Return(nil)
	f.gateway.On("GetUserCart", mock.Anything).Return(nil, domainerrors.Network(errors.New("offline"))).Once()
	err = f.cart.ClearCart(ctx)
	assert.Equal(t, domainerrors.KindNetwork, domainerrors.KindOf(err))
	assert.Len(t, f.cart.Items(), 1)
	assert.False(t, f.cart.IsLoading())
}

func TestCartUsecase_HTMLLoginPageBecomesPrompt(t *testing.T) {
	f := newCartFixture(true)
	f.gateway.On("ClearCart", mock.Anything).Return(domainerrors.LoginRedirect())

	err := f.cart.ClearCart(context.Background())
	assert.ErrorIs(t, err, domainerrors.ErrLoginRedirect)
	assert.Equal(t, "Please log in", f.notifier.last().Title)
	assert.Equal(t, usecases.ToastDefault, f.notifier.last().Variant)
}

func TestCartUsecase_SyncFailureIsSilent(t *testing.T) {
	f := newCartFixture(true)
	f.gateway.On("GetUserCart", mock.Anything).Return(nil, errors.New("fetch failed"))

	err := f.cart.SyncCart(context.Background())
	assert.Equal(t, domainerrors.KindNetwork, domainerrors.KindOf(err))
	assert.Zero(t, f.notifier.count())
}

func TestCartUsecase_LoadCart_SnapshotFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("same user snapshot is used", func(t *testing.T) {
		f := newCartFixture(true)
		require.NoError(t, f.store.SetItem(ctx, entities.CartKeyFor("jane@un.org"), entities.CartSnapshot{
			Items:         []entities.CartItem{line("1", 1, 10), line("2", 1, 20)},
			SelectedItems: []string{"2"},
			Timestamp:     fixedNow.Add(-time.Hour).UnixMilli(),
			UserID:        "jane@un.org",
		}))
		f.gateway.On("GetUserCart", mock.Anything).Return(nil, errors.New("network error"))

		require.NoError(t, f.cart.LoadCart(ctx))
		assert.Len(t, f.cart.Items(), 2)
		assert.False(t, f.cart.IsSelected("1"))
		assert.True(t, f.cart.IsSelected("2"))
		assert.True(t, f.cart.Summary().Selected.Subtotal.Equal(decimal.NewFromInt(20)))
	})

	t.Run("other user snapshot is discarded", func(t *testing.T) {
		f := newCartFixture(true)
		key := entities.CartKeyFor("jane@un.org")
		require.NoError(t, f.store.SetItem(ctx, key, entities.CartSnapshot{
			Items:     []entities.CartItem{line("1", 1, 10)},
			Timestamp: fixedNow.UnixMilli(),
			UserID:    "mallory@x.org",
		}))
		f.gateway.On("GetUserCart", mock.Anything).Return(nil, errors.New("network error"))

		err := f.cart.LoadCart(ctx)
		require.Error(t, err)
		assert.Empty(t, f.cart.Items())
		var snap entities.CartSnapshot
		assert.ErrorIs(t, f.store.GetItem(ctx, key, &snap), repositories.ErrItemNotFound)
		assert.Equal(t, "Could not load cart", f.notifier.last().Title)
	})

	t.Run("backend wins when available", func(t *testing.T) {
		f := newCartFixture(true)
		f.gateway.On("GetUserCart", mock.Anything).Return([]entities.CartItem{line("9", 1, 10)}, nil)
		require.NoError(t, f.cart.LoadCart(ctx))
		assert.Equal(t, "9", f.cart.Items()[0].ID)
	})
}

func TestCartUsecase_Selection(t *testing.T) {
	f := newCartFixture(true)
	ctx := context.Background()

	f.gateway.On("GetUserCart", mock.Anything).Return([]entities.CartItem{line("1", 1, 10), line("2", 2, 5)}, nil).Once()
	require.NoError(t, f.cart.SyncCart(ctx))

	first := f.cart.Summary()
	assert.Equal(t, 3, first.Selected.ItemCount)

	f.cart.ToggleSelection(ctx, "2")
	assert.False(t, f.cart.IsSelected("2"))
	assert.Equal(t, 1, f.cart.Summary().Selected.ItemCount)

	f.cart.ToggleSelection(ctx, "missing")
	assert.False(t, f.cart.IsSelected("missing"))

	f.cart.DeselectAll(ctx)
	assert.Zero(t, f.cart.Summary().Selected.ItemCount)
	f.cart.SelectAll(ctx)
	assert.Equal(t, 3, f.cart.Summary().Selected.ItemCount)

	// a deselected line stays deselected across refetches, new lines start selected
	f.cart.ToggleSelection(ctx, "1")
	f.gateway.On("GetUserCart", mock.Anything).Return([]entities.CartItem{line("1", 1, 10), line("3", 1, 1)}, nil).Once()
	require.NoError(t, f.cart.SyncCart(ctx))
	assert.False(t, f.cart.IsSelected("1"))
	assert.True(t, f.cart.IsSelected("3"))
	assert.False(t, f.cart.IsSelected("2"))
}

func TestCartUsecase_SummaryIsMemoized(t *testing.T) {
	f := newCartFixture(true)
	f.gateway.On("GetUserCart", mock.Anything).Return([]entities.CartItem{line("1", 1, 10)}, nil)
	require.NoError(t, f.cart.SyncCart(context.Background()))

	a := f.cart.Summary()
	b := f.cart.Summary()
	assert.Equal(t, a, b)
	state := f.cart.Snapshot()
	assert.Equal(t, 1, state.Summary.ItemCount)
}

func TestCartUsecase_ContactExpat(t *testing.T) {
	f := newCartFixture(true)
	ctx := context.Background()

	err := f.cart.ContactExpat(ctx, "s1", "42")
	assert.Equal(t, domainerrors.KindPermission, domainerrors.KindOf(err))
	assert.Empty(t, f.paths)

	f.auth.canContact = true
	require.NoError(t, f.cart.ContactExpat(ctx, "s1", "42"))
	assert.Equal(t, []string{"/messages?expat=s1&product=42"}, f.paths)
}

func TestCartUsecase_ResetFlushesBeforeClearing(t *testing.T) {
	f := newCartFixture(true)
	ctx := context.Background()

	f.gateway.On("GetUserCart", mock.Anything).Return([]entities.CartItem{line("1", 1, 10)}, nil)
	require.NoError(t, f.cart.SyncCart(ctx))
	assert.Equal(t, 1, f.store.Pending())

	f.cart.Reset(ctx)

	assert.Zero(t, f.store.Pending())
	assert.Empty(t, f.cart.Items())
	var snap entities.CartSnapshot
	assert.ErrorIs(t, f.store.GetItem(ctx, entities.CartKeyFor("jane@un.org"), &snap), repositories.ErrItemNotFound)
}

func TestCartUsecase_AutoSync(t *testing.T) {
	f := newCartFixture(true)
	f.gateway.On("GetUserCart", mock.Anything).Return([]entities.CartItem{line("1", 1, 10)}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.cart.StartAutoSync(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(f.cart.Items()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("auto-sync did not stop")
	}

	stopped := make(chan struct{})
	go func() {
		f.cart.StartAutoSync(context.Background(), 10*time.Millisecond)
		close(stopped)
	}()
	assert.Eventually(t, func() bool {
		f.cart.StopAutoSync()
		select {
		case <-stopped:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}
