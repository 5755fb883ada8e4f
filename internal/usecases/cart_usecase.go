package usecases

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"expat-market.storefront/internal/domain/entities"
	domainerrors "expat-market.storefront/internal/domain/errors"
	"expat-market.storefront/internal/domain/repositories"
	"expat-market.storefront/pkg/logger"
)

// DefaultPersistDelay is how long cart snapshots are debounced.
const DefaultPersistDelay = 500 * time.Millisecond

// CartState is a point-in-time view of the cart container.
type CartState struct {
	Items     []entities.CartItem
	IsLoading bool
	Summary   entities.CartSummary
}

// CartUsecase holds the cart as last reported by the backend. Every
// mutation is followed by a full refetch; local state is never merged.
type CartUsecase struct {
	gateway   repositories.CartGateway
	store     repositories.SessionStore
	auth      AuthReader
	notifier  Notifier
	navigator Navigator
	now       func() time.Time

	persistDelay time.Duration

	mu        sync.RWMutex
	items     []entities.CartItem
	selected  map[string]bool
	known     map[string]bool
	isLoading bool
	version   uint64

	memoMu      sync.Mutex
	memoVersion uint64
	memo        *entities.CartSummary

	syncMu   sync.Mutex
	stopSync chan struct{}
}

func NewCartUsecase(
	gateway repositories.CartGateway,
	store repositories.SessionStore,
	auth AuthReader,
	notifier Notifier,
	navigator Navigator,
) *CartUsecase {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &CartUsecase{
		gateway:      gateway,
		store:        store,
		auth:         auth,
		notifier:     notifier,
		navigator:    navigator,
		now:          time.Now,
		persistDelay: DefaultPersistDelay,
		selected:     make(map[string]bool),
		known:        make(map[string]bool),
	}
}

// SetClock replaces the time source used for snapshot ages.
func (u *CartUsecase) SetClock(now func() time.Time) {
	u.now = now
}

// SetPersistDelay overrides the snapshot debounce window.
func (u *CartUsecase) SetPersistDelay(d time.Duration) {
	u.persistDelay = d
}

// Items returns the current lines with their selection flags applied.
func (u *CartUsecase) Items() []entities.CartItem {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.itemsLocked()
}

func (u *CartUsecase) itemsLocked() []entities.CartItem {
	out := make([]entities.CartItem, len(u.items))
	for i, item := range u.items {
		item.Selected = u.selected[item.ID]
		out[i] = item
	}
	return out
}

func (u *CartUsecase) IsLoading() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.isLoading
}

// Summary returns the derived cart figures. The result is recomputed
// only after items or selection change.
func (u *CartUsecase) Summary() entities.CartSummary {
	u.mu.RLock()
	version := u.version
	items := u.itemsLocked()
	u.mu.RUnlock()

	u.memoMu.Lock()
	defer u.memoMu.Unlock()
	if u.memo != nil && u.memoVersion == version {
		return *u.memo
	}
	summary := entities.SummarizeCart(items)
	u.memo = &summary
	u.memoVersion = version
	return summary
}

func (u *CartUsecase) Snapshot() CartState {
	return CartState{Items: u.Items(), IsLoading: u.IsLoading(), Summary: u.Summary()}
}

func (u *CartUsecase) quantityOf(productID string) int {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, item := range u.items {
		if item.ID == productID {
			return item.Quantity
		}
	}
	return 0
}

// AddToCart adds quantity (default 1) of a product. The combined line
// quantity may not exceed entities.MaxItemQuantity.
func (u *CartUsecase) AddToCart(ctx context.Context, productID string, quantity int) error {
	if err := u.requireLogin(); err != nil {
		return err
	}
	if quantity <= 0 {
		quantity = 1
	}
	if u.quantityOf(productID)+quantity > entities.MaxItemQuantity {
		return u.quantityLimit()
	}

	return u.mutate(ctx, "Could not add item", func() error {
		return u.gateway.AddToCart(ctx, productID, quantity)
	}, &Toast{Title: "Added to cart", Variant: ToastSuccess})
}

// RemoveFromCart drops a line.
func (u *CartUsecase) RemoveFromCart(ctx context.Context, productID string) error {
	if err := u.requireLogin(); err != nil {
		return err
	}
	return u.mutate(ctx, "Could not remove item", func() error {
		return u.gateway.RemoveFromCart(ctx, productID)
	}, &Toast{Title: "Removed from cart", Variant: ToastDefault})
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line;
// above the ceiling fails without touching state.
func (u *CartUsecase) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if err := u.requireLogin(); err != nil {
		return err
	}
	if quantity <= 0 {
		return u.RemoveFromCart(ctx, productID)
	}
	if quantity > entities.MaxItemQuantity {
		return u.quantityLimit()
	}
	return u.mutate(ctx, "Could not update quantity", func() error {
		return u.gateway.UpdateCartItem(ctx, productID, quantity)
	}, nil)
}

// ClearCart empties the cart.
func (u *CartUsecase) ClearCart(ctx context.Context) error {
	if err := u.requireLogin(); err != nil {
		return err
	}
	return u.mutate(ctx, "Could not clear cart", func() error {
		return u.gateway.ClearCart(ctx)
	}, &Toast{Title: "Cart cleared", Description: "All items were removed from your cart.", Variant: ToastDefault})
}

// SyncCart reconciles with the backend. Failures are logged only.
func (u *CartUsecase) SyncCart(ctx context.Context) error {
	if !u.auth.IsLoggedIn() {
		return nil
	}
	items, err := u.gateway.GetUserCart(ctx)
	if err != nil {
		logger.Warn(ctx, "Cart sync failed", zap.Error(err))
		return domainerrors.Normalize(err)
	}
	u.replace(items)
	u.persist(ctx)
	return nil
}

// LoadCart performs the initial load, falling back to the persisted
// snapshot of the same user when the backend is unavailable.
func (u *CartUsecase) LoadCart(ctx context.Context) error {
	if !u.auth.IsLoggedIn() {
		return nil
	}

	u.setLoading(true)
	items, err := u.gateway.GetUserCart(ctx)
	u.setLoading(false)
	if err == nil {
		u.replace(items)
		u.persist(ctx)
		return nil
	}

	appErr := domainerrors.Normalize(err)
	logger.Warn(ctx, "Loading cart failed, trying snapshot", zap.Error(err))
	if u.restoreSnapshot(ctx) {
		return nil
	}
	u.toastFailure("Could not load cart", appErr)
	return appErr
}

func (u *CartUsecase) restoreSnapshot(ctx context.Context) bool {
	user := u.auth.CurrentUser()
	if user == nil {
		return false
	}
	key := entities.CartKeyFor(user.ID)

	var snap entities.CartSnapshot
	if err := u.store.GetItem(ctx, key, &snap); err != nil {
		if !errors.Is(err, repositories.ErrItemNotFound) {
			logger.Warn(ctx, "Reading cart snapshot failed", zap.Error(err))
		}
		return false
	}
	if !snap.ValidFor(user.ID, u.now()) {
		if err := u.store.RemoveItem(ctx, key); err != nil {
			logger.Warn(ctx, "Removing stale cart snapshot failed", zap.Error(err))
		}
		return false
	}

	u.mu.Lock()
	u.items = append([]entities.CartItem(nil), snap.Items...)
	u.selected = make(map[string]bool, len(snap.Items))
	u.known = make(map[string]bool, len(snap.Items))
	for _, item := range snap.Items {
		u.known[item.ID] = true
	}
	for _, id := range snap.SelectedItems {
		if u.known[id] {
			u.selected[id] = true
		}
	}
	u.version++
	u.mu.Unlock()
	return true
}

// ToggleSelection flips whether a line is part of the partial checkout.
func (u *CartUsecase) ToggleSelection(ctx context.Context, productID string) {
	u.mu.Lock()
	if !u.known[productID] {
		u.mu.Unlock()
		return
	}
	u.selected[productID] = !u.selected[productID]
	u.version++
	u.mu.Unlock()
	u.persist(ctx)
}

func (u *CartUsecase) SelectAll(ctx context.Context) {
	u.setAllSelected(ctx, true)
}

func (u *CartUsecase) DeselectAll(ctx context.Context) {
	u.setAllSelected(ctx, false)
}

func (u *CartUsecase) setAllSelected(ctx context.Context, v bool) {
	u.mu.Lock()
	for _, item := range u.items {
		u.selected[item.ID] = v
	}
	u.version++
	u.mu.Unlock()
	u.persist(ctx)
}

func (u *CartUsecase) IsSelected(productID string) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.selected[productID]
}

// ContactExpat opens a conversation with the seller of a product.
// Only users with a verified organization email may do so.
func (u *CartUsecase) ContactExpat(ctx context.Context, expatID, productID string) error {
	if err := u.requireLogin(); err != nil {
		return err
	}
	if !u.auth.CanContact() {
		appErr := domainerrors.NewAppError(http.StatusForbidden, domainerrors.CodeVerificationNeeded, "organization email verification required", domainerrors.ErrForbidden)
		appErr.UserMessage = "Verify your organization email to contact sellers."
		u.notifier.Notify(Toast{Title: "Verification required", Description: appErr.UserMessage, Variant: ToastDestructive})
		return appErr
	}

	q := url.Values{}
	q.Set("expat", expatID)
	q.Set("product", productID)
	if u.navigator != nil {
		u.navigator.Navigate("/messages?" + q.Encode())
	}
	return nil
}

// Reset clears the cart on logout. Pending snapshot writes are flushed
// first so none of them land after the removal.
func (u *CartUsecase) Reset(ctx context.Context) {
	if err := u.store.FlushPendingWrites(ctx); err != nil {
		logger.Warn(ctx, "Flushing cart writes failed", zap.Error(err))
	}

	keys := []string{entities.CartItemsKey}
	if user := u.auth.CurrentUser(); user != nil && user.ID != "" {
		keys = append(keys, entities.CartKeyFor(user.ID))
	}
	for _, key := range keys {
		if err := u.store.RemoveItem(ctx, key); err != nil {
			logger.Warn(ctx, "Removing cart snapshot failed", zap.String("key", key), zap.Error(err))
		}
	}

	u.mu.Lock()
	u.items = nil
	u.selected = make(map[string]bool)
	u.known = make(map[string]bool)
	u.isLoading = false
	u.version++
	u.mu.Unlock()
}

// StartAutoSync reconciles the cart every interval until ctx is done or
// StopAutoSync is called. It blocks.
func (u *CartUsecase) StartAutoSync(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	u.syncMu.Lock()
	if u.stopSync != nil {
		u.syncMu.Unlock()
		return
	}
	stop := make(chan struct{})
	u.stopSync = stop
	u.syncMu.Unlock()

	logger.Info(ctx, "Starting cart auto-sync", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Cart auto-sync stopped (context cancelled)")
			u.clearStop(stop)
			return
		case <-stop:
			logger.Info(ctx, "Cart auto-sync stopped")
			return
		case <-ticker.C:
			_ = u.SyncCart(ctx)
		}
	}
}

func (u *CartUsecase) StopAutoSync() {
	u.syncMu.Lock()
	defer u.syncMu.Unlock()
	if u.stopSync != nil {
		close(u.stopSync)
		u.stopSync = nil
	}
}

func (u *CartUsecase) clearStop(stop chan struct{}) {
	u.syncMu.Lock()
	defer u.syncMu.Unlock()
	if u.stopSync == stop {
		u.stopSync = nil
	}
}

func (u *CartUsecase) mutate(ctx context.Context, failTitle string, call func() error, success *Toast) error {
	u.setLoading(true)

	if err := call(); err != nil {
		u.setLoading(false)
		appErr := domainerrors.Normalize(err)
		logger.Warn(ctx, "Cart operation failed", zap.String("operation", failTitle), zap.Error(err))
		u.toastFailure(failTitle, appErr)
		return appErr
	}

	items, err := u.gateway.GetUserCart(ctx)
	if err != nil {
		u.setLoading(false)
		appErr := domainerrors.Normalize(err)
		logger.Warn(ctx, "Cart refetch failed", zap.Error(err))
		u.toastFailure(failTitle, appErr)
		return appErr
	}

	u.replace(items)
	u.setLoading(false)
	u.persist(ctx)

	if success != nil {
		u.notifier.Notify(*success)
	}
	return nil
}

// replace swaps in the backend's lines. Newly seen lines start selected;
// lines that disappeared lose their selection.
func (u *CartUsecase) replace(items []entities.CartItem) {
	u.mu.Lock()
	defer u.mu.Unlock()

	present := make(map[string]bool, len(items))
	for _, item := range items {
		present[item.ID] = true
		if !u.known[item.ID] {
			u.known[item.ID] = true
			u.selected[item.ID] = true
		}
	}
	for id := range u.known {
		if !present[id] {
			delete(u.known, id)
			delete(u.selected, id)
		}
	}

	u.items = append([]entities.CartItem(nil), items...)
	u.version++
}

func (u *CartUsecase) persist(ctx context.Context) {
	user := u.auth.CurrentUser()
	if user == nil || user.ID == "" {
		return
	}

	u.mu.RLock()
	snap := entities.CartSnapshot{
		Items:     u.itemsLocked(),
		Timestamp: u.now().UnixMilli(),
		UserID:    user.ID,
	}
	for id, on := range u.selected {
		if on {
			snap.SelectedItems = append(snap.SelectedItems, id)
		}
	}
	u.mu.RUnlock()
	sort.Strings(snap.SelectedItems)

	if err := u.store.SetItemDebounced(entities.CartKeyFor(user.ID), snap, u.persistDelay); err != nil {
		logger.Warn(ctx, "Scheduling cart snapshot failed", zap.Error(err))
	}
}

func (u *CartUsecase) setLoading(v bool) {
	u.mu.Lock()
	u.isLoading = v
	u.mu.Unlock()
}

func (u *CartUsecase) requireLogin() error {
	if u.auth.IsLoggedIn() {
		return nil
	}
	appErr := domainerrors.LoginRequired()
	u.notifier.Notify(Toast{Title: "Login required", Description: appErr.UserMessage, Variant: ToastDefault})
	return appErr
}

func (u *CartUsecase) quantityLimit() error {
	appErr := domainerrors.NewAppError(http.StatusBadRequest, domainerrors.CodeQuantityLimit, "quantity limit exceeded", domainerrors.ErrQuantityLimit)
	appErr.UserMessage = "You can have at most 10 of an item in your cart."
	u.notifier.Notify(Toast{Title: "Quantity limit", Description: appErr.UserMessage, Variant: ToastDestructive})
	return appErr
}

// toastFailure shows a destructive toast, except for the backend's HTML
// login page which becomes a plain login prompt.
func (u *CartUsecase) toastFailure(title string, appErr *domainerrors.AppError) {
	if appErr.Code == domainerrors.CodeLoginRedirect {
		u.notifier.Notify(Toast{Title: "Please log in", Description: appErr.UserMessage, Variant: ToastDefault})
		return
	}
	u.notifier.Notify(Toast{Title: title, Description: appErr.UserMessage, Variant: ToastDestructive})
}
