package usecases

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"expat-market.storefront/internal/domain/entities"
	domainerrors "expat-market.storefront/internal/domain/errors"
	"expat-market.storefront/internal/domain/repositories"
	"expat-market.storefront/pkg/jwt"
	"expat-market.storefront/pkg/logger"
)

// AuthState is a point-in-time view of the auth container.
type AuthState struct {
	User       *entities.User
	IsLoggedIn bool
	IsLoading  bool
}

// AuthUsecase owns the logged-in user, the bearer token and their
// persisted snapshots. Construct one per process and share it.
type AuthUsecase struct {
	gateway  repositories.AuthGateway
	store    repositories.SessionStore
	notifier Notifier
	validate *validator.Validate
	now      func() time.Time

	mu         sync.RWMutex
	user       *entities.User
	token      string
	isLoggedIn bool
	isLoading  bool

	hooksMu     sync.Mutex
	onLogin     []LoginHook
	onLogout    []LogoutHook
	subscribers map[int]func(AuthState)
	nextSubID   int
}

var _ AuthReader = (*AuthUsecase)(nil)

// NewAuthUsecase creates the auth container. It starts in the loading
// state until RestoreSession runs.
func NewAuthUsecase(gateway repositories.AuthGateway, store repositories.SessionStore, notifier Notifier) *AuthUsecase {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &AuthUsecase{
		gateway:     gateway,
		store:       store,
		notifier:    notifier,
		validate:    newValidator(),
		now:         time.Now,
		isLoading:   true,
		subscribers: make(map[int]func(AuthState)),
	}
}

// SetClock replaces the time source used for snapshot ages.
func (u *AuthUsecase) SetClock(now func() time.Time) {
	u.now = now
}

// OnLogin registers a hook run after every successful login or restore.
func (u *AuthUsecase) OnLogin(h LoginHook) {
	u.hooksMu.Lock()
	defer u.hooksMu.Unlock()
	u.onLogin = append(u.onLogin, h)
}

// OnLogout registers a hook run before state is cleared on logout.
func (u *AuthUsecase) OnLogout(h LogoutHook) {
	u.hooksMu.Lock()
	defer u.hooksMu.Unlock()
	u.onLogout = append(u.onLogout, h)
}

// Subscribe calls fn on every state change. The returned func unsubscribes.
func (u *AuthUsecase) Subscribe(fn func(AuthState)) func() {
	u.hooksMu.Lock()
	defer u.hooksMu.Unlock()
	id := u.nextSubID
	u.nextSubID++
	u.subscribers[id] = fn
	return func() {
		u.hooksMu.Lock()
		defer u.hooksMu.Unlock()
		delete(u.subscribers, id)
	}
}

func (u *AuthUsecase) Snapshot() AuthState {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return AuthState{User: u.user.Clone(), IsLoggedIn: u.isLoggedIn, IsLoading: u.isLoading}
}

func (u *AuthUsecase) IsLoggedIn() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.isLoggedIn
}

func (u *AuthUsecase) IsLoading() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.isLoading
}

// CurrentUser returns a copy of the logged-in user, or nil.
func (u *AuthUsecase) CurrentUser() *entities.User {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.user.Clone()
}

func (u *AuthUsecase) CanBuy() bool {
	return u.capability(func(v entities.VerificationStatus) bool { return v.CanBuy })
}

func (u *AuthUsecase) CanSell() bool {
	return u.capability(func(v entities.VerificationStatus) bool { return v.CanSell })
}

func (u *AuthUsecase) CanContact() bool {
	return u.capability(func(v entities.VerificationStatus) bool { return v.CanContact })
}

func (u *AuthUsecase) capability(pick func(entities.VerificationStatus) bool) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if !u.isLoggedIn || u.user == nil {
		return false
	}
	return pick(u.user.Verification)
}

// Login checks credentials, then fetches the authoritative user details.
// If the details call fails a minimal user with default verification is
// used so a successful credential check always yields a user.
func (u *AuthUsecase) Login(ctx context.Context, input *entities.LoginInput) (*entities.User, error) {
	if err := u.validate.Struct(input); err != nil {
		appErr := validationError(err)
		u.toastError("Login failed", appErr)
		return nil, appErr
	}

	u.setLoading(true)
	defer u.setLoading(false)

	res, err := u.gateway.Login(ctx, input)
	if err != nil {
		appErr := loginError(err)
		logger.Warn(ctx, "Login failed", zap.String("code", appErr.Code), zap.Error(err))
		u.toastError("Login failed", appErr)
		return nil, appErr
	}

	u.gateway.SetBearerToken(res.Token)
	u.persist(ctx, entities.AuthTokenKey, res.Token)

	user, err := u.gateway.GetUserDetails(ctx)
	if err != nil {
		logger.Warn(ctx, "User details unavailable after login, using minimal profile", zap.Error(err))
		user = fallbackUser(input.Email, res.User)
	}
	user.Verification = entities.DeriveVerificationStatus(user.Verification)

	u.mu.Lock()
	u.user = user
	u.token = res.Token
	u.isLoggedIn = true
	u.mu.Unlock()

	u.persist(ctx, entities.UserSessionKey, entities.NewUserSnapshot(user, u.now()))
	u.persist(ctx, entities.RememberMeKey, input.RememberMe)
	if input.RememberMe {
		u.persist(ctx, entities.SavedEmailKey, input.Email)
	} else {
		u.remove(ctx, entities.SavedEmailKey)
	}

	u.notifier.Notify(Toast{
		Title:       "Welcome back",
		Description: "Signed in as " + user.DisplayName(),
		Variant:     ToastSuccess,
	})
	u.runLoginHooks(ctx, user)
	u.publish()

	return user.Clone(), nil
}

func fallbackUser(email string, fromLogin *entities.User) *entities.User {
	if fromLogin != nil && fromLogin.Email != "" {
		return fromLogin.Clone()
	}
	return &entities.User{
		ID:           entities.UserIDFromEmail(email),
		Email:        email,
		Role:         entities.UserRoleUser,
		Verification: entities.DefaultVerificationStatus(),
	}
}

// loginError maps credential failures onto dedicated codes. Everything
// else keeps its own kind so network and server failures stay retryable.
func loginError(err error) *domainerrors.AppError {
	appErr := domainerrors.Normalize(err)
	if appErr.Code == domainerrors.CodeLoginRedirect {
		return appErr
	}
	switch appErr.Status {
	case http.StatusUnauthorized:
		e := domainerrors.NewAppError(http.StatusUnauthorized, domainerrors.CodeInvalidCredentials, "invalid credentials", domainerrors.ErrInvalidCredentials)
		e.UserMessage = "Invalid email or password."
		return e
	case http.StatusNotFound:
		e := domainerrors.NewAppError(http.StatusNotFound, domainerrors.CodeAccountNotFound, "account not found", domainerrors.ErrAccountNotFound)
		e.Kind = domainerrors.KindAuthentication
		e.UserMessage = "No account exists for that email."
		return e
	}
	return appErr
}

// Register creates an account. The user still has to log in afterwards.
func (u *AuthUsecase) Register(ctx context.Context, input *entities.RegisterInput) error {
	if err := u.validate.Struct(input); err != nil {
		appErr := validationError(err)
		u.toastError("Registration failed", appErr)
		return appErr
	}

	if err := u.gateway.Register(ctx, input); err != nil {
		appErr := domainerrors.Normalize(err)
		u.toastError("Registration failed", appErr)
		return appErr
	}

	u.notifier.Notify(Toast{
		Title:       "Account created",
		Description: "You can now log in with " + input.Email,
		Variant:     ToastSuccess,
	})
	return nil
}

// Logout clears local state even when the server-side call fails.
func (u *AuthUsecase) Logout(ctx context.Context) {
	if err := u.gateway.Logout(ctx); err != nil {
		logger.Warn(ctx, "Server logout failed, clearing local session anyway", zap.Error(err))
	}

	u.hooksMu.Lock()
	hooks := append([]LogoutHook(nil), u.onLogout...)
	u.hooksMu.Unlock()
	for _, h := range hooks {
		h(ctx)
	}

	u.clearSession(ctx)

	u.notifier.Notify(Toast{Title: "Logged out", Variant: ToastDefault})
}

func (u *AuthUsecase) clearSession(ctx context.Context) {
	if err := u.store.FlushPendingWrites(ctx); err != nil {
		logger.Warn(ctx, "Flushing session writes failed", zap.Error(err))
	}
	u.remove(ctx, entities.UserSessionKey)
	u.remove(ctx, entities.AuthTokenKey)
	u.remove(ctx, entities.DismissedVerificationKey)
	u.gateway.SetBearerToken("")

	u.mu.Lock()
	u.user = nil
	u.token = ""
	u.isLoggedIn = false
	u.mu.Unlock()
	u.publish()
}

// UpdateUser shallow-merges patch into the current user locally and
// recomputes the capability flags.
func (u *AuthUsecase) UpdateUser(ctx context.Context, patch entities.UserPatch) error {
	u.mu.Lock()
	if u.user == nil {
		u.mu.Unlock()
		return domainerrors.LoginRequired()
	}
	updated := patch.Apply(u.user)
	if patch.Email != nil {
		updated.ID = entities.UserIDFromEmail(updated.Email)
	}
	updated.Verification = entities.DeriveVerificationStatus(updated.Verification)
	u.user = updated
	u.mu.Unlock()

	u.persist(ctx, entities.UserSessionKey, entities.NewUserSnapshot(updated, u.now()))
	u.publish()
	return nil
}

// UpdateProfile saves profile fields on the backend, then reloads the user.
func (u *AuthUsecase) UpdateProfile(ctx context.Context, patch entities.UserPatch) error {
	if !u.IsLoggedIn() {
		return u.loginRequired()
	}

	if err := u.gateway.UpdateProfile(ctx, patch); err != nil {
		appErr := domainerrors.Normalize(err)
		u.toastError("Profile update failed", appErr)
		return appErr
	}

	if _, err := u.RefreshUser(ctx); err != nil {
		logger.Warn(ctx, "Refresh after profile update failed, applying locally", zap.Error(err))
		if err := u.UpdateUser(ctx, patch); err != nil {
			return err
		}
	}

	u.notifier.Notify(Toast{Title: "Profile updated", Variant: ToastSuccess})
	return nil
}

// RequestOrganizationEmailOTP sends a one-time code to an organization email.
func (u *AuthUsecase) RequestOrganizationEmailOTP(ctx context.Context, email string) error {
	if !u.IsLoggedIn() {
		return u.loginRequired()
	}
	if err := u.validate.Var(email, "required,email"); err != nil {
		appErr := domainerrors.BadRequest("invalid organization email")
		appErr.UserMessage = "Enter a valid organization email address."
		u.toastError("Verification failed", appErr)
		return appErr
	}

	if err := u.gateway.RequestOrganizationEmailOTP(ctx, email); err != nil {
		appErr := domainerrors.Normalize(err)
		u.toastError("Could not send code", appErr)
		return appErr
	}

	u.notifier.Notify(Toast{
		Title:       "Verification code sent",
		Description: "Check " + email + " for your code.",
		Variant:     ToastSuccess,
	})
	return nil
}

// VerifyOrganizationEmail submits the code and reloads the user from the
// backend. Flags are never set locally.
func (u *AuthUsecase) VerifyOrganizationEmail(ctx context.Context, email, otp string) error {
	user := u.CurrentUser()
	if user == nil || !u.IsLoggedIn() {
		return u.loginRequired()
	}
	if err := u.validate.Var(otp, "required,numeric"); err != nil {
		appErr := domainerrors.BadRequest("invalid verification code")
		appErr.UserMessage = "Enter the numeric code from the email."
		u.toastError("Verification failed", appErr)
		return appErr
	}

	if err := u.gateway.VerifyOrganizationEmail(ctx, email, otp, string(user.Role)); err != nil {
		appErr := domainerrors.Normalize(err)
		u.toastError("Verification failed", appErr)
		return appErr
	}

	refreshed, err := u.RefreshUser(ctx)
	if err != nil {
		appErr := domainerrors.Normalize(err)
		u.toastError("Could not refresh your profile", appErr)
		return appErr
	}

	if refreshed.Verification.IsOrganizationEmailVerified {
		u.notifier.Notify(Toast{Title: "Organization email verified", Variant: ToastSuccess})
	}
	return nil
}

// RefreshUser reloads the user from the backend and persists the snapshot.
func (u *AuthUsecase) RefreshUser(ctx context.Context) (*entities.User, error) {
	user, err := u.gateway.GetUserDetails(ctx)
	if err != nil {
		return nil, domainerrors.Normalize(err)
	}
	user.Verification = entities.DeriveVerificationStatus(user.Verification)

	u.mu.Lock()
	u.user = user
	u.isLoggedIn = true
	u.mu.Unlock()

	u.persist(ctx, entities.UserSessionKey, entities.NewUserSnapshot(user, u.now()))
	u.publish()
	return user.Clone(), nil
}

// RestoreSession rebuilds state from persisted snapshots at startup.
func (u *AuthUsecase) RestoreSession(ctx context.Context) {
	u.setLoading(true)
	defer u.setLoading(false)

	var token string
	if err := u.store.GetItem(ctx, entities.AuthTokenKey, &token); err != nil && !errors.Is(err, repositories.ErrItemNotFound) {
		logger.Warn(ctx, "Reading persisted token failed", zap.Error(err))
	}

	now := u.now()
	if token != "" && jwt.IsExpired(token, now) {
		logger.Info(ctx, "Persisted token expired, discarding session")
		u.clearSession(ctx)
		return
	}

	var snap entities.UserSnapshot
	err := u.store.GetItem(ctx, entities.UserSessionKey, &snap)
	switch {
	case err == nil && snap.Valid(now):
		user := snap.User
		user.Verification = entities.DeriveVerificationStatus(user.Verification)
		u.gateway.SetBearerToken(token)

		u.mu.Lock()
		u.user = user
		u.token = token
		u.isLoggedIn = true
		u.mu.Unlock()

		u.runLoginHooks(ctx, user)
		u.publish()
		return
	case err == nil:
		// an existing snapshot that is too old never restores a login,
		// even with a token at hand
		logger.Info(ctx, "Discarding stale or malformed user snapshot")
		u.clearSession(ctx)
		return
	case !errors.Is(err, repositories.ErrItemNotFound):
		logger.Warn(ctx, "Reading user snapshot failed", zap.Error(err))
		u.clearSession(ctx)
		return
	}

	if token == "" {
		u.markLoggedOut()
		return
	}

	u.gateway.SetBearerToken(token)
	user, err := u.RefreshUser(ctx)
	if err != nil {
		logger.Warn(ctx, "Rebuilding session from token failed", zap.Error(err))
		if domainerrors.KindOf(err) == domainerrors.KindAuthentication {
			u.remove(ctx, entities.AuthTokenKey)
		}
		u.gateway.SetBearerToken("")
		u.markLoggedOut()
		return
	}

	u.mu.Lock()
	u.token = token
	u.mu.Unlock()
	u.runLoginHooks(ctx, user)
}

// SavedEmail returns the remembered login email, if any.
func (u *AuthUsecase) SavedEmail(ctx context.Context) string {
	var remember bool
	if err := u.store.GetItem(ctx, entities.RememberMeKey, &remember); err != nil || !remember {
		return ""
	}
	var email string
	_ = u.store.GetItem(ctx, entities.SavedEmailKey, &email)
	return email
}

// VerificationBannerDismissed reports whether the user hid the
// verification reminder on this device.
func (u *AuthUsecase) VerificationBannerDismissed(ctx context.Context) bool {
	var dismissed bool
	_ = u.store.GetItem(ctx, entities.DismissedVerificationKey, &dismissed)
	return dismissed
}

// DismissVerificationBanner hides the reminder until the session is cleared.
func (u *AuthUsecase) DismissVerificationBanner(ctx context.Context) {
	u.persist(ctx, entities.DismissedVerificationKey, true)
}

func (u *AuthUsecase) markLoggedOut() {
	u.mu.Lock()
	u.user = nil
	u.token = ""
	u.isLoggedIn = false
	u.mu.Unlock()
	u.publish()
}

func (u *AuthUsecase) setLoading(v bool) {
	u.mu.Lock()
	u.isLoading = v
	u.mu.Unlock()
	u.publish()
}

func (u *AuthUsecase) loginRequired() error {
	appErr := domainerrors.LoginRequired()
	appErr.UserMessage = "Please log in to continue."
	u.notifier.Notify(Toast{Title: "Login required", Description: appErr.UserMessage, Variant: ToastDefault})
	return appErr
}

func (u *AuthUsecase) toastError(title string, appErr *domainerrors.AppError) {
	u.notifier.Notify(Toast{Title: title, Description: appErr.UserMessage, Variant: ToastDestructive})
}

func (u *AuthUsecase) persist(ctx context.Context, key string, value interface{}) {
	if err := u.store.SetItem(ctx, key, value); err != nil {
		logger.Warn(ctx, "Persisting session item failed", zap.String("key", key), zap.Error(err))
	}
}

func (u *AuthUsecase) remove(ctx context.Context, key string) {
	if err := u.store.RemoveItem(ctx, key); err != nil {
		logger.Warn(ctx, "Removing session item failed", zap.String("key", key), zap.Error(err))
	}
}

func (u *AuthUsecase) runLoginHooks(ctx context.Context, user *entities.User) {
	u.hooksMu.Lock()
	hooks := append([]LoginHook(nil), u.onLogin...)
	u.hooksMu.Unlock()
	for _, h := range hooks {
		h(ctx, user.Clone())
	}
}

func (u *AuthUsecase) publish() {
	state := u.Snapshot()
	u.hooksMu.Lock()
	subs := make([]func(AuthState), 0, len(u.subscribers))
	for _, fn := range u.subscribers {
		subs = append(subs, fn)
	}
	u.hooksMu.Unlock()
	for _, fn := range subs {
		fn(state)
	}
}
