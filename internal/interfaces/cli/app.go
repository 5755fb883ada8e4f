package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/volatiletech/null/v8"

	"expat-market.storefront/internal/domain/entities"
	domainerrors "expat-market.storefront/internal/domain/errors"
	"expat-market.storefront/internal/usecases"
)

type oauthURLProvider interface {
	GoogleOAuthURL(ctx context.Context, nextPath string) (string, error)
}

// Deps are the containers the app drives. They are built once at start.
type Deps struct {
	Auth    *usecases.AuthUsecase
	Cart    *usecases.CartUsecase
	Catalog *usecases.CatalogUsecase
	OAuth   oauthURLProvider
	In      io.Reader
	Out     *Output
}

// App is the terminal storefront.
type App struct {
	auth     *usecases.AuthUsecase
	cart     *usecases.CartUsecase
	catalog  *usecases.CatalogUsecase
	oauth    oauthURLProvider
	reader   *bufio.Reader
	out      *Output
	boundary *Boundary
	commands commandTable
}

func NewApp(d Deps) *App {
	a := &App{
		auth:     d.Auth,
		cart:     d.Cart,
		catalog:  d.Catalog,
		oauth:    d.OAuth,
		reader:   bufio.NewReader(d.In),
		out:      d.Out,
		boundary: NewBoundary(d.Out),
	}
	a.commands = newCommandTable(a.commandList())
	return a
}

// Run restores the previous session and serves commands until exit.
func (a *App) Run(ctx context.Context) {
	a.auth.RestoreSession(ctx)
	a.home(ctx)
	runREPL(ctx, a, a.commands, a.boundary, a.reader, a.out)
}

func (a *App) isLoggedIn() bool {
	return a.auth.IsLoggedIn()
}

func (a *App) status() string {
	u := a.auth.CurrentUser()
	if u == nil {
		return "guest"
	}
	if n := a.cart.Summary().ItemCount; n > 0 {
		return fmt.Sprintf("%s | cart %d", u.DisplayName(), n)
	}
	return u.DisplayName()
}

func (a *App) home(ctx context.Context) {
	a.out.Println("Expat Marketplace")
	if u := a.auth.CurrentUser(); u != nil {
		a.out.Printf("Signed in as %s\n", u.DisplayName())
		if !u.Verification.IsComplete() && !a.auth.VerificationBannerDismissed(ctx) {
			renderVerificationBanner(a.out, u.Verification)
			a.out.Println("  (type 'dismiss' to hide this reminder)")
		}
	} else {
		a.out.Println("Browsing as guest. Type 'login' to sign in.")
	}
	a.out.Println("Type 'help' for commands.")
}

func (a *App) commandList() []*command {
	return []*command{
		{name: "login", usage: "login", severity: SeverityFeature, run: a.login},
		{name: "register", usage: "register", severity: SeverityFeature, run: a.register},
		{name: "google", usage: "google [nextPath]", severity: SeverityFeature, run: a.googleLogin},
		{name: "logout", usage: "logout", severity: SeverityFeature, needsLogin: true, run: a.logout},
		{name: "whoami", aliases: []string{"me"}, usage: "whoami", severity: SeverityComponent, needsLogin: true, run: a.whoami},
		{name: "profile", usage: "profile", severity: SeverityFeature, needsLogin: true, run: a.profile},
		{name: "verify", usage: "verify", severity: SeverityFeature, needsLogin: true, run: a.verify},
		{name: "refresh", usage: "refresh", severity: SeverityComponent, needsLogin: true, run: a.refresh},
		{name: "dismiss", usage: "dismiss", severity: SeverityComponent, needsLogin: true, run: a.dismiss},

		{name: "products", aliases: []string{"ls"}, usage: "products [page=N category=.. min=.. max=..]", severity: SeverityPage, run: a.products},
		{name: "search", usage: "search <query> [filters]", severity: SeverityPage, run: a.search},
		{name: "show", usage: "show <productId>", severity: SeverityPage, run: a.show},

		{name: "cart", usage: "cart", severity: SeverityPage, needsLogin: true, run: a.showCart},
		{name: "add", usage: "add <productId> [quantity]", severity: SeverityFeature, needsLogin: true, run: a.add},
		{name: "remove", aliases: []string{"rm"}, usage: "remove <productId>", severity: SeverityFeature, needsLogin: true, run: a.remove},
		{name: "qty", usage: "qty <productId> <quantity>", severity: SeverityFeature, needsLogin: true, run: a.quantity},
		{name: "clear", usage: "clear", severity: SeverityFeature, needsLogin: true, run: a.clear},
		{name: "toggle", usage: "toggle <productId>", severity: SeverityComponent, needsLogin: true, run: a.toggle},
		{name: "selectall", usage: "selectall", severity: SeverityComponent, needsLogin: true, run: a.selectAll},
		{name: "deselectall", usage: "deselectall", severity: SeverityComponent, needsLogin: true, run: a.deselectAll},
		{name: "sync", usage: "sync", severity: SeverityComponent, needsLogin: true, run: a.sync},
		{name: "contact", usage: "contact <productId>", severity: SeverityFeature, needsLogin: true, run: a.contact},
	}
}

// Auth

func (a *App) login(ctx context.Context, _ []string) error {
	saved := a.auth.SavedEmail(ctx)
	prompt := "Email"
	if saved != "" {
		prompt = fmt.Sprintf("Email (enter for %s)", saved)
	}
	email, err := GetSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return err
	}
	if email == "" {
		email = saved
	}
	password, err := GetPassword(a.reader, a.out)
	if err != nil {
		return err
	}
	remember := Confirm(a.reader, "Remember me on this device?", a.out)

	// failures are toasted by the container
	_, _ = a.auth.Login(ctx, &entities.LoginInput{Email: email, Password: password, RememberMe: remember})
	return nil
}

func (a *App) register(ctx context.Context, _ []string) error {
	in := &entities.RegisterInput{}
	fields := []struct {
		prompt string
		dst    *string
	}{
		{"First name", &in.FirstName},
		{"Last name", &in.LastName},
		{"Email", &in.Email},
		{"Location (optional)", &in.Location},
	}
	for _, f := range fields {
		v, err := GetSimpleText(a.reader, f.prompt, a.out)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	password, err := GetPassword(a.reader, a.out)
	if err != nil {
		return err
	}
	in.Password = password

	_ = a.auth.Register(ctx, in)
	return nil
}

func (a *App) googleLogin(ctx context.Context, args []string) error {
	next := "/"
	if len(args) > 0 {
		next = args[0]
	}
	authURL, err := a.oauth.GoogleOAuthURL(ctx, next)
	if err != nil {
		return err
	}
	a.out.Printf("Open this link in a browser to continue with Google:\n  %s\n", authURL)
	return nil
}

func (a *App) logout(ctx context.Context, _ []string) error {
	if !Confirm(a.reader, "Log out?", a.out) {
		return nil
	}
	a.auth.Logout(ctx)
	return nil
}

func (a *App) whoami(_ context.Context, _ []string) error {
	renderUser(a.out, a.auth.CurrentUser())
	return nil
}

func (a *App) profile(ctx context.Context, _ []string) error {
	u := a.auth.CurrentUser()
	if u == nil {
		return domainerrors.LoginRequired()
	}
	first, err := GetSimpleText(a.reader, fmt.Sprintf("First name (enter keeps %q)", u.FirstName), a.out)
	if err != nil {
		return err
	}
	last, err := GetSimpleText(a.reader, fmt.Sprintf("Last name (enter keeps %q)", u.LastName), a.out)
	if err != nil {
		return err
	}

	var patch entities.UserPatch
	if first != "" {
		patch.FirstName = &first
	}
	if last != "" {
		patch.LastName = &last
	}
	if patch.FirstName == nil && patch.LastName == nil {
		a.out.Println("Nothing changed.")
		return nil
	}
	_ = a.auth.UpdateProfile(ctx, patch)
	return nil
}

func (a *App) verify(ctx context.Context, _ []string) error {
	u := a.auth.CurrentUser()
	if u != nil && u.Verification.IsOrganizationEmailVerified {
		a.out.Println("Your organization email is already verified.")
		return nil
	}

	email, err := GetSimpleText(a.reader, "Organization email", a.out)
	if err != nil {
		return err
	}
	if err := a.auth.RequestOrganizationEmailOTP(ctx, email); err != nil {
		return nil
	}
	otp, err := GetSimpleText(a.reader, "Verification code", a.out)
	if err != nil {
		return err
	}
	if err := a.auth.VerifyOrganizationEmail(ctx, email, otp); err != nil {
		return nil
	}
	if u := a.auth.CurrentUser(); u != nil {
		renderVerificationBanner(a.out, u.Verification)
	}
	return nil
}

func (a *App) refresh(ctx context.Context, _ []string) error {
	if _, err := a.auth.RefreshUser(ctx); err != nil {
		return err
	}
	renderUser(a.out, a.auth.CurrentUser())
	return nil
}

func (a *App) dismiss(ctx context.Context, _ []string) error {
	a.auth.DismissVerificationBanner(ctx)
	a.out.Println("Verification reminder hidden.")
	return nil
}

// Catalogue

func (a *App) products(ctx context.Context, args []string) error {
	filter, rest, err := parseFilter(args)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		if page, err := strconv.Atoi(rest[0]); err == nil {
			filter.Page = page
		}
	}
	page, err := a.catalog.ListProducts(ctx, filter)
	if err != nil {
		return err
	}
	renderProducts(a.out, page)
	return nil
}

func (a *App) search(ctx context.Context, args []string) error {
	filter, rest, err := parseFilter(args)
	if err != nil {
		return err
	}
	filter.Query = strings.Join(rest, " ")
	page, err := a.catalog.SearchProducts(ctx, filter)
	if err != nil {
		return err
	}
	renderProducts(a.out, page)
	return nil
}

func (a *App) show(ctx context.Context, args []string) error {
	id, err := productIDArg(args)
	if err != nil {
		return err
	}
	p, err := a.catalog.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	renderProduct(a.out, p)
	return nil
}

// Cart

func (a *App) showCart(_ context.Context, _ []string) error {
	renderCart(a.out, a.cart.Summary(), a.cart.IsSelected)
	return nil
}

func (a *App) add(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("add <productId> [quantity]")
	}
	qty := 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return usageError("quantity must be a positive number")
		}
		qty = n
	}
	_ = a.cart.AddToCart(ctx, args[0], qty)
	return nil
}

func (a *App) remove(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("remove <productId>")
	}
	_ = a.cart.RemoveFromCart(ctx, args[0])
	return nil
}

func (a *App) quantity(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError("qty <productId> <quantity>")
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return usageError("quantity must be a number")
	}
	_ = a.cart.UpdateQuantity(ctx, args[0], n)
	return nil
}

func (a *App) clear(ctx context.Context, _ []string) error {
	if len(a.cart.Items()) == 0 {
		a.out.Println("Your cart is already empty.")
		return nil
	}
	if !Confirm(a.reader, "Remove every item from your cart?", a.out) {
		return nil
	}
	_ = a.cart.ClearCart(ctx)
	return nil
}

func (a *App) toggle(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("toggle <productId>")
	}
	a.cart.ToggleSelection(ctx, args[0])
	return nil
}

func (a *App) selectAll(ctx context.Context, _ []string) error {
	a.cart.SelectAll(ctx)
	return nil
}

func (a *App) deselectAll(ctx context.Context, _ []string) error {
	a.cart.DeselectAll(ctx)
	return nil
}

func (a *App) sync(ctx context.Context, _ []string) error {
	if err := a.cart.SyncCart(ctx); err != nil {
		return err
	}
	a.out.Printf("Cart synced: %d item(s).\n", a.cart.Summary().ItemCount)
	return nil
}

func (a *App) contact(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("contact <productId>")
	}
	productID := args[0]

	expatID := ""
	for _, item := range a.cart.Items() {
		if item.ID == productID {
			expatID = item.ExpatID
			break
		}
	}
	if expatID == "" {
		id, err := productIDArg(args)
		if err != nil {
			return err
		}
		p, err := a.catalog.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		expatID = p.Seller.ID
	}

	_ = a.cart.ContactExpat(ctx, expatID, productID)
	return nil
}

// helpers

var errUsage = errors.New("usage")

func usageError(msg string) error {
	return domainerrors.NewAppError(0, domainerrors.CodeInvalidInput, msg, errUsage).WithUserMessage("Usage: " + msg)
}

func productIDArg(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, usageError("<productId> is required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError("product id must be a positive number")
	}
	return id, nil
}

// parseFilter pulls key=value filters out of args and returns the rest.
func parseFilter(args []string) (entities.ProductFilter, []string, error) {
	var f entities.ProductFilter
	var rest []string
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			rest = append(rest, arg)
			continue
		}
		key = strings.ToLower(key)
		switch key {
		case "page":
			n, err := strconv.Atoi(value)
			if err != nil {
				return f, nil, usageError("page must be a number")
			}
			f.Page = n
		case "size":
			n, err := strconv.Atoi(value)
			if err != nil {
				return f, nil, usageError("size must be a number")
			}
			f.Size = n
		case "category":
			f.Category = value
		case "condition":
			f.Condition = value
		case "location":
			f.Location = value
		case "sort":
			f.Sort = value
		case "min", "max":
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return f, nil, usageError(key + " must be a number")
			}
			if key == "min" {
				f.MinPrice = null.Float64From(n)
			} else {
				f.MaxPrice = null.Float64From(n)
			}
		default:
			rest = append(rest, arg)
		}
	}
	return f, rest, nil
}

func showError(out *Output, err error) {
	if err == nil {
		return
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		return
	}
	out.Printf("[!] %s\n", domainerrors.Normalize(err).UserMessage)
}
