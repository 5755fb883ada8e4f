package cli

import (
	"strings"

	"github.com/shopspring/decimal"

	"expat-market.storefront/internal/domain/entities"
)

var pendingActionText = map[string]string{
	entities.ActionVerifyOrganizationEmail: "verify your organization email (type 'verify') to buy and contact sellers",
	entities.ActionVerifyIdentity:          "verify your identity to start selling",
}

func money(amount decimal.Decimal, currency string) string {
	if currency == "" {
		currency = entities.DefaultCurrency
	}
	return currency + " " + amount.StringFixed(2)
}

func renderProducts(out *Output, page *entities.ProductPage) {
	if page == nil || len(page.Items) == 0 {
		out.Println("No products found.")
		return
	}
	for _, p := range page.Items {
		flag := ""
		if !p.Available {
			flag = " (sold)"
		}
		out.Printf("  #%-6d %-40s %14s  %s%s\n", p.ID, p.Title, money(decimal.NewFromFloat(p.Price), p.Currency), p.Location, flag)
	}
	out.Printf("Page %d of %d, %d product(s)\n", page.Page+1, max(page.TotalPages, 1), page.Total)
}

func renderProduct(out *Output, p *entities.Product) {
	out.Printf("#%d %s\n", p.ID, p.Title)
	out.Printf("  Price:     %s", money(decimal.NewFromFloat(p.Price), p.Currency))
	if p.OriginalPrice.Valid && p.OriginalPrice.Float64 > p.Price {
		out.Printf(" (was %s)", money(decimal.NewFromFloat(p.OriginalPrice.Float64), p.Currency))
	}
	out.Println()
	if p.Condition != "" {
		out.Printf("  Condition: %s\n", p.Condition)
	}
	if p.Category != "" {
		out.Printf("  Category:  %s\n", p.Category)
	}
	if p.Location != "" {
		out.Printf("  Location:  %s\n", p.Location)
	}
	seller := p.Seller.Name
	if p.Seller.Verified {
		seller += " (verified)"
	}
	out.Printf("  Seller:    %s\n", seller)
	if p.Description != "" {
		out.Printf("\n%s\n", p.Description)
	}
	if len(p.Images) > 0 {
		out.Printf("  Images:    %s\n", strings.Join(p.Images, ", "))
	}
}

func renderCart(out *Output, s entities.CartSummary, selected func(id string) bool) {
	if s.ItemCount == 0 {
		out.Println("Your cart is empty.")
		return
	}
	for _, g := range s.Groups {
		name := g.ExpatName
		if g.Verified {
			name += " (verified)"
		}
		out.Printf("%s\n", name)
		for _, item := range g.Items {
			box := "[ ]"
			if selected(item.ID) {
				box = "[x]"
			}
			out.Printf("  %s #%s %-36s x%-3d %14s\n", box, item.ID, item.Title, item.Quantity, money(item.LineTotal(), item.Currency))
		}
		out.Printf("  %52s %14s\n", "seller subtotal", money(g.Subtotal, s.Currency))
	}

	out.Printf("Items:    %d from %d seller(s)\n", s.ItemCount, s.ExpatCount)
	out.Printf("Subtotal: %s\n", money(s.Subtotal, s.Currency))
	if s.Savings.IsPositive() {
		out.Printf("Savings:  %s\n", money(s.Savings, s.Currency))
	}
	if s.HasMixedCurrencies {
		out.Println("Note: your cart mixes currencies; totals are indicative.")
	}
	if s.Selected.ItemCount != s.ItemCount {
		out.Printf("Selected: %d item(s), %s\n", s.Selected.ItemCount, money(s.Selected.Subtotal, s.Selected.Currency))
	}
}

func renderUser(out *Output, u *entities.User) {
	if u == nil {
		out.Println("Not signed in.")
		return
	}
	out.Printf("%s <%s>\n", u.DisplayName(), u.Email)
	if u.OrganizationEmail.Valid && u.OrganizationEmail.String != "" {
		out.Printf("  Organization email: %s\n", u.OrganizationEmail.String)
	}
	if u.IsAdmin() {
		out.Println("  Role: admin")
	}
	v := u.Verification
	out.Printf("  Verification: %s\n", stepLabel(v.CurrentStep))
	out.Printf("  Can buy: %s  Can contact: %s  Can sell: %s\n", yesNo(v.CanBuy), yesNo(v.CanContact), yesNo(v.CanSell))
	renderVerificationBanner(out, v)
}

func renderVerificationBanner(out *Output, v entities.VerificationStatus) {
	for _, action := range v.PendingActions {
		if text, ok := pendingActionText[action]; ok {
			out.Printf("  * To do: %s\n", text)
		}
	}
}

func stepLabel(s entities.VerificationStep) string {
	switch s {
	case entities.StepComplete:
		return "complete"
	case entities.StepIdentity:
		return "identity pending"
	case entities.StepOrganization:
		return "organization email pending"
	case entities.StepNotStarted:
		return "not started"
	}
	return "unknown"
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
