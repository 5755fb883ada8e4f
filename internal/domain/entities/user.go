package entities

import (
	"strings"

	"github.com/volatiletech/null/v8"
)

// UserRole represents user roles
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User is the authenticated marketplace user ("expat").
type User struct {
	ID                string             `json:"id"`
	FirstName         string             `json:"firstName"`
	LastName          string             `json:"lastName"`
	Email             string             `json:"email"`
	OrganizationEmail null.String        `json:"organizationEmail"`
	Role              UserRole           `json:"role"`
	Verification      VerificationStatus `json:"verificationStatus"`
}

// UserIDFromEmail derives the stable user identifier from an email address.
func UserIDFromEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DisplayName returns "First Last", falling back to the email.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if src := u.Verification.PendingActions; src != nil {
		cp.Verification.PendingActions = make([]string, len(src))
		copy(cp.Verification.PendingActions, src)
	}
	return &cp
}

// LoginInput represents input for user login
type LoginInput struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"-"`
}

// RegisterInput represents input for account registration
type RegisterInput struct {
	FirstName string `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string `json:"lastName" validate:"required,min=1,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Location  string `json:"location,omitempty"`
}

// UserPatch is a shallow partial update; nil fields are left untouched.
type UserPatch struct {
	FirstName         *string
	LastName          *string
	Email             *string
	OrganizationEmail *string
	Role              *UserRole
	Verification      *VerificationStatus
}

// Apply merges the patch into a copy of u.
func (p UserPatch) Apply(u *User) *User {
	out := u.Clone()
	if p.FirstName != nil {
		out.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		out.LastName = *p.LastName
	}
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.OrganizationEmail != nil {
		out.OrganizationEmail = null.StringFrom(*p.OrganizationEmail)
	}
	if p.Role != nil {
		out.Role = *p.Role
	}
	if p.Verification != nil {
		out.Verification = *p.Verification
	}
	return out
}

// LoginResult is what the backend returns for a successful credential check.
type LoginResult struct {
	Token string
	User  *User
}
