package entities

import "time"

// Persisted key names.
const (
	UserSessionKey           = "expatUserSession"
	CartItemsKey             = "expatCartItems"
	AuthTokenKey             = "expatAuthToken"
	RememberMeKey            = "rememberMe"
	SavedEmailKey            = "savedEmail"
	DismissedVerificationKey = "dismissedVerificationBanner"
)

// Expiry windows.
const (
	UserSessionTTL  = 24 * time.Hour
	CartSnapshotTTL = 168 * time.Hour
)

// CartKeyFor returns the per-user cart snapshot key.
func CartKeyFor(userID string) string {
	if userID == "" {
		return CartItemsKey
	}
	return CartItemsKey + "_" + userID
}

// UserSnapshot is the persisted {user, timestamp} blob. Timestamp is in
// Unix milliseconds.
type UserSnapshot struct {
	User      *User `json:"user"`
	Timestamp int64 `json:"timestamp"`
}

func NewUserSnapshot(u *User, now time.Time) UserSnapshot {
	return UserSnapshot{User: u, Timestamp: now.UnixMilli()}
}

// Valid reports whether the snapshot is young enough and well formed.
func (s UserSnapshot) Valid(now time.Time) bool {
	if s.User == nil || s.User.ID == "" || s.User.Email == "" {
		return false
	}
	return withinWindow(s.Timestamp, now, UserSessionTTL)
}

// CartSnapshot is the persisted {items, selectedItems, timestamp, userId} blob.
type CartSnapshot struct {
	Items         []CartItem `json:"items"`
	SelectedItems []string   `json:"selectedItems"`
	Timestamp     int64      `json:"timestamp"`
	UserID        string     `json:"userId"`
}

// ValidFor reports whether the snapshot may be used for userID at now.
func (s CartSnapshot) ValidFor(userID string, now time.Time) bool {
	if userID == "" || s.UserID != userID {
		return false
	}
	return withinWindow(s.Timestamp, now, CartSnapshotTTL)
}

func withinWindow(tsMillis int64, now time.Time, window time.Duration) bool {
	if tsMillis <= 0 {
		return false
	}
	age := now.Sub(time.UnixMilli(tsMillis))
	return age >= 0 && age <= window
}
