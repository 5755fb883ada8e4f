package usecases

import (
	"context"

	"expat-market.storefront/internal/domain/entities"
)

// ToastVariant selects how a notification is rendered.
type ToastVariant string

const (
	ToastDefault     ToastVariant = "default"
	ToastSuccess     ToastVariant = "success"
	ToastDestructive ToastVariant = "destructive"
)

// Toast is a transient user notification.
type Toast struct {
	Title       string
	Description string
	Variant     ToastVariant
}

// Notifier displays toasts.
type Notifier interface {
	Notify(t Toast)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(t Toast)

func (f NotifierFunc) Notify(t Toast) { f(t) }

// Navigator moves the UI to another route.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

type nopNotifier struct{}

func (nopNotifier) Notify(Toast) {}

// AuthReader is the part of the auth container other containers depend on.
type AuthReader interface {
	IsLoggedIn() bool
	CurrentUser() *entities.User
	CanContact() bool
}

// LoginHook runs after a user becomes logged in.
type LoginHook func(ctx context.Context, user *entities.User)

// LogoutHook runs before logged-in state is cleared.
type LogoutHook func(ctx context.Context)
