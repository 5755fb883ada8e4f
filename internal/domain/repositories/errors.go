package repositories

import "errors"

// ErrItemNotFound is returned by SessionStore.GetItem for absent keys.
var ErrItemNotFound = errors.New("session item not found")
