// Package cli is the terminal storefront: a read-eval-print loop over the
// auth, cart and catalogue containers. Output goes to a single writer so
// toasts, navigation and command results interleave in order.
package cli
