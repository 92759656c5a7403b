package engine

import "errors"

var (
	// ErrInvalidQuantity rejects a quantity outside 1..MaxItemQuantity
	// before any state change.
	ErrInvalidQuantity = errors.New("quantity out of range")

	// ErrInvalidProduct rejects a non-positive product ref before any
	// state change.
	ErrInvalidProduct = errors.New("invalid product id")

	// ErrNotFound means the operation targeted a product absent from the
	// collection.
	ErrNotFound = errors.New("item not found in collection")

	// ErrBusy means another operation for the same product ref is still in
	// flight. The duplicate is rejected, not queued.
	ErrBusy = errors.New("operation already in flight for this item")

	// ErrNoCredential means SignIn was called without a valid credential
	// in the session.
	ErrNoCredential = errors.New("no valid credential held")
)
