package domain

// Mode tells where the authoritative copy of the user's collections lives.
// It is always derived from credential validity, never persisted.
type Mode string

const (
	// ModeGuest means no valid credential is held; collections live in the
	// local durable snapshot only.
	ModeGuest Mode = "guest"

	// ModeAuthenticated means a valid credential is held; collections are
	// owned by the storefront API.
	ModeAuthenticated Mode = "authenticated"

	// ModeSyncing is the transient sub-state of authenticated entered while
	// the guest-to-account merge is in flight.
	ModeSyncing Mode = "syncing"
)
