package auth

import (
	"sync"

	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
)

// Session holds the current credential. Mode is always re-derived from the
// credential's validity, never cached: a mid-session revocation flips the
// mode on the next check.
type Session struct {
	mu      sync.RWMutex
	token   string
	invalid bool
}

func NewSession() *Session {
	return &Session{}
}

// Mode reports guest when no credential is held or the held credential has
// been invalidated by the remote.
func (s *Session) Mode() domain.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || s.invalid {
		return domain.ModeGuest
	}
	return domain.ModeAuthenticated
}

// Token returns the held credential, or empty when operating as guest.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.invalid {
		return ""
	}
	return s.token
}

// SetCredential stores a newly acquired credential. This is the
// guest-to-authenticated transition point; callers run the merge protocol
// exactly once after it.
func (s *Session) SetCredential(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.invalid = false
}

// Invalidate marks the held credential as rejected by the remote. The
// session flips to guest without discarding which token was held, so a
// repeated Unauthorized does not look like a fresh sign-out.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalid = true
}

// Clear drops the credential entirely (explicit sign-out).
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.invalid = false
}
