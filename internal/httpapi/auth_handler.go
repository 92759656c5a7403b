package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/Filichkin/OnlineShop-sub000/internal/auth"
	"github.com/Filichkin/OnlineShop-sub000/internal/engine"
	"github.com/Filichkin/OnlineShop-sub000/internal/events"
)

type AuthHandler struct {
	session   *auth.Session
	cart      *engine.Cart
	favorites *engine.Favorites
	publisher *events.Publisher
	timeout   time.Duration
}

func NewAuthHandler(session *auth.Session, cart *engine.Cart, favorites *engine.Favorites, publisher *events.Publisher, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		session:   session,
		cart:      cart,
		favorites: favorites,
		publisher: publisher,
		timeout:   timeout,
	}
}

type LoginRequestDTO struct {
	Token string `json:"token"`
}

type LoginResponseDTO struct {
	Cart      engine.CartState      `json:"cart"`
	Favorites engine.FavoritesState `json:"favorites"`
}

// Login stores the acquired credential and runs the merge protocol on both
// collections. A merge failure leaves guest state intact for a retry, so it
// is reported without rolling the credential back.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "invalid_token", "token must not be empty")
		return
	}

	h.session.SetCredential(req.Token)

	if err := h.cart.SignIn(ctx); err != nil {
		log.Printf("request %s: cart merge failed: %v", getRequestID(r.Context()), err)
		handleEngineError(w, err)
		return
	}
	if err := h.favorites.SignIn(ctx); err != nil {
		log.Printf("request %s: favorites merge failed: %v", getRequestID(r.Context()), err)
		handleEngineError(w, err)
		return
	}

	go h.publisher.Publish(events.Activity{
		Type: events.TypeSessionSignedIn,
		Mode: string(h.cart.State().Mode),
	})
	respondJSON(w, http.StatusOK, LoginResponseDTO{
		Cart:      h.cart.State(),
		Favorites: h.favorites.State(),
	})
}

// Logout drops the credential and resets both collections to empty guest
// state. Previous guest data is intentionally discarded.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.session.Clear()
	h.cart.SignOut(ctx)
	h.favorites.SignOut(ctx)

	go h.publisher.Publish(events.Activity{
		Type: events.TypeSessionSignedOut,
		Mode: string(h.cart.State().Mode),
	})
	respondJSON(w, http.StatusOK, LoginResponseDTO{
		Cart:      h.cart.State(),
		Favorites: h.favorites.State(),
	})
}
