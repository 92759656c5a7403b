package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
	"github.com/Filichkin/OnlineShop-sub000/internal/engine"
	"github.com/Filichkin/OnlineShop-sub000/internal/events"
)

type FavoritesHandler struct {
	favorites *engine.Favorites
	publisher *events.Publisher
	timeout   time.Duration
}

func NewFavoritesHandler(favorites *engine.Favorites, publisher *events.Publisher, timeout time.Duration) *FavoritesHandler {
	return &FavoritesHandler{
		favorites: favorites,
		publisher: publisher,
		timeout:   timeout,
	}
}

type ToggleFavoriteRequestDTO struct {
	Product domain.ProductSnapshot `json:"product"`
}

func (h *FavoritesHandler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.favorites.State())
}

func (h *FavoritesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDFromURL(w, r)
	if !ok {
		return
	}

	// The snapshot is optional; an empty body toggles with empty display
	// fields, which only matters for a guest-mode add.
	var req ToggleFavoriteRequestDTO
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	if err := h.favorites.Toggle(ctx, productID, req.Product); err != nil {
		handleEngineError(w, err)
		return
	}

	state := h.favorites.State()
	go h.publisher.Publish(events.Activity{
		Type:      events.TypeFavoriteToggled,
		ProductID: productID,
		Mode:      string(state.Mode),
	})
	respondJSON(w, http.StatusOK, state)
}

func (h *FavoritesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.favorites.Remove(ctx, productID); err != nil {
		handleEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.favorites.State())
}

func (h *FavoritesHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.favorites.Clear(ctx); err != nil {
		handleEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.favorites.State())
}

func (h *FavoritesHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.favorites.Refresh(ctx); err != nil {
		handleEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.favorites.State())
}
