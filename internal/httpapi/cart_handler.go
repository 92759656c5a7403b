package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
	"github.com/Filichkin/OnlineShop-sub000/internal/engine"
	"github.com/Filichkin/OnlineShop-sub000/internal/events"
)

type CartHandler struct {
	cart      *engine.Cart
	publisher *events.Publisher
	timeout   time.Duration
}

func NewCartHandler(cart *engine.Cart, publisher *events.Publisher, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:      cart,
		publisher: publisher,
		timeout:   timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartSummaryDTO struct {
	TotalItems int     `json:"total_items"`
	TotalPrice float64 `json:"total_price"`
	ItemsCount int     `json:"items_count"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cart.State())
}

func (h *CartHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	state := h.cart.State()
	respondJSON(w, http.StatusOK, CartSummaryDTO{
		TotalItems: state.TotalItems,
		TotalPrice: state.TotalPrice,
		ItemsCount: state.ItemsCount,
	})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > domain.MaxItemQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}
	if req.UnitPrice < 0 {
		respondError(w, http.StatusBadRequest, "invalid_unit_price", "unit_price must not be negative")
		return
	}

	if err := h.cart.Add(ctx, req.ProductID, req.Quantity, req.UnitPrice); err != nil {
		handleEngineError(w, err)
		return
	}

	state := h.cart.State()
	go h.publisher.Publish(events.Activity{
		Type:      events.TypeCartItemAdded,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Mode:      string(state.Mode),
	})
	respondJSON(w, http.StatusCreated, state)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDFromURL(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// Zero means remove; the engine keeps its transition set small and the
	// call site decides.
	var err error
	if req.Quantity == 0 {
		err = h.cart.Remove(ctx, productID)
	} else {
		err = h.cart.SetQuantity(ctx, productID, req.Quantity)
	}
	if err != nil {
		handleEngineError(w, err)
		return
	}

	state := h.cart.State()
	go h.publisher.Publish(events.Activity{
		Type:      events.TypeCartItemUpdated,
		ProductID: productID,
		Quantity:  req.Quantity,
		Mode:      string(state.Mode),
	})
	respondJSON(w, http.StatusOK, state)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDFromURL(w, r)
	if !ok {
		return
	}

	if err := h.cart.Remove(ctx, productID); err != nil {
		handleEngineError(w, err)
		return
	}

	state := h.cart.State()
	go h.publisher.Publish(events.Activity{
		Type:      events.TypeCartItemRemoved,
		ProductID: productID,
		Mode:      string(state.Mode),
	})
	respondJSON(w, http.StatusOK, state)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.Clear(ctx); err != nil {
		handleEngineError(w, err)
		return
	}

	state := h.cart.State()
	go h.publisher.Publish(events.Activity{
		Type: events.TypeCartCleared,
		Mode: string(state.Mode),
	})
	respondJSON(w, http.StatusOK, state)
}

func (h *CartHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.Refresh(ctx); err != nil {
		handleEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cart.State())
}

func productIDFromURL(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productIDStr := chi.URLParam(r, "product_id")
	productID, err := strconv.ParseInt(productIDStr, 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}
