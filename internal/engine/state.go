package engine

import (
	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
)

// CartState is the read-only view handed to UI layers. Aggregates are
// recomputed from the collection on every read, never stored.
type CartState struct {
	Items      []domain.CartItem `json:"items"`
	TotalItems int               `json:"total_items"`
	TotalPrice float64           `json:"total_price"`
	ItemsCount int               `json:"items_count"`
	Pending    []int64           `json:"pending"`
	Mode       domain.Mode       `json:"mode"`
}

// FavoritesState is the read-only favorites view.
type FavoritesState struct {
	Items   []domain.FavoriteItem `json:"items"`
	Count   int                   `json:"count"`
	Pending []int64               `json:"pending"`
	Mode    domain.Mode           `json:"mode"`
}
