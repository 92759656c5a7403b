package remote

import (
	"context"
	"errors"

	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
)

var (
	// ErrUnauthorized means the storefront API rejected the credential the
	// call was made with. The engine interprets it as an immediate
	// authenticated-to-guest mode flip.
	ErrUnauthorized = errors.New("credential rejected by storefront API")

	// ErrNotFound means the operation targeted a product the server-side
	// collection does not contain.
	ErrNotFound = errors.New("item not found in remote collection")

	// ErrConflict means the server refused a duplicate insert, e.g. adding
	// a product that is already in favorites.
	ErrConflict = errors.New("item already present in remote collection")
)

// CartClient is the server-owned cart collection, scoped by the caller's
// current credential.
type CartClient interface {
	GetCart(ctx context.Context) ([]domain.CartItem, error)
	AddItem(ctx context.Context, productID int64, quantity int) (*domain.CartItem, error)
	UpdateQuantity(ctx context.Context, productID int64, quantity int) (*domain.CartItem, error)
	RemoveItem(ctx context.Context, productID int64) error
	ClearCart(ctx context.Context) error
}

// FavoritesClient is the server-owned favorites collection.
type FavoritesClient interface {
	GetFavorites(ctx context.Context) ([]domain.FavoriteItem, error)
	AddFavorite(ctx context.Context, productID int64) (*domain.FavoriteItem, error)
	RemoveFavorite(ctx context.Context, productID int64) error
}

// TokenSource supplies the credential attached to every request. An empty
// token means the caller is not authenticated.
type TokenSource interface {
	Token() string
}
