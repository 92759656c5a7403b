package localstore

import (
	"context"

	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
)

// CartStore persists the guest-mode cart snapshot.
//
// Load never fails: any structural anomaly in the stored document is logged
// and an empty collection is returned instead of a partially-trusted one.
// Save is best-effort: a broken durability layer must not block the
// in-memory operation that triggered the write, so failures are logged only.
type CartStore interface {
	Load(ctx context.Context) []domain.CartItem
	Save(ctx context.Context, items []domain.CartItem)
	Clear(ctx context.Context)
}

// FavoritesStore persists the guest-mode favorites snapshot with the same
// load/save/clear contract as CartStore.
type FavoritesStore interface {
	Load(ctx context.Context) []domain.FavoriteItem
	Save(ctx context.Context, items []domain.FavoriteItem)
	Clear(ctx context.Context)
}
