package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Filichkin/OnlineShop-sub000/internal/auth"
	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
	"github.com/Filichkin/OnlineShop-sub000/internal/localstore"
	"github.com/Filichkin/OnlineShop-sub000/internal/remote"
)

// Favorites is the sync engine for the favorites list. Same protocol as the
// cart, without quantities: items are unique by product ref and toggling
// dispatches to add or remove, never a third code path.
type Favorites struct {
	store   localstore.FavoritesStore
	remote  remote.FavoritesClient
	session *auth.Session

	sfg singleflight.Group

	saveMu sync.Mutex // serializes durable snapshot writes

	mu       sync.Mutex
	items    map[int64]domain.FavoriteItem
	pending  map[int64]struct{}
	clearing bool
	merging  bool

	subMu   sync.Mutex
	subs    map[int]func(FavoritesState)
	nextSub int
}

// NewFavorites builds a favorites engine seeded from the durable guest
// snapshot.
func NewFavorites(ctx context.Context, store localstore.FavoritesStore, remoteClient remote.FavoritesClient, session *auth.Session) *Favorites {
	f := &Favorites{
		store:   store,
		remote:  remoteClient,
		session: session,
		items:   make(map[int64]domain.FavoriteItem),
		pending: make(map[int64]struct{}),
		subs:    make(map[int]func(FavoritesState)),
	}
	for _, item := range store.Load(ctx) {
		f.items[item.ProductID] = item
	}
	return f
}

func (f *Favorites) State() FavoritesState {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := make([]domain.FavoriteItem, 0, len(f.items))
	for _, item := range f.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	return FavoritesState{
		Items:   items,
		Count:   len(items),
		Pending: pendingRefs(f.pending),
		Mode:    f.modeLocked(),
	}
}

// Subscribe registers a listener called after every state change. Deliveries
// from concurrent mutations are not ordered; listeners must treat each state
// as a full replacement, not a delta.
func (f *Favorites) Subscribe(fn func(FavoritesState)) func() {
	f.subMu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	f.subMu.Unlock()

	return func() {
		f.subMu.Lock()
		delete(f.subs, id)
		f.subMu.Unlock()
	}
}

// IsFavorite reports whether the product is currently in the list.
func (f *Favorites) IsFavorite(productID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.items[productID]
	return ok
}

// Toggle adds the product when absent and removes it when present.
func (f *Favorites) Toggle(ctx context.Context, productID int64, snapshot domain.ProductSnapshot) error {
	if f.IsFavorite(productID) {
		return f.Remove(ctx, productID)
	}
	return f.Add(ctx, productID, snapshot)
}

// Add inserts the product. Adding a product already in the list is a
// successful no-op, locally and against the remote.
func (f *Favorites) Add(ctx context.Context, productID int64, snapshot domain.ProductSnapshot) error {
	if productID <= 0 {
		return ErrInvalidProduct
	}

	f.mu.Lock()
	if err := f.guardLocked(productID); err != nil {
		f.mu.Unlock()
		return err
	}
	if _, existed := f.items[productID]; existed {
		f.mu.Unlock()
		return nil
	}
	optimistic := domain.FavoriteItem{ProductID: productID, Product: snapshot}
	f.items[productID] = optimistic
	f.pending[productID] = struct{}{}
	mode := f.session.Mode()
	f.mu.Unlock()
	f.notify()

	if mode == domain.ModeGuest {
		f.persist(ctx)
		f.settle(productID)
		return nil
	}

	confirmed, err := f.remote.AddFavorite(ctx, productID)
	if err != nil {
		if errors.Is(err, remote.ErrConflict) {
			// Already on the server, e.g. favorited on another device.
			f.settle(productID)
			return nil
		}
		f.rollback(productID)
		return f.fail(ctx, fmt.Errorf("add favorite %d: %w", productID, err))
	}
	f.reconcile(productID, *confirmed)
	return nil
}

// Remove deletes the product from the list. Removing an absent product is a
// successful no-op.
func (f *Favorites) Remove(ctx context.Context, productID int64) error {
	if productID <= 0 {
		return ErrInvalidProduct
	}

	f.mu.Lock()
	if err := f.guardLocked(productID); err != nil {
		f.mu.Unlock()
		return err
	}
	prior, existed := f.items[productID]
	if !existed {
		f.mu.Unlock()
		return nil
	}
	delete(f.items, productID)
	f.pending[productID] = struct{}{}
	mode := f.session.Mode()
	f.mu.Unlock()
	f.notify()

	if mode == domain.ModeGuest {
		f.persist(ctx)
		f.settle(productID)
		return nil
	}

	err := f.remote.RemoveFavorite(ctx, productID)
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		f.restore(productID, prior)
		return f.fail(ctx, fmt.Errorf("remove favorite %d: %w", productID, err))
	}
	f.settle(productID)
	return nil
}

// Clear empties the list. The remote has no bulk endpoint, so authenticated
// clears fan out per-item removals and settle them all before reporting.
func (f *Favorites) Clear(ctx context.Context) error {
	f.mu.Lock()
	if len(f.pending) > 0 || f.clearing || f.merging {
		f.mu.Unlock()
		return ErrBusy
	}
	prior := f.items
	f.items = make(map[int64]domain.FavoriteItem)
	f.clearing = true
	mode := f.session.Mode()
	f.mu.Unlock()
	f.notify()

	if mode == domain.ModeGuest {
		f.persist(ctx)
		f.endClear()
		return nil
	}

	var g errgroup.Group
	for productID := range prior {
		productID := productID
		g.Go(func() error {
			err := f.remote.RemoveFavorite(ctx, productID)
			if err != nil && !errors.Is(err, remote.ErrNotFound) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.mu.Lock()
		if f.clearing {
			f.items = prior
			f.clearing = false
		}
		f.mu.Unlock()
		f.notify()
		return f.fail(ctx, fmt.Errorf("clear favorites: %w", err))
	}
	f.endClear()
	return nil
}

// Refresh replaces the in-memory list with the authoritative copy.
func (f *Favorites) Refresh(ctx context.Context) error {
	_, err, _ := f.sfg.Do("refresh", func() (interface{}, error) {
		if f.session.Mode() == domain.ModeAuthenticated {
			items, err := f.remote.GetFavorites(ctx)
			if err != nil {
				return nil, f.fail(ctx, fmt.Errorf("refresh favorites: %w", err))
			}
			f.replace(items)
			return nil, nil
		}
		f.replace(f.store.Load(ctx))
		return nil, nil
	})
	return err
}

// SignIn merges the guest list into the server-owned one: every guest item
// is added (a server-side duplicate counts as merged), then the list is
// replaced by an authoritative fetch and the guest snapshot deleted. On
// failure guest state is retained for a retry.
func (f *Favorites) SignIn(ctx context.Context) error {
	if f.session.Mode() != domain.ModeAuthenticated {
		return ErrNoCredential
	}

	f.mu.Lock()
	if f.merging || f.clearing || len(f.pending) > 0 {
		f.mu.Unlock()
		return ErrBusy
	}
	guestItems := f.itemsLocked()
	f.merging = true
	f.mu.Unlock()
	f.notify()

	if len(guestItems) > 0 {
		var g errgroup.Group
		for _, item := range guestItems {
			item := item
			g.Go(func() error {
				_, err := f.remote.AddFavorite(ctx, item.ProductID)
				if err != nil && !errors.Is(err, remote.ErrConflict) {
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			f.endMerge()
			return f.fail(ctx, fmt.Errorf("favorites merge: %w", err))
		}
	}

	items, err := f.remote.GetFavorites(ctx)
	if err != nil {
		f.endMerge()
		return f.fail(ctx, fmt.Errorf("favorites merge: fetch server favorites: %w", err))
	}

	f.store.Clear(ctx)
	f.mu.Lock()
	f.items = make(map[int64]domain.FavoriteItem, len(items))
	for _, item := range items {
		f.items[item.ProductID] = item
	}
	f.merging = false
	f.mu.Unlock()
	f.notify()
	return nil
}

// SignOut resets the engine to guest mode with an empty list.
func (f *Favorites) SignOut(ctx context.Context) {
	f.mu.Lock()
	f.items = make(map[int64]domain.FavoriteItem)
	f.pending = make(map[int64]struct{})
	f.clearing = false
	f.merging = false
	f.mu.Unlock()
	f.store.Clear(ctx)
	f.notify()
}

func (f *Favorites) guardLocked(productID int64) error {
	if f.clearing || f.merging {
		return ErrBusy
	}
	if _, busy := f.pending[productID]; busy {
		return ErrBusy
	}
	return nil
}

// persist writes the list to the durable snapshot. Same write-serialization
// contract as the cart engine: each write re-reads the list under the save
// lock so a slow write never lands stale state over a newer one.
func (f *Favorites) persist(ctx context.Context) {
	f.saveMu.Lock()
	defer f.saveMu.Unlock()

	f.mu.Lock()
	items := f.itemsLocked()
	f.mu.Unlock()
	f.store.Save(ctx, items)
}

func (f *Favorites) itemsLocked() []domain.FavoriteItem {
	items := make([]domain.FavoriteItem, 0, len(f.items))
	for _, item := range f.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items
}

func (f *Favorites) modeLocked() domain.Mode {
	mode := f.session.Mode()
	if mode == domain.ModeAuthenticated && f.merging {
		return domain.ModeSyncing
	}
	return mode
}

func (f *Favorites) reconcile(productID int64, confirmed domain.FavoriteItem) {
	f.mu.Lock()
	if _, ok := f.pending[productID]; ok {
		f.items[productID] = confirmed
		delete(f.pending, productID)
	}
	f.mu.Unlock()
	f.notify()
}

func (f *Favorites) rollback(productID int64) {
	f.mu.Lock()
	if _, ok := f.pending[productID]; ok {
		delete(f.items, productID)
		delete(f.pending, productID)
	}
	f.mu.Unlock()
	f.notify()
}

func (f *Favorites) restore(productID int64, prior domain.FavoriteItem) {
	f.mu.Lock()
	if _, ok := f.pending[productID]; ok {
		f.items[productID] = prior
		delete(f.pending, productID)
	}
	f.mu.Unlock()
	f.notify()
}

func (f *Favorites) settle(productID int64) {
	f.mu.Lock()
	delete(f.pending, productID)
	f.mu.Unlock()
	f.notify()
}

func (f *Favorites) endClear() {
	f.mu.Lock()
	f.clearing = false
	f.mu.Unlock()
	f.notify()
}

func (f *Favorites) endMerge() {
	f.mu.Lock()
	f.merging = false
	f.mu.Unlock()
	f.notify()
}

func (f *Favorites) replace(items []domain.FavoriteItem) {
	f.mu.Lock()
	f.items = make(map[int64]domain.FavoriteItem, len(items))
	for _, item := range items {
		f.items[item.ProductID] = item
	}
	f.mu.Unlock()
	f.notify()
}

func (f *Favorites) fail(ctx context.Context, err error) error {
	if errors.Is(err, remote.ErrUnauthorized) {
		f.becomeGuest(ctx)
	}
	return err
}

func (f *Favorites) becomeGuest(ctx context.Context) {
	f.session.Invalidate()
	guest := f.store.Load(ctx)
	f.mu.Lock()
	f.items = make(map[int64]domain.FavoriteItem, len(guest))
	for _, item := range guest {
		f.items[item.ProductID] = item
	}
	f.pending = make(map[int64]struct{})
	f.clearing = false
	f.merging = false
	f.mu.Unlock()
	f.notify()
}

func (f *Favorites) notify() {
	state := f.State()
	f.subMu.Lock()
	fns := make([]func(FavoritesState), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.subMu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}
