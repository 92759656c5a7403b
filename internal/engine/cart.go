// Package engine orchestrates the dual-mode cart and favorites collections:
// mutations apply optimistically to in-memory state, dispatch to the backing
// store the current mode resolves to (local snapshot for guests, storefront
// API for authenticated users), then reconcile with the authoritative answer
// or roll back on failure. On sign-in the guest collection is merged into the
// server-owned one exactly once.
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

// Cart is the sync engine for the shopping cart. The in-memory collection is
// owned exclusively by the engine; UI layers read derived state and route all
// mutation through the operation methods.
type Cart struct {
	store   localstore.CartStore
	remote  remote.CartClient
	session *auth.Session

	sfg singleflight.Group // collapses concurrent refreshes

	saveMu sync.Mutex // serializes durable snapshot writes

	mu       sync.Mutex
	items    map[int64]domain.CartItem
	pending  map[int64]struct{}
	clearing bool
	merging  bool

	subMu   sync.Mutex
	subs    map[int]func(CartState)
	nextSub int
}

// NewCart builds a cart engine seeded from the durable guest snapshot.
func NewCart(ctx context.Context, store localstore.CartStore, remoteClient remote.CartClient, session *auth.Session) *Cart {
	c := &Cart{
		store:   store,
		remote:  remoteClient,
		session: session,
		items:   make(map[int64]domain.CartItem),
		pending: make(map[int64]struct{}),
		subs:    make(map[int]func(CartState)),
	}
	for _, item := range store.Load(ctx) {
		c.items[item.ProductID] = item
	}
	return c
}

// State returns the current view: sorted items, recomputed aggregates,
// pending refs and the effective mode.
func (c *Cart) State() CartState {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]domain.CartItem, 0, len(c.items))
	for _, item := range c.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	state := CartState{
		Items:      items,
		ItemsCount: len(items),
		Pending:    pendingRefs(c.pending),
		Mode:       c.modeLocked(),
	}
	for _, item := range items {
		state.TotalItems += item.Quantity
		state.TotalPrice += item.Subtotal()
	}
	return state
}

// Subscribe registers a listener called after every state change. The
// returned function unregisters it. Deliveries from concurrent mutations are
// not ordered; listeners must treat each state as a full replacement, not a
// delta.
func (c *Cart) Subscribe(fn func(CartState)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Add inserts the product or increases its quantity if already present.
// The unit price is the price the user saw; it is kept as the snapshot for
// guest items and replaced by the server-computed price once authenticated.
func (c *Cart) Add(ctx context.Context, productID int64, quantity int, unitPrice float64) error {
	if productID <= 0 {
		return ErrInvalidProduct
	}
	if quantity <= 0 || quantity > domain.MaxItemQuantity {
		return ErrInvalidQuantity
	}
	if unitPrice < 0 {
		return fmt.Errorf("%w: negative unit price", ErrInvalidProduct)
	}

	c.mu.Lock()
	if err := c.guardLocked(productID); err != nil {
		c.mu.Unlock()
		return err
	}
	prior, existed := c.items[productID]
	next := prior
	if existed {
		next.Quantity = clampQuantity(prior.Quantity + quantity)
	} else {
		next = domain.CartItem{ProductID: productID, Quantity: quantity, UnitPrice: unitPrice}
	}
	c.items[productID] = next
	c.pending[productID] = struct{}{}
	mode := c.session.Mode()
	c.mu.Unlock()
	c.notify()

	if mode == domain.ModeGuest {
		c.persist(ctx)
		c.settle(productID)
		return nil
	}

	confirmed, err := c.remote.AddItem(ctx, productID, quantity)
	if err != nil {
		c.rollback(productID, prior, existed)
		return c.fail(ctx, fmt.Errorf("add product %d: %w", productID, err))
	}
	c.reconcile(productID, *confirmed)
	return nil
}

// SetQuantity overwrites the quantity of an existing item. Setting zero is
// the caller's cue to Remove instead; the engine rejects it.
func (c *Cart) SetQuantity(ctx context.Context, productID int64, quantity int) error {
	if productID <= 0 {
		return ErrInvalidProduct
	}
	if quantity <= 0 || quantity > domain.MaxItemQuantity {
		return ErrInvalidQuantity
	}

	c.mu.Lock()
	if err := c.guardLocked(productID); err != nil {
		c.mu.Unlock()
		return err
	}
	prior, existed := c.items[productID]
	if !existed {
		c.mu.Unlock()
		return ErrNotFound
	}
	next := prior
	next.Quantity = quantity
	c.items[productID] = next
	c.pending[productID] = struct{}{}
	mode := c.session.Mode()
	c.mu.Unlock()
	c.notify()

	if mode == domain.ModeGuest {
		c.persist(ctx)
		c.settle(productID)
		return nil
	}

	confirmed, err := c.remote.UpdateQuantity(ctx, productID, quantity)
	if err != nil {
		c.rollback(productID, prior, existed)
		if errors.Is(err, remote.ErrNotFound) {
			return fmt.Errorf("set quantity for product %d: %w", productID, ErrNotFound)
		}
		return c.fail(ctx, fmt.Errorf("set quantity for product %d: %w", productID, err))
	}
	c.reconcile(productID, *confirmed)
	return nil
}

// Remove deletes the item. Removing an absent product is a successful no-op.
func (c *Cart) Remove(ctx context.Context, productID int64) error {
	if productID <= 0 {
		return ErrInvalidProduct
	}

	c.mu.Lock()
	if err := c.guardLocked(productID); err != nil {
		c.mu.Unlock()
		return err
	}
	prior, existed := c.items[productID]
	if !existed {
		c.mu.Unlock()
		return nil
	}
	delete(c.items, productID)
	c.pending[productID] = struct{}{}
	mode := c.session.Mode()
	c.mu.Unlock()
	c.notify()

	if mode == domain.ModeGuest {
		c.persist(ctx)
		c.settle(productID)
		return nil
	}

	err := c.remote.RemoveItem(ctx, productID)
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		c.restore(productID, prior)
		return c.fail(ctx, fmt.Errorf("remove product %d: %w", productID, err))
	}
	// The server not having the item confirms the deletion.
	c.settle(productID)
	return nil
}

// Clear empties the collection. Rejected while any ref is pending: clearing
// underneath an in-flight per-item operation would make its rollback state
// ambiguous.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	if len(c.pending) > 0 || c.clearing || c.merging {
		c.mu.Unlock()
		return ErrBusy
	}
	prior := c.items
	c.items = make(map[int64]domain.CartItem)
	c.clearing = true
	mode := c.session.Mode()
	c.mu.Unlock()
	c.notify()

	if mode == domain.ModeGuest {
		c.persist(ctx)
		c.endClear()
		return nil
	}

	if err := c.remote.ClearCart(ctx); err != nil {
		c.mu.Lock()
		if c.clearing {
			c.items = prior
			c.clearing = false
		}
		c.mu.Unlock()
		c.notify()
		return c.fail(ctx, fmt.Errorf("clear cart: %w", err))
	}
	c.endClear()
	return nil
}

// Refresh replaces the in-memory collection with the authoritative copy:
// the storefront API when authenticated, the durable snapshot otherwise.
// Concurrent refreshes collapse into a single fetch.
func (c *Cart) Refresh(ctx context.Context) error {
	_, err, _ := c.sfg.Do("refresh", func() (interface{}, error) {
		if c.session.Mode() == domain.ModeAuthenticated {
			items, err := c.remote.GetCart(ctx)
			if err != nil {
				return nil, c.fail(ctx, fmt.Errorf("refresh cart: %w", err))
			}
			c.replace(items)
			return nil, nil
		}
		c.replace(c.store.Load(ctx))
		return nil, nil
	})
	return err
}

// SignIn runs the one-time merge protocol after a credential has been
// acquired: every guest item is added to the server-owned cart (additive, so
// quantities from another device are never overwritten), then the in-memory
// collection is replaced by an authoritative fetch and the guest snapshot is
// deleted. On any failure the guest snapshot and in-memory state are
// retained so the merge can be retried without losing the only copy.
func (c *Cart) SignIn(ctx context.Context) error {
	if c.session.Mode() != domain.ModeAuthenticated {
		return ErrNoCredential
	}

	c.mu.Lock()
	if c.merging || c.clearing || len(c.pending) > 0 {
		c.mu.Unlock()
		return ErrBusy
	}
	guestItems := c.itemsLocked()
	c.merging = true
	c.mu.Unlock()
	c.notify()

	if len(guestItems) > 0 {
		var g errgroup.Group
		for _, item := range guestItems {
			item := item
			g.Go(func() error {
				_, err := c.remote.AddItem(ctx, item.ProductID, item.Quantity)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			c.endMerge()
			return c.fail(ctx, fmt.Errorf("cart merge: %w", err))
		}
	}

	items, err := c.remote.GetCart(ctx)
	if err != nil {
		c.endMerge()
		return c.fail(ctx, fmt.Errorf("cart merge: fetch server cart: %w", err))
	}

	c.store.Clear(ctx)
	c.mu.Lock()
	c.items = make(map[int64]domain.CartItem, len(items))
	for _, item := range items {
		c.items[item.ProductID] = item
	}
	c.merging = false
	c.mu.Unlock()
	c.notify()
	return nil
}

// SignOut resets the engine to guest mode with an empty collection. The
// previous guest snapshot is discarded, not restored: sign-out is not
// "become guest with the old cart".
func (c *Cart) SignOut(ctx context.Context) {
	c.mu.Lock()
	c.items = make(map[int64]domain.CartItem)
	c.pending = make(map[int64]struct{})
	c.clearing = false
	c.merging = false
	c.mu.Unlock()
	c.store.Clear(ctx)
	c.notify()
}

func (c *Cart) guardLocked(productID int64) error {
	if c.clearing || c.merging {
		return ErrBusy
	}
	if _, busy := c.pending[productID]; busy {
		return ErrBusy
	}
	return nil
}

// persist writes the collection to the durable snapshot. Writes are
// serialized and each one re-reads the collection under the save lock, so a
// slow write never lands stale state over a newer one.
func (c *Cart) persist(ctx context.Context) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	c.mu.Lock()
	items := c.itemsLocked()
	c.mu.Unlock()
	c.store.Save(ctx, items)
}

// itemsLocked copies the collection; callers hold c.mu.
func (c *Cart) itemsLocked() []domain.CartItem {
	items := make([]domain.CartItem, 0, len(c.items))
	for _, item := range c.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })
	return items
}

func (c *Cart) modeLocked() domain.Mode {
	mode := c.session.Mode()
	if mode == domain.ModeAuthenticated && c.merging {
		return domain.ModeSyncing
	}
	return mode
}

// reconcile overwrites the optimistic item with the server-confirmed one.
// A pending entry cleared by a mode flip means the result is stale and is
// dropped.
func (c *Cart) reconcile(productID int64, confirmed domain.CartItem) {
	c.mu.Lock()
	if _, ok := c.pending[productID]; ok {
		c.items[productID] = confirmed
		delete(c.pending, productID)
	}
	c.mu.Unlock()
	c.notify()
}

// rollback restores the retained prior state for the ref verbatim.
func (c *Cart) rollback(productID int64, prior domain.CartItem, existed bool) {
	c.mu.Lock()
	if _, ok := c.pending[productID]; ok {
		if existed {
			c.items[productID] = prior
		} else {
			delete(c.items, productID)
		}
		delete(c.pending, productID)
	}
	c.mu.Unlock()
	c.notify()
}

// restore undoes an optimistic removal.
func (c *Cart) restore(productID int64, prior domain.CartItem) {
	c.mu.Lock()
	if _, ok := c.pending[productID]; ok {
		c.items[productID] = prior
		delete(c.pending, productID)
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Cart) settle(productID int64) {
	c.mu.Lock()
	delete(c.pending, productID)
	c.mu.Unlock()
	c.notify()
}

func (c *Cart) endClear() {
	c.mu.Lock()
	c.clearing = false
	c.mu.Unlock()
	c.notify()
}

func (c *Cart) endMerge() {
	c.mu.Lock()
	c.merging = false
	c.mu.Unlock()
	c.notify()
}

func (c *Cart) replace(items []domain.CartItem) {
	c.mu.Lock()
	c.items = make(map[int64]domain.CartItem, len(items))
	for _, item := range items {
		c.items[item.ProductID] = item
	}
	c.mu.Unlock()
	c.notify()
}

// fail interprets a remote failure. A rejected credential flips the mode:
// the collection viewed under the stale credential is discarded and the
// guest snapshot, if any, takes its place. In-flight results for other refs
// become stale and are dropped when they settle.
func (c *Cart) fail(ctx context.Context, err error) error {
	if errors.Is(err, remote.ErrUnauthorized) {
		c.becomeGuest(ctx)
	}
	return err
}

func (c *Cart) becomeGuest(ctx context.Context) {
	c.session.Invalidate()
	guest := c.store.Load(ctx)
	c.mu.Lock()
	c.items = make(map[int64]domain.CartItem, len(guest))
	for _, item := range guest {
		c.items[item.ProductID] = item
	}
	c.pending = make(map[int64]struct{})
	c.clearing = false
	c.merging = false
	c.mu.Unlock()
	c.notify()
}

func (c *Cart) notify() {
	state := c.State()
	c.subMu.Lock()
	fns := make([]func(CartState), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}

func clampQuantity(quantity int) int {
	if quantity > domain.MaxItemQuantity {
		return domain.MaxItemQuantity
	}
	return quantity
}

func pendingRefs(pending map[int64]struct{}) []int64 {
	refs := make([]int64, 0, len(pending))
	for ref := range pending {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
	return refs
}
