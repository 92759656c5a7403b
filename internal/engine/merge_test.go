package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Filichkin/OnlineShop-sub000/internal/auth"
	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
)

func TestMerge_QuantitiesAddNeverOverwrite(t *testing.T) {
	store := &mockCartStore{items: []domain.CartItem{{ProductID: 1, Quantity: 2, UnitPrice: 100}}}
	client := newMockCartClient()
	client.items[1] = domain.CartItem{ProductID: 1, Quantity: 3, UnitPrice: 95}
	session := auth.NewSession()
	ctx := context.Background()
	cart := NewCart(ctx, store, client, session)

	session.SetCredential("token")
	require.NoError(t, cart.SignIn(ctx))

	// Server-side quantity acquired on another device is preserved.
	server, ok := client.serverItem(1)
	require.True(t, ok)
	assert.Equal(t, 5, server.Quantity)

	// In-memory state is the authoritative post-merge fetch.
	state := cart.State()
	assert.Equal(t, domain.ModeAuthenticated, state.Mode)
	require.Len(t, state.Items, 1)
	assert.Equal(t, 5, state.Items[0].Quantity)
	assert.Equal(t, 95.0, state.Items[0].UnitPrice)

	// The guest snapshot no longer exists.
	assert.Empty(t, store.snapshot())
	assert.Equal(t, 1, store.clearCalls())
}

func TestMerge_GuestScenarioEndToEnd(t *testing.T) {
	cart, store, client, session := newGuestCart(t)
	ctx := context.Background()

	// Guest adds product X (price 100) with quantity 1.
	require.NoError(t, cart.Add(ctx, 10, 1, 100))
	assert.Equal(t, 100.0, cart.State().TotalPrice)

	// User authenticates against an empty server cart.
	client.prices[10] = 100
	session.SetCredential("token")
	require.NoError(t, cart.SignIn(ctx))

	add, _, _, _, get := client.calls()
	assert.Equal(t, 1, add)
	assert.Equal(t, 1, get)

	state := cart.State()
	require.Len(t, state.Items, 1)
	assert.Equal(t, 1, state.Items[0].Quantity)
	assert.Empty(t, store.snapshot())
}

func TestMerge_FailureRetainsGuestData(t *testing.T) {
	store := &mockCartStore{items: []domain.CartItem{
		{ProductID: 1, Quantity: 2, UnitPrice: 100},
		{ProductID: 2, Quantity: 1, UnitPrice: 40},
	}}
	client := newMockCartClient()
	client.failAdd = map[int64]error{2: fmt.Errorf("server unavailable")}
	session := auth.NewSession()
	ctx := context.Background()
	cart := NewCart(ctx, store, client, session)

	session.SetCredential("token")
	err := cart.SignIn(ctx)
	require.ErrorContains(t, err, "server unavailable")

	// Nothing was lost: the durable snapshot still holds both items and the
	// in-memory collection is untouched, so the merge can be retried.
	assert.Zero(t, store.clearCalls())
	saved := store.snapshot()
	require.Len(t, saved, 2)
	state := cart.State()
	assert.Len(t, state.Items, 2)
	assert.Equal(t, domain.ModeAuthenticated, state.Mode)
}

func TestMerge_AllRequestsSettleBeforeCompletion(t *testing.T) {
	store := &mockCartStore{items: []domain.CartItem{
		{ProductID: 1, Quantity: 1, UnitPrice: 10},
		{ProductID: 2, Quantity: 2, UnitPrice: 20},
		{ProductID: 3, Quantity: 3, UnitPrice: 30},
	}}
	client := newMockCartClient()
	session := auth.NewSession()
	ctx := context.Background()
	cart := NewCart(ctx, store, client, session)

	session.SetCredential("token")
	require.NoError(t, cart.SignIn(ctx))

	add, _, _, _, _ := client.calls()
	assert.Equal(t, 3, add)
	assert.Len(t, cart.State().Items, 3)
}

func TestMerge_EmptyGuestCollectionIssuesNoAdds(t *testing.T) {
	cart, store, client, session := newGuestCart(t)
	ctx := context.Background()

	client.m.Lock()
	client.items[4] = domain.CartItem{ProductID: 4, Quantity: 2, UnitPrice: 60}
	client.m.Unlock()

	session.SetCredential("token")
	require.NoError(t, cart.SignIn(ctx))

	add, _, _, _, get := client.calls()
	assert.Zero(t, add)
	assert.Equal(t, 1, get)

	// A second login after the first merge cleared the snapshot behaves the
	// same way: zero merge requests, state swapped to the server copy.
	require.NoError(t, cart.SignIn(ctx))
	add, _, _, _, _ = client.calls()
	assert.Zero(t, add)

	state := cart.State()
	require.Len(t, state.Items, 1)
	assert.Equal(t, int64(4), state.Items[0].ProductID)
	_ = store
}

func TestSignIn_WithoutCredential(t *testing.T) {
	cart, _, _, _ := newGuestCart(t)
	require.ErrorIs(t, cart.SignIn(context.Background()), ErrNoCredential)
}

func TestSignIn_ModeIsSyncingDuringMerge(t *testing.T) {
	cart, _, client, session := newGuestCart(t)
	ctx := context.Background()

	require.NoError(t, cart.Add(ctx, 1, 1, 10))
	session.SetCredential("token")

	var sawSyncing bool
	unsubscribe := cart.Subscribe(func(s CartState) {
		if s.Mode == domain.ModeSyncing {
			sawSyncing = true
		}
	})
	defer unsubscribe()

	require.NoError(t, cart.SignIn(ctx))
	assert.True(t, sawSyncing)
	assert.Equal(t, domain.ModeAuthenticated, cart.State().Mode)
	_ = client
}
