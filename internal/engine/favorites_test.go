package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Filichkin/OnlineShop-sub000/internal/auth"
	"github.com/Filichkin/OnlineShop-sub000/internal/domain"
	"github.com/Filichkin/OnlineShop-sub000/internal/remote"
)

type mockFavoritesStore struct {
	m      sync.RWMutex
	items  []domain.FavoriteItem
	clears int

	blockSave  chan struct{} // when set, the next Save waits on it
	saveStarts int
}

func (m *mockFavoritesStore) Load(context.Context) []domain.FavoriteItem {
	m.m.RLock()
	defer m.m.RUnlock()
	return append([]domain.FavoriteItem(nil), m.items...)
}

func (m *mockFavoritesStore) Save(_ context.Context, items []domain.FavoriteItem) {
	m.m.Lock()
	m.saveStarts++
	block := m.blockSave
	m.blockSave = nil
	m.m.Unlock()
	if block != nil {
		<-block
	}

	m.m.Lock()
	defer m.m.Unlock()
	m.items = append([]domain.FavoriteItem(nil), items...)
}

func (m *mockFavoritesStore) Clear(context.Context) {
	m.m.Lock()
	defer m.m.Unlock()
	m.items = nil
	m.clears++
}

func (m *mockFavoritesStore) snapshot() []domain.FavoriteItem {
	m.m.RLock()
	defer m.m.RUnlock()
	return append([]domain.FavoriteItem(nil), m.items...)
}

func (m *mockFavoritesStore) setBlockSave(block chan struct{}) {
	m.m.Lock()
	defer m.m.Unlock()
	m.blockSave = block
}

func (m *mockFavoritesStore) saveStartCalls() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.saveStarts
}

type mockFavoritesClient struct {
	m     sync.RWMutex
	items map[int64]domain.FavoriteItem
	err   error

	addCalls    int
	removeCalls int
	getCalls    int
}

func newMockFavoritesClient() *mockFavoritesClient {
	return &mockFavoritesClient{items: make(map[int64]domain.FavoriteItem)}
}

func (m *mockFavoritesClient) GetFavorites(context.Context) ([]domain.FavoriteItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.getCalls++
	if m.err != nil {
		return nil, m.err
	}
	items := make([]domain.FavoriteItem, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	return items, nil
}

func (m *mockFavoritesClient) AddFavorite(_ context.Context, productID int64) (*domain.FavoriteItem, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.addCalls++
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.items[productID]; ok {
		return nil, remote.ErrConflict
	}
	item := domain.FavoriteItem{
		ProductID: productID,
		Product:   domain.ProductSnapshot{Name: fmt.Sprintf("product-%d", productID), Price: 10},
	}
	m.items[productID] = item
	confirmed := item
	return &confirmed, nil
}

func (m *mockFavoritesClient) RemoveFavorite(_ context.Context, productID int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.removeCalls++
	if m.err != nil {
		return m.err
	}
	if _, ok := m.items[productID]; !ok {
		return remote.ErrNotFound
	}
	delete(m.items, productID)
	return nil
}

func (m *mockFavoritesClient) calls() (add, remove, get int) {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.addCalls, m.removeCalls, m.getCalls
}

func (m *mockFavoritesClient) setErr(err error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.err = err
}

func newGuestFavorites(t *testing.T) (*Favorites, *mockFavoritesStore, *mockFavoritesClient, *auth.Session) {
	t.Helper()
	store := &mockFavoritesStore{}
	client := newMockFavoritesClient()
	session := auth.NewSession()
	favorites := NewFavorites(context.Background(), store, client, session)
	return favorites, store, client, session
}

func TestToggle_DispatchesToAddAndRemove(t *testing.T) {
	favorites, store, _, _ := newGuestFavorites(t)
	ctx := context.Background()
	snapshot := domain.ProductSnapshot{Name: "hub cap", Price: 25}

	require.NoError(t, favorites.Toggle(ctx, 1, snapshot))
	state := favorites.State()
	require.Len(t, state.Items, 1)
	assert.Equal(t, 1, state.Count)
	assert.Equal(t, "hub cap", state.Items[0].Product.Name)
	assert.Len(t, store.snapshot(), 1)

	require.NoError(t, favorites.Toggle(ctx, 1, snapshot))
	state = favorites.State()
	assert.Empty(t, state.Items)
	assert.Zero(t, state.Count)
	assert.Empty(t, store.snapshot())
}

func TestAdd_ExistingRefIsNoOp(t *testing.T) {
	favorites, _, client, _ := newGuestFavorites(t)
	ctx := context.Background()

	require.NoError(t, favorites.Add(ctx, 1, domain.ProductSnapshot{Name: "a"}))
	require.NoError(t, favorites.Add(ctx, 1, domain.ProductSnapshot{Name: "b"}))

	state := favorites.State()
	require.Len(t, state.Items, 1)
	// The original snapshot is kept, the duplicate add changed nothing.
	assert.Equal(t, "a", state.Items[0].Product.Name)

	add, _, _ := client.calls()
	assert.Zero(t, add)
}

func TestAdd_RemoteConflictCountsAsPresent(t *testing.T) {
	favorites, _, client, session := newGuestFavorites(t)
	ctx := context.Background()

	// Favorited on another device already.
	client.m.Lock()
	client.items[7] = domain.FavoriteItem{ProductID: 7, Product: domain.ProductSnapshot{Name: "remote"}}
	client.m.Unlock()

	session.SetCredential("token")
	require.NoError(t, favorites.Add(ctx, 7, domain.ProductSnapshot{Name: "local"}))

	state := favorites.State()
	require.Len(t, state.Items, 1)
	assert.Empty(t, state.Pending)
}

func TestAdd_RemoteFailureRollsBack(t *testing.T) {
	favorites, _, client, session := newGuestFavorites(t)
	ctx := context.Background()

	session.SetCredential("token")
	client.setErr(fmt.Errorf("network down"))

	before := favorites.State()
	require.ErrorContains(t, favorites.Add(ctx, 1, domain.ProductSnapshot{Name: "x"}), "network down")
	assert.Equal(t, before, favorites.State())
}

func TestRemove_AbsentFavoriteIsNoOp(t *testing.T) {
	favorites, _, client, _ := newGuestFavorites(t)

	before := favorites.State()
	require.NoError(t, favorites.Remove(context.Background(), 42))
	assert.Equal(t, before, favorites.State())

	_, remove, _ := client.calls()
	assert.Zero(t, remove)
}

func TestFavoritesMerge_UnionWithServer(t *testing.T) {
	store := &mockFavoritesStore{items: []domain.FavoriteItem{
		{ProductID: 1, Product: domain.ProductSnapshot{Name: "guest-1"}},
		{ProductID: 2, Product: domain.ProductSnapshot{Name: "guest-2"}},
	}}
	client := newMockFavoritesClient()
	client.items[2] = domain.FavoriteItem{ProductID: 2, Product: domain.ProductSnapshot{Name: "server-2"}}
	client.items[3] = domain.FavoriteItem{ProductID: 3, Product: domain.ProductSnapshot{Name: "server-3"}}
	session := auth.NewSession()
	ctx := context.Background()
	favorites := NewFavorites(ctx, store, client, session)

	session.SetCredential("token")
	require.NoError(t, favorites.SignIn(ctx))

	// Union: the duplicate add answered Conflict and was treated as merged.
	state := favorites.State()
	assert.Equal(t, 3, state.Count)
	assert.Empty(t, store.snapshot())
}

func TestFavoritesMerge_FailureRetainsGuestData(t *testing.T) {
	store := &mockFavoritesStore{items: []domain.FavoriteItem{
		{ProductID: 1, Product: domain.ProductSnapshot{Name: "guest-1"}},
	}}
	client := newMockFavoritesClient()
	client.setErr(fmt.Errorf("server unavailable"))
	session := auth.NewSession()
	ctx := context.Background()
	favorites := NewFavorites(ctx, store, client, session)

	session.SetCredential("token")
	require.ErrorContains(t, favorites.SignIn(ctx), "server unavailable")

	assert.Len(t, store.snapshot(), 1)
	assert.Len(t, favorites.State().Items, 1)
}

func TestFavoritesClear_AuthenticatedFansOutRemovals(t *testing.T) {
	favorites, _, client, session := newGuestFavorites(t)
	ctx := context.Background()

	session.SetCredential("token")
	require.NoError(t, favorites.Add(ctx, 1, domain.ProductSnapshot{}))
	require.NoError(t, favorites.Add(ctx, 2, domain.ProductSnapshot{}))

	require.NoError(t, favorites.Clear(ctx))

	state := favorites.State()
	assert.Empty(t, state.Items)
	_, remove, _ := client.calls()
	assert.Equal(t, 2, remove)
}

func TestFavoritesUnauthorized_FlipsToGuestSnapshot(t *testing.T) {
	store := &mockFavoritesStore{items: []domain.FavoriteItem{
		{ProductID: 9, Product: domain.ProductSnapshot{Name: "kept"}},
	}}
	client := newMockFavoritesClient()
	session := auth.NewSession()
	session.SetCredential("stale")
	ctx := context.Background()
	favorites := NewFavorites(ctx, store, client, session)

	client.setErr(remote.ErrUnauthorized)
	err := favorites.Add(ctx, 5, domain.ProductSnapshot{Name: "new"})
	require.ErrorIs(t, err, remote.ErrUnauthorized)

	state := favorites.State()
	assert.Equal(t, domain.ModeGuest, state.Mode)
	require.Len(t, state.Items, 1)
	assert.Equal(t, int64(9), state.Items[0].ProductID)
}

func TestFavoritesGuestSaves_SlowWriteNeverLosesNewerItem(t *testing.T) {
	favorites, store, _, _ := newGuestFavorites(t)
	ctx := context.Background()

	release := make(chan struct{})
	store.setBlockSave(release)

	done := make(chan error, 2)
	go func() { done <- favorites.Add(ctx, 1, domain.ProductSnapshot{Name: "a"}) }()

	require.Eventually(t, func() bool {
		return store.saveStartCalls() == 1
	}, time.Second, time.Millisecond)

	go func() { done <- favorites.Add(ctx, 2, domain.ProductSnapshot{Name: "b"}) }()
	close(release)

	require.NoError(t, <-done)
	require.NoError(t, <-done)

	assert.Len(t, store.snapshot(), 2)
	assert.Len(t, favorites.State().Items, 2)
}
