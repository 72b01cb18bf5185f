package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return &Store{Adapter: NewMemoryAdapter()}
}

func TestAddThenToggleRemoves(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.AddProduct(ctx, "dev1", "alice", "p1"))
	in, err := s.IsProductInCart(ctx, "dev1", "alice", "p1")
	require.NoError(t, err)
	require.True(t, in)

	require.NoError(t, s.ToggleProduct(ctx, "dev1", "alice", "p1"))
	in, err = s.IsProductInCart(ctx, "dev1", "alice", "p1")
	require.NoError(t, err)
	require.False(t, in)

	ids, err := s.ProductIDs(ctx, "dev1", "alice")
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.AddProduct(ctx, "dev1", "alice", "p1"))
	require.NoError(t, s.AddProduct(ctx, "dev1", "alice", "p1"))

	ids, err := s.ProductIDs(ctx, "dev1", "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, ids)
}

func TestTenantIsolation(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.AddProduct(ctx, "dev1", "alice", "p1"))
	require.NoError(t, s.AddProduct(ctx, "dev1", "alice", "p2"))
	require.NoError(t, s.AddProduct(ctx, "dev1", "bob", "p3"))

	require.NoError(t, s.RemoveProduct(ctx, "dev1", "alice", "p1"))
	require.NoError(t, s.ClearCart(ctx, "dev1", "bob"))

	aliceIDs, err := s.ProductIDs(ctx, "dev1", "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"p2"}, aliceIDs)

	bobIDs, err := s.ProductIDs(ctx, "dev1", "bob")
	require.NoError(t, err)
	require.Empty(t, bobIDs)

	reg, err := s.Registry(ctx, "dev1")
	require.NoError(t, err)
	require.Contains(t, reg.TenantCarts, "bob", "cleared cart keeps its tenant entry")
}

func TestClearAllCarts(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	require.NoError(t, s.AddProduct(ctx, "dev1", "alice", "p1"))
	require.NoError(t, s.AddProduct(ctx, "dev1", "bob", "p2"))
	require.NoError(t, s.ClearAllCarts(ctx, "dev1"))

	reg, err := s.Registry(ctx, "dev1")
	require.NoError(t, err)
	require.Empty(t, reg.TenantCarts)
}

func TestRemoveDropsAllOccurrences(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	// Seed a registry that predates set enforcement, e.g. written by an
	// older client.
	require.NoError(t, s.Adapter.Set(ctx, "dev1", Registry{TenantCarts: map[string]TenantCart{
		"alice": {ProductIDs: []string{"p1", "p2", "p1"}},
	}}))

	require.NoError(t, s.RemoveProduct(ctx, "dev1", "alice", "p1"))
	ids, err := s.ProductIDs(ctx, "dev1", "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"p2"}, ids)
}

func TestRegistrySerializationRoundTrip(t *testing.T) {
	reg := NewRegistry()
	reg.Add("alice", "p1")
	reg.Add("alice", "p2")
	reg.Add("bob", "p3")

	raw, err := json.Marshal(reg)
	require.NoError(t, err)
	require.JSONEq(t, `{"tenantCarts":{"alice":{"productIds":["p1","p2"]},"bob":{"productIds":["p3"]}}}`, string(raw))

	var restored Registry
	require.NoError(t, json.Unmarshal(raw, &restored))
	require.Equal(t, reg, restored)
}

type failingAdapter struct{ err error }

func (f failingAdapter) Get(context.Context, string) (Registry, error) { return NewRegistry(), nil }
func (f failingAdapter) Set(context.Context, string, Registry) error   { return f.err }

func TestWriteFailurePropagates(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	s := &Store{Adapter: failingAdapter{err: boom}}

	err := s.AddProduct(ctx, "dev1", "alice", "p1")
	require.Error(t, err)
	require.ErrorIs(t, err, boom)
}

func TestFileAdapterPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "carts.json")

	s := &Store{Adapter: NewFileAdapter(path)}
	require.NoError(t, s.AddProduct(ctx, "dev1", "alice", "p1"))

	// A fresh adapter over the same file sees the write.
	reopened := &Store{Adapter: NewFileAdapter(path)}
	ids, err := reopened.ProductIDs(ctx, "dev1", "alice")
	require.NoError(t, err)
	require.Equal(t, []string{"p1"}, ids)
}

func TestRedisAdapter(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := &Store{Adapter: NewRedisAdapter(client, 0)}
	require.NoError(t, s.AddProduct(ctx, "dev1", "alice", "p1"))
	require.NoError(t, s.AddProduct(ctx, "dev1", "bob", "p2"))

	in, err := s.IsProductInCart(ctx, "dev1", "alice", "p1")
	require.NoError(t, err)
	require.True(t, in)

	// Owners are isolated from each other.
	ids, err := s.ProductIDs(ctx, "dev2", "alice")
	require.NoError(t, err)
	require.Empty(t, ids)

	require.NoError(t, s.ClearCart(ctx, "dev1", "alice"))
	ids, err = s.ProductIDs(ctx, "dev1", "alice")
	require.NoError(t, err)
	require.Empty(t, ids)
}
