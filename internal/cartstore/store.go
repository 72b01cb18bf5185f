package cartstore

import (
	"context"
	"fmt"

	"github.com/noah-isme/funroad-api/internal/obs"
)

// Adapter persists cart registries keyed by owner (the device cart id).
// Implementations must treat registries as values; mutations happen in the
// store and are written back whole (last write wins across tabs).
type Adapter interface {
	Get(ctx context.Context, owner string) (Registry, error)
	Set(ctx context.Context, owner string, reg Registry) error
}

// Store applies cart mutations with write-through persistence. Storage
// failures surface to the caller; there is no retry or recovery path here.
type Store struct {
	Adapter Adapter
}

func (s *Store) mutate(ctx context.Context, owner, op string, fn func(*Registry)) error {
	if s == nil || s.Adapter == nil {
		return fmt.Errorf("cart store not configured")
	}
	reg, err := s.Adapter.Get(ctx, owner)
	if err != nil {
		return fmt.Errorf("load cart registry: %w", err)
	}
	fn(&reg)
	if err := s.Adapter.Set(ctx, owner, reg); err != nil {
		return fmt.Errorf("persist cart registry: %w", err)
	}
	if obs.CartMutationTotal != nil {
		obs.CartMutationTotal.WithLabelValues(op).Inc()
	}
	return nil
}

// AddProduct adds a product to the tenant's cart; adding an id that is
// already present is a no-op.
func (s *Store) AddProduct(ctx context.Context, owner, tenant, productID string) error {
	return s.mutate(ctx, owner, "add", func(r *Registry) { r.Add(tenant, productID) })
}

// RemoveProduct removes all occurrences of the product from the tenant's cart.
func (s *Store) RemoveProduct(ctx context.Context, owner, tenant, productID string) error {
	return s.mutate(ctx, owner, "remove", func(r *Registry) { r.Remove(tenant, productID) })
}

// ToggleProduct flips the product's membership in the tenant's cart.
func (s *Store) ToggleProduct(ctx context.Context, owner, tenant, productID string) error {
	return s.mutate(ctx, owner, "toggle", func(r *Registry) { r.Toggle(tenant, productID) })
}

// ClearCart empties the tenant's cart, keeping the tenant entry.
func (s *Store) ClearCart(ctx context.Context, owner, tenant string) error {
	return s.mutate(ctx, owner, "clear", func(r *Registry) { r.Clear(tenant) })
}

// ClearAllCarts removes every tenant cart for the owner.
func (s *Store) ClearAllCarts(ctx context.Context, owner string) error {
	return s.mutate(ctx, owner, "clear_all", func(r *Registry) { r.ClearAll() })
}

// IsProductInCart reports whether the product is in the tenant's cart.
func (s *Store) IsProductInCart(ctx context.Context, owner, tenant, productID string) (bool, error) {
	if s == nil || s.Adapter == nil {
		return false, fmt.Errorf("cart store not configured")
	}
	reg, err := s.Adapter.Get(ctx, owner)
	if err != nil {
		return false, fmt.Errorf("load cart registry: %w", err)
	}
	return reg.Contains(tenant, productID), nil
}

// ProductIDs returns the tenant's cart contents in insertion order.
func (s *Store) ProductIDs(ctx context.Context, owner, tenant string) ([]string, error) {
	if s == nil || s.Adapter == nil {
		return nil, fmt.Errorf("cart store not configured")
	}
	reg, err := s.Adapter.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load cart registry: %w", err)
	}
	return reg.IDs(tenant), nil
}

// Registry returns the owner's full registry.
func (s *Store) Registry(ctx context.Context, owner string) (Registry, error) {
	if s == nil || s.Adapter == nil {
		return Registry{}, fmt.Errorf("cart store not configured")
	}
	return s.Adapter.Get(ctx, owner)
}
