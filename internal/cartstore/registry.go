package cartstore

// TenantCart holds the ordered product ids of a single tenant's cart.
type TenantCart struct {
	ProductIDs []string `json:"productIds"`
}

// Registry is the whole cart state for one owner, keyed by tenant slug.
// It serializes as {"tenantCarts":{"<slug>":{"productIds":[...]}}}.
type Registry struct {
	TenantCarts map[string]TenantCart `json:"tenantCarts"`
}

// NewRegistry returns an empty registry.
func NewRegistry() Registry {
	return Registry{TenantCarts: map[string]TenantCart{}}
}

func (r *Registry) ensure() {
	if r.TenantCarts == nil {
		r.TenantCarts = map[string]TenantCart{}
	}
}

// Add appends the product to the tenant's cart unless it is already present.
func (r *Registry) Add(tenant, productID string) {
	r.ensure()
	cart := r.TenantCarts[tenant]
	for _, id := range cart.ProductIDs {
		if id == productID {
			return
		}
	}
	cart.ProductIDs = append(cart.ProductIDs, productID)
	r.TenantCarts[tenant] = cart
}

// Remove drops every occurrence of the product from the tenant's cart.
func (r *Registry) Remove(tenant, productID string) {
	r.ensure()
	cart, ok := r.TenantCarts[tenant]
	if !ok {
		return
	}
	kept := cart.ProductIDs[:0]
	for _, id := range cart.ProductIDs {
		if id != productID {
			kept = append(kept, id)
		}
	}
	cart.ProductIDs = kept
	r.TenantCarts[tenant] = cart
}

// Clear empties the tenant's cart but keeps the tenant entry.
func (r *Registry) Clear(tenant string) {
	r.ensure()
	r.TenantCarts[tenant] = TenantCart{ProductIDs: []string{}}
}

// ClearAll removes every tenant cart.
func (r *Registry) ClearAll() {
	r.TenantCarts = map[string]TenantCart{}
}

// Toggle adds the product when absent and removes it when present.
func (r *Registry) Toggle(tenant, productID string) {
	if r.Contains(tenant, productID) {
		r.Remove(tenant, productID)
		return
	}
	r.Add(tenant, productID)
}

// Contains reports whether the product is in the tenant's cart.
func (r Registry) Contains(tenant, productID string) bool {
	cart, ok := r.TenantCarts[tenant]
	if !ok {
		return false
	}
	for _, id := range cart.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// IDs returns a copy of the tenant's cart contents in insertion order.
func (r Registry) IDs(tenant string) []string {
	cart, ok := r.TenantCarts[tenant]
	if !ok || len(cart.ProductIDs) == 0 {
		return []string{}
	}
	out := make([]string, len(cart.ProductIDs))
	copy(out, cart.ProductIDs)
	return out
}

// clone returns a deep copy so adapters can hand out registries safely.
func (r Registry) clone() Registry {
	out := NewRegistry()
	for tenant, cart := range r.TenantCarts {
		ids := make([]string, len(cart.ProductIDs))
		copy(ids, cart.ProductIDs)
		out.TenantCarts[tenant] = TenantCart{ProductIDs: ids}
	}
	return out
}
