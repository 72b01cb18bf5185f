package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveHeaderWins(t *testing.T) {
	r := NewResolver("", "funroad.test", "")
	req := httptest.NewRequest(http.MethodGet, "http://bob.funroad.test/api/products", nil)
	req.Header.Set("X-Tenant-Slug", "alice")
	require.Equal(t, "alice", r.Resolve(req))
}

func TestResolveSubdomain(t *testing.T) {
	r := NewResolver("", "funroad.test", "")

	req := httptest.NewRequest(http.MethodGet, "http://alice.funroad.test/api/products", nil)
	require.Equal(t, "alice", r.Resolve(req))

	req = httptest.NewRequest(http.MethodGet, "http://funroad.test/api/products", nil)
	require.Empty(t, r.Resolve(req), "apex host has no tenant")

	req = httptest.NewRequest(http.MethodGet, "http://evil.example.com/api/products", nil)
	require.Empty(t, r.Resolve(req), "foreign hosts resolve to nothing")
}

func TestResolveStripsPort(t *testing.T) {
	r := NewResolver("", "funroad.test", "")
	req := httptest.NewRequest(http.MethodGet, "http://alice.funroad.test:8080/api/products", nil)
	require.Equal(t, "alice", r.Resolve(req))
}

func TestMiddlewareInjectsContext(t *testing.T) {
	r := NewResolver("", "funroad.test", "")
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		got, _ = FromContext(req.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "http://alice.funroad.test/api/products", nil)
	r.Middleware(next).ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "alice", got)
}

func TestFromContextTrimsBlank(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	_, ok = FromContext(WithTenant(context.Background(), "   "))
	require.False(t, ok)
}
