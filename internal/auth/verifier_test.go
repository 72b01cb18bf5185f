package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/funroad-api/internal/common"
)

const testSecret = "test-secret-test-secret-test-secret!"

func signToken(t *testing.T, mutate func(b *jwt.Builder)) string {
	t.Helper()
	b := jwt.NewBuilder().
		Subject("user-1").
		Claim("username", "alice").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour))
	if mutate != nil {
		mutate(b)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)
	return string(signed)
}

func TestParseTokenExtractsSession(t *testing.T) {
	v := NewVerifier(testSecret, TokenValidator{})
	session, err := v.ParseToken(signToken(t, nil))
	require.NoError(t, err)
	require.Equal(t, "user-1", session.UserID)
	require.Equal(t, "alice", session.Username)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	v := NewVerifier(testSecret, TokenValidator{})
	token := signToken(t, func(b *jwt.Builder) {
		b.Expiration(time.Now().Add(-time.Hour))
	})
	_, err := v.ParseToken(token)
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "UNAUTHORIZED", appErr.Code)
}

func TestParseTokenRejectsWrongKey(t *testing.T) {
	tok, err := jwt.NewBuilder().Subject("user-1").Expiration(time.Now().Add(time.Hour)).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("some-other-secret-entirely-here!")))
	require.NoError(t, err)

	v := NewVerifier(testSecret, TokenValidator{})
	_, err = v.ParseToken(string(signed))
	require.Error(t, err)
}

func TestParseTokenRejectsMissingSubject(t *testing.T) {
	v := NewVerifier(testSecret, TokenValidator{})
	token := signToken(t, func(b *jwt.Builder) { b.Subject("") })
	_, err := v.ParseToken(token)
	require.Error(t, err)
}

func TestAuthenticatePassesAnonymousThrough(t *testing.T) {
	m := Middleware{Verifier: NewVerifier(testSecret, TokenValidator{})}
	var sawSession bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawSession = common.UserID(r.Context())
	})
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	m.Authenticate(next).ServeHTTP(httptest.NewRecorder(), req)
	require.False(t, sawSession)
}

func TestRequireAuthRedirectsToSignIn(t *testing.T) {
	m := Middleware{Verifier: NewVerifier(testSecret, TokenValidator{})}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	req := httptest.NewRequest(http.MethodGet, "/api/library", nil)
	rec := httptest.NewRecorder()
	m.RequireAuth(next).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), `"/sign-in"`)
}

func TestRequireAuthAcceptsBearerAndCookie(t *testing.T) {
	m := Middleware{Verifier: NewVerifier(testSecret, TokenValidator{}), AccessCookie: "funroad_token"}
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = common.UserID(r.Context())
	})
	token := signToken(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/library", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	m.RequireAuth(next).ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "user-1", got)

	got = ""
	req = httptest.NewRequest(http.MethodGet, "/api/library", nil)
	req.AddCookie(&http.Cookie{Name: "funroad_token", Value: token})
	m.RequireAuth(next).ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "user-1", got)
}
