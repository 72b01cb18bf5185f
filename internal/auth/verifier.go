package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/funroad-api/internal/common"
)

// Verifier validates access tokens issued by the identity provider and
// extracts the session claims. This service never mints tokens.
type Verifier struct {
	secret    []byte
	validator TokenValidator
	now       func() time.Time
}

// NewVerifier builds a Verifier for HS256 tokens signed with secret.
func NewVerifier(secret string, validator TokenValidator) *Verifier {
	if validator.Algorithm == "" {
		validator.Algorithm = jwa.HS256
	}
	return &Verifier{
		secret:    []byte(secret),
		validator: validator,
		now:       time.Now,
	}
}

// ParseToken validates an access token and returns the session it carries.
func (v *Verifier) ParseToken(token string) (common.Session, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Session{}, common.NewAppError("UNAUTHORIZED", "missing token", http.StatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return common.Session{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if v.validator.Algorithm != "" && algorithm != v.validator.Algorithm {
		return common.Session{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.secret))
	if err != nil {
		return common.Session{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	if err := v.validator.Validate(parsed, algorithm, v.now()); err != nil {
		return common.Session{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, err)
	}
	session := common.Session{UserID: parsed.Subject()}
	if raw, ok := parsed.Get("username"); ok {
		if username, ok := raw.(string); ok {
			session.Username = username
		}
	}
	if session.UserID == "" {
		return common.Session{}, common.NewAppError("UNAUTHORIZED", "invalid token", http.StatusUnauthorized, errors.New("token missing subject"))
	}
	return session, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm header")
		}
		if algorithm != "" && algorithm != alg {
			return "", errors.New("auth: token signatures disagree on algorithm")
		}
		algorithm = alg
	}
	return algorithm, nil
}
