// Package auth resolves the acting user from an HMAC-signed session
// cookie. Session management itself (login, user accounts) lives outside
// this service; the resolver only verifies that a presented identity was
// issued with the shared secret.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// CookieName is the session cookie.
const CookieName = "session"

var (
	// ErrNoSession indicates a request without a session cookie.
	ErrNoSession = errors.New("no session")

	// ErrInvalidSession indicates a malformed or tampered session cookie.
	ErrInvalidSession = errors.New("invalid session")
)

// Session is a resolved identity.
type Session struct {
	UserID uuid.UUID
}

// Resolver verifies and issues session cookies.
type Resolver struct {
	secret []byte
}

// NewResolver creates a resolver with the shared signing secret.
func NewResolver(secret string) *Resolver {
	return &Resolver{secret: []byte(secret)}
}

func (r *Resolver) sign(payload string) string {
	mac := hmac.New(sha256.New, r.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Issue creates a signed session cookie for the given user.
func (r *Resolver) Issue(userID uuid.UUID) *http.Cookie {
	payload := userID.String()
	return &http.Cookie{
		Name:     CookieName,
		Value:    payload + "." + r.sign(payload),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Resolve extracts and verifies the session from the request.
// Fails with ErrNoSession when no cookie is present and ErrInvalidSession
// when the cookie is malformed or its signature does not verify.
func (r *Resolver) Resolve(req *http.Request) (Session, error) {
	cookie, err := req.Cookie(CookieName)
	if err != nil {
		return Session{}, ErrNoSession
	}

	payload, sig, ok := strings.Cut(cookie.Value, ".")
	if !ok {
		return Session{}, fmt.Errorf("%w: missing signature", ErrInvalidSession)
	}
	if !hmac.Equal([]byte(r.sign(payload)), []byte(sig)) {
		return Session{}, fmt.Errorf("%w: signature mismatch", ErrInvalidSession)
	}

	userID, err := uuid.Parse(payload)
	if err != nil {
		return Session{}, fmt.Errorf("%w: bad user id", ErrInvalidSession)
	}
	return Session{UserID: userID}, nil
}
