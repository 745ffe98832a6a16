// Package auth is the identity boundary: bearer-token verification against
// the sessions table via HMAC-SHA256 token hashes, plus the admin check.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrUnauthenticated is returned for missing, unknown, or expired tokens.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when an authenticated user lacks admin rights.
	ErrForbidden = errors.New("forbidden")
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID  string
	Email   string
	Name    string
	IsAdmin bool
}

// Session is a stored bearer-token session. TokenHash is the hex HMAC-SHA256
// of the raw token; the raw token is never persisted.
type Session struct {
	TokenHash string
	UserID    string
	Email     string
	Name      string
	IsAdmin   bool
	ExpiresAt time.Time
}

// Store looks sessions up by token hash.
type Store interface {
	// FindByTokenHash returns the session, or ErrUnauthenticated when no
	// session carries the hash.
	FindByTokenHash(ctx context.Context, hash string) (*Session, error)
}

// Authenticator verifies bearer tokens and resolves them to identities.
//
// Admin status comes from the user's own flag or from the configured admin
// email allowlist. The allowlist is injected at construction; nothing global
// is consulted.
type Authenticator struct {
	store  Store
	pepper []byte
	admins map[string]struct{}
	now    func() time.Time
}

// NewAuthenticator creates an Authenticator. adminEmails entries are matched
// case-insensitively.
func NewAuthenticator(store Store, pepper []byte, adminEmails []string) *Authenticator {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.TrimSpace(strings.ToLower(e))
		if e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Authenticator{
		store:  store,
		pepper: pepper,
		admins: admins,
		now:    time.Now,
	}
}

// HashToken computes the hex HMAC-SHA256 of a raw token under the pepper.
// Exposed so session creation (seeding, login flows) stores the same hash
// this Authenticator looks up.
func (a *Authenticator) HashToken(token string) string {
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate resolves a raw bearer token to an identity. The stored hash is
// compared in constant time to guard against timing side-channels.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(token))
	hash := mac.Sum(nil)

	sess, err := a.store.FindByTokenHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		return nil, ErrUnauthenticated
	}

	stored, err := hex.DecodeString(sess.TokenHash)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil, ErrUnauthenticated
	}

	if !sess.ExpiresAt.IsZero() && sess.ExpiresAt.Before(a.now()) {
		return nil, ErrUnauthenticated
	}

	return &Identity{
		UserID:  sess.UserID,
		Email:   sess.Email,
		Name:    sess.Name,
		IsAdmin: sess.IsAdmin || a.isAllowlisted(sess.Email),
	}, nil
}

// RequireAdmin rejects non-admin identities.
func (a *Authenticator) RequireAdmin(id *Identity) error {
	if id == nil {
		return ErrUnauthenticated
	}
	if !id.IsAdmin {
		return ErrForbidden
	}
	return nil
}

func (a *Authenticator) isAllowlisted(email string) bool {
	_, ok := a.admins[strings.ToLower(email)]
	return ok
}
