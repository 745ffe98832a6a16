package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/gadget-cartel/internal/domain/auth"
)

const getSessionByTokenHashSQL = `SELECT s.token_hash, s.user_id,
	u.email, u.name, u.is_admin, s.expires_at
	FROM sessions s
	JOIN users u ON u.id = s.user_id
	WHERE s.token_hash = $1`

var _ auth.Store = (*SessionRepository)(nil)

// SessionRepository implements auth.Store backed by PostgreSQL.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository returns a SessionRepository on the given DB.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByTokenHash returns the session joined with its user, or
// auth.ErrUnauthenticated when no session carries the hash.
func (r *SessionRepository) FindByTokenHash(ctx context.Context, hash string) (*auth.Session, error) {
	var (
		s       auth.Session
		expires *time.Time
	)
	err := r.db.q(ctx).QueryRow(ctx, getSessionByTokenHashSQL, hash).
		Scan(&s.TokenHash, &s.UserID, &s.Email, &s.Name, &s.IsAdmin, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrUnauthenticated
	}
	if err != nil {
		return nil, errors.Wrap(err, "finding session")
	}
	if expires != nil {
		s.ExpiresAt = *expires
	}
	return &s, nil
}
