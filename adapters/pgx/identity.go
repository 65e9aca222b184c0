package pgx

import (
	"context"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lborres/gatekeep"
)

const uniqueViolation = "23505"

type identityRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Role         string    `db:"role"`
	Provider     string    `db:"provider"`
	PasswordHash *string   `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r *identityRow) identity() *gatekeep.Identity {
	identity := &gatekeep.Identity{
		ID:        r.ID,
		Email:     r.Email,
		Role:      gatekeep.Role(r.Role),
		Provider:  gatekeep.Provider(r.Provider),
		CreatedAt: r.CreatedAt,
	}
	if r.PasswordHash != nil {
		identity.PasswordHash = *r.PasswordHash
	}
	return identity
}

func (a *Adapter) GetByEmail(ctx context.Context, email string) (*gatekeep.Identity, error) {
	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	q := `SELECT id, email, role, provider, password_hash, created_at FROM public.identities WHERE email = $1`

	var row identityRow
	if err := pgxscan.Get(ctx, a.pool, &row, q, email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gatekeep.ErrIdentityNotFound
		}
		return nil, err
	}
	return row.identity(), nil
}

// Create inserts identity unless its email is taken. A zero CreatedAt is
// filled from the database clock.
func (a *Adapter) Create(ctx context.Context, identity *gatekeep.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	var hash *string
	if identity.PasswordHash != "" {
		hash = &identity.PasswordHash
	}
	var createdAt *time.Time
	if !identity.CreatedAt.IsZero() {
		createdAt = &identity.CreatedAt
	}

	q := `INSERT INTO public.identities (id, email, role, provider, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		ON CONFLICT (email) DO NOTHING
		RETURNING created_at`

	err := a.pool.QueryRow(ctx, q,
		identity.ID, identity.Email, string(identity.Role), string(identity.Provider), hash, createdAt,
	).Scan(&identity.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return gatekeep.ErrIdentityExists
		}
		// id collisions surface as a unique violation on the primary key
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return gatekeep.ErrIdentityExists
		}
		return err
	}
	return nil
}
