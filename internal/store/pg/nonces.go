package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
)

type nonceRepo struct{ pool *pgxpool.Pool }

// Reserve inserta el nonce si no existe. RowsAffected == 0 significa que
// otro request ya lo consumió.
func (r *nonceRepo) Reserve(ctx context.Context, n repository.RequestNonce) error {
	if n.NonceHash == "" {
		return repository.ErrInvalidInput
	}
	if !n.ExpiresAt.After(n.CreatedAt) {
		return repository.ErrNonceExpired
	}
	const query = `
		INSERT INTO request_nonces (nonce_hash, account_id, nonce, created_at, expires_at, request_type, origin_ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (nonce_hash) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query,
		n.NonceHash, n.AccountID, n.Nonce, n.CreatedAt.UTC(), n.ExpiresAt.UTC(), n.RequestType, n.OriginIP)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *nonceRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM request_nonces WHERE expires_at < $1`, before.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
