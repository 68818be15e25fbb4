package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

type keyRepo struct{ pool *pgxpool.Pool }

// PutKey retira la activa anterior e inserta la nueva en la misma tx,
// tanto en account_keys como en public_key_registry.
func (r *keyRepo) PutKey(ctx context.Context, in repository.PutKeyInput) (string, error) {
	if in.AccountID == "" || !in.Algorithm.IsValid() || len(in.PublicKey) == 0 {
		return "", repository.ErrInvalidInput
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	id := in.KeyID
	if id == "" {
		id = uuid.NewString()
	}
	hash := repository.HashPublicKey(in.PublicKey)
	expires := now.Add(in.RetireGrace)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	// Retirar la activa anterior
	rows, err := tx.Query(ctx, `
		UPDATE account_keys SET status = 'retiring', rotated_at = $3, expires_at = $4
		WHERE account_id = $1 AND algorithm = $2 AND status = 'active'
		RETURNING id::text
	`, in.AccountID, string(in.Algorithm), now, expires)
	if err != nil {
		return "", err
	}
	retired, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return "", err
	}
	if len(retired) > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE public_key_registry SET status = 'retiring', expires_at = $2
			WHERE key_id = ANY($1::uuid[])
		`, retired, expires); err != nil {
			return "", err
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO account_keys (id, account_id, algorithm, public_key, storage_ref, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'active', $6)
	`, id, in.AccountID, string(in.Algorithm), in.PublicKey, in.StorageRef, now); err != nil {
		if isUniqueViolation(err) {
			return "", repository.ErrConflict
		}
		return "", err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO public_key_registry (key_hash, key_id, account_id, algorithm, public_key, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'active', $6)
	`, hash, id, in.AccountID, string(in.Algorithm), in.PublicKey, now); err != nil {
		if isUniqueViolation(err) {
			return "", repository.ErrConflict
		}
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

const keyColumns = `id::text, account_id::text, algorithm, public_key, storage_ref, status, created_at, rotated_at, expires_at`

func scanKey(row pgx.Row) (*repository.AccountKey, error) {
	var k repository.AccountKey
	var alg, status string
	if err := row.Scan(&k.ID, &k.AccountID, &alg, &k.PublicKey, &k.StorageRef, &status, &k.CreatedAt, &k.RotatedAt, &k.ExpiresAt); err != nil {
		return nil, err
	}
	k.Algorithm = types.Algorithm(alg)
	k.Status = repository.KeyStatus(status)
	return &k, nil
}

func (r *keyRepo) FindActiveKey(ctx context.Context, accountID string, alg types.Algorithm) (*repository.AccountKey, error) {
	const query = `SELECT ` + keyColumns + ` FROM account_keys WHERE account_id = $1 AND algorithm = $2 AND status = 'active'`
	k, err := scanKey(r.pool.QueryRow(ctx, query, accountID, string(alg)))
	if err != nil {
		return nil, notFound(err)
	}
	return k, nil
}

func (r *keyRepo) GetKey(ctx context.Context, keyID string) (*repository.AccountKey, error) {
	if _, err := uuid.Parse(keyID); err != nil {
		return nil, repository.ErrNotFound
	}
	k, err := scanKey(r.pool.QueryRow(ctx, `SELECT `+keyColumns+` FROM account_keys WHERE id = $1`, keyID))
	if err != nil {
		return nil, notFound(err)
	}
	return k, nil
}

func (r *keyRepo) ListKeys(ctx context.Context, accountID string) ([]repository.AccountKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+keyColumns+` FROM account_keys WHERE account_id = $1 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.AccountKey, 0)
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

func (r *keyRepo) FindByHash(ctx context.Context, hash string) (*repository.PublicKeyEntry, error) {
	const query = `
		SELECT key_hash, key_id::text, account_id::text, algorithm, public_key, status, expires_at, created_at, last_used, usage_count
		FROM public_key_registry WHERE key_hash = $1
	`
	var e repository.PublicKeyEntry
	var alg, status string
	err := r.pool.QueryRow(ctx, query, hash).Scan(
		&e.Hash, &e.KeyID, &e.AccountID, &alg, &e.PublicKey, &status, &e.ExpiresAt, &e.CreatedAt, &e.LastUsed, &e.UsageCount,
	)
	if err != nil {
		return nil, notFound(err)
	}
	e.Algorithm = types.Algorithm(alg)
	e.Status = repository.KeyStatus(status)
	return &e, nil
}

func (r *keyRepo) Revoke(ctx context.Context, keyID string, at time.Time) error {
	if _, err := uuid.Parse(keyID); err != nil {
		return repository.ErrNotFound
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE account_keys SET status = 'revoked', expires_at = $2 WHERE id = $1`, keyID, at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `UPDATE public_key_registry SET status = 'revoked', expires_at = $2 WHERE key_id = $1`, keyID, at.UTC()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *keyRepo) RecordUsage(ctx context.Context, hash string, at time.Time) error {
	const query = `
		UPDATE public_key_registry SET last_used = $2, usage_count = usage_count + 1
		WHERE key_hash = $1
	`
	tag, err := r.pool.Exec(ctx, query, hash, at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
