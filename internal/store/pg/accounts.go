package pg

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
)

type accountRepo struct{ pool *pgxpool.Pool }

func (r *accountRepo) Create(ctx context.Context, a *repository.Account) error {
	if a == nil || strings.TrimSpace(a.OwnerRef) == "" {
		return repository.ErrInvalidInput
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = repository.AccountActive
	}
	const query = `
		INSERT INTO signing_accounts (id, owner_ref, owner_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query, a.ID, a.OwnerRef, string(a.OwnerType), string(a.Status)).
		Scan(&a.CreatedAt, &a.UpdatedAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

const accountColumns = `id::text, owner_ref, owner_type, status, created_at, updated_at`

func (r *accountRepo) GetByID(ctx context.Context, id string) (*repository.Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM signing_accounts WHERE id = $1`, id)
}

func (r *accountRepo) GetByOwnerRef(ctx context.Context, ownerRef string) (*repository.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM signing_accounts WHERE owner_ref = $1`, ownerRef)
}

func (r *accountRepo) getOne(ctx context.Context, query string, arg string) (*repository.Account, error) {
	var a repository.Account
	var ownerType, status string
	err := r.pool.QueryRow(ctx, query, arg).Scan(&a.ID, &a.OwnerRef, &ownerType, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	a.OwnerType = repository.OwnerType(ownerType)
	a.Status = repository.AccountStatus(status)
	return &a, nil
}

func (r *accountRepo) SetStatus(ctx context.Context, id string, status repository.AccountStatus) error {
	const query = `UPDATE signing_accounts SET status = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
