package pg

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
)

type walletRepo struct{ pool *pgxpool.Pool }

func (r *walletRepo) Create(ctx context.Context, w *repository.Wallet, signers []repository.WalletSigner) error {
	if w == nil {
		return repository.ErrInvalidInput
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertWallet = `
		INSERT INTO wallets (id, owner_account_id, wallet_type, network, address, balance, locked_balance,
			required_signatures, total_signers, next_sequence, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8, $9, $10, $11, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, insertWallet,
		w.ID, w.OwnerAccountID, w.Type, w.Network, w.Address, w.Balance.String(), w.LockedBalance.String(),
		w.RequiredSignatures, w.TotalSigners, int64(w.NextSequence), string(w.Status),
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return err
	}

	for i := range signers {
		s := &signers[i]
		s.WalletID = w.ID
		if err := insertSigner(ctx, tx, s); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertSigner(ctx context.Context, q pgx.Tx, s *repository.WalletSigner) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	const query = `
		INSERT INTO wallet_signers (id, wallet_id, account_id, address, role, weight, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`
	err := q.QueryRow(ctx, query, s.ID, s.WalletID, s.AccountID, s.Address, string(s.Role), s.Weight, string(s.Status)).
		Scan(&s.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	return err
}

const walletColumns = `id::text, owner_account_id, wallet_type, network, address, balance::text, locked_balance::text,
	required_signatures, total_signers, next_sequence, status, created_at, updated_at`

func (r *walletRepo) Get(ctx context.Context, id string) (*repository.Wallet, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	var w repository.Wallet
	var balance, locked, status string
	var seq int64
	err := r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id).Scan(
		&w.ID, &w.OwnerAccountID, &w.Type, &w.Network, &w.Address, &balance, &locked,
		&w.RequiredSignatures, &w.TotalSigners, &seq, &status, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	w.Balance, _ = decimal.NewFromString(balance)
	w.LockedBalance, _ = decimal.NewFromString(locked)
	w.NextSequence = uint64(seq)
	w.Status = repository.WalletStatus(status)
	return &w, nil
}

// AddSigner inserta el firmante y recalcula N bajo lock de la wallet.
func (r *walletRepo) AddSigner(ctx context.Context, s *repository.WalletSigner) error {
	if s == nil {
		return repository.ErrInvalidInput
	}
	if _, err := uuid.Parse(s.WalletID); err != nil {
		return repository.ErrNotFound
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var locked string
	if err := tx.QueryRow(ctx, `SELECT id::text FROM wallets WHERE id = $1 FOR UPDATE`, s.WalletID).Scan(&locked); err != nil {
		return notFound(err)
	}
	if err := insertSigner(ctx, tx, s); err != nil {
		return err
	}
	const recount = `
		UPDATE wallets SET updated_at = NOW(), total_signers = (
			SELECT COUNT(*) FROM wallet_signers
			WHERE wallet_id = $1 AND status = 'active' AND role <> 'Observer'
		) WHERE id = $1
	`
	if _, err := tx.Exec(ctx, recount, s.WalletID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const signerColumns = `id::text, wallet_id::text, account_id, address, role, weight, status, created_at`

func scanSigner(row pgx.Row) (*repository.WalletSigner, error) {
	var s repository.WalletSigner
	var role, status string
	if err := row.Scan(&s.ID, &s.WalletID, &s.AccountID, &s.Address, &role, &s.Weight, &status, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Role = repository.SignerRole(role)
	s.Status = repository.SignerStatus(status)
	return &s, nil
}

func (r *walletRepo) GetSigner(ctx context.Context, signerID string) (*repository.WalletSigner, error) {
	if _, err := uuid.Parse(signerID); err != nil {
		return nil, repository.ErrNotFound
	}
	s, err := scanSigner(r.pool.QueryRow(ctx, `SELECT `+signerColumns+` FROM wallet_signers WHERE id = $1`, signerID))
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (r *walletRepo) ListSigners(ctx context.Context, walletID string) ([]repository.WalletSigner, error) {
	if _, err := r.Get(ctx, walletID); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+signerColumns+` FROM wallet_signers WHERE wallet_id = $1 ORDER BY created_at, id`, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.WalletSigner, 0)
	for rows.Next() {
		s, err := scanSigner(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// NextSequence reserva el siguiente número de secuencia de la wallet.
func (r *walletRepo) NextSequence(ctx context.Context, walletID string) (uint64, error) {
	if _, err := uuid.Parse(walletID); err != nil {
		return 0, repository.ErrNotFound
	}
	const query = `
		UPDATE wallets SET next_sequence = next_sequence + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING next_sequence - 1
	`
	var seq int64
	if err := r.pool.QueryRow(ctx, query, walletID).Scan(&seq); err != nil {
		return 0, notFound(err)
	}
	return uint64(seq), nil
}

func (r *walletRepo) SetStatus(ctx context.Context, walletID string, status repository.WalletStatus) error {
	if _, err := uuid.Parse(walletID); err != nil {
		return repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `UPDATE wallets SET status = $2, updated_at = NOW() WHERE id = $1`, walletID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
