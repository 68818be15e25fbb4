package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
)

type txRepo struct{ pool *pgxpool.Pool }

const txColumns = `id::text, wallet_id::text, network, from_address, to_address, amount::text, asset,
	gas_limit, max_fee_per_gas::text, max_priority_fee_per_gas::text, required_signatures, current_signatures,
	status, failure_reason, failure_detail, sequence, tx_hash, created_by, created_at, updated_at,
	broadcast_at, confirmed_at`

func scanTx(row pgx.Row) (*repository.Transaction, error) {
	var t repository.Transaction
	var amount, maxFee, maxPrio, status string
	var gas, seq int64
	err := row.Scan(
		&t.ID, &t.WalletID, &t.Network, &t.FromAddress, &t.ToAddress, &amount, &t.Asset,
		&gas, &maxFee, &maxPrio, &t.RequiredSignatures, &t.CurrentSignatures,
		&status, &t.FailureReason, &t.FailureDetail, &seq, &t.TxHash, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
		&t.BroadcastAt, &t.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := parseAmounts(&t, amount, maxFee, maxPrio); err != nil {
		return nil, err
	}
	t.GasLimit = uint64(gas)
	t.Sequence = uint64(seq)
	t.Status = repository.TxStatus(status)
	return &t, nil
}

// parseAmounts convierte los NUMERIC leídos como texto. Un valor ilegible
// es un error de lectura: nunca se reemplaza por cero.
func parseAmounts(t *repository.Transaction, amount, maxFee, maxPrio string) error {
	var err error
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return fmt.Errorf("pg: tx %s amount %q: %w", t.ID, amount, err)
	}
	if t.MaxFeePerGas, err = decimal.NewFromString(maxFee); err != nil {
		return fmt.Errorf("pg: tx %s max_fee_per_gas %q: %w", t.ID, maxFee, err)
	}
	if t.MaxPriorityFeePerGas, err = decimal.NewFromString(maxPrio); err != nil {
		return fmt.Errorf("pg: tx %s max_priority_fee_per_gas %q: %w", t.ID, maxPrio, err)
	}
	return nil
}

const sigColumns = `transaction_id::text, signer_id::text, account_id, weight, status, signature, algorithm,
	nonce, signed_at_millis, address, rejection_reason, created_at, updated_at`

// rowsQuerier lo cumplen tanto *pgxpool.Pool como pgx.Tx.
type rowsQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadSignatures(ctx context.Context, q rowsQuerier, txID string) ([]repository.TransactionSignature, error) {
	const query = `SELECT ` + sigColumns + ` FROM transaction_signatures WHERE transaction_id = $1 ORDER BY created_at, signer_id`
	rows, err := q.Query(ctx, query, txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.TransactionSignature, 0)
	for rows.Next() {
		var s repository.TransactionSignature
		var status, alg string
		if err := rows.Scan(
			&s.TransactionID, &s.SignerID, &s.AccountID, &s.Weight, &status, &s.Signature, &alg,
			&s.Nonce, &s.SignedAtMillis, &s.Address, &s.RejectionReason, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		s.Status = repository.VoteStatus(status)
		s.Algorithm = types.Algorithm(alg)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *txRepo) Create(ctx context.Context, rec *repository.TxRecord) error {
	if rec == nil || rec.Tx.WalletID == "" {
		return repository.ErrInvalidInput
	}
	t := &rec.Tx
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertTx = `
		INSERT INTO transactions (id, wallet_id, network, from_address, to_address, amount, asset, gas_limit,
			max_fee_per_gas, max_priority_fee_per_gas, required_signatures, current_signatures, status,
			failure_reason, failure_detail, sequence, tx_hash, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9::numeric, $10::numeric, $11, $12, $13,
			$14, $15, $16, $17, $18, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, insertTx,
		t.ID, t.WalletID, t.Network, t.FromAddress, t.ToAddress, t.Amount.String(), t.Asset, int64(t.GasLimit),
		t.MaxFeePerGas.String(), t.MaxPriorityFeePerGas.String(), t.RequiredSignatures, t.CurrentSignatures, string(t.Status),
		t.FailureReason, t.FailureDetail, int64(t.Sequence), t.TxHash, t.CreatedBy,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return err
	}

	for i := range rec.Signatures {
		rec.Signatures[i].TransactionID = t.ID
		if err := upsertSignature(ctx, tx, &rec.Signatures[i]); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func upsertSignature(ctx context.Context, tx pgx.Tx, s *repository.TransactionSignature) error {
	const query = `
		INSERT INTO transaction_signatures (transaction_id, signer_id, account_id, weight, status, signature,
			algorithm, nonce, signed_at_millis, address, rejection_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (transaction_id, signer_id) DO UPDATE SET
			status = EXCLUDED.status,
			signature = EXCLUDED.signature,
			algorithm = EXCLUDED.algorithm,
			nonce = EXCLUDED.nonce,
			signed_at_millis = EXCLUDED.signed_at_millis,
			address = EXCLUDED.address,
			rejection_reason = EXCLUDED.rejection_reason,
			updated_at = NOW()
	`
	_, err := tx.Exec(ctx, query,
		s.TransactionID, s.SignerID, s.AccountID, s.Weight, string(s.Status), s.Signature,
		string(s.Algorithm), s.Nonce, s.SignedAtMillis, s.Address, s.RejectionReason,
	)
	return err
}

func (r *txRepo) Get(ctx context.Context, id string) (*repository.TxRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	t, err := scanTx(r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	sigs, err := loadSignatures(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	return &repository.TxRecord{Tx: *t, Signatures: sigs}, nil
}

// Update bloquea la fila (FOR UPDATE), aplica fn y persiste en la misma tx.
// Si fn falla se hace rollback y no queda nada escrito.
func (r *txRepo) Update(ctx context.Context, id string, fn func(rec *repository.TxRecord) error) (*repository.TxRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	t, err := scanTx(tx.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	sigs, err := loadSignatures(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	rec := &repository.TxRecord{Tx: *t, Signatures: sigs}
	if err := fn(rec); err != nil {
		return nil, err
	}
	rec.Tx.ID = id

	const updateTx = `
		UPDATE transactions SET
			current_signatures = $2, status = $3, failure_reason = $4, failure_detail = $5,
			sequence = $6, tx_hash = $7, broadcast_at = $8, confirmed_at = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err = tx.QueryRow(ctx, updateTx,
		id, rec.Tx.CurrentSignatures, string(rec.Tx.Status), rec.Tx.FailureReason, rec.Tx.FailureDetail,
		int64(rec.Tx.Sequence), rec.Tx.TxHash, rec.Tx.BroadcastAt, rec.Tx.ConfirmedAt,
	).Scan(&rec.Tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for i := range rec.Signatures {
		rec.Signatures[i].TransactionID = id
		if err := upsertSignature(ctx, tx, &rec.Signatures[i]); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *txRepo) ListByWallet(ctx context.Context, walletID string, limit int) ([]repository.Transaction, error) {
	if _, err := uuid.Parse(walletID); err != nil {
		return []repository.Transaction{}, nil
	}
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, `SELECT `+txColumns+` FROM transactions WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2`, walletID, limit)
}

func (r *txRepo) ListByStatus(ctx context.Context, status repository.TxStatus, olderThan time.Time, limit int) ([]repository.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, `SELECT `+txColumns+` FROM transactions WHERE status = $1 AND updated_at < $2 ORDER BY updated_at LIMIT $3`,
		string(status), olderThan.UTC(), limit)
}

func (r *txRepo) list(ctx context.Context, query string, args ...any) ([]repository.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]repository.Transaction, 0)
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
