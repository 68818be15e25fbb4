package multisig

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dropDatabas3/ragsig/internal/audit"
	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
	"github.com/dropDatabas3/ragsig/internal/metrics"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
)

// VoteService es el serviceName con el que se firman y validan los votos.
const VoteService = "multisig.vote"

const txMessageTag = "RAGS-TX/1"

// CreateTxInput es la entrada de create transaction.
type CreateTxInput struct {
	WalletID             string
	CreatedBy            string // account id; debe ser firmante no observer
	ToAddress            string
	Amount               decimal.Decimal
	Asset                string
	GasLimit             uint64
	MaxFeePerGas         decimal.Decimal
	MaxPriorityFeePerGas decimal.Decimal
}

// CreateTransaction copia M de la wallet, abre un voto Pending por cada
// firmante elegible y deja la transacción en PendingSignatures.
func (o *Orchestrator) CreateTransaction(ctx context.Context, in CreateTxInput) (*repository.TxRecord, error) {
	if strings.TrimSpace(in.ToAddress) == "" {
		return nil, types.E(types.KindInvalidInput, "destination address is required")
	}
	if !in.Amount.IsPositive() {
		return nil, types.E(types.KindInvalidInput, "amount must be positive")
	}
	if in.Asset == "" {
		return nil, types.E(types.KindInvalidInput, "asset is required")
	}
	if in.MaxFeePerGas.IsNegative() || in.MaxPriorityFeePerGas.IsNegative() {
		return nil, types.E(types.KindInvalidInput, "gas fees cannot be negative")
	}
	if in.MaxPriorityFeePerGas.GreaterThan(in.MaxFeePerGas) && in.MaxFeePerGas.IsPositive() {
		return nil, types.E(types.KindInvalidInput, "priority fee cannot exceed max fee")
	}

	w, err := o.GetWallet(ctx, in.WalletID)
	if err != nil {
		return nil, err
	}
	if w.Status != repository.WalletActive {
		return nil, types.Ef(types.KindInvalidWalletConfiguration, "wallet is %s", w.Status)
	}
	signers, err := o.ListSigners(ctx, w.ID)
	if err != nil {
		return nil, err
	}

	creatorOK := false
	votes := make([]repository.TransactionSignature, 0, len(signers))
	for _, s := range signers {
		if !s.Eligible() {
			continue
		}
		if s.AccountID == in.CreatedBy {
			creatorOK = true
		}
		votes = append(votes, repository.TransactionSignature{
			SignerID:  s.ID,
			AccountID: s.AccountID,
			Weight:    s.Weight,
			Status:    repository.VotePending,
		})
	}
	if !creatorOK {
		return nil, types.E(types.KindSignerNotEligible, "creator is not an eligible signer of the wallet")
	}
	if len(votes) < w.RequiredSignatures {
		return nil, types.E(types.KindInvalidWalletConfiguration, "wallet has fewer eligible signers than required")
	}

	seq, err := o.wallets.NextSequence(ctx, w.ID)
	if err != nil {
		return nil, types.Internal("next sequence", err)
	}

	rec := &repository.TxRecord{
		Tx: repository.Transaction{
			WalletID:             w.ID,
			Network:              w.Network,
			FromAddress:          w.Address,
			ToAddress:            in.ToAddress,
			Amount:               in.Amount,
			Asset:                in.Asset,
			GasLimit:             in.GasLimit,
			MaxFeePerGas:         in.MaxFeePerGas,
			MaxPriorityFeePerGas: in.MaxPriorityFeePerGas,
			RequiredSignatures:   w.RequiredSignatures,
			Status:               repository.TxCreated,
			Sequence:             seq,
			CreatedBy:            in.CreatedBy,
		},
		Signatures: votes,
	}
	if err := o.txs.Create(ctx, rec); err != nil {
		return nil, types.Internal("create transaction", err)
	}

	var moved []transition
	out, err := o.txs.Update(ctx, rec.Tx.ID, func(r *repository.TxRecord) error {
		return moveTo(r, repository.TxPendingSignatures, &moved)
	})
	if err != nil {
		return nil, o.updateErr("open transaction", err)
	}
	o.emit(ctx, out, append([]transition{{To: repository.TxCreated}}, moved...))

	logger.From(ctx).Info("transaction created",
		logger.Op("multisig.CreateTransaction"), logger.WalletID(w.ID), logger.TxID(out.Tx.ID),
		zap.String("amount", out.Tx.Amount.String()), zap.String("asset", out.Tx.Asset), zap.Uint64("sequence", seq))
	return out, nil
}

func (o *Orchestrator) GetTransaction(ctx context.Context, txID string) (*repository.TxRecord, error) {
	rec, err := o.txs.Get(ctx, txID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, types.E(types.KindTransactionNotFound, "transaction not found")
		}
		return nil, types.Internal("get transaction", err)
	}
	return rec, nil
}

func (o *Orchestrator) ListTransactions(ctx context.Context, walletID string, limit int) ([]repository.Transaction, error) {
	if _, err := o.GetWallet(ctx, walletID); err != nil {
		return nil, err
	}
	txs, err := o.txs.ListByWallet(ctx, walletID, limit)
	if err != nil {
		return nil, types.Internal("list transactions", err)
	}
	return txs, nil
}

// SigningMessage es el mensaje que cada firmante firma con RAGS para votar:
// los campos canónicos de la transacción, con prefijo de longitud.
func SigningMessage(tx *repository.Transaction) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, txMessageTag...)
	for _, s := range []string{tx.ID, tx.WalletID, tx.Network, tx.FromAddress, tx.ToAddress, tx.Amount.String(), tx.Asset} {
		buf = appendLP(buf, s)
	}
	buf = binary.BigEndian.AppendUint64(buf, tx.Sequence)
	buf = binary.BigEndian.AppendUint64(buf, tx.GasLimit)
	buf = appendLP(buf, tx.MaxFeePerGas.String())
	buf = appendLP(buf, tx.MaxPriorityFeePerGas.String())
	buf = binary.BigEndian.AppendUint32(buf, uint32(tx.RequiredSignatures))
	return buf
}

// MessageDigest es el SHA-256 del mensaje de voto; se muestra al firmante.
func MessageDigest(tx *repository.Transaction) [32]byte {
	return sha256.Sum256(SigningMessage(tx))
}

func appendLP(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// updateErr traduce errores de Update: los tipados pasan tal cual.
func (o *Orchestrator) updateErr(op string, err error) error {
	var te *types.Error
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return types.E(types.KindTransactionNotFound, "transaction not found")
	}
	return types.Internal(op, err)
}

// emit publica métricas y auditoría de transiciones ya persistidas.
func (o *Orchestrator) emit(ctx context.Context, rec *repository.TxRecord, moved []transition) {
	for _, t := range moved {
		metrics.ObserveTransition(string(t.From), string(t.To))
		fields := map[string]any{
			"tx_id":     rec.Tx.ID,
			"wallet_id": rec.Tx.WalletID,
			"from":      string(t.From),
			"to":        string(t.To),
			"signed":    rec.Tx.CurrentSignatures,
			"required":  rec.Tx.RequiredSignatures,
		}
		if t.To == repository.TxFailed {
			fields["reason"] = rec.Tx.FailureReason
		}
		if rec.Tx.TxHash != "" {
			fields["tx_hash"] = rec.Tx.TxHash
		}
		audit.Log(ctx, "tx_transition", fields)
	}
}
