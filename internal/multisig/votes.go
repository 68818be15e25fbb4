package multisig

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
	"github.com/dropDatabas3/ragsig/internal/metrics"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
	"github.com/dropDatabas3/ragsig/internal/rags"
)

// Submission es el envelope RAGS con el que un firmante aprueba una transacción.
// El mensaje firmado es SigningMessage(tx) con serviceName VoteService.
type Submission struct {
	Signature []byte
	Algorithm types.Algorithm
	Nonce     string
	Address   string
	Timestamp int64
	Metadata  map[string]string
	OriginIP  string
}

// SubmitSignature registra un voto Signed. Acepta votos en PendingSignatures
// y Ready; al cruzar el threshold pasa a Ready una sola vez.
func (o *Orchestrator) SubmitSignature(ctx context.Context, txID, signerID string, sub Submission) (*repository.TxRecord, error) {
	rec, signer, err := o.loadVoter(ctx, txID, signerID)
	if err != nil {
		o.countVote(repository.VoteSigned, err)
		return nil, err
	}
	// chequeo previo sin lock; la decisión final es dentro de Update.
	if err := checkSignable(rec, signerID); err != nil {
		o.countVote(repository.VoteSigned, err)
		return nil, err
	}

	// la validación RAGS (y la reserva del nonce) corre antes de tomar el
	// lock de la tx: bajo el lock sólo se relee el voto y se escribe.
	res, err := o.verifier.ValidateForAccount(ctx, signer.AccountID, rags.ValidateRequest{
		ServiceName: VoteService,
		Message:     SigningMessage(&rec.Tx),
		Signature:   sub.Signature,
		Algorithm:   sub.Algorithm,
		Nonce:       sub.Nonce,
		Address:     sub.Address,
		Metadata:    sub.Metadata,
		Timestamp:   sub.Timestamp,
		RequestType: "multisig.sign",
		OriginIP:    sub.OriginIP,
	})
	if err != nil {
		o.countVote(repository.VoteSigned, err)
		return nil, err
	}

	now := o.cfg.Now().UTC()
	var moved []transition
	out, err := o.txs.Update(ctx, txID, func(r *repository.TxRecord) error {
		// un reenvío concurrente del mismo firmante termina acá como DuplicateVote
		if err := checkSignable(r, signerID); err != nil {
			return err
		}

		v := r.Vote(signerID)
		v.Status = repository.VoteSigned
		v.Signature = sub.Signature
		v.Algorithm = res.Algorithm
		v.Nonce = sub.Nonce
		v.SignedAtMillis = sub.Timestamp
		v.Address = res.Address
		v.UpdatedAt = now

		r.Tx.CurrentSignatures++
		if r.Tx.Status == repository.TxPendingSignatures && r.Tx.CurrentSignatures >= r.Tx.RequiredSignatures {
			return moveTo(r, repository.TxReady, &moved)
		}
		return nil
	})
	if err != nil {
		err = o.updateErr("record signature", err)
		o.countVote(repository.VoteSigned, err)
		return nil, err
	}
	o.countVote(repository.VoteSigned, nil)
	o.emit(ctx, out, moved)

	logger.From(ctx).Info("signature recorded",
		logger.Op("multisig.SubmitSignature"), logger.TxID(txID), logger.SignerID(signerID),
		zap.Int("signed", out.Tx.CurrentSignatures), zap.Int("required", out.Tx.RequiredSignatures),
		zap.String("status", string(out.Tx.Status)))
	return out, nil
}

// RejectSignature registra un voto Rejected (terminal para ese firmante).
// Se acepta en cualquier estado; sólo en PendingSignatures puede llevar la
// transacción a Failed(ThresholdUnreachable).
func (o *Orchestrator) RejectSignature(ctx context.Context, txID, signerID, reason string) (*repository.TxRecord, error) {
	if _, _, err := o.loadVoter(ctx, txID, signerID); err != nil {
		o.countVote(repository.VoteRejected, err)
		return nil, err
	}

	now := o.cfg.Now().UTC()
	var moved []transition
	out, err := o.txs.Update(ctx, txID, func(r *repository.TxRecord) error {
		v := r.Vote(signerID)
		if v == nil {
			return types.E(types.KindSignerNotEligible, "signer cannot vote on this transaction")
		}
		if v.Status != repository.VotePending {
			return types.Ef(types.KindDuplicateVote, "signer already voted %s", v.Status)
		}
		v.Status = repository.VoteRejected
		v.RejectionReason = reason
		v.UpdatedAt = now

		if r.Tx.Status == repository.TxPendingSignatures && unreachable(r) {
			return fail(r, repository.FailureThresholdUnreachable, "remaining signers cannot reach the threshold", &moved)
		}
		return nil
	})
	if err != nil {
		err = o.updateErr("record rejection", err)
		o.countVote(repository.VoteRejected, err)
		return nil, err
	}
	o.countVote(repository.VoteRejected, nil)
	o.emit(ctx, out, moved)

	logger.From(ctx).Info("signature rejected",
		logger.Op("multisig.RejectSignature"), logger.TxID(txID), logger.SignerID(signerID),
		zap.String("status", string(out.Tx.Status)))
	return out, nil
}

// loadVoter verifica que signerID pertenezca a la wallet de la transacción,
// no sea Observer y tenga voto abierto en ella.
func (o *Orchestrator) loadVoter(ctx context.Context, txID, signerID string) (*repository.TxRecord, *repository.WalletSigner, error) {
	rec, err := o.GetTransaction(ctx, txID)
	if err != nil {
		return nil, nil, err
	}
	s, err := o.wallets.GetSigner(ctx, signerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, types.E(types.KindSignerNotEligible, "signer not found")
		}
		return nil, nil, types.Internal("get signer", err)
	}
	if s.WalletID != rec.Tx.WalletID || !s.Eligible() || rec.Vote(signerID) == nil {
		return nil, nil, types.E(types.KindSignerNotEligible, "signer cannot vote on this transaction")
	}
	return rec, s, nil
}

func checkSignable(r *repository.TxRecord, signerID string) error {
	v := r.Vote(signerID)
	if v == nil {
		return types.E(types.KindSignerNotEligible, "signer cannot vote on this transaction")
	}
	if v.Status != repository.VotePending {
		return types.Ef(types.KindDuplicateVote, "signer already voted %s", v.Status)
	}
	switch r.Tx.Status {
	case repository.TxPendingSignatures, repository.TxReady:
		return nil
	}
	return types.Ef(types.KindInvalidTransactionState, "transaction is %s", r.Tx.Status)
}

func (o *Orchestrator) countVote(vote repository.VoteStatus, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(types.KindOf(err))
	}
	metrics.VotesRecorded.WithLabelValues(string(vote), outcome).Inc()
}
