package multisig

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
	"github.com/dropDatabas3/ragsig/internal/metrics"
	"github.com/dropDatabas3/ragsig/internal/network"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
)

// errAlreadyBroadcast corta Update sin persistir cuando otra llamada ya
// pasó la transacción a Broadcasting o Confirmed.
var errAlreadyBroadcast = errors.New("multisig: already broadcast")

// FinalizeAndBroadcast es el único punto de entrada al adapter de red.
// Sólo desde Ready; Broadcasting/Confirmed devuelven el estado existente sin
// volver a llamar al adapter.
//
// Un error del adapter deja la tx en Failed(BroadcastFailed). Un timeout la
// deja en Broadcasting y retorna BroadcastTimeout: se resuelve con Reconcile.
func (o *Orchestrator) FinalizeAndBroadcast(ctx context.Context, txID string) (*repository.TxRecord, error) {
	rec, err := o.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if done, err := finalizeShortCircuit(rec); done || err != nil {
		return rec, err
	}
	adapter, err := o.networks.Get(rec.Tx.Network)
	if err != nil {
		return nil, types.Wrap(types.KindBroadcastFailed, "no adapter for network "+rec.Tx.Network, err)
	}

	now := o.cfg.Now().UTC()
	var moved []transition
	claimed, err := o.txs.Update(ctx, txID, func(r *repository.TxRecord) error {
		if done, err := finalizeShortCircuit(r); done || err != nil {
			if err != nil {
				return err
			}
			return errAlreadyBroadcast
		}
		if err := moveTo(r, repository.TxBroadcasting, &moved); err != nil {
			return err
		}
		r.Tx.BroadcastAt = &now
		return nil
	})
	if errors.Is(err, errAlreadyBroadcast) {
		return o.GetTransaction(ctx, txID)
	}
	if types.IsKind(err, types.KindBroadcastFailed) {
		// otra llamada falló el broadcast entre la lectura y el claim
		cur, gerr := o.GetTransaction(ctx, txID)
		if gerr != nil {
			return nil, gerr
		}
		return cur, err
	}
	if err != nil {
		return nil, o.updateErr("claim broadcast", err)
	}
	o.emit(ctx, claimed, moved)

	payload := BuildPayload(claimed)
	log := logger.From(ctx).With(logger.Op("multisig.FinalizeAndBroadcast"), logger.TxID(txID), logger.Network(claimed.Tx.Network))

	// a partir del claim el resultado se registra aunque el caller se vaya
	ctx = context.WithoutCancel(ctx)
	bctx, cancel := context.WithTimeout(ctx, o.cfg.BroadcastTimeout)
	start := time.Now()
	receipt, berr := adapter.Broadcast(bctx, payload)
	// el adapter puede envolver el deadline en un error propio
	timedOut := bctx.Err() == context.DeadlineExceeded || errors.Is(berr, context.DeadlineExceeded)
	cancel()

	switch {
	case berr == nil && receipt.Status == network.StatusDropped:
		berr = errors.New("network dropped the transaction")
	case berr == nil && receipt.TxHash == "":
		berr = errors.New("adapter returned no tx hash")
	}

	switch {
	case timedOut:
		metrics.ObserveBroadcast(claimed.Tx.Network, "timeout", time.Since(start))
		log.Warn("broadcast timed out; awaiting reconciliation", zap.Duration("timeout", o.cfg.BroadcastTimeout))
		return claimed, types.E(types.KindBroadcastTimeout, "broadcast timed out; transaction awaits reconciliation")

	case berr != nil:
		metrics.ObserveBroadcast(claimed.Tx.Network, "error", time.Since(start))
		log.Error("broadcast failed", logger.Err(berr))
		out, err := o.resolve(ctx, txID, network.Receipt{Status: network.StatusDropped}, berr.Error())
		if err != nil {
			return nil, err
		}
		return out, types.Wrap(types.KindBroadcastFailed, "network adapter rejected the transaction", berr)
	}

	metrics.ObserveBroadcast(claimed.Tx.Network, "ok", time.Since(start))
	receipt.Status = network.StatusConfirmed
	out, err := o.resolve(ctx, txID, receipt, "")
	if err != nil {
		return nil, err
	}
	log.Info("transaction broadcast", zap.String("tx_hash", out.Tx.TxHash))
	return out, nil
}

// finalizeShortCircuit: (true, nil) si ya hay resultado que devolver. Un
// broadcast ya fallado devuelve el mismo BroadcastFailed que la primera vez.
func finalizeShortCircuit(r *repository.TxRecord) (bool, error) {
	switch r.Tx.Status {
	case repository.TxReady:
		return false, nil
	case repository.TxBroadcasting, repository.TxConfirmed:
		return true, nil
	case repository.TxFailed:
		if r.Tx.FailureReason == repository.FailureBroadcastFailed {
			return true, types.E(types.KindBroadcastFailed, r.Tx.FailureDetail)
		}
		return false, types.Ef(types.KindInvalidTransactionState, "transaction failed: %s", r.Tx.FailureReason)
	}
	return false, types.Ef(types.KindInvalidTransactionState,
		"transaction is %s; %d of %d signatures", r.Tx.Status, r.Tx.CurrentSignatures, r.Tx.RequiredSignatures)
}

// resolve aplica el destino de una tx en Broadcasting. Si ya no está en
// Broadcasting (otra llamada la resolvió) la deja como está.
func (o *Orchestrator) resolve(ctx context.Context, txID string, receipt network.Receipt, detail string) (*repository.TxRecord, error) {
	now := o.cfg.Now().UTC()
	var moved []transition
	out, err := o.txs.Update(ctx, txID, func(r *repository.TxRecord) error {
		if r.Tx.Status != repository.TxBroadcasting {
			return nil
		}
		switch receipt.Status {
		case network.StatusConfirmed:
			if err := moveTo(r, repository.TxConfirmed, &moved); err != nil {
				return err
			}
			r.Tx.TxHash = receipt.TxHash
			r.Tx.ConfirmedAt = &now
		case network.StatusDropped:
			if detail == "" {
				detail = "network dropped the transaction"
			}
			return fail(r, repository.FailureBroadcastFailed, detail, &moved)
		}
		return nil
	})
	if err != nil {
		return nil, o.updateErr("resolve broadcast", err)
	}
	o.emit(ctx, out, moved)
	return out, nil
}

// BuildPayload arma el payload para el adapter con los votos Signed.
func BuildPayload(rec *repository.TxRecord) network.Payload {
	votes := make([]network.SignedVote, 0, len(rec.Signatures))
	for _, v := range rec.Signatures {
		if v.Status != repository.VoteSigned {
			continue
		}
		votes = append(votes, network.SignedVote{
			SignerID:  v.SignerID,
			AccountID: v.AccountID,
			Address:   v.Address,
			Algorithm: v.Algorithm,
			Nonce:     v.Nonce,
			Timestamp: v.SignedAtMillis,
			Signature: v.Signature,
		})
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].SignerID < votes[j].SignerID })
	tx := rec.Tx
	return network.Payload{
		TxID:                 tx.ID,
		WalletID:             tx.WalletID,
		Network:              tx.Network,
		From:                 tx.FromAddress,
		To:                   tx.ToAddress,
		Amount:               tx.Amount,
		Asset:                tx.Asset,
		Sequence:             tx.Sequence,
		GasLimit:             tx.GasLimit,
		MaxFeePerGas:         tx.MaxFeePerGas,
		MaxPriorityFeePerGas: tx.MaxPriorityFeePerGas,
		RequiredSignatures:   tx.RequiredSignatures,
		Signatures:           votes,
	}
}

// Reconcile consulta a la red el destino de una tx en Broadcasting.
// Confirmed y Failed se devuelven tal cual; Pending no cambia nada.
func (o *Orchestrator) Reconcile(ctx context.Context, txID string) (*repository.TxRecord, error) {
	rec, err := o.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	switch rec.Tx.Status {
	case repository.TxBroadcasting:
	case repository.TxConfirmed, repository.TxFailed:
		return rec, nil
	default:
		return nil, types.Ef(types.KindInvalidTransactionState, "transaction is %s; nothing to reconcile", rec.Tx.Status)
	}

	adapter, err := o.networks.Get(rec.Tx.Network)
	if err != nil {
		return nil, types.Wrap(types.KindBroadcastFailed, "no adapter for network "+rec.Tx.Network, err)
	}
	lctx, cancel := context.WithTimeout(ctx, o.cfg.BroadcastTimeout)
	receipt, err := adapter.Lookup(lctx, rec.Tx.Network, txID)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return rec, types.E(types.KindBroadcastTimeout, "network lookup timed out")
		}
		return nil, types.Internal("network lookup", err)
	}
	if receipt.Status == network.StatusPending || receipt.Status == "" {
		return rec, nil
	}
	out, err := o.resolve(ctx, txID, receipt, "")
	if err != nil {
		return nil, err
	}
	logger.From(ctx).Info("transaction reconciled",
		logger.Op("multisig.Reconcile"), logger.TxID(txID), zap.String("status", string(out.Tx.Status)))
	return out, nil
}

// ReconcileStale reconcilia las tx en Broadcasting hace más que el timeout
// de broadcast. Devuelve cuántas quedaron resueltas.
func (o *Orchestrator) ReconcileStale(ctx context.Context) (int64, error) {
	cutoff := o.cfg.Now().Add(-o.cfg.BroadcastTimeout)
	txs, err := o.txs.ListByStatus(ctx, repository.TxBroadcasting, cutoff, reconcileBatch)
	if err != nil {
		return 0, types.Internal("list broadcasting", err)
	}
	var resolved int64
	for _, tx := range txs {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		out, err := o.Reconcile(ctx, tx.ID)
		if err != nil {
			logger.From(ctx).Warn("reconcile failed",
				logger.Op("multisig.ReconcileStale"), logger.TxID(tx.ID), logger.Err(err))
			continue
		}
		if out.Tx.Status != repository.TxBroadcasting {
			resolved++
		}
	}
	return resolved, nil
}

// Cancel cierra una transacción en PendingSignatures con Failed(Cancelled).
// Sólo el owner de la wallet o un firmante con rol Owner.
func (o *Orchestrator) Cancel(ctx context.Context, txID, accountID string) (*repository.TxRecord, error) {
	rec, err := o.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	ok, err := o.isWalletOwner(ctx, rec.Tx.WalletID, accountID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.E(types.KindSignerNotEligible, "only wallet owners can cancel transactions")
	}

	var moved []transition
	out, err := o.txs.Update(ctx, txID, func(r *repository.TxRecord) error {
		if r.Tx.Status != repository.TxPendingSignatures {
			return types.Ef(types.KindInvalidTransactionState, "transaction is %s; only pending transactions can be cancelled", r.Tx.Status)
		}
		return fail(r, repository.FailureCancelled, "cancelled by "+accountID, &moved)
	})
	if err != nil {
		return nil, o.updateErr("cancel transaction", err)
	}
	o.emit(ctx, out, moved)
	logger.From(ctx).Info("transaction cancelled",
		logger.Op("multisig.Cancel"), logger.TxID(txID), logger.AccountID(accountID))
	return out, nil
}

func (o *Orchestrator) isWalletOwner(ctx context.Context, walletID, accountID string) (bool, error) {
	w, err := o.GetWallet(ctx, walletID)
	if err != nil {
		return false, err
	}
	if w.OwnerAccountID == accountID {
		return true, nil
	}
	signers, err := o.ListSigners(ctx, walletID)
	if err != nil {
		return false, err
	}
	for _, s := range signers {
		if s.AccountID == accountID && s.Role == repository.RoleOwner && s.Status == repository.SignerActive {
			return true, nil
		}
	}
	return false, nil
}
