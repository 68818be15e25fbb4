package controllers

import (
	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/http/dto"
)

func walletDTO(w *repository.Wallet, signers []repository.WalletSigner) dto.WalletResponse {
	out := dto.WalletResponse{
		ID:                 w.ID,
		OwnerAccountID:     w.OwnerAccountID,
		Type:               w.Type,
		Network:            w.Network,
		Address:            w.Address,
		Balance:            w.Balance,
		LockedBalance:      w.LockedBalance,
		RequiredSignatures: w.RequiredSignatures,
		TotalSigners:       w.TotalSigners,
		Status:             string(w.Status),
		CreatedAt:          w.CreatedAt,
		UpdatedAt:          w.UpdatedAt,
	}
	for i := range signers {
		out.Signers = append(out.Signers, signerDTO(&signers[i]))
	}
	return out
}

func signerDTO(s *repository.WalletSigner) dto.SignerResponse {
	return dto.SignerResponse{
		ID:        s.ID,
		WalletID:  s.WalletID,
		AccountID: s.AccountID,
		Address:   s.Address,
		Role:      string(s.Role),
		Weight:    s.Weight,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
	}
}

func txDTO(tx *repository.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:                   tx.ID,
		WalletID:             tx.WalletID,
		Network:              tx.Network,
		FromAddress:          tx.FromAddress,
		ToAddress:            tx.ToAddress,
		Amount:               tx.Amount,
		Asset:                tx.Asset,
		GasLimit:             tx.GasLimit,
		MaxFeePerGas:         tx.MaxFeePerGas,
		MaxPriorityFeePerGas: tx.MaxPriorityFeePerGas,
		RequiredSignatures:   tx.RequiredSignatures,
		CurrentSignatures:    tx.CurrentSignatures,
		Status:               string(tx.Status),
		FailureReason:        tx.FailureReason,
		FailureDetail:        tx.FailureDetail,
		Sequence:             tx.Sequence,
		TxHash:               tx.TxHash,
		CreatedBy:            tx.CreatedBy,
		CreatedAt:            tx.CreatedAt,
		UpdatedAt:            tx.UpdatedAt,
		BroadcastAt:          tx.BroadcastAt,
		ConfirmedAt:          tx.ConfirmedAt,
	}
}

// recordDTO incluye los votos. Nunca expone bytes de firma ni nonces.
func recordDTO(rec *repository.TxRecord) dto.TransactionResponse {
	out := txDTO(&rec.Tx)
	for _, v := range rec.Signatures {
		out.Signatures = append(out.Signatures, dto.VoteResponse{
			SignerID:        v.SignerID,
			AccountID:       v.AccountID,
			Weight:          v.Weight,
			Status:          string(v.Status),
			Algorithm:       string(v.Algorithm),
			Address:         v.Address,
			RejectionReason: v.RejectionReason,
			UpdatedAt:       v.UpdatedAt,
		})
	}
	return out
}
