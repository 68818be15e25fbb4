package multisig

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/dropDatabas3/ragsig/internal/audit"
	"github.com/dropDatabas3/ragsig/internal/domain/repository"
	"github.com/dropDatabas3/ragsig/internal/domain/types"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
)

// SignerInput describe un firmante a agregar.
type SignerInput struct {
	AccountID string
	Address   string
	Role      repository.SignerRole // default Signer
	Weight    int                   // default 1
}

// CreateWalletInput es la entrada de create wallet.
// El owner se agrega como firmante Owner si no figura en Signers.
type CreateWalletInput struct {
	OwnerAccountID     string
	Type               string
	Network            string
	Address            string
	RequiredSignatures int
	Signers            []SignerInput
}

// CreateWallet valida 1 ≤ M ≤ N y crea la wallet con sus firmantes.
func (o *Orchestrator) CreateWallet(ctx context.Context, in CreateWalletInput) (*repository.Wallet, []repository.WalletSigner, error) {
	if in.OwnerAccountID == "" {
		return nil, nil, types.E(types.KindInvalidInput, "owner account is required")
	}
	netID := strings.ToLower(strings.TrimSpace(in.Network))
	if netID == "" {
		return nil, nil, types.E(types.KindInvalidInput, "network is required")
	}
	if in.Type == "" {
		in.Type = "multisig"
	}
	if err := o.requireActiveAccount(ctx, in.OwnerAccountID); err != nil {
		return nil, nil, err
	}

	inputs := in.Signers
	hasOwner := false
	for _, s := range inputs {
		if s.AccountID == in.OwnerAccountID {
			hasOwner = true
			break
		}
	}
	if !hasOwner {
		inputs = append([]SignerInput{{AccountID: in.OwnerAccountID, Role: repository.RoleOwner}}, inputs...)
	}

	signers := make([]repository.WalletSigner, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	eligible := 0
	for _, s := range inputs {
		ws, err := o.buildSigner(ctx, s)
		if err != nil {
			return nil, nil, err
		}
		if seen[ws.AccountID] {
			return nil, nil, types.Ef(types.KindInvalidWalletConfiguration, "account %s listed twice", ws.AccountID)
		}
		seen[ws.AccountID] = true
		if ws.Eligible() {
			eligible++
		}
		signers = append(signers, ws)
	}

	if in.RequiredSignatures < 1 || in.RequiredSignatures > eligible {
		return nil, nil, types.Ef(types.KindInvalidWalletConfiguration,
			"required signatures must be between 1 and %d", eligible)
	}

	w := &repository.Wallet{
		OwnerAccountID:     in.OwnerAccountID,
		Type:               in.Type,
		Network:            netID,
		Address:            in.Address,
		RequiredSignatures: in.RequiredSignatures,
		TotalSigners:       eligible,
		Status:             repository.WalletActive,
	}
	if err := o.wallets.Create(ctx, w, signers); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, nil, types.E(types.KindInvalidWalletConfiguration, "duplicate signer")
		}
		return nil, nil, types.Internal("create wallet", err)
	}

	logger.From(ctx).Info("wallet created",
		logger.Op("multisig.CreateWallet"), logger.WalletID(w.ID), logger.Network(w.Network),
		zap.Int("m", w.RequiredSignatures), zap.Int("n", w.TotalSigners))
	audit.Log(ctx, "wallet_created", map[string]any{
		"wallet_id": w.ID, "owner": w.OwnerAccountID, "m": w.RequiredSignatures, "n": w.TotalSigners,
	})
	return w, signers, nil
}

// AddSigner agrega un firmante a una wallet existente. No afecta
// transacciones ya creadas: su set de votantes quedó fijado al crearlas.
func (o *Orchestrator) AddSigner(ctx context.Context, walletID string, in SignerInput) (*repository.WalletSigner, error) {
	w, err := o.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if w.Status == repository.WalletArchived {
		return nil, types.E(types.KindInvalidWalletConfiguration, "wallet is archived")
	}
	ws, err := o.buildSigner(ctx, in)
	if err != nil {
		return nil, err
	}
	ws.WalletID = walletID
	if err := o.wallets.AddSigner(ctx, &ws); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, types.E(types.KindInvalidWalletConfiguration, "account is already a signer of this wallet")
		case errors.Is(err, repository.ErrNotFound):
			return nil, types.E(types.KindWalletNotFound, "wallet not found")
		}
		return nil, types.Internal("add signer", err)
	}
	logger.From(ctx).Info("signer added",
		logger.Op("multisig.AddSigner"), logger.WalletID(walletID), logger.SignerID(ws.ID),
		logger.AccountID(ws.AccountID), zap.String("role", string(ws.Role)))
	audit.Log(ctx, "wallet_signer_added", map[string]any{
		"wallet_id": walletID, "signer_id": ws.ID, "account_id": ws.AccountID, "role": string(ws.Role), "weight": ws.Weight,
	})
	return &ws, nil
}

func (o *Orchestrator) buildSigner(ctx context.Context, in SignerInput) (repository.WalletSigner, error) {
	if in.AccountID == "" {
		return repository.WalletSigner{}, types.E(types.KindInvalidInput, "signer account is required")
	}
	if in.Role == "" {
		in.Role = repository.RoleSigner
	}
	if !in.Role.IsValid() {
		return repository.WalletSigner{}, types.Ef(types.KindInvalidInput, "role %q is not valid", in.Role)
	}
	if in.Weight == 0 {
		in.Weight = 1
	}
	if in.Weight < 0 {
		return repository.WalletSigner{}, types.E(types.KindInvalidWalletConfiguration, "signer weight must be positive")
	}
	if err := o.requireActiveAccount(ctx, in.AccountID); err != nil {
		return repository.WalletSigner{}, err
	}
	return repository.WalletSigner{
		AccountID: in.AccountID,
		Address:   in.Address,
		Role:      in.Role,
		Weight:    in.Weight,
		Status:    repository.SignerActive,
	}, nil
}

func (o *Orchestrator) requireActiveAccount(ctx context.Context, accountID string) error {
	a, err := o.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return types.Ef(types.KindUnknownSigner, "account %s not found", accountID)
		}
		return types.Internal("get account", err)
	}
	if a.Status != repository.AccountActive {
		return types.Ef(types.KindUnknownSigner, "account %s is not active", accountID)
	}
	return nil
}

func (o *Orchestrator) GetWallet(ctx context.Context, walletID string) (*repository.Wallet, error) {
	w, err := o.wallets.Get(ctx, walletID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, types.E(types.KindWalletNotFound, "wallet not found")
		}
		return nil, types.Internal("get wallet", err)
	}
	return w, nil
}

func (o *Orchestrator) ListSigners(ctx context.Context, walletID string) ([]repository.WalletSigner, error) {
	ss, err := o.wallets.ListSigners(ctx, walletID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, types.E(types.KindWalletNotFound, "wallet not found")
		}
		return nil, types.Internal("list signers", err)
	}
	return ss, nil
}

// SetWalletStatus congela, reactiva o archiva una wallet. Sólo el owner.
func (o *Orchestrator) SetWalletStatus(ctx context.Context, walletID, accountID string, status repository.WalletStatus) error {
	switch status {
	case repository.WalletActive, repository.WalletFrozen, repository.WalletArchived:
	default:
		return types.Ef(types.KindInvalidInput, "wallet status %q is not valid", status)
	}
	w, err := o.GetWallet(ctx, walletID)
	if err != nil {
		return err
	}
	if w.OwnerAccountID != accountID {
		return types.E(types.KindSignerNotEligible, "only the wallet owner can change its status")
	}
	if err := o.wallets.SetStatus(ctx, walletID, status); err != nil {
		return types.Internal("set wallet status", err)
	}
	audit.Log(ctx, "wallet_status_changed", map[string]any{"wallet_id": walletID, "status": string(status)})
	return nil
}
