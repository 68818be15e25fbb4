package repository

import (
	"context"
	"time"
)

// OwnerType distingue usuarios finales de servicios internos.
type OwnerType string

const (
	OwnerClient OwnerType = "Client"
	OwnerSystem OwnerType = "System"
)

// AccountStatus indica el estado de una cuenta. Nunca se borran, solo se desactivan.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
)

// Account es una identidad lógica (usuario final o servicio interno).
type Account struct {
	ID        string
	OwnerRef  string // referencia externa (user id, nombre de servicio)
	OwnerType OwnerType
	Status    AccountStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountRepository define operaciones sobre cuentas.
type AccountRepository interface {
	// Create inserta una cuenta. Retorna ErrConflict si OwnerRef ya existe.
	Create(ctx context.Context, a *Account) error

	// GetByID busca por ID. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Account, error)

	// GetByOwnerRef busca por referencia externa (ej: nombre de servicio).
	GetByOwnerRef(ctx context.Context, ownerRef string) (*Account, error)

	// SetStatus cambia el estado (activación/desactivación).
	SetStatus(ctx context.Context, id string, status AccountStatus) error
}
