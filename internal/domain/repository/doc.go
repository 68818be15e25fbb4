// Package repository define las interfaces de repositorio de dominio.
//
// Estas interfaces representan contratos de negocio, independientes del
// almacenamiento subyacente (PostgreSQL, memoria, Redis para nonces).
//
// Las implementaciones concretas viven en internal/store/.
//
// Arquitectura:
//
//	┌─────────────────────────────────────────────────────┐
//	│        keys / rags / multisig (servicios)           │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│        domain/repository (interfaces)               │
//	│  AccountRepository, KeyRepository, NonceRepository, │
//	│  WalletRepository, TransactionRepository            │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	         ┌──────────────┼──────────────┐
//	         ▼              ▼              ▼
//	┌─────────────┐  ┌─────────────┐  ┌─────────────┐
//	│   store/    │  │   store/    │  │   store/    │
//	│     pg      │  │   memory    │  │ redisnonce  │
//	└─────────────┘  └─────────────┘  └─────────────┘
//
// Convenciones:
//   - Las entidades se referencian por ID, nunca por puntero a su dueño.
//   - Context siempre es el primer parámetro.
//   - Errores de dominio están en errors.go.
package repository
