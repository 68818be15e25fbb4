package types

import (
	"errors"
	"fmt"
)

// Kind clasifica un rechazo del core. Es el código que ve el caller.
type Kind string

const (
	KindUnknownSigner              Kind = "UnknownSigner"
	KindInvalidSignature           Kind = "InvalidSignature"
	KindStaleRequest               Kind = "StaleRequest"
	KindReplayDetected             Kind = "ReplayDetected"
	KindUnsupportedAlgorithm       Kind = "UnsupportedAlgorithm"
	KindDuplicateVote              Kind = "DuplicateVote"
	KindThresholdUnreachable       Kind = "ThresholdUnreachable"
	KindInvalidWalletConfiguration Kind = "InvalidWalletConfiguration"
	KindTransactionNotFound        Kind = "TransactionNotFound"
	KindBroadcastFailed            Kind = "BroadcastFailed"
	KindBroadcastTimeout           Kind = "BroadcastTimeout"

	KindInvalidTransactionState Kind = "InvalidTransactionState"
	KindSignerNotEligible       Kind = "SignerNotEligible"
	KindWalletNotFound          Kind = "WalletNotFound"
	KindKeyRevoked              Kind = "KeyRevoked"
	KindInvalidInput            Kind = "InvalidInput"
	KindInternal                Kind = "Internal"
)

// Error es el error tipado del core.
// Reason es texto seguro para el usuario; Err es la causa interna (solo logs).
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unwrap permite llegar a la causa con errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is compara por Kind, así errors.Is(err, types.E(KindReplayDetected, "")) funciona.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// E crea un error tipado sin causa.
func E(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Ef crea un error tipado con reason formateado.
func Ef(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap crea un error tipado conservando la causa.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Internal envuelve fallas inesperadas (storage caído, etc.).
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Reason: op, Err: err}
}

// KindOf extrae el Kind de un error. Errores no tipados son KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind verifica si err es un *Error del kind dado.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsAuthFailure agrupa los rechazos one-shot de autenticación (nunca se reintentan).
func IsAuthFailure(err error) bool {
	switch KindOf(err) {
	case KindUnknownSigner, KindInvalidSignature, KindStaleRequest, KindReplayDetected, KindKeyRevoked:
		return true
	}
	return false
}
