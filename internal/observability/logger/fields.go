package logger

import (
	"go.uber.org/zap"
)

// ─── HTTP ───

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

// DurationMs es la latencia del request en milisegundos.
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }

// ─── RAGS / multisig ───

// AccountID es el dueño de la clave o el caller autenticado.
func AccountID(v string) zap.Field { return zap.String("account_id", v) }

// KeyID identifica la fila de la registry. Nunca loguear el storage ref.
func KeyID(v string) zap.Field { return zap.String("key_id", v) }

func Algorithm(v string) zap.Field { return zap.String("alg", v) }
func Service(v string) zap.Field   { return zap.String("service_name", v) }
func WalletID(v string) zap.Field  { return zap.String("wallet_id", v) }
func TxID(v string) zap.Field      { return zap.String("tx_id", v) }
func SignerID(v string) zap.Field  { return zap.String("signer_id", v) }
func Network(v string) zap.Field   { return zap.String("network", v) }

// ErrKind es el types.Kind del rechazo.
func ErrKind(v string) zap.Field { return zap.String("err_kind", v) }

// ─── Sistema ───

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }

// Layer: handler, service, repository.
func Layer(v string) zap.Field { return zap.String("layer", v) }

func Err(err error) zap.Field { return zap.Error(err) }

func Any(key string, v any) zap.Field { return zap.Any(key, v) }
func String(key, v string) zap.Field  { return zap.String(key, v) }
