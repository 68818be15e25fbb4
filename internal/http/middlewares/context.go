package middlewares

import "context"

type ctxKey string

const (
	ctxAccountIDKey ctxKey = "account_id"
	ctxRequestIDKey ctxKey = "request_id"
)

// WithAccountID inyecta el account id autenticado en el contexto.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, ctxAccountIDKey, accountID)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetAccountID obtiene el account id del bearer token.
// Retorna cadena vacía si la ruta no pasó por WithBearerAuth.
func GetAccountID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxAccountIDKey).(string); ok {
		return v
	}
	return ""
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRequestIDKey).(string); ok {
		return v
	}
	return ""
}
