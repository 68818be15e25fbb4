package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/ragsig/internal/http/errors"
	jwtx "github.com/dropDatabas3/ragsig/internal/jwt"
	"github.com/dropDatabas3/ragsig/internal/observability/logger"
)

// WithBearerAuth valida Authorization: Bearer <JWT> y guarda el sub como
// account id en el contexto. Sin token o con token inválido responde 401.
func WithBearerAuth(issuer *jwtx.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := strings.TrimSpace(r.Header.Get("Authorization"))
			if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				errors.WriteError(w, errors.ErrTokenMissing)
				return
			}
			raw := strings.TrimSpace(ah[len("Bearer "):])

			claims, err := issuer.Parse(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="`+err.Error()+`"`)
				errors.WriteError(w, errors.ErrTokenInvalid.WithDetail(err.Error()))
				return
			}

			ctx := WithAccountID(r.Context(), claims.Subject)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.AccountID(claims.Subject)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
