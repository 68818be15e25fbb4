// Package router arma el árbol de rutas chi con sus cadenas de middlewares.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/ragsig/internal/http/controllers"
	httperrors "github.com/dropDatabas3/ragsig/internal/http/errors"
	mw "github.com/dropDatabas3/ragsig/internal/http/middlewares"
	jwtx "github.com/dropDatabas3/ragsig/internal/jwt"
	"github.com/dropDatabas3/ragsig/internal/rate"
)

// Deps contiene las dependencias del router.
type Deps struct {
	Controllers *controllers.Controllers
	Issuer      *jwtx.Issuer
	// Limiter es opcional; nil desactiva el rate limit.
	Limiter rate.Limiter
	// Metrics es el handler de /metrics; nil no expone la ruta.
	Metrics http.Handler
}

// New construye el handler raíz.
//
//	públicas:    /readyz, /metrics, POST /v1/rags/validate, POST /v1/transactions/{txID}/sign,
//	             GET /v1/transactions/{txID}/message
//	con bearer:  el resto de /v1
func New(d Deps) http.Handler {
	c := d.Controllers
	r := chi.NewRouter()

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// health y métricas: sin logging (muy frecuentes)
	r.Group(func(r chi.Router) {
		r.Use(mw.WithRecover(), mw.WithRequestID())
		r.Get("/readyz", c.Health.Readyz)
		if d.Metrics != nil {
			r.Handle("/metrics", d.Metrics)
		}
	})

	limit := mw.WithRateLimit(mw.RateLimitConfig{Limiter: d.Limiter})
	auth := mw.WithBearerAuth(d.Issuer)

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.WithRecover(), mw.WithRequestID(), mw.WithLogging(), mw.WithMetrics())

		// el envelope RAGS autentica
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/rags/validate", c.Rags.Validate)
			r.Post("/transactions/{txID}/sign", c.Transactions.Sign)
			r.Get("/transactions/{txID}/message", c.Transactions.Message)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth, limit)

			r.Post("/rags/sign", c.Rags.Sign)

			r.Post("/wallets", c.Wallets.Create)
			r.Get("/wallets/{walletID}", c.Wallets.Get)
			r.Put("/wallets/{walletID}/status", c.Wallets.SetStatus)
			r.Get("/wallets/{walletID}/signers", c.Wallets.ListSigners)
			r.Post("/wallets/{walletID}/signers", c.Wallets.AddSigner)
			r.Get("/wallets/{walletID}/transactions", c.Wallets.ListTransactions)
			r.Post("/wallets/{walletID}/transactions", c.Wallets.CreateTransaction)

			r.Get("/transactions/{txID}", c.Transactions.Get)
			r.Post("/transactions/{txID}/reject", c.Transactions.Reject)
			r.Post("/transactions/{txID}/finalize", c.Transactions.Finalize)
			r.Post("/transactions/{txID}/cancel", c.Transactions.Cancel)
			r.Post("/transactions/{txID}/reconcile", c.Transactions.Reconcile)
		})
	})

	return r
}
