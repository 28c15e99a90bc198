// Package orchestrator собирает HTTP-приложение: зависимости, маршруты и сервер.
package orchestrator

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/health"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/keys/adjust"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/keys/create"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/keys/extend"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/keys/qr"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/keys/read"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/keys/remove"
	ledgerhandler "github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/ledger"
	massactionhandler "github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/massaction"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/panel"
	promohandler "github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/promo"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/squads"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/users/profile"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/handlers/users/register"
	"github.com/magabrotheeeer/squad-orchestrator/internal/http/middlewarectx"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/auth"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/ledger"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/lifecycle"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/massaction"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/panelsync"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/promo"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/registry"
	"github.com/magabrotheeeer/squad-orchestrator/internal/services/users"
)

// Services — сервисы, которые обслуживают маршруты.
type Services struct {
	Auth       *auth.AuthService
	Users      *users.Service
	Keys       *lifecycle.Manager
	Registry   *registry.Registry
	PanelSync  *panelsync.Service
	Ledger     *ledger.Ledger
	Promo      *promo.Service
	MassAction *massaction.Executor
	Health     map[string]health.Check
	Gatherer   prometheus.Gatherer
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc Services, limiter *rate.Limiter) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	keyAdjust := adjust.New(logger, svc.Keys)
	keyRead := read.New(logger, svc.Keys)
	squadsHandler := squads.New(logger, svc.Registry)
	panelHandler := panel.New(logger, svc.PanelSync)
	ledgerHandler := ledgerhandler.New(logger, svc.Ledger)
	promoHandler := promohandler.New(logger, svc.Promo)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(limiter, logger))

		// Открытые конечные точки
		r.Post("/login", login.New(logger, svc.Auth).ServeHTTP)

		// Пользователь мини-приложения или администратор
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(svc.Auth, logger))

			r.Post("/keys", create.New(logger, svc.Keys).ServeHTTP)
			r.Get("/keys/{id}", keyRead.Get)
			r.Get("/keys/{id}/qr", qr.New(logger, svc.Keys).ServeHTTP)
			r.Post("/keys/{id}/extend", extend.New(logger, svc.Keys).ServeHTTP)
			r.Delete("/keys/{id}", remove.New(logger, svc.Keys).ServeHTTP)
			r.Get("/users/{id}", profile.New(logger, svc.Users).ServeHTTP)
			r.Get("/users/{id}/keys", keyRead.List)
			r.Get("/users/{id}/transactions", ledgerHandler.History)
			r.Post("/promos/apply", promoHandler.Apply)

			// Только администратор
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RequireAdmin(logger))

				r.Post("/users", register.New(logger, svc.Users, svc.Auth).ServeHTTP)
				r.Get("/users/{id}/reconcile", ledgerHandler.Reconcile)

				r.Post("/keys/sync", panelHandler.Keys)
				r.Post("/keys/{id}/reduce", keyAdjust.Reduce)
				r.Post("/keys/{id}/traffic", keyAdjust.Traffic)
				r.Post("/keys/{id}/devices", keyAdjust.Devices)
				r.Post("/keys/{id}/block", keyAdjust.Block)
				r.Post("/keys/{id}/unblock", keyAdjust.Unblock)
				r.Post("/keys/{id}/reassign", keyAdjust.Reassign)

				r.Get("/squads", squadsHandler.List)
				r.Post("/squads/sync", panelHandler.Squads)
				r.Post("/squads/recount", squadsHandler.Recount)
				r.Get("/squads/mapping", squadsHandler.GetMapping)
				r.Put("/squads/mapping", squadsHandler.PutMapping)
				r.Patch("/squads/{uuid}", squadsHandler.Update)
				r.Delete("/squads/{uuid}", squadsHandler.Remove)

				r.Post("/ledger/apply", ledgerHandler.Apply)
				r.Post("/ledger/refund", ledgerHandler.Refund)
				r.Post("/promos", promoHandler.Create)
				r.Post("/mass-actions", massactionhandler.New(logger, svc.MassAction).ServeHTTP)
			})
		})
	})

	r.Get("/health", health.New(logger, svc.Health).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(svc.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
