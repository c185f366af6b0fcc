package handlers

import (
	"net/http"

	"wallet/internal/config"
	"wallet/internal/middleware"
	"wallet/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handler struct {
	cfg          config.Config
	wallets      WalletService
	ledger       LedgerService
	freezes      FreezeService
	limits       LimitService
	transactions TransactionService
	hub          *websocket.Hub
	logger       *zap.Logger
}

func New(cfg config.Config, wallets WalletService, ledger LedgerService, freezes FreezeService, limits LimitService, transactions TransactionService, hub *websocket.Hub, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:          cfg,
		wallets:      wallets,
		ledger:       ledger,
		freezes:      freezes,
		limits:       limits,
		transactions: transactions,
		hub:          hub,
		logger:       logger,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.RequestLogger(h.logger))
	router.Use(middleware.Recovery)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	operator := middleware.RequireRole(middleware.RoleOperator)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))

		r.Post("/wallets", h.CreateWallet)
		r.Route("/wallets/{walletID}", func(r chi.Router) {
			r.Get("/balance", h.GetBalance)
			r.Get("/balance/sufficient", h.CheckSufficientBalance)
			r.With(operator).Post("/balance/adjust", h.AdjustBalance)
			r.With(operator).Post("/balance/reserve", h.ReserveBalance)
			r.With(operator).Post("/balance/release", h.ReleaseBalance)

			r.Get("/freezes", h.ListFreezes)
			r.Get("/frozen", h.GetFreezeStatus)
			r.With(operator).Post("/freezes", h.CreateFreeze)

			r.Get("/limits", h.ListLimits)
			r.Get("/limits/check", h.CheckLimit)
			r.With(operator).Post("/limits", h.CreateLimit)
		})

		r.Get("/freezes/{freezeID}", h.GetFreeze)
		r.With(operator).Delete("/freezes/{freezeID}", h.RemoveFreeze)

		r.Route("/limits/{limitID}", func(r chi.Router) {
			r.Use(operator)
			r.Post("/reset", h.ResetLimit)
			r.Put("/", h.UpdateLimit)
			r.Delete("/", h.DeactivateLimit)
		})

		r.Post("/transactions", h.CreateTransaction)
		r.Get("/transactions", h.GetTransactionByReference)
		r.Get("/transactions/{transactionID}", h.GetTransaction)
		r.Post("/transactions/{transactionID}/process", h.ProcessTransaction)
		r.With(operator).Put("/transactions/{transactionID}/status", h.UpdateTransactionStatus)

		r.With(operator).Get("/balances/total", h.TotalByCurrency)
	})

	router.Get("/ws/wallets/{walletID}/balance", h.WSBalance)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
