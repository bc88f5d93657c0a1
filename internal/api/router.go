/**
 * @description
 * This file sets up the HTTP router for the banking-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies the
 * middleware stack: request IDs, logging, panic recovery, timeouts, CORS,
 * authentication and staff role gating.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS preflight handling for the web client.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/oakline/banking-service/internal/domain"
)

// RouterConfig carries the HTTP-level settings for NewRouter.
type RouterConfig struct {
	Auth           AuthMiddlewareConfig
	AllowedOrigins []string
}

// NewRouter creates and returns the router for the banking-service API.
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Route("/api", func(r chi.Router) {
		// Public endpoints.
		r.Get("/bank-details", h.BankDetailsHandler)
		r.Get("/calculators/loan", h.LoanCalculatorHandler)
		r.Post("/enrollment/verify-step", h.VerifyEnrollmentStepHandler)
		r.HandleFunc("/admin/approve-loan-payment", h.ApproveLoanPaymentHandler)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.Auth))

			r.Post("/enrollment/submit", h.SubmitEnrollmentHandler)

			r.Get("/accounts", h.ListAccountsHandler)
			r.Get("/accounts/{id}", h.GetAccountHandler)
			r.Get("/accounts/{id}/transactions", h.ListAccountTransactionsHandler)
			r.Post("/accounts/{id}/deposits", h.DepositHandler)

			r.Get("/loans", h.ListMyLoansHandler)
			r.Post("/loans", h.ApplyLoanHandler)
			r.Get("/loans/{id}", h.GetMyLoanHandler)
			r.Post("/loans/{id}/payments", h.PayLoanHandler)

			r.Get("/notifications", h.ListNotificationsHandler)
			r.Post("/notifications/read-all", h.MarkAllNotificationsReadHandler)
			r.Post("/notifications/{id}/read", h.MarkNotificationReadHandler)

			r.Post("/verification/email-change", h.RequestEmailChangeHandler)
			r.Post("/verification/email-change/confirm", h.ConfirmEmailChangeHandler)

			r.Post("/mfa/setup", h.SetupMFAHandler)
			r.Post("/mfa/verify", h.VerifyMFAHandler)
			r.Post("/mfa/disable", h.DisableMFAHandler)
			r.Get("/mfa/status", h.MFAStatusHandler)

			r.Get("/zelle/contacts", h.ListZelleContactsHandler)
			r.Post("/zelle/contacts", h.CreateZelleContactHandler)
			r.Put("/zelle/contacts/{id}", h.UpdateZelleContactHandler)
			r.Delete("/zelle/contacts/{id}", h.DeleteZelleContactHandler)
			r.Post("/zelle/send", h.SendZelleHandler)
			r.Get("/zelle/transactions", h.ListZelleTransactionsHandler)

			r.Get("/admin/check-role", h.CheckRoleHandler)

			r.Group(func(r chi.Router) {
				r.Use(RequireRoles(h.roles, domain.LoanOfficerRoles...))

				r.Get("/admin/loans", h.ListLoansForReviewHandler)
				r.Post("/admin/loans/{id}/approve", h.ApproveLoanHandler)
				r.Post("/admin/loans/{id}/reject", h.RejectLoanHandler)
				r.Post("/admin/loans/{id}/close", h.CloseLoanHandler)
			})
		})
	})

	return r
}
