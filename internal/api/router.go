package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"moodjournal/internal/identity"
	"moodjournal/internal/journal"
	"moodjournal/internal/subscription"
)

// Handler carries the request-handling dependencies. The webhook settings
// live here rather than on the ledger because they are transport concerns.
type Handler struct {
	Identity *identity.Manager
	Journal  *journal.Store
	Ledger   *subscription.Ledger

	WebhookSecret     string
	WebhookAllowedIPs []string // CIDR list; empty allows all sources
}

// Router wires all routes. Everything user-facing sits behind the session
// middleware; the webhook and health endpoints do not carry a session.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, nil)
	})
	r.Post("/webhook/flutterwave", h.FlutterwaveWebhook)

	r.Group(func(r chi.Router) {
		r.Use(h.Session)

		r.Post("/entry", h.AddEntry)
		r.Get("/data", h.ListEntries)
		r.Get("/data/export", h.ExportEntries)
		r.Get("/user/status", h.UserStatus)
		r.Post("/user/email", h.SetEmail)
		r.Get("/subscribe/txref", h.CreateTxRef)
		r.Post("/payment/verify", h.VerifyPayment)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
