package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"moodjournal/internal/identity"
	"moodjournal/internal/models"
)

const sessionCookie = "mj_session"

type ctxKey int

const (
	userKey ctxKey = iota
	tokenKey
)

// Session resolves the opaque bearer token (carried in a cookie) to a
// user, minting both on first contact. The token concept is transport
// independent; the cookie is just where this surface keeps it.
func (h *Handler) Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
			token = c.Value
		}
		if token == "" {
			token = identity.NewToken()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    token,
				Path:     "/",
				Expires:  time.Now().Add(5 * 365 * 24 * time.Hour),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		user, err := h.Identity.Resolve(r.Context(), token)
		if err != nil {
			log.Error().Err(err).Msg("Failed to resolve session")
			writeError(w, http.StatusInternalServerError, "Session error", nil)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey).(*models.User)
	return u
}

func tokenFrom(r *http.Request) string {
	t, _ := r.Context().Value(tokenKey).(string)
	return t
}
