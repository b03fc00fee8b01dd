package api

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"
)

// webhookPayload is the gateway notification. The transaction id arrives
// as "id" or "txid" depending on the event shape.
type webhookPayload struct {
	Data struct {
		ID    json.Number `json:"id"`
		TxID  json.Number `json:"txid"`
		TxRef string      `json:"tx_ref"`
	} `json:"data"`
}

// FlutterwaveWebhook is the asynchronous verification path. After the
// shared-secret check passes the request is always acknowledged with 200,
// even when the embedded verification fails: the gateway retries on
// non-2xx, and retrying a permanently failed verification only storms us.
func (h *Handler) FlutterwaveWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.allowedSource(r.RemoteAddr) {
		log.Warn().Str("remote", r.RemoteAddr).Msg("Webhook from non-allowlisted address")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	incoming := r.Header.Get("verif-hash")
	if h.WebhookSecret == "" ||
		subtle.ConstantTimeCompare([]byte(incoming), []byte(h.WebhookSecret)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Warn().Err(err).Msg("Undecodable webhook payload")
		w.Write([]byte("ok"))
		return
	}

	txID := payload.Data.ID.String()
	if txID == "" {
		txID = payload.Data.TxID.String()
	}
	if txID == "" || payload.Data.TxRef == "" {
		w.Write([]byte("ok"))
		return
	}

	// No session on this path; the ledger recovers the owner from the
	// payment row or the reference itself.
	result, err := h.Ledger.Verify(r.Context(), txID, payload.Data.TxRef, "")
	if err != nil {
		log.Error().Err(err).Str("tx_ref", payload.Data.TxRef).Msg("Webhook verification errored")
	} else if !result.Verified {
		log.Info().Str("tx_ref", payload.Data.TxRef).Msg("Webhook verification failed")
	}

	w.Write([]byte("ok"))
}

// allowedSource checks the caller against the configured CIDR allowlist.
// An empty allowlist admits everyone (the secret header still applies).
func (h *Handler) allowedSource(remoteAddr string) bool {
	if len(h.WebhookAllowedIPs) == 0 {
		return true
	}
	host := remoteAddr
	if hp, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = hp
	}
	parsed := net.ParseIP(host)
	if parsed == nil {
		return false
	}
	for _, cidr := range h.WebhookAllowedIPs {
		_, netblock, err := net.ParseCIDR(cidr)
		if err != nil {
			// Skip invalid CIDR
			continue
		}
		if netblock.Contains(parsed) {
			return true
		}
	}
	return false
}
