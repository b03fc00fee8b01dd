package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"moodjournal/internal/models"
)

func entryJSON(e *models.Entry) map[string]interface{} {
	var scores map[string]float64
	if err := json.Unmarshal([]byte(e.ScoresJSON), &scores); err != nil {
		scores = map[string]float64{}
	}
	return map[string]interface{}{
		"id":          e.ID,
		"created_at":  e.CreatedAt.UTC().Format(time.RFC3339),
		"top_emotion": e.TopEmotion,
		"top_score":   e.TopScore,
		"scores":      scores,
	}
}

func (h *Handler) AddEntry(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	text := strings.TrimSpace(r.FormValue("text"))
	if text == "" {
		writeError(w, http.StatusBadRequest, "Text is required", nil)
		return
	}

	e, err := h.Journal.Add(r.Context(), user.ID, text)
	if err != nil {
		log.Error().Err(err).Msg("Failed to add entry")
		writeError(w, http.StatusInternalServerError, "Failed to save entry", nil)
		return
	}
	writeOK(w, map[string]interface{}{"entry": entryJSON(e)})
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	entries, err := h.Journal.List(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list entries")
		writeError(w, http.StatusInternalServerError, "Failed to load entries", nil)
		return
	}

	out := make([]map[string]interface{}, 0, len(entries))
	for i := range entries {
		out = append(out, entryJSON(&entries[i]))
	}
	writeOK(w, map[string]interface{}{"entries": out})
}

// ExportEntries streams the user's full history as CSV. PRO only.
func (h *Handler) ExportEntries(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	if !user.IsPro(time.Now().UTC()) {
		writeError(w, http.StatusForbidden, "PRO subscription required", nil)
		return
	}

	entries, err := h.Journal.List(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list entries for export")
		writeError(w, http.StatusInternalServerError, "Failed to load entries", nil)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="entries.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "created_at", "top_emotion", "top_score", "scores_json"})
	for i := range entries {
		e := &entries[i]
		_ = cw.Write([]string{
			strconv.FormatUint(uint64(e.ID), 10),
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.TopEmotion,
			strconv.FormatFloat(e.TopScore, 'f', -1, 64),
			e.ScoresJSON,
		})
	}
	cw.Flush()
}

func (h *Handler) UserStatus(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	var proUntil interface{}
	if user.ProUntil != nil {
		proUntil = user.ProUntil.UTC().Format(time.RFC3339)
	}
	writeOK(w, map[string]interface{}{
		"is_pro":    user.IsPro(time.Now().UTC()),
		"email":     user.Email,
		"pro_until": proUntil,
	})
}

func (h *Handler) SetEmail(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "Email required", nil)
		return
	}

	bound, err := h.Identity.BindEmail(r.Context(), tokenFrom(r), user, email)
	if err != nil {
		log.Error().Err(err).Msg("Failed to bind email")
		writeError(w, http.StatusInternalServerError, "Failed to set email", nil)
		return
	}
	writeOK(w, map[string]interface{}{"email": bound.Email})
}

func (h *Handler) CreateTxRef(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	txRef, err := h.Ledger.CreateTxRef(r.Context(), user.ID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create tx_ref")
		writeError(w, http.StatusInternalServerError, "Failed to start checkout", nil)
		return
	}
	writeOK(w, map[string]interface{}{"tx_ref": txRef})
}

type verifyRequest struct {
	TransactionID json.Number `json:"transaction_id"`
	TxRef         string      `json:"tx_ref"`
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	txID := req.TransactionID.String()
	if txID == "" || req.TxRef == "" {
		writeError(w, http.StatusBadRequest, "Missing transaction data", nil)
		return
	}

	result, err := h.Ledger.Verify(r.Context(), txID, req.TxRef, user.ID)
	if err != nil {
		log.Error().Err(err).Str("tx_ref", req.TxRef).Msg("Verification errored")
		writeError(w, http.StatusInternalServerError, "Verification failed", nil)
		return
	}
	if !result.Verified {
		writeError(w, http.StatusBadRequest, result.Message, map[string]interface{}{
			"payload": json.RawMessage(result.Payload),
		})
		return
	}
	writeOK(w, map[string]interface{}{"message": result.Message})
}
