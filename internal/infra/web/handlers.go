package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"shortlet-payments/internal/infra/logging"
	"shortlet-payments/internal/usecase"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type cronResponse struct {
	OK    bool   `json:"ok"`
	Route string `json:"route"`
	*usecase.RunSummary
}

// cronReconcileHandler is the authenticated periodic trigger. Auth is an
// exact match on the shared-secret header; an unconfigured secret rejects
// everything. Partial candidate failures still return 200; they are
// reported in the body, not via HTTP status.
func (s *Server) cronReconcileHandler(w http.ResponseWriter, r *http.Request) {
	if s.cronSecret == "" || r.Header.Get("x-cron-secret") != s.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
		return
	}
	if s.reconcileUC == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "store not configured"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "limit must be an integer"})
			return
		}
		// Provided values clamp to the [1, max] window; only an absent
		// param selects the default.
		if n < 1 {
			n = 1
		}
		limit = n
	}

	summary, err := s.reconcileUC.Run(r.Context(), usecase.TriggerCron, limit)
	if err != nil {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Msg("reconcile run failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, cronResponse{OK: true, Route: "reconcile-payments", RunSummary: summary})
}

type adminLoginRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) adminLoginHandler(w http.ResponseWriter, r *http.Request) {
	if s.adminAPIKey == "" || s.auth == nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.APIKey != s.adminAPIKey {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) adminLogoutHandler(w http.ResponseWriter, r *http.Request) {
	if s.auth != nil {
		s.auth.Clear(w)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// adminFlaggedHandler pages the intents awaiting manual follow-up; chiefly
// the succeeded-payment-stuck-booking asymmetry.
func (s *Server) adminFlaggedHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	intents, err := s.payments.ListFlagged(r.Context(), offset, limit)
	if err != nil {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Msg("list flagged failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	type flaggedIntent struct {
		ID                string `json:"id"`
		BookingID         string `json:"booking_id"`
		Provider          string `json:"provider"`
		ProviderReference string `json:"provider_reference"`
		Status            string `json:"status"`
		Reason            string `json:"reason"`
		VerifyAttempts    int    `json:"verify_attempts"`
		AmountTotalMinor  int64  `json:"amount_total_minor"`
		Currency          string `json:"currency"`
	}
	out := make([]flaggedIntent, 0, len(intents))
	for _, p := range intents {
		out = append(out, flaggedIntent{
			ID:                p.ID,
			BookingID:         p.BookingID,
			Provider:          string(p.Provider),
			ProviderReference: p.ProviderReference,
			Status:            string(p.Status),
			Reason:            string(p.ReconcileReason),
			VerifyAttempts:    p.VerifyAttempts,
			AmountTotalMinor:  p.AmountTotalMinor,
			Currency:          p.Currency,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "count": len(out)})
}
