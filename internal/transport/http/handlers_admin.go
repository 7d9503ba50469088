package httptransport

import (
	"net/http"
	"time"

	"undertone/internal/audit"
	"undertone/pkg/domain"
	dErrors "undertone/pkg/domain-errors"
)

func (h *Handlers) handleAdminChallenge(w http.ResponseWriter, r *http.Request) {
	adminID, err := domain.ParseAdminID(r.URL.Query().Get("adminId"))
	if err != nil {
		writeError(w, realmAdmin, dErrors.New(dErrors.CodeNotFound, "NoObjectWithId"))
		return
	}

	challenge, err := h.Admins.IssueChallenge(r.Context(), adminID)
	if err != nil {
		writeError(w, realmAdmin, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]byte{"challenge": challenge})
}

func (h *Handlers) handleAdminResponse(w http.ResponseWriter, r *http.Request) {
	adminID, err := domain.ParseAdminID(r.URL.Query().Get("adminId"))
	if err != nil {
		writeError(w, realmAdmin, dErrors.New(dErrors.CodeNotFound, "NoObjectWithId"))
		return
	}
	var req struct {
		Response []byte `json:"response"`
	}
	if !decodeJSON(w, r, realmAdmin, &req) {
		return
	}

	sessID, err := h.Admins.VerifyResponse(r.Context(), adminID, req.Response)
	if err != nil {
		writeError(w, realmAdmin, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sessID.String()})
}

func (h *Handlers) handleAdminRenew(w http.ResponseWriter, r *http.Request) {
	sessID, ok := sessionID(w, r, realmAdmin)
	if !ok {
		return
	}
	if err := h.Admins.Renew(r.Context(), sessID); err != nil {
		writeError(w, realmAdmin, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handlers) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	sessID, ok := sessionID(w, r, realmAdmin)
	if !ok {
		return
	}
	if err := h.Admins.Logout(r.Context(), sessID); err != nil {
		writeError(w, realmAdmin, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handlers) handleAdminAuditLog(w http.ResponseWriter, r *http.Request) {
	sessID, ok := sessionID(w, r, realmAdmin)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := audit.Filter{Action: query.Get("action")}
	filter.Start, filter.Count = pageParams(r)
	if actor := query.Get("actorId"); actor != "" {
		actorID, err := domain.ParseAdminID(actor)
		if err != nil {
			writeError(w, realmAdmin, dErrors.New(dErrors.CodeInvalidInput, "InvalidRequest"))
			return
		}
		filter.ActorID = actorID
	}
	if from := query.Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			writeError(w, realmAdmin, dErrors.New(dErrors.CodeInvalidInput, "InvalidRequest"))
			return
		}
		filter.From = t
	}
	if to := query.Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			writeError(w, realmAdmin, dErrors.New(dErrors.CodeInvalidInput, "InvalidRequest"))
			return
		}
		filter.To = t
	}

	entries, err := h.Admins.AuditLog(r.Context(), sessID, filter)
	if err != nil {
		writeError(w, realmAdmin, err)
		return
	}
	body := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		body = append(body, map[string]any{
			"id":        entry.ID.String(),
			"actorId":   entry.ActorID.String(),
			"action":    entry.Action,
			"details":   entry.Details,
			"timestamp": entry.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, body)
}
