package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"undertone/pkg/domain"
	dErrors "undertone/pkg/domain-errors"
)

// handleKeysList returns a user's published keys, newest first. Any session
// user may list them; key material is public.
func (h *Handlers) handleKeysList(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	if _, ok := h.userSession(w, r); !ok {
		return
	}

	start, count := pageParams(r)
	infos, err := h.Keys.List(r.Context(), userID, start, count)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	body := make([]map[string]any, 0, len(infos))
	for _, info := range infos {
		body = append(body, map[string]any{
			"id":          info.ID.String(),
			"publishTime": info.PublishTime,
		})
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handlers) handleKeyAdd(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok || !requireSelf(w, actorID, userID) {
		return
	}

	var req struct {
		PublicKey []byte `json:"publicKey"`
	}
	if !decodeJSON(w, r, realmUser, &req) {
		return
	}

	id, err := h.Keys.Add(r.Context(), userID, req.PublicKey)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"keyId": id.String()})
}

// handleKeyGet serves raw key material with its metadata in the X-Metadata
// header. No session is required.
func (h *Handlers) handleKeyGet(w http.ResponseWriter, r *http.Request) {
	keyID, err := domain.ParseKeyID(chi.URLParam(r, "keyID"))
	if err != nil {
		writeError(w, realmUser, dErrors.New(dErrors.CodeNotFound, "NoObjectWithId"))
		return
	}

	key, err := h.Keys.Get(r.Context(), keyID)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}

	metadata, _ := json.Marshal(map[string]any{
		"id":          key.ID.String(),
		"ownerId":     key.OwnerID.String(),
		"publishTime": key.PublishTime,
	})
	w.Header().Set("X-Metadata", string(metadata))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(key.Data)
}
