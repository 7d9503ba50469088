package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"undertone/internal/session"
	"undertone/internal/user"
	"undertone/pkg/domain"
	dErrors "undertone/pkg/domain-errors"
	"undertone/pkg/requestcontext"
)

// userSession authenticates and renews a user session from the sessionId
// query parameter.
func (h *Handlers) userSession(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	id, ok := sessionID(w, r, realmUser)
	if !ok {
		return domain.UserID{}, false
	}
	principal, err := h.Sessions.VerifyAndRenew(r.Context(), id)
	if err != nil {
		writeError(w, realmUser, err)
		return domain.UserID{}, false
	}
	if principal.Kind != session.KindUser {
		writeError(w, realmUser, dErrors.New(dErrors.CodeNotFound, "NoObjectWithId"))
		return domain.UserID{}, false
	}
	return domain.UserID(principal.SubjectID), true
}

// pathUserID parses the route's user id segment.
func pathUserID(w http.ResponseWriter, r *http.Request, param string) (domain.UserID, bool) {
	id, err := domain.ParseUserID(chi.URLParam(r, param))
	if err != nil {
		writeError(w, realmUser, dErrors.New(dErrors.CodeNotFound, "NoObjectWithId"))
		return domain.UserID{}, false
	}
	return id, true
}

// requireSelf enforces that the session user is acting on their own account.
func requireSelf(w http.ResponseWriter, actorID, targetID domain.UserID) bool {
	if actorID != targetID {
		writeError(w, realmUser, dErrors.New(dErrors.CodeForbidden, "NotAuthorized"))
		return false
	}
	return true
}

func (h *Handlers) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		Password  string `json:"password"`
		PublicKey []byte `json:"publicKey"`
	}
	if !decodeJSON(w, r, realmUser, &req) {
		return
	}

	id, err := h.Users.Create(r.Context(), req.Name, req.Password, req.PublicKey)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"userId": id.String()})
}

func (h *Handlers) handleUserQueryIDByName(w http.ResponseWriter, r *http.Request) {
	id, err := h.Users.QueryIDByName(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"userId": id.String()})
}

func (h *Handlers) handleUserLogin(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, realmUser, &req) {
		return
	}

	ctx := r.Context()
	sessID, err := h.Users.Login(ctx, userID, req.Password, requestcontext.ClientIP(ctx))
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sessID.String()})
}

func (h *Handlers) handleUserHeartbeat(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok || !requireSelf(w, actorID, userID) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handlers) handleUserLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	sessID, ok := sessionID(w, r, realmUser)
	if !ok {
		return
	}

	ctx := r.Context()
	sess, err := h.Sessions.Peek(ctx, sessID)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	if sess.Kind != session.KindUser || domain.UserID(sess.SubjectID) != userID {
		writeError(w, realmUser, dErrors.New(dErrors.CodeNotFound, "NoObjectWithId"))
		return
	}
	if err := h.Sessions.Revoke(ctx, sessID); err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handlers) handleUserGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok {
		return
	}

	view, err := h.Users.Get(r.Context(), actorID, userID)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, userView(view))
}

func userView(v user.View) map[string]any {
	body := map[string]any{
		"id":      v.ID.String(),
		"name":    v.Name,
		"deleted": v.Deleted,
	}
	if v.Full {
		body["presence"] = string(v.Presence)
		body["lastActive"] = v.LastActive
		body["status"] = v.Status
	}
	return body
}

func (h *Handlers) handleUserSetPresence(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok || !requireSelf(w, actorID, userID) {
		return
	}

	var req struct {
		Presence  string     `json:"presence"`
		UntilTime *time.Time `json:"untilTime"`
		OtherData string     `json:"otherData"`
	}
	if !decodeJSON(w, r, realmUser, &req) {
		return
	}

	err := h.Users.SetPresence(r.Context(), userID, user.Presence(req.Presence), req.UntilTime, req.OtherData)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handlers) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok || !requireSelf(w, actorID, userID) {
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, realmUser, &req) {
		return
	}

	if err := h.Users.Delete(r.Context(), userID, req.Password); err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handlers) handleFriendsList(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok || !requireSelf(w, actorID, userID) {
		return
	}

	start, count := pageParams(r)
	ids, err := h.Social.Friends(r.Context(), userID, start, count)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, idStrings(ids))
}

func (h *Handlers) handleFriendRemove(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	friendID, ok := pathUserID(w, r, "friendID")
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok || !requireSelf(w, actorID, userID) {
		return
	}

	if err := h.Social.RemoveFriend(r.Context(), userID, friendID); err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handlers) handleFriendRequestsList(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok || !requireSelf(w, actorID, userID) {
		return
	}

	start, count := pageParams(r)
	requests, err := h.Social.Requests(r.Context(), userID, start, count)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	body := make([]map[string]string, 0, len(requests))
	for _, req := range requests {
		body = append(body, map[string]string{"senderId": req.SenderID.String()})
	}
	writeJSON(w, http.StatusOK, body)
}

// handleFriendRequestSend files a request from the session user to the user
// named in the path.
func (h *Handlers) handleFriendRequestSend(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok {
		return
	}

	if err := h.Social.SendRequest(r.Context(), actorID, recipientID); err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "success"})
}

func (h *Handlers) handleFriendRequestAccept(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	senderID, ok := pathUserID(w, r, "senderID")
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok || !requireSelf(w, actorID, userID) {
		return
	}

	if err := h.Social.AcceptRequest(r.Context(), userID, senderID); err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handlers) handleFriendRequestReject(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	senderID, ok := pathUserID(w, r, "senderID")
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok || !requireSelf(w, actorID, userID) {
		return
	}

	if err := h.Social.RejectRequest(r.Context(), userID, senderID); err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handlers) handleBlockedList(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok || !requireSelf(w, actorID, userID) {
		return
	}

	start, count := pageParams(r)
	ids, err := h.Social.Blocked(r.Context(), userID, start, count)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, idStrings(ids))
}

func (h *Handlers) handleBlockAdd(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok || !requireSelf(w, actorID, userID) {
		return
	}

	var req struct {
		BlockedID string `json:"blockedId"`
	}
	if !decodeJSON(w, r, realmUser, &req) {
		return
	}
	blockedID, err := domain.ParseUserID(req.BlockedID)
	if err != nil {
		writeError(w, realmUser, dErrors.New(dErrors.CodeInvalidInput, "InvalidRequest"))
		return
	}

	if err := h.Social.Block(r.Context(), userID, blockedID); err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "success"})
}

func (h *Handlers) handleBlockRemove(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	blockedID, ok := pathUserID(w, r, "blockedID")
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok || !requireSelf(w, actorID, userID) {
		return
	}

	if err := h.Social.Unblock(r.Context(), userID, blockedID); err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func idStrings(ids []domain.UserID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
