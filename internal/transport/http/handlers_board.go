package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"undertone/internal/board"
	"undertone/pkg/domain"
	dErrors "undertone/pkg/domain-errors"
)

func pathBoardID(w http.ResponseWriter, r *http.Request) (domain.BoardID, bool) {
	id, err := domain.ParseBoardID(chi.URLParam(r, "boardID"))
	if err != nil {
		writeError(w, realmUser, dErrors.New(dErrors.CodeNotFound, "NoObjectWithId"))
		return domain.BoardID{}, false
	}
	return id, true
}

func (h *Handlers) handleBoardCreate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.userSession(w, r)
	if !ok {
		return
	}
	var req struct {
		Name       string `json:"name"`
		Encryption string `json:"encryption"`
	}
	if !decodeJSON(w, r, realmUser, &req) {
		return
	}
	if req.Encryption == "" {
		req.Encryption = string(board.EncryptionNone)
	}

	id, err := h.Boards.Create(r.Context(), actorID, req.Name, board.Encryption(req.Encryption))
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"boardId": id.String()})
}

func (h *Handlers) handleBoardCreateDirect(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.userSession(w, r)
	if !ok {
		return
	}
	var req struct {
		RecipientID string `json:"recipientId"`
	}
	if !decodeJSON(w, r, realmUser, &req) {
		return
	}
	recipientID, err := domain.ParseUserID(req.RecipientID)
	if err != nil {
		writeError(w, realmUser, dErrors.New(dErrors.CodeInvalidInput, "InvalidRequest"))
		return
	}

	id, err := h.Boards.CreateDirect(r.Context(), actorID, recipientID)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"boardId": id.String()})
}

func (h *Handlers) handleBoardList(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.userSession(w, r)
	if !ok {
		return
	}

	onlyOwned := r.URL.Query().Get("onlyOwned") == "true"
	start, count := pageParams(r)
	boards, err := h.Boards.List(r.Context(), actorID, onlyOwned, start, count)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	body := make([]map[string]any, 0, len(boards))
	for _, b := range boards {
		body = append(body, boardView(&b))
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handlers) handleBoardGet(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathBoardID(w, r)
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok {
		return
	}

	b, err := h.Boards.Get(r.Context(), actorID, boardID)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, boardView(b))
}

func boardView(b *board.Board) map[string]any {
	return map[string]any{
		"id":                    b.ID.String(),
		"name":                  b.Name,
		"ownerId":               b.OwnerID.String(),
		"encryption":            string(b.Encryption),
		"isDirect":              b.IsDirect,
		"lastUpdate":            b.LastUpdate,
		"lastSignificantUpdate": b.LastSignificantUpdate,
	}
}

func (h *Handlers) handleBoardMembers(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathBoardID(w, r)
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok {
		return
	}

	members, err := h.Boards.Members(r.Context(), actorID, boardID)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, idStrings(members))
}

func (h *Handlers) handleBoardMemberAdd(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathBoardID(w, r)
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok {
		return
	}
	var req struct {
		UserID string `json:"userId"`
	}
	if !decodeJSON(w, r, realmUser, &req) {
		return
	}
	userID, err := domain.ParseUserID(req.UserID)
	if err != nil {
		writeError(w, realmUser, dErrors.New(dErrors.CodeInvalidInput, "InvalidRequest"))
		return
	}

	if err := h.Boards.AddMember(r.Context(), actorID, boardID, userID); err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "success"})
}

func (h *Handlers) handleBoardMemberRemove(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathBoardID(w, r)
	if !ok {
		return
	}
	userID, ok := pathUserID(w, r, "userID")
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok {
		return
	}

	if err := h.Boards.RemoveMember(r.Context(), actorID, boardID, userID); err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handlers) handleBoardMessages(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathBoardID(w, r)
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := board.MessageFilter{Type: query.Get("type")}
	filter.OnlySystem, _ = strconv.ParseBool(query.Get("onlySystem"))
	filter.Start, filter.Count = pageParams(r)

	messages, err := h.Boards.Messages(r.Context(), actorID, boardID, filter)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	body := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		body = append(body, messageView(&m))
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handlers) handleBoardMessage(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathBoardID(w, r)
	if !ok {
		return
	}
	messageID, err := domain.ParseMessageID(chi.URLParam(r, "messageID"))
	if err != nil {
		writeError(w, realmUser, dErrors.New(dErrors.CodeNotFound, "NoObjectWithId"))
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok {
		return
	}

	m, err := h.Boards.Message(r.Context(), actorID, boardID, messageID)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusOK, messageView(m))
}

func messageView(m *board.Message) map[string]any {
	return map[string]any{
		"id":        m.ID.String(),
		"boardId":   m.BoardID.String(),
		"authorId":  m.AuthorID.String(),
		"type":      m.Type,
		"content":   m.Content,
		"isSystem":  m.IsSystem,
		"timestamp": m.Timestamp,
	}
}

func (h *Handlers) handleBoardMessagePost(w http.ResponseWriter, r *http.Request) {
	boardID, ok := pathBoardID(w, r)
	if !ok {
		return
	}
	actorID, ok := h.userSession(w, r)
	if !ok {
		return
	}
	var req struct {
		Content []byte `json:"content"`
		Type    string `json:"type"`
	}
	if !decodeJSON(w, r, realmUser, &req) {
		return
	}

	id, err := h.Boards.PostMessage(r.Context(), actorID, boardID, req.Content, req.Type, false)
	if err != nil {
		writeError(w, realmUser, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"messageId": id.String()})
}
