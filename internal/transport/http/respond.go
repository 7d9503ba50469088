package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"

	"undertone/pkg/domain"
	dErrors "undertone/pkg/domain-errors"
)

// Realms for the WWW-Authenticate header on 401 responses. Clients use them
// to tell which credential kind the endpoint wants.
const (
	realmUser  = "X-Undertone-User"
	realmAdmin = "X-Undertone-Admin"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError performs the single exhaustive translation from the typed
// domain error union to HTTP responses. Handlers never pick status codes.
func writeError(w http.ResponseWriter, realm string, err error) {
	code := dErrors.CodeOf(err)
	message := dErrors.MessageOf(err)

	switch code {
	case dErrors.CodeInvalidInput:
		writeJSON(w, http.StatusBadRequest, errorBody(message))
	case dErrors.CodeNotFound:
		writeJSON(w, http.StatusNotFound, errorBody(message))
	case dErrors.CodeConflict:
		writeJSON(w, http.StatusConflict, errorBody(message))
	case dErrors.CodeUnauthorized:
		w.Header().Set("WWW-Authenticate", realm)
		writeJSON(w, http.StatusUnauthorized, errorBody(message))
	case dErrors.CodeExpired:
		w.Header().Set("WWW-Authenticate", realm)
		writeJSON(w, http.StatusUnauthorized, errorBody(message))
	case dErrors.CodeForbidden:
		writeJSON(w, http.StatusForbidden, errorBody(message))
	case dErrors.CodeLocked:
		body := map[string]any{"error": message}
		if details, ok := dErrors.LockedDetails(err); ok {
			body["lockReason"] = details.Reason
			body["lockExpiry"] = details.Expiry
		}
		writeJSON(w, http.StatusForbidden, body)
	case dErrors.CodeGone:
		writeJSON(w, http.StatusGone, errorBody(message))
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody("InternalError"))
	}
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

// decodeJSON parses the request body into dst. A malformed body is an
// InvalidRequest, matching the domain's own validation responses.
func decodeJSON(w http.ResponseWriter, r *http.Request, realm string, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, realm, dErrors.New(dErrors.CodeInvalidInput, "InvalidRequest"))
		return false
	}
	return true
}

// sessionID reads the sessionId query parameter.
func sessionID(w http.ResponseWriter, r *http.Request, realm string) (domain.SessionID, bool) {
	id, err := domain.ParseSessionID(r.URL.Query().Get("sessionId"))
	if err != nil {
		writeError(w, realm, dErrors.New(dErrors.CodeInvalidInput, "InvalidRequest"))
		return domain.SessionID{}, false
	}
	return id, true
}

// pageParams reads optional start/count query parameters. Missing or
// malformed values fall back to zero; services apply their own clamps.
func pageParams(r *http.Request) (int, int) {
	start, _ := strconv.Atoi(r.URL.Query().Get("start"))
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	return start, count
}
