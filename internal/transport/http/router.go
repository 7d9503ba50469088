// Package httptransport is the thin HTTP layer. Handlers parse requests,
// delegate to domain services, and translate typed domain errors to status
// responses; no business logic lives here.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"undertone/internal/admin"
	"undertone/internal/board"
	"undertone/internal/keyring"
	"undertone/internal/platform/metrics"
	"undertone/internal/session"
	"undertone/internal/social"
	"undertone/internal/user"
	"undertone/pkg/platform/middleware/clientip"
	"undertone/pkg/platform/middleware/requestid"
	"undertone/pkg/platform/middleware/requesttime"
)

// About describes the instance on the unauthenticated root endpoint.
type About struct {
	Version         string
	ServerName      string
	Private         bool
	UserSessionTTL  time.Duration
	AdminSessionTTL time.Duration
}

// Handlers bundles everything the router serves.
type Handlers struct {
	Users    *user.Service
	Admins   *admin.Service
	Social   *social.Service
	Keys     *keyring.Service
	Boards   *board.Service
	Sessions *session.Manager

	About   About
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// NewRouter mounts all endpoints with the shared middleware chain.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(clientip.Middleware)
	r.Use(logRequests(h.logger()))
	if h.Metrics != nil {
		r.Use(countRequests(h.Metrics))
	}

	r.Get("/", h.handleAbout)
	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/user", func(r chi.Router) {
		r.Post("/", h.handleUserCreate)
		r.Get("/queryidbyname", h.handleUserQueryIDByName)
		r.Post("/{userID}/login", h.handleUserLogin)
		r.Post("/{userID}/heartbeat", h.handleUserHeartbeat)
		r.Post("/{userID}/logout", h.handleUserLogout)
		r.Get("/{userID}", h.handleUserGet)
		r.Put("/{userID}/presence", h.handleUserSetPresence)
		r.Delete("/{userID}", h.handleUserDelete)

		r.Get("/{userID}/friends", h.handleFriendsList)
		r.Delete("/{userID}/friends/{friendID}", h.handleFriendRemove)
		r.Get("/{userID}/friendrequests", h.handleFriendRequestsList)
		r.Post("/{userID}/friendrequests", h.handleFriendRequestSend)
		r.Post("/{userID}/friendrequests/{senderID}", h.handleFriendRequestAccept)
		r.Delete("/{userID}/friendrequests/{senderID}", h.handleFriendRequestReject)

		r.Get("/{userID}/blocked", h.handleBlockedList)
		r.Post("/{userID}/blocked", h.handleBlockAdd)
		r.Delete("/{userID}/blocked/{blockedID}", h.handleBlockRemove)

		r.Get("/{userID}/keys", h.handleKeysList)
		r.Post("/{userID}/keys", h.handleKeyAdd)
	})

	r.Get("/key/{keyID}", h.handleKeyGet)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/login/challenge", h.handleAdminChallenge)
		r.Post("/login/response", h.handleAdminResponse)
		r.Post("/renew", h.handleAdminRenew)
		r.Post("/logout", h.handleAdminLogout)
		r.Get("/auditlog", h.handleAdminAuditLog)
	})

	r.Route("/board", func(r chi.Router) {
		r.Post("/", h.handleBoardCreate)
		r.Post("/direct", h.handleBoardCreateDirect)
		r.Get("/", h.handleBoardList)
		r.Get("/{boardID}", h.handleBoardGet)
		r.Get("/{boardID}/members", h.handleBoardMembers)
		r.Post("/{boardID}/members", h.handleBoardMemberAdd)
		r.Delete("/{boardID}/members/{userID}", h.handleBoardMemberRemove)
		r.Get("/{boardID}/messages", h.handleBoardMessages)
		r.Get("/{boardID}/messages/{messageID}", h.handleBoardMessage)
		r.Post("/{boardID}/messages", h.handleBoardMessagePost)
	})

	return r
}

func (h *Handlers) handleAbout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":              h.About.Version,
		"serverName":           h.About.ServerName,
		"serverIsPrivate":      h.About.Private,
		"sessionDuration":      h.About.UserSessionTTL.Seconds(),
		"adminSessionDuration": h.About.AdminSessionTTL.Seconds(),
	})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func logRequests(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			logger.DebugContext(r.Context(), "request handled",
				"method", r.Method,
				"path", r.URL.Path,
			)
		})
	}
}

func countRequests(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			var class string
			switch {
			case rec.status >= 500:
				class = "5xx"
			case rec.status >= 400:
				class = "4xx"
			case rec.status >= 300:
				class = "3xx"
			default:
				class = "2xx"
			}
			m.HTTPRequests.WithLabelValues(r.Method, class).Inc()
		})
	}
}
