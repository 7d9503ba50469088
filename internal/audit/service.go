package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"undertone/internal/platform/metrics"
	dErrors "undertone/pkg/domain-errors"
	"undertone/pkg/domain"
	"undertone/pkg/requestcontext"
)

// Logger is the append-only audit sink used by the admin authenticator and
// permission-gated operations.
type Logger struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Logger.
type Option func(*Logger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) { l.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Logger) { l.metrics = m }
}

// New constructs the audit logger over a store.
func New(store Store, opts ...Option) *Logger {
	l := &Logger{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append writes one entry, timestamped with the request-scoped now.
func (l *Logger) Append(ctx context.Context, actorID domain.AdminID, action, details string) error {
	entry := Entry{
		ID:        uuid.New(),
		ActorID:   actorID,
		Action:    action,
		Details:   details,
		Timestamp: requestcontext.Now(ctx),
	}
	if err := l.store.Append(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "append audit entry")
	}
	if l.metrics != nil {
		l.metrics.AuditEntries.Inc()
	}
	l.logger.InfoContext(ctx, "audit",
		"actor_id", actorID.String(),
		"action", action,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// List exposes entries to the reporting surface, newest first.
func (l *Logger) List(ctx context.Context, filter Filter) ([]Entry, error) {
	entries, err := l.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit entries")
	}
	return entries, nil
}
