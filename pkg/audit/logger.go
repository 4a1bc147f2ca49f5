package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmhill/demo-todo-sub000/pkg/contextkeys"
)

// Logger records audit events. Implementations must tolerate partial
// events: missing actor or request fields are recorded as empty.
type Logger interface {
	Log(ctx context.Context, event *Event)
	Close() error
}

// SlogLogger writes audit events to a structured logger under a
// dedicated "audit" group. It is the default sink when no database
// logger is configured.
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger.With(slog.String("log_type", "audit"))}
}

func (l *SlogLogger) Log(ctx context.Context, event *Event) {
	if event == nil {
		return
	}
	fillFromContext(ctx, event)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	attrs := []slog.Attr{
		slog.String("event_type", string(event.EventType)),
		slog.String("status", string(event.Status)),
		slog.Time("timestamp", event.Timestamp),
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.OrganizationID != "" {
		attrs = append(attrs, slog.String("organization_id", event.OrganizationID))
	}
	if event.ResourceType != "" {
		attrs = append(attrs, slog.String("resource_type", string(event.ResourceType)))
	}
	if event.ResourceID != "" {
		attrs = append(attrs, slog.String("resource_id", event.ResourceID))
	}
	if event.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", event.RequestID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Message != "" {
		attrs = append(attrs, slog.String("message", event.Message))
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, slog.Any("metadata", event.Metadata))
	}

	l.logger.LogAttrs(ctx, slog.LevelInfo, "audit_event", attrs...)
}

func (l *SlogLogger) Close() error { return nil }

// NopLogger discards all events. Useful in tests and as a default when
// audit logging is disabled.
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event *Event) {}
func (NopLogger) Close() error                          { return nil }

// fillFromContext backfills actor and request fields from the request
// context when the caller did not set them explicitly.
func fillFromContext(ctx context.Context, event *Event) {
	if event.RequestID == "" {
		event.RequestID = contextkeys.GetRequestID(ctx)
	}
	if event.UserID == "" {
		event.UserID = contextkeys.GetUserID(ctx)
	}
}

// FromContext returns the audit logger stored on the context, or a
// NopLogger when none is present. Request middleware installs the
// configured logger so handlers and services never need a nil check.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok && l != nil {
		return l
	}
	return NopLogger{}
}

// WithLogger stores the audit logger on the context.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}
