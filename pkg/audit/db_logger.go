package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DBLogger persists audit events to PostgreSQL. Insert failures are
// reported to the fallback structured logger rather than the caller:
// an audit sink outage must not fail the business operation it records.
type DBLogger struct {
	db       *sql.DB
	fallback *slog.Logger
	idgen    func() string
}

// NewDBLogger creates a database-backed audit logger and ensures the
// backing table exists.
func NewDBLogger(db *sql.DB, fallback *slog.Logger, idgen func() string) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if idgen == nil {
		idgen = uuid.NewString
	}

	logger := &DBLogger{db: db, fallback: fallback, idgen: idgen}
	if err := logger.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_events table: %w", err)
	}
	return logger, nil
}

func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id UUID PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		status VARCHAR(20) NOT NULL,
		user_id VARCHAR(64),
		organization_id VARCHAR(64),
		resource_type VARCHAR(50),
		resource_id VARCHAR(64),
		request_id VARCHAR(100),
		ip_address VARCHAR(45),
		message TEXT,
		metadata JSONB,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_events_user_id ON audit_events(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_organization_id ON audit_events(organization_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_resource ON audit_events(resource_type, resource_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_status ON audit_events(status);
	`

	_, err := l.db.Exec(query)
	return err
}

func (l *DBLogger) Log(ctx context.Context, event *Event) {
	if event == nil {
		return
	}
	fillFromContext(ctx, event)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		event.ID = l.idgen()
	}

	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			l.report(ctx, event, fmt.Errorf("marshal metadata: %w", err))
			metadataJSON = nil
		}
	}

	query := `
		INSERT INTO audit_events (
			id, timestamp, event_type, status,
			user_id, organization_id,
			resource_type, resource_id,
			request_id, ip_address,
			message, metadata
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8,
			$9, $10,
			$11, $12
		)
	`

	_, err := l.db.ExecContext(ctx, query,
		event.ID, event.Timestamp, event.EventType, event.Status,
		nullable(event.UserID), nullable(event.OrganizationID),
		nullable(string(event.ResourceType)), nullable(event.ResourceID),
		nullable(event.RequestID), nullable(event.IPAddress),
		nullable(event.Message), metadataJSON,
	)
	if err != nil {
		l.report(ctx, event, fmt.Errorf("insert audit event: %w", err))
	}
}

func (l *DBLogger) report(ctx context.Context, event *Event, err error) {
	if l.fallback == nil {
		return
	}
	l.fallback.LogAttrs(ctx, slog.LevelError, "audit sink failure",
		slog.String("event_type", string(event.EventType)),
		slog.String("error", err.Error()),
	)
}

// Close releases nothing: the database handle is shared with the rest
// of the process and is closed by its owner.
func (l *DBLogger) Close() error { return nil }

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// DeleteBefore removes audit events older than the cutoff and returns
// the number of rows deleted. Used by the janitor for retention.
func (l *DBLogger) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM audit_events WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit events: %w", err)
	}
	return res.RowsAffected()
}
