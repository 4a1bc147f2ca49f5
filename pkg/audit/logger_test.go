package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmhill/demo-todo-sub000/pkg/contextkeys"
)

func TestSlogLoggerWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	logger.Log(context.Background(), &Event{
		EventType:      EventOrgMemberRemove,
		Status:         StatusSuccess,
		UserID:         "user-1",
		OrganizationID: "org-1",
		ResourceType:   ResourceMembership,
		ResourceID:     "mem-9",
		Message:        "member removed",
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "audit_event", entry["msg"])
	assert.Equal(t, "audit", entry["log_type"])
	assert.Equal(t, "org.member_remove", entry["event_type"])
	assert.Equal(t, "success", entry["status"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, "org-1", entry["organization_id"])
	assert.Equal(t, "membership", entry["resource_type"])
	assert.Equal(t, "mem-9", entry["resource_id"])
}

func TestSlogLoggerBackfillsFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx := contextkeys.WithRequestID(context.Background(), "req-42")
	ctx = contextkeys.WithUserID(ctx, "user-7")

	logger.Log(ctx, &Event{EventType: EventAuthLogin, Status: StatusSuccess})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, "user-7", entry["user_id"])
}

func TestSlogLoggerIgnoresNilEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	logger.Log(context.Background(), nil)

	assert.Zero(t, buf.Len())
}

func TestFromContextDefaultsToNop(t *testing.T) {
	logger := FromContext(context.Background())
	assert.IsType(t, NopLogger{}, logger)

	// Must not panic.
	logger.Log(context.Background(), &Event{EventType: EventAccessDenied, Status: StatusDenied})
}

func TestFromContextReturnsInstalledLogger(t *testing.T) {
	installed := NewSlogLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	ctx := WithLogger(context.Background(), installed)

	assert.Same(t, installed, FromContext(ctx))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "203.0.113.9:54321",
			want:       "203.0.113.9",
		},
		{
			name:       "x-forwarded-for takes first hop",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1"},
			want:       "198.51.100.4",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			want:       "198.51.100.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}
