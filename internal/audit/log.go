package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"kense.org/internal/auth"
	"kense.org/internal/ids"
	"kense.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// requestIDFromContext extracts the audit request id from context if present.
func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Sink writes audit events to the shared structured log. It satisfies
// auth.AuditSink: recording is fire-and-forget and failures are discarded so
// they never mask the primary outcome of a login or authorization decision.
type Sink struct{}

// NewSink returns the log-backed audit sink.
func NewSink() Sink { return Sink{} }

// Record implements auth.AuditSink.
func (Sink) Record(ctx context.Context, event string, fields map[string]any) {
	_ = LogEvent(ctx, event, fields)
}

var _ auth.AuditSink = Sink{}

// LogEvent writes an audit log entry enriched with request and actor context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"id":    ids.NewPrefixed("evt"),
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if actor, ok := auth.AuthUserFromContext(ctx); ok {
		entry["actor_id"] = actor.ID
		entry["actor"] = actor.Username
	}
	if len(fields) > 0 {
		copyFields := make(map[string]any, len(fields))
		for k, v := range fields {
			copyFields[k] = v
		}
		entry["fields"] = copyFields
	} else {
		entry["fields"] = map[string]any{}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
