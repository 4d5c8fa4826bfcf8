package observability

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const auditEventVersion = 1

type AuditInput struct {
	EventName   string
	ActorUserID string
	ActorIP     string
	TargetType  string
	TargetID    string
	Action      string
	Outcome     string
	Reason      string
}

// AuditEvent is the stable shape of every audit log line.
type AuditEvent struct {
	EventVersion int    `json:"event_version"`
	EventName    string `json:"event_name"`
	ActorUserID  string `json:"actor_user_id"`
	ActorIP      string `json:"actor_ip"`
	TargetType   string `json:"target_type"`
	TargetID     string `json:"target_id"`
	Action       string `json:"action"`
	Outcome      string `json:"outcome"`
	Reason       string `json:"reason"`
	RequestID    string `json:"request_id"`
	TraceID      string `json:"trace_id,omitempty"`
	SpanID       string `json:"span_id,omitempty"`
	TS           string `json:"ts"`
}

func BuildAuditEvent(r *http.Request, in AuditInput) AuditEvent {
	ev := AuditEvent{
		EventVersion: auditEventVersion,
		EventName:    in.EventName,
		ActorUserID:  orUnknown(in.ActorUserID),
		ActorIP:      in.ActorIP,
		TargetType:   orUnknown(in.TargetType),
		TargetID:     orUnknown(in.TargetID),
		Action:       in.Action,
		Outcome:      in.Outcome,
		Reason:       orUnknown(in.Reason),
		RequestID:    orUnknown(r.Header.Get("X-Request-Id")),
		TS:           time.Now().UTC().Format(time.RFC3339),
	}
	if ev.ActorIP == "" {
		ev.ActorIP = remoteHost(r.RemoteAddr)
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		ev.TraceID = sc.TraceID().String()
		ev.SpanID = sc.SpanID().String()
	}
	return ev
}

func (e AuditEvent) Validate() error {
	var missing []string
	for name, v := range map[string]string{
		"event_name":    e.EventName,
		"actor_user_id": e.ActorUserID,
		"actor_ip":      e.ActorIP,
		"target_type":   e.TargetType,
		"target_id":     e.TargetID,
		"action":        e.Action,
		"outcome":       e.Outcome,
		"reason":        e.Reason,
		"request_id":    e.RequestID,
		"ts":            e.TS,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if e.EventVersion != auditEventVersion {
		return fmt.Errorf("unsupported audit event version %d", e.EventVersion)
	}
	if len(missing) > 0 {
		return errors.New("audit event missing fields: " + strings.Join(missing, ", "))
	}
	return nil
}

// EmitAudit logs an audit event. Invalid events are still logged, flagged
// with the validation error.
func EmitAudit(r *http.Request, in AuditInput) {
	ev := BuildAuditEvent(r, in)
	attrs := []any{
		"event_version", ev.EventVersion,
		"event_name", ev.EventName,
		"actor_user_id", ev.ActorUserID,
		"actor_ip", ev.ActorIP,
		"target_type", ev.TargetType,
		"target_id", ev.TargetID,
		"action", ev.Action,
		"outcome", ev.Outcome,
		"reason", ev.Reason,
		"request_id", ev.RequestID,
		"method", r.Method,
		"path", r.URL.Path,
		"ts", ev.TS,
	}
	if err := ev.Validate(); err != nil {
		attrs = append(attrs, "audit_invalid", err.Error())
	}
	slog.InfoContext(r.Context(), "audit", attrs...)
}

func orUnknown(v string) string {
	if strings.TrimSpace(v) == "" {
		return "unknown"
	}
	return v
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
