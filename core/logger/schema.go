package logger

import (
	"log/slog"
	"strings"
)

// Field order of rendered lines. Keys not listed follow in lexical order.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status", "outcome",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "session_id",
	"handler", "kind", "action", "from", "to",
	"location", "method", "path", "http_code",
	"duration_ms", "messages", "count", "attempts", "backoff_ms", "retryable",
	"mode", "listen", "db", "host",
	"err", "err_code", "cause",
	"rate_limited", "collapsed", "repeats", "pending_count",
}

// Outcome is a closed vocabulary; unknown values are dropped.
var outcomeValues = set("ok", "fail", "cancelled", "rate_limited")

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

// levelName renders slog levels as DEBUG, INFO, WARN or ERROR. Offsets
// between the standard levels keep slog's "+n" notation.
func levelName(l slog.Level) string {
	return l.String()
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// normalizeEnums lowercases status and outcome.
func normalizeEnums(fields map[string]any) {
	if s, ok := fields["status"].(string); ok {
		fields["status"] = strings.ToLower(s)
	}
	if o, ok := fields["outcome"].(string); ok {
		o = strings.ToLower(o)
		if _, known := outcomeValues[o]; !known {
			delete(fields, "outcome")
		} else {
			fields["outcome"] = o
		}
	}
}
