package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/aqibot/core/logger"
	tghelpers "github.com/m3rciful/aqibot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// handled runs h under the handler name and logs one summary line for it.
func handled(c tele.Context, name string, h tele.HandlerFunc) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, name)
	err := h(c)
	summarize(ctx, c, start, err, "")
	return err
}

// skipped logs a summary for an update no handler accepted.
func skipped(c tele.Context, name string) {
	summarize(tghelpers.WithHandler(c, name), c, time.Now(), nil, "skip")
}

func summarize(ctx context.Context, c tele.Context, start time.Time, err error, status string) {
	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	if status == "" {
		status = outcome
	}
	msgs, kb := tghelpers.Sent(c)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", time.Since(start)),
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), level, "handler.handled", attrs...)
}

// handlerName turns "/start" or "Select Region" into "start" or "select_region".
func handlerName(key string) string {
	key = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(key), "/"))
	if key == "" {
		return "unknown"
	}
	return strings.Join(strings.Fields(key), "_")
}

// errorCode names err for logs: its Code() when it has one, otherwise the
// unqualified type name of the innermost wrapped error.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToUpper(name)
}
