package telegram

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/m3rciful/aqibot/core/logger"
	"github.com/m3rciful/aqibot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry holds bot commands and the fallback for text that is not a command.
// It is filled during wiring and read-only afterwards.
type Registry struct {
	commands     map[string]commands.Command
	aliases      map[string]string
	textFallback tele.HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]commands.Command),
		aliases:  make(map[string]string),
	}
}

// RegisterCommand adds cmd under name, which must start with "/". Invalid
// or duplicate registrations are logged and ignored.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	if reason := r.reject(name, cmd); reason != "" {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("event", "register.command.skip"),
			slog.String("handler", name),
			slog.String("cause", reason),
		)
		return
	}
	r.commands[name] = cmd
	for _, a := range cmd.Aliases {
		a = "/" + strings.TrimPrefix(a, "/")
		if _, taken := r.aliases[a]; !taken {
			r.aliases[a] = name
		}
	}
}

func (r *Registry) reject(name string, cmd commands.Command) string {
	switch {
	case cmd.Handler == nil || cmd.Description == "":
		return "invalid"
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return "no_slash_prefix"
	}
	if _, dup := r.commands[name]; dup {
		return "duplicate"
	}
	return ""
}

// ListCommands returns the commands sorted by name. menuOnly drops hidden
// and admin-only commands.
func (r *Registry) ListCommands(menuOnly bool) []tele.Command {
	var list []tele.Command
	for name, cmd := range r.commands {
		if menuOnly && !cmd.InMenu() {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: cmd.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves the first word of text to a registered command or
// alias. A "@botname" suffix is ignored, so "/start@aqibot now" resolves to "/start".
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	word, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	word, _, _ = strings.Cut(word, "@")
	if word == "" {
		return "", commands.Command{}, false
	}
	if canonical, ok := r.aliases[word]; ok {
		word = canonical
	}
	cmd, ok := r.commands[word]
	if !ok {
		return "", commands.Command{}, false
	}
	return word, cmd, true
}

// Commands returns all registered commands keyed by name.
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// SetTextFallback sets the handler for text no command matched.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.textFallback = h
}

// TextFallback returns the handler set by SetTextFallback.
func (r *Registry) TextFallback() tele.HandlerFunc {
	return r.textFallback
}

// InitBotCommands publishes the menu commands of reg with setMyCommands.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	if err := bot.SetCommands(reg.ListCommands(true)); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set",
			slog.String("event", "register.commands.set"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}
