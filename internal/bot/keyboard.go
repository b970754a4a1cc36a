package bot

import (
	"strings"

	"github.com/m3rciful/aqibot/core/telegram/keyboard"
	"github.com/m3rciful/aqibot/internal/conversation"

	tele "gopkg.in/telebot.v4"
)

// Button labels of the reply keyboards.
const (
	LabelSelectRegion  = "🌍 Select Region"
	LabelMyLocation    = "📍 My Location"
	LabelBackToMain    = "⬅️ Back to Main Menu"
	LabelBackToRegions = "⬅️ Back to Regions"
)

// actionFromText maps an inbound text to a conversation action. Button labels
// are recognised here and nowhere else.
func actionFromText(text string) conversation.Action {
	text = strings.TrimSpace(text)
	switch text {
	case LabelSelectRegion:
		return conversation.Browse()
	case LabelBackToMain:
		return conversation.BackToMain()
	case LabelBackToRegions:
		return conversation.BackToRegions()
	}
	return conversation.Select(text)
}

func mainMarkup() *tele.ReplyMarkup {
	return keyboard.ReplyKeyboard(
		[]keyboard.ReplyBtn{{Text: LabelSelectRegion}},
		[]keyboard.ReplyBtn{{Text: LabelMyLocation, Location: true}},
	)
}

func controlLabel(c conversation.Control) string {
	switch c {
	case conversation.ControlBackToMain:
		return LabelBackToMain
	case conversation.ControlBackToRegions:
		return LabelBackToRegions
	}
	return ""
}

// markup renders a conversation keyboard. KeyboardNone yields nil so the
// client keeps its current keyboard.
func markup(k conversation.Keyboard) *tele.ReplyMarkup {
	switch k.Kind {
	case conversation.KeyboardRemove:
		return keyboard.RemoveKeyboard()
	case conversation.KeyboardMain:
		return mainMarkup()
	case conversation.KeyboardMenu:
		rows := make([][]string, len(k.Rows))
		for i, row := range k.Rows {
			for _, b := range row {
				label := b.Label
				if b.Control != conversation.ControlNone {
					label = controlLabel(b.Control)
				}
				rows[i] = append(rows[i], label)
			}
		}
		return keyboard.ReplyButtons(rows...)
	}
	return nil
}
