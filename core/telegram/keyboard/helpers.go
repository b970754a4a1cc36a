// Package keyboard builds Telegram reply keyboards.
package keyboard

import tele "gopkg.in/telebot.v4"

// ReplyBtn is one reply keyboard button. A Location button asks the client
// to share the device location instead of sending Text.
type ReplyBtn struct {
	Text     string
	Location bool
}

// RemoveKeyboard hides the reply keyboard on the client.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// ReplyButtons is ReplyKeyboard for rows of plain text buttons.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	grid := make([][]ReplyBtn, len(rows))
	for i, row := range rows {
		grid[i] = make([]ReplyBtn, len(row))
		for j, text := range row {
			grid[i][j] = ReplyBtn{Text: text}
		}
	}
	return ReplyKeyboard(grid...)
}

// ReplyKeyboard builds a resized reply keyboard. Empty rows are dropped.
func ReplyKeyboard(rows ...[]ReplyBtn) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{ResizeKeyboard: true}
	var grid []tele.Row
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		grid = append(grid, m.Row(buttons(m, row)...))
	}
	m.Reply(grid...)
	return m
}

func buttons(m *tele.ReplyMarkup, row []ReplyBtn) []tele.Btn {
	out := make([]tele.Btn, len(row))
	for i, b := range row {
		if b.Location {
			out[i] = m.Location(b.Text)
		} else {
			out[i] = m.Text(b.Text)
		}
	}
	return out
}
