// Package format escapes text for Telegram's legacy Markdown parse mode.
package format

import "strings"

// mdEscaper escapes the characters legacy Markdown treats as markup.
var mdEscaper = strings.NewReplacer(
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// MD escapes user or API provided text for Markdown messages.
func MD(text string) string {
	return mdEscaper.Replace(text)
}
