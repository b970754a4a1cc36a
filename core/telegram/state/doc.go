// Package state stores per-conversation dialog sessions for Telegram bots.
// Sessions are keyed by conversation id and expire after a configurable idle TTL.
package state
