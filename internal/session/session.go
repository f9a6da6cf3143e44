// Package session tracks recent conversation state per session for prompt
// continuity. Histories are bounded; no durability is guaranteed by the
// in-memory backend.
package session

import (
	"context"

	"github.com/carebridge-ai/companion/models"
)

// MaxHistory bounds a session to its most recent messages; older entries
// are evicted first.
const MaxHistory = 10

// DefaultHistoryWindow is how many messages callers pull for prompt context.
const DefaultHistoryWindow = 5

// Store is the conversation session store. All implementations are safe
// for concurrent use.
type Store interface {
	// GetOrCreate returns the id of an existing session, refreshing its
	// last-active time, or creates one. A non-empty unknown id is adopted
	// as-is; an empty id mints a new identifier.
	GetOrCreate(ctx context.Context, sessionID string) (string, error)
	// Append adds a timestamped message to a session's history, then
	// truncates to the MaxHistory most recent. Unknown session: no-op.
	Append(ctx context.Context, sessionID string, role models.MessageRole, content string) error
	// History returns up to max recent messages, oldest first. max <= 0
	// applies DefaultHistoryWindow. Unknown session: empty, no error.
	History(ctx context.Context, sessionID string, max int) ([]models.ChatMessage, error)
	// Clear removes a session entirely, reporting whether it existed.
	// Clearing an unknown id is a no-op, not an error.
	Clear(ctx context.Context, sessionID string) (bool, error)
}
