package mediator

import (
	"github.com/google/uuid"

	"github.com/ComprosoftCEO/lines-of-battle/internal/protocol"
)

// ActionInbox holds at most one pending action per player for the current
// tick. It is owned by the mediator goroutine and needs no locking.
type ActionInbox struct {
	pending map[uuid.UUID]protocol.PlayerAction
}

// NewActionInbox creates an empty inbox.
func NewActionInbox() *ActionInbox {
	return &ActionInbox{pending: make(map[uuid.UUID]protocol.PlayerAction)}
}

// Put stores the player's action for this tick. The first action wins;
// duplicates are refused without displacing it.
func (b *ActionInbox) Put(id uuid.UUID, action protocol.PlayerAction) bool {
	if _, exists := b.pending[id]; exists {
		return false
	}
	b.pending[id] = action
	return true
}

// Drain returns the collected actions and resets the inbox for the next
// tick.
func (b *ActionInbox) Drain() map[uuid.UUID]protocol.PlayerAction {
	actions := b.pending
	b.pending = make(map[uuid.UUID]protocol.PlayerAction)
	return actions
}

// Reset discards any pending actions.
func (b *ActionInbox) Reset() {
	b.pending = make(map[uuid.UUID]protocol.PlayerAction)
}
