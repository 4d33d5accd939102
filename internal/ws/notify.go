package ws

import (
	"strings"

	"palaver/internal/channel"
	"palaver/internal/models"
)

// Composite cache keys. Identity names cannot contain the separator
// (content.ValidateName enforces the charset).
const keySep = "\x00"

func unreadKey(recipient, sender string) string {
	return recipient + keySep + sender
}

func typingKey(scope, name string) string {
	return scope + keySep + name
}

// SetTyping records a typing indicator and notifies the scope's audience:
// the counterpart's live connection for a conversation, or the room members
// excluding the sender for a public room. Last write wins; nothing is queued.
func (h *Hub) SetTyping(connID, room, to string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok {
		return
	}

	scope, ok := h.typingScope(s, room, to)
	if !ok {
		return
	}
	h.typing.Set(typingKey(scope, s.Name), models.TypingEntry{Scope: scope, Name: s.Name})
	h.pushTyping(s, scope, models.ServerMessageTypeTyping)
}

// ClearTyping drops a typing indicator. Clearing a scope the sender was never
// typing in is a no-op.
func (h *Hub) ClearTyping(connID, room, to string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok {
		return
	}

	scope, ok := h.typingScope(s, room, to)
	if !ok {
		return
	}
	key := typingKey(scope, s.Name)
	if _, err := h.typing.Get(key); err != nil {
		return
	}
	_ = h.typing.Del(key)
	h.pushTyping(s, scope, models.ServerMessageTypeStopTyping)
}

// typingScope resolves a client-supplied scope: a counterpart identity wins
// over a room; an empty room means the session's current public room. A
// mismatched room is stale and yields no scope.
func (h *Hub) typingScope(s *Session, room, to string) (string, bool) {
	if to != "" {
		if to == s.Name {
			return "", false
		}
		return channel.PrivateID(s.Name, to).Key(), true
	}
	if !s.Room.IsPublic() {
		return "", false
	}
	if room != "" && room != s.Room.Room {
		return "", false
	}
	return s.Room.Key(), true
}

func (h *Hub) pushTyping(s *Session, scope string, kind models.ServerMessageType) {
	msg := models.ServerMessage{Type: kind, Room: scope, From: s.Name}
	id := channel.ParseKey(scope)
	if id.IsPublic() {
		h.broadcastRoom(id, msg, s.Name)
		return
	}
	if counterpart, ok := id.Counterpart(s.Name); ok {
		h.sendToName(counterpart, msg)
	}
}

// dropTypingFor clears every typing indicator held by a departing identity,
// pushing the stop to each scope's audience.
func (h *Hub) dropTypingFor(name string) {
	for key, entry := range h.typing.Snapshot() {
		if entry.Name != name {
			continue
		}
		_ = h.typing.Del(key)
		h.pushTyping(&Session{Name: name}, entry.Scope, models.ServerMessageTypeStopTyping)
	}
}

// bumpUnread increments the (recipient, sender) counter and returns the new
// value. Callers decide whether accrual is suppressed.
func (h *Hub) bumpUnread(recipient, sender string) int {
	key := unreadKey(recipient, sender)
	count, err := h.unread.Get(key)
	if err != nil {
		count = 0
	}
	count++
	h.unread.Set(key, count)
	return count
}

// resetUnread zeroes the (recipient, sender) counter and pushes the reset to
// the recipient.
func (h *Hub) resetUnread(recipient, sender string) {
	_ = h.unread.Del(unreadKey(recipient, sender))
	h.sendToName(recipient, models.ServerMessage{
		Type:  models.ServerMessageTypeUnread,
		From:  sender,
		Count: 0,
	})
}

// UnreadCount returns the live counter for a (recipient, sender) pair.
func (h *Hub) UnreadCount(recipient, sender string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	count, err := h.unread.Get(unreadKey(recipient, sender))
	if err != nil {
		return 0
	}
	return count
}

// dropUnreadFor removes every counter involving a departing identity. The
// identity dies with its session; a later claim of the same name must start
// clean.
func (h *Hub) dropUnreadFor(name string) {
	for key := range h.unread.Snapshot() {
		recipient, sender, ok := strings.Cut(key, keySep)
		if !ok {
			continue
		}
		if recipient == name || sender == name {
			_ = h.unread.Del(key)
		}
	}
}

// typingSnapshot lists the indicators visible to a newly claimed identity:
// all public-room scopes, plus conversations it is party to. Private scopes
// of other pairs never leak.
func (h *Hub) typingSnapshot(name string) []models.TypingEntry {
	var entries []models.TypingEntry
	for _, entry := range h.typing.Snapshot() {
		id := channel.ParseKey(entry.Scope)
		if !id.IsPublic() {
			if _, member := id.Counterpart(name); !member {
				continue
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

// unreadSnapshot returns the identity's own counters keyed by sender.
func (h *Hub) unreadSnapshot(name string) map[string]int {
	counts := make(map[string]int)
	for key, count := range h.unread.Snapshot() {
		recipient, sender, ok := strings.Cut(key, keySep)
		if !ok || recipient != name {
			continue
		}
		counts[sender] = count
	}
	return counts
}
