// Package channel defines channel identity and per-channel message history.
// A channel is either a public room or the private conversation derived from
// an unordered pair of identities.
package channel

import (
	"fmt"
	"strings"

	"palaver/internal/models"
)

// reservedPrefix namespaces private channel keys. Public room names must
// never start with it.
const reservedPrefix = "pm:"

const pairSeparator = ":"

type Kind int

const (
	Public Kind = iota
	Private
)

// ID identifies a channel. For Public IDs only Room is set. For Private IDs
// A and B hold the identity pair with A < B, so the ID built from (a, b)
// equals the one built from (b, a).
type ID struct {
	Kind Kind
	Room string
	A, B string
}

// PublicID returns the ID of a public room.
func PublicID(room string) ID {
	return ID{Kind: Public, Room: room}
}

// PrivateID returns the ID of the private conversation between two distinct
// identities. The pair is stored sorted, so the function is symmetric.
// Behavior for a == b is undefined; callers must reject self-conversations.
func PrivateID(a, b string) ID {
	if b < a {
		a, b = b, a
	}
	return ID{Kind: Private, A: a, B: b}
}

// Key returns the wire key of the channel: the room name for public rooms,
// or reservedPrefix plus the sorted identity pair for private conversations.
func (id ID) Key() string {
	if id.Kind == Public {
		return id.Room
	}
	return reservedPrefix + id.A + pairSeparator + id.B
}

func (id ID) IsPublic() bool {
	return id.Kind == Public
}

// Counterpart returns the other party of a private conversation. The second
// return is false for public channels and for identities not in the pair.
func (id ID) Counterpart(name string) (string, bool) {
	if id.Kind != Private {
		return "", false
	}
	switch name {
	case id.A:
		return id.B, true
	case id.B:
		return id.A, true
	}
	return "", false
}

// ParseKey is the inverse of Key. Any key without the reserved prefix is a
// public room name.
func ParseKey(key string) ID {
	rest, ok := strings.CutPrefix(key, reservedPrefix)
	if !ok {
		return PublicID(key)
	}
	a, b, ok := strings.Cut(rest, pairSeparator)
	if !ok {
		// Malformed private key. Keep it private with one known side so
		// membership checks still fail closed for everyone else.
		return ID{Kind: Private, A: rest}
	}
	return PrivateID(a, b)
}

// IsPublicKey reports whether a wire key addresses a public room.
func IsPublicKey(key string) bool {
	return !strings.HasPrefix(key, reservedPrefix)
}

const maxRoomNameLen = 64

// ValidateRoomName checks a user-chosen public room name. Names in the
// reserved private namespace fail with ErrReservedName so they can never
// collide with a derived conversation key; other failures wrap ErrBadRoomName.
func ValidateRoomName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", models.ErrBadRoomName)
	}
	if len(name) > maxRoomNameLen {
		return fmt.Errorf("%w: longer than %d characters", models.ErrBadRoomName, maxRoomNameLen)
	}
	if strings.HasPrefix(name, reservedPrefix) {
		return models.ErrReservedName
	}
	return nil
}
