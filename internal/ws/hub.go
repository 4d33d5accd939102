package ws

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/c-pro/geche"
	"github.com/rs/zerolog"

	"palaver/internal/channel"
	"palaver/internal/content"
	"palaver/internal/metrics"
	"palaver/internal/models"
)

const (
	// BootstrapRoom always exists and is where every new session lands.
	BootstrapRoom        = "general"
	bootstrapRoomCreator = "System"

	sendBufferSize = 100
)

// Session is the live binding between one connection and one claimed
// identity. At most one Session per identity, one Session per connection.
type Session struct {
	ConnID string
	Name   string
	Room   channel.ID
}

// Store is the optional durable write-through sink. Writes are fire-and-forget
// and never read back into live state.
type Store interface {
	SaveIdentity(name, connID, room string) error
	SaveMessage(msg models.Message) error
}

// Pusher is the optional offline-notification sink.
type Pusher interface {
	NotifyUnread(name, from string, count int)
}

type Config struct {
	HistoryLimit int
	TypingTTL    time.Duration
	Store        Store  // may be nil
	Pusher       Pusher // may be nil
	Logger       zerolog.Logger
}

// Hub is the coordination engine. All shared state lives behind one mutex so
// every inbound event is applied as a single atomic unit: no two events ever
// interleave mid-mutation, and fan-out happens in acceptance order.
type Hub struct {
	mu sync.Mutex

	// connID -> outbound channel, for every attached connection (logged in
	// or not: the global room list reaches pre-login connections too).
	conns map[string]chan models.ServerMessage

	// connID -> session, plus the identity index.
	sessions map[string]*Session
	byName   map[string]string

	// Public room directory in creation order, with creator attribution.
	// Rooms persist in the list even when empty.
	roomOrder    []string
	roomCreators map[string]string

	logs   *channel.Log
	unread geche.Geche[string, int]
	typing geche.Geche[string, models.TypingEntry]

	store  Store
	pusher Pusher
	logger zerolog.Logger
	now    func() time.Time
}

func NewHub(ctx context.Context, cfg Config) *Hub {
	h := &Hub{
		conns:        make(map[string]chan models.ServerMessage),
		sessions:     make(map[string]*Session),
		byName:       make(map[string]string),
		roomOrder:    []string{BootstrapRoom},
		roomCreators: map[string]string{BootstrapRoom: bootstrapRoomCreator},
		logs:         channel.NewLog(cfg.HistoryLimit),
		unread:       geche.NewMapCache[string, int](),
		typing:       geche.NewMapTTLCache[string, models.TypingEntry](ctx, cfg.TypingTTL, time.Minute),
		store:        cfg.Store,
		pusher:       cfg.Pusher,
		logger:       cfg.Logger,
		now:          time.Now,
	}
	metrics.Rooms.Set(float64(len(h.roomOrder)))
	return h
}

// Attach registers a connection and returns its outbound channel. Pushes to a
// full channel are dropped rather than blocking a mutation; backpressure is
// the transport's problem.
func (h *Hub) Attach(connID string) chan models.ServerMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.ServerMessage, sendBufferSize)
	h.conns[connID] = ch
	metrics.Connections.Set(float64(len(h.conns)))
	return ch
}

// Detach releases the connection and its session, if any. Idempotent: a
// second call for the same connection is a no-op.
func (h *Hub) Detach(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, attached := h.conns[connID]
	if attached {
		delete(h.conns, connID)
		close(ch)
	}
	metrics.Connections.Set(float64(len(h.conns)))

	s, ok := h.sessions[connID]
	if !ok {
		return
	}
	delete(h.sessions, connID)
	delete(h.byName, s.Name)
	metrics.Sessions.Set(float64(len(h.sessions)))

	h.dropTypingFor(s.Name)
	h.dropUnreadFor(s.Name)
	h.dropPrivateLogsFor(s.Name)

	if s.Room.IsPublic() {
		h.broadcastRoomUsers(s.Room)
		h.notifyRoom(s.Room, s.Name+" left the room", "")
	}
	h.cleanupIfEmpty(s.Room)

	h.logger.Info().Str("name", s.Name).Str("conn", connID).Msg("session released")
}

// Login claims an identity for the connection and binds it to the bootstrap
// room. Fails with ErrNameTaken while another live session holds the exact
// same name. A repeated login on the same connection is idempotent.
func (h *Hub) Login(connID, name string) (string, error) {
	if err := content.ValidateName(name); err != nil {
		return "", err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return "", models.ErrNotFound
	}
	if s, ok := h.sessions[connID]; ok {
		return s.Room.Key(), nil
	}
	if _, taken := h.byName[name]; taken {
		return "", models.ErrNameTaken
	}

	room := channel.PublicID(BootstrapRoom)
	s := &Session{ConnID: connID, Name: name, Room: room}
	h.sessions[connID] = s
	h.byName[name] = connID
	metrics.Sessions.Set(float64(len(h.sessions)))

	start := h.now()
	h.broadcastRoomUsers(room)
	h.broadcastRoomList()
	h.notifyRoom(room, name+" joined the general room", "")
	h.sendToConn(connID, models.ServerMessage{
		Type:   models.ServerMessageTypeWelcome,
		Room:   room.Key(),
		Rooms:  h.roomList(),
		Users:  h.memberNames(room),
		Typing: h.typingSnapshot(name),
		Unread: h.unreadSnapshot(name),
	})
	metrics.FanoutLatency.Observe(time.Since(start).Seconds())

	h.writeIdentity(name, connID, room.Key())
	h.logger.Info().Str("name", name).Str("conn", connID).Msg("identity claimed")
	return room.Key(), nil
}

// JoinRoom moves the session into a public room, creating and listing the
// room on first use. Fails with ErrAlreadyInRoom when the session is already
// there (and then nothing is broadcast), with ErrReservedName for names in
// the private namespace, and with ErrBadRoomName for unusable names.
func (h *Hub) JoinRoom(connID, name string) (string, error) {
	if err := channel.ValidateRoomName(name); err != nil {
		return "", err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok {
		return "", models.ErrNotFound
	}
	return h.changeRoom(s, channel.PublicID(name))
}

// changeRoom detaches the session from its current channel, attaches it to
// the target, and sends the target's history as a one-shot reply. Join/leave
// notices fire for public rooms only; private channels stay quiet. Callers
// must hold h.mu.
func (h *Hub) changeRoom(s *Session, target channel.ID) (string, error) {
	if target.Key() == s.Room.Key() {
		return "", models.ErrAlreadyInRoom
	}

	old := s.Room
	if target.IsPublic() {
		h.ensurePublicRoom(target.Room, s.Name)
	}
	s.Room = target

	if old.IsPublic() {
		h.broadcastRoomUsers(old)
		h.notifyRoom(old, s.Name+" left the room", "")
	}
	if target.IsPublic() {
		h.broadcastRoomUsers(target)
		h.notifyRoom(target, s.Name+" joined the room", "")
	}
	h.cleanupIfEmpty(old)

	h.sendToConn(s.ConnID, models.ServerMessage{
		Type:     models.ServerMessageTypeHistory,
		Room:     target.Key(),
		Messages: h.logs.History(target.Key()),
	})

	h.writeIdentity(s.Name, s.ConnID, target.Key())
	h.logger.Debug().Str("name", s.Name).Str("room", target.Key()).Msg("room changed")
	return target.Key(), nil
}

// SendRoom routes a public message. The author's current room must equal the
// destination; a mismatch means a stale or forged request and is dropped
// without an error surfacing to the caller.
func (h *Hub) SendRoom(connID, room, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok {
		return
	}
	if !s.Room.IsPublic() || s.Room.Room != room {
		metrics.MessagesTotal.WithLabelValues("dropped").Inc()
		h.logger.Debug().Str("name", s.Name).Str("room", room).Msg("stale room send dropped")
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	msg := h.logs.Append(s.Room.Key(), h.buildMessage(s.Name, s.Room.Key(), text, false))

	start := h.now()
	h.broadcastRoom(s.Room, models.ServerMessage{
		Type:    models.ServerMessageTypeMessage,
		Room:    s.Room.Key(),
		Message: &msg,
	}, "")
	metrics.FanoutLatency.Observe(time.Since(start).Seconds())
	metrics.MessagesTotal.WithLabelValues("public").Inc()

	h.writeMessage(msg)
}

// SendPrivate routes a direct message. Sender and recipient need not share a
// room; the private channel is materialized on first use. An offline
// recipient still gets the message appended for history, just no live push.
func (h *Hub) SendPrivate(connID, to, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok {
		return models.ErrNotFound
	}
	if to == s.Name {
		return models.ErrSelfMessage
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	id := channel.PrivateID(s.Name, to)
	key := id.Key()
	msg := h.logs.Append(key, h.buildMessage(s.Name, key, text, true))

	push := models.ServerMessage{
		Type:    models.ServerMessageTypeMessage,
		Room:    key,
		From:    s.Name,
		Message: &msg,
	}

	start := h.now()
	h.sendToConn(connID, push)

	recipientConn, online := h.byName[to]
	if online {
		h.sendToConn(recipientConn, push)
	}

	// Unread accrual is suppressed only while the recipient is actively
	// viewing this exact conversation.
	viewing := online && h.sessions[recipientConn].Room.Key() == key
	if !viewing {
		count := h.bumpUnread(to, s.Name)
		if online {
			h.sendToConn(recipientConn, models.ServerMessage{
				Type:  models.ServerMessageTypeUnread,
				From:  s.Name,
				Count: count,
			})
		} else if h.pusher != nil {
			go h.pusher.NotifyUnread(to, s.Name, count)
		}
	}
	metrics.FanoutLatency.Observe(time.Since(start).Seconds())
	metrics.MessagesTotal.WithLabelValues("private").Inc()

	h.writeMessage(msg)
	return nil
}

// History sends a channel's retained messages to the connection as a one-shot
// reply. Private channels are only readable by their two parties.
func (h *Hub) History(connID, key string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok {
		return models.ErrNotFound
	}

	id := channel.ParseKey(key)
	if !id.IsPublic() {
		if _, member := id.Counterpart(s.Name); !member {
			return models.ErrNotFound
		}
	}

	h.sendToConn(connID, models.ServerMessage{
		Type:     models.ServerMessageTypeHistory,
		Room:     key,
		Messages: h.logs.History(key),
	})
	return nil
}

// PrivateHistory moves the session into the conversation with counterpart,
// replies with its history, and resets the unread counter for that sender.
func (h *Hub) PrivateHistory(connID, counterpart string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[connID]
	if !ok {
		return models.ErrNotFound
	}
	if counterpart == s.Name {
		return models.ErrSelfMessage
	}

	id := channel.PrivateID(s.Name, counterpart)
	if s.Room.Key() == id.Key() {
		// Already viewing; just replay history.
		h.sendToConn(connID, models.ServerMessage{
			Type:     models.ServerMessageTypeHistory,
			Room:     id.Key(),
			Messages: h.logs.History(id.Key()),
		})
	} else if _, err := h.changeRoom(s, id); err != nil {
		return err
	}

	h.resetUnread(s.Name, counterpart)
	return nil
}

// Rooms returns the public room list (name + creator pairs) in creation order.
func (h *Hub) Rooms() []models.RoomInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.roomList()
}

// Online returns the sorted names of all live identities.
func (h *Hub) Online() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := make([]string, 0, len(h.byName))
	for name := range h.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsOnline reports whether an identity has a live session.
func (h *Hub) IsOnline(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.byName[name]
	return ok
}

// Internals. Callers hold h.mu.

func (h *Hub) buildMessage(author, key, text string, private bool) models.Message {
	now := h.now()
	return models.Message{
		Timestamp: now.Unix(),
		Time:      now.Format("15:04"),
		Channel:   key,
		Author:    author,
		Text:      content.Sanitize(text),
		HTML:      content.Render(text),
		Private:   private,
	}
}

func (h *Hub) ensurePublicRoom(name, creator string) {
	if _, ok := h.roomCreators[name]; ok {
		return
	}
	h.roomOrder = append(h.roomOrder, name)
	h.roomCreators[name] = creator
	metrics.Rooms.Set(float64(len(h.roomOrder)))
	h.broadcastRoomList()
}

func (h *Hub) roomList() []models.RoomInfo {
	rooms := make([]models.RoomInfo, 0, len(h.roomOrder))
	for _, name := range h.roomOrder {
		rooms = append(rooms, models.RoomInfo{Name: name, Creator: h.roomCreators[name]})
	}
	return rooms
}

// membersOf scans all sessions for current-room equality. O(sessions), which
// is fine at chat-room scale.
func (h *Hub) membersOf(id channel.ID) []*Session {
	var members []*Session
	key := id.Key()
	for _, s := range h.sessions {
		if s.Room.Key() == key {
			members = append(members, s)
		}
	}
	return members
}

func (h *Hub) memberNames(id channel.ID) []string {
	members := h.membersOf(id)
	names := make([]string, 0, len(members))
	for _, s := range members {
		names = append(names, s.Name)
	}
	sort.Strings(names)
	return names
}

// cleanupIfEmpty purges a channel's message history once its membership drops
// to zero. Public rooms stay in the directory; only their history goes.
func (h *Hub) cleanupIfEmpty(id channel.ID) {
	if len(h.membersOf(id)) == 0 {
		h.logs.Purge(id.Key())
	}
}

// dropPrivateLogsFor purges every conversation a departing identity is party
// to once the counterpart has no live session either. Viewing is irrelevant
// here: a conversation neither party ever opened must still die with its
// pair, or later claimants of the same names could read it.
func (h *Hub) dropPrivateLogsFor(name string) {
	for _, key := range h.logs.Keys() {
		id := channel.ParseKey(key)
		if id.IsPublic() {
			continue
		}
		other, member := id.Counterpart(name)
		if !member {
			continue
		}
		if _, online := h.byName[other]; !online {
			h.logs.Purge(key)
		}
	}
}

func (h *Hub) sendToConn(connID string, msg models.ServerMessage) {
	ch, ok := h.conns[connID]
	if !ok {
		return
	}
	select {
	case ch <- msg:
	default:
		h.logger.Warn().Str("conn", connID).Msg("send buffer full, push dropped")
	}
}

func (h *Hub) sendToName(name string, msg models.ServerMessage) {
	if connID, ok := h.byName[name]; ok {
		h.sendToConn(connID, msg)
	}
}

func (h *Hub) broadcastRoom(id channel.ID, msg models.ServerMessage, exclude string) {
	key := id.Key()
	for _, s := range h.sessions {
		if s.Room.Key() != key || s.Name == exclude {
			continue
		}
		h.sendToConn(s.ConnID, msg)
	}
}

func (h *Hub) broadcastRoomUsers(id channel.ID) {
	h.broadcastRoom(id, models.ServerMessage{
		Type:  models.ServerMessageTypeRoomUsers,
		Room:  id.Key(),
		Users: h.memberNames(id),
	}, "")
}

func (h *Hub) broadcastRoomList() {
	msg := models.ServerMessage{
		Type:  models.ServerMessageTypeRoomList,
		Rooms: h.roomList(),
	}
	for connID := range h.conns {
		h.sendToConn(connID, msg)
	}
}

func (h *Hub) notifyRoom(id channel.ID, text, exclude string) {
	h.broadcastRoom(id, models.ServerMessage{
		Type: models.ServerMessageTypeNotice,
		Room: id.Key(),
		Text: text,
	}, exclude)
}

func (h *Hub) writeMessage(msg models.Message) {
	if h.store == nil {
		return
	}
	go func() {
		if err := h.store.SaveMessage(msg); err != nil {
			h.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("message write-through failed")
		}
	}()
}

func (h *Hub) writeIdentity(name, connID, room string) {
	if h.store == nil {
		return
	}
	go func() {
		if err := h.store.SaveIdentity(name, connID, room); err != nil {
			h.logger.Warn().Err(err).Str("name", name).Msg("identity write-through failed")
		}
	}()
}
