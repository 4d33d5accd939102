package models

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrNameTaken     = errors.New("name already taken")
	ErrAlreadyInRoom = errors.New("already in room")
	ErrSelfMessage   = errors.New("cannot message yourself")
	ErrReservedName  = errors.New("room name is reserved")
	ErrBadRoomName   = errors.New("invalid room name")
)

// Message is a single chat message appended to exactly one channel.
// Immutable once created.
type Message struct {
	Seq       int64  `json:"seq"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp (seconds)
	Time      string `json:"time"`      // wall-clock rendering, e.g. "15:04"
	Channel   string `json:"channel"`   // wire key of the destination channel
	Author    string `json:"author"`
	Text      string `json:"text"`
	HTML      string `json:"html,omitempty"` // server-rendered markdown
	Private   bool   `json:"private,omitempty"`
}

// RoomInfo is one entry of the global public room list.
type RoomInfo struct {
	Name    string `json:"name"`
	Creator string `json:"creator"`
}

// TypingEntry describes one live typing indicator. Scope is a channel wire
// key: a public room name, or the private channel key of a conversation.
type TypingEntry struct {
	Scope string `json:"scope"`
	Name  string `json:"name"`
}

// ClientMessage represents a message sent from the client to the server.
type ClientMessage struct {
	Type ClientMessageType `json:"type"`
	Name string            `json:"name,omitempty"` // login
	Room string            `json:"room,omitempty"` // join / send / history / typing scope
	To   string            `json:"to,omitempty"`   // private recipient or typing counterpart
	Text string            `json:"text,omitempty"`
}

// ServerMessage represents a message to the client.
type ServerMessage struct {
	Type     ServerMessageType `json:"type"`
	Room     string            `json:"room,omitempty"`
	From     string            `json:"from,omitempty"`
	Text     string            `json:"text,omitempty"`
	Code     string            `json:"code,omitempty"`
	Count    int               `json:"count,omitempty"`
	Users    []string          `json:"users,omitempty"`
	Rooms    []RoomInfo        `json:"rooms,omitempty"`
	Message  *Message          `json:"message,omitempty"`
	Messages []Message         `json:"messages,omitempty"`
	Typing   []TypingEntry     `json:"typing,omitempty"`
	Unread   map[string]int    `json:"unread,omitempty"`
}

type ClientMessageType string

const (
	ClientMessageTypeLogin          ClientMessageType = "login"
	ClientMessageTypeJoin           ClientMessageType = "join"
	ClientMessageTypeSend           ClientMessageType = "send"
	ClientMessageTypeSendPrivate    ClientMessageType = "sendPrivate"
	ClientMessageTypeHistory        ClientMessageType = "history"
	ClientMessageTypePrivateHistory ClientMessageType = "privateHistory"
	ClientMessageTypeTyping         ClientMessageType = "typing"
	ClientMessageTypeStopTyping     ClientMessageType = "stopTyping"
)

type ServerMessageType string

const (
	ServerMessageTypeWelcome    ServerMessageType = "welcome"
	ServerMessageTypeRoomUsers  ServerMessageType = "roomUsers"
	ServerMessageTypeRoomList   ServerMessageType = "roomList"
	ServerMessageTypeMessage    ServerMessageType = "message"
	ServerMessageTypeHistory    ServerMessageType = "history"
	ServerMessageTypeNotice     ServerMessageType = "notice"
	ServerMessageTypeTyping     ServerMessageType = "typing"
	ServerMessageTypeStopTyping ServerMessageType = "stopTyping"
	ServerMessageTypeUnread     ServerMessageType = "unread"
	ServerMessageTypeError      ServerMessageType = "error"
)

// Error codes carried in ServerMessage.Code alongside ServerMessageTypeError.
const (
	ErrCodeNameTaken     = "name_taken"
	ErrCodeAlreadyInRoom = "already_in_room"
	ErrCodeSelfMessage   = "self_message"
	ErrCodeBadRoom       = "bad_room"
	ErrCodeBadName       = "bad_name"
)
