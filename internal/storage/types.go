package storage

import (
	"encoding"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// DBIdentity is the durable record of a known identity: name, last connection
// reference and last room. Write-through only; never read back into live state.
type DBIdentity struct {
	Name     string `msgpack:"name"`
	ConnID   string `msgpack:"connId"`
	Room     string `msgpack:"room"`
	LastSeen int64  `msgpack:"lastSeen"`
}

func (u *DBIdentity) Key() []byte {
	return []byte(u.Name)
}

func (u *DBIdentity) MarshalBinary() (data []byte, err error) {
	type alias DBIdentity
	return msgpack.Marshal((*alias)(u))
}

func (u *DBIdentity) UnmarshalBinary(data []byte) error {
	type alias DBIdentity
	return msgpack.Unmarshal(data, (*alias)(u))
}

// DBMessage is the durable record of one message. Stored under its channel's
// bucket with a bucket-assigned sequence key; keys are unique per channel,
// write-through order between concurrent writers is best effort.
type DBMessage struct {
	Timestamp int64  `msgpack:"timestamp"`
	Time      string `msgpack:"time"`
	Channel   string `msgpack:"channel"`
	Author    string `msgpack:"author"`
	Text      string `msgpack:"text"`
	Private   bool   `msgpack:"private"`
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

// DBSubscription holds one identity's Web Push subscription as the JSON blob
// the browser produced.
type DBSubscription struct {
	Name         string `msgpack:"name"`
	Subscription []byte `msgpack:"subscription"`
}

func (s *DBSubscription) Key() []byte {
	return []byte(s.Name)
}

func (s *DBSubscription) MarshalBinary() (data []byte, err error) {
	type alias DBSubscription
	return msgpack.Marshal((*alias)(s))
}

func (s *DBSubscription) UnmarshalBinary(data []byte) error {
	type alias DBSubscription
	return msgpack.Unmarshal(data, (*alias)(s))
}
