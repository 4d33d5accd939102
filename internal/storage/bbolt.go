package storage

import (
	"encoding/binary"
	"fmt"
	"time"

	"palaver/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketIdentities    = []byte("identities")
	bucketMessages      = []byte("messages")
	bucketSubscriptions = []byte("subscriptions")
)

// BboltStorage is the durable write-through sink. The live coordinator writes
// through it on a best-effort basis and never reads it back.
type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketIdentities); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMessages); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketSubscriptions); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// SaveIdentity stores new or updated identity attribution.
func (s *BboltStorage) SaveIdentity(name, connID, room string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketIdentities)
		dbIdentity := &DBIdentity{
			Name:     name,
			ConnID:   connID,
			Room:     room,
			LastSeen: time.Now().Unix(),
		}

		data, err := dbIdentity.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbIdentity.Key(), data)
	})
}

// ListIdentities returns all identity records stored in the database.
func (s *BboltStorage) ListIdentities() ([]DBIdentity, error) {
	var identities []DBIdentity
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketIdentities)
		return b.ForEach(func(k, v []byte) error {
			var dbIdentity DBIdentity
			if err := dbIdentity.UnmarshalBinary(v); err != nil {
				return err
			}
			identities = append(identities, dbIdentity)
			return nil
		})
	})
	return identities, err
}

// SaveMessage appends a message record under its channel's bucket. Keys come
// from the bucket's sequence counter, so they never collide, even across a
// live channel's empty-and-recreate cycle. Callers write from fire-and-forget
// goroutines, so key order between near-simultaneous messages is best effort.
func (s *BboltStorage) SaveMessage(message models.Message) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if message.Channel == "" {
			return fmt.Errorf("message missing channel key")
		}

		mainBucket := tx.Bucket(bucketMessages)
		chanBucket, err := mainBucket.CreateBucketIfNotExists([]byte(message.Channel))
		if err != nil {
			return fmt.Errorf("failed to create channel bucket: %w", err)
		}

		seq, err := chanBucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}

		dbMessage := DBMessage{
			Timestamp: message.Timestamp,
			Time:      message.Time,
			Channel:   message.Channel,
			Author:    message.Author,
			Text:      message.Text,
			Private:   message.Private,
		}

		data, err := dbMessage.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return chanBucket.Put(key, data)
	})
}

// ListMessages returns a channel's message records in stored order.
func (s *BboltStorage) ListMessages(channelKey string) ([]DBMessage, error) {
	var messages []DBMessage
	err := s.db.View(func(tx *bbolt.Tx) error {
		mainBucket := tx.Bucket(bucketMessages)
		chanBucket := mainBucket.Bucket([]byte(channelKey))
		if chanBucket == nil {
			return nil // no messages for this channel
		}

		return chanBucket.ForEach(func(k, v []byte) error {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, dbMsg)
			return nil
		})
	})
	return messages, err
}

// SaveSubscription stores an identity's Web Push subscription blob.
func (s *BboltStorage) SaveSubscription(name string, subscription []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSubscriptions)
		dbSub := &DBSubscription{
			Name:         name,
			Subscription: subscription,
		}
		data, err := dbSub.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbSub.Key(), data)
	})
}

// GetSubscription returns an identity's stored subscription blob.
func (s *BboltStorage) GetSubscription(name string) ([]byte, error) {
	var subscription []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSubscriptions)
		data := b.Get([]byte(name))
		if data == nil {
			return models.ErrNotFound
		}
		var dbSub DBSubscription
		if err := dbSub.UnmarshalBinary(data); err != nil {
			return err
		}
		subscription = dbSub.Subscription
		return nil
	})
	return subscription, err
}

// DeleteSubscription removes an identity's subscription.
func (s *BboltStorage) DeleteSubscription(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSubscriptions)
		return b.Delete([]byte(name))
	})
}
