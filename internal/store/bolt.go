package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/klubi/grokterm/pkg/chat"
)

var (
	contextBucket = []byte("contexts")
	updatedBucket = []byte("updated")
)

// BoltStore persists contexts to a BoltDB file on disk. Each session is a
// key in the contexts bucket holding the JSON message array; its last save
// time lives under the same key in the updated bucket.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) a BoltDB database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	// Ensure the buckets exist.
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{contextBucket, updatedBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// ---------- Load / Save ----------

func (b *BoltStore) Load(session string) ([]chat.Message, error) {
	if err := ValidateSession(session); err != nil {
		return nil, err
	}
	var messages []chat.Message
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(contextBucket).Get([]byte(session))
		if raw == nil {
			return ErrNotFound
		}
		var err error
		if messages, err = decodeMessages(raw); err != nil {
			return fmt.Errorf("decoding session %s: %w", session, err)
		}
		return nil
	})
	return messages, err
}

func (b *BoltStore) Save(session string, messages []chat.Message) error {
	if err := ValidateSession(session); err != nil {
		return err
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	stamp, err := time.Now().MarshalText()
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(contextBucket).Put([]byte(session), raw); err != nil {
			return err
		}
		return tx.Bucket(updatedBucket).Put([]byte(session), stamp)
	})
}

// ---------- List / Delete ----------

func (b *BoltStore) List() ([]SessionInfo, error) {
	var infos []SessionInfo
	err := b.db.View(func(tx *bolt.Tx) error {
		updated := tx.Bucket(updatedBucket)
		// Keys iterate in byte order, so the result is sorted by name.
		return tx.Bucket(contextBucket).ForEach(func(k, v []byte) error {
			info := SessionInfo{Name: string(k)}
			if msgs, err := decodeMessages(v); err == nil {
				info.Messages = len(msgs)
			}
			if ts := updated.Get(k); ts != nil {
				_ = info.UpdatedAt.UnmarshalText(ts)
			}
			infos = append(infos, info)
			return nil
		})
	})
	return infos, err
}

func (b *BoltStore) Delete(session string) error {
	if err := ValidateSession(session); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(contextBucket)
		if bkt.Get([]byte(session)) == nil {
			return ErrNotFound
		}
		if err := bkt.Delete([]byte(session)); err != nil {
			return err
		}
		return tx.Bucket(updatedBucket).Delete([]byte(session))
	})
}

// ---------- Close ----------

func (b *BoltStore) Close() error {
	return b.db.Close()
}
