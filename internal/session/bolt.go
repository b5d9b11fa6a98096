package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"valuebot/internal/domain"
)

var bucketSessions = []byte("sessions")

// BoltStore keeps sessions in a bbolt file so that users waiting for a
// value survive restarts.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

func NewBoltStore(path string) (*BoltStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("session db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sessions bucket: %w", err)
	}
	return &BoltStore{db: db, now: time.Now}, nil
}

func sessionKey(userID int64) []byte {
	return []byte(strconv.FormatInt(userID, 10))
}

func (b *BoltStore) GetOrCreate(_ context.Context, userID int64) (domain.Session, error) {
	s := domain.NewSession(userID)
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSessions).Get(sessionKey(userID))
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &s)
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session %d: %w", userID, err)
	}
	return s, nil
}

func (b *BoltStore) Save(_ context.Context, s domain.Session) error {
	s.UpdatedAt = b.now().UTC()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Put(sessionKey(s.UserID), data)
	})
	if err != nil {
		return fmt.Errorf("save session %d: %w", s.UserID, err)
	}
	return nil
}

func (b *BoltStore) Reset(_ context.Context, userID int64) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete(sessionKey(userID))
	})
	if err != nil {
		return fmt.Errorf("reset session %d: %w", userID, err)
	}
	return nil
}

func (b *BoltStore) Len(_ context.Context) (int, error) {
	n := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketSessions).Stats().KeyN
		return nil
	})
	return n, err
}

func (b *BoltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}
