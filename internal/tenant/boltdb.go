package tenant

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const (
	bucketName = "api_keys"
	valueSize  = 16
)

// BoltDBStore implements Store using BoltDB.
// Keys are stored as SHA-256 digests, never in plain text.
type BoltDBStore struct {
	db *bbolt.DB
}

// NewBoltDBStore opens (or creates) the API key registry
func NewBoltDBStore(dbPath string) (*BoltDBStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create tenant registry directory: %w", err)
		}
	}

	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb (file may be locked by another process): %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	log.Info().
		Str("db_path", dbPath).
		Msg("BoltDB tenant registry initialized")

	return &BoltDBStore{db: db}, nil
}

// Get returns the tenant registered for an API key
func (s *BoltDBStore) Get(ctx context.Context, apiKey string) (Tenant, bool, error) {
	var (
		t     Tenant
		found bool
	)

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		val := b.Get(makeKey(apiKey))
		if val == nil {
			return nil
		}
		if len(val) < valueSize {
			return fmt.Errorf("invalid tenant value")
		}

		t = decodeTenant(val)
		found = true
		return nil
	})
	if err != nil {
		return Tenant{}, false, fmt.Errorf("failed to get tenant: %w", err)
	}

	return t, found, nil
}

// Put registers or replaces an API key
func (s *BoltDBStore) Put(ctx context.Context, apiKey string, t Tenant) error {
	if apiKey == "" {
		return fmt.Errorf("api key is required")
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put(makeKey(apiKey), encodeTenant(t))
	})
	if err != nil {
		return fmt.Errorf("failed to put tenant: %w", err)
	}

	log.Debug().
		Int64("client_id", t.ClientID).
		Int64("instance_id", t.InstanceID).
		Msg("API key registered")

	return nil
}

// Delete removes an API key
func (s *BoltDBStore) Delete(ctx context.Context, apiKey string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Delete(makeKey(apiKey))
	})
	if err != nil {
		return fmt.Errorf("failed to delete tenant: %w", err)
	}
	return nil
}

// Count returns the number of registered keys
func (s *BoltDBStore) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		count = b.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count tenants: %w", err)
	}
	return count, nil
}

// Close closes the BoltDB database
func (s *BoltDBStore) Close() error {
	log.Info().Msg("Closing BoltDB tenant registry")
	return s.db.Close()
}

func makeKey(apiKey string) []byte {
	sum := sha256.Sum256([]byte(apiKey))
	return []byte(hex.EncodeToString(sum[:]))
}

func encodeTenant(t Tenant) []byte {
	val := make([]byte, valueSize)
	binary.BigEndian.PutUint64(val[:8], uint64(t.ClientID))
	binary.BigEndian.PutUint64(val[8:], uint64(t.InstanceID))
	return val
}

func decodeTenant(val []byte) Tenant {
	return Tenant{
		ClientID:   int64(binary.BigEndian.Uint64(val[:8])),
		InstanceID: int64(binary.BigEndian.Uint64(val[8:16])),
	}
}
