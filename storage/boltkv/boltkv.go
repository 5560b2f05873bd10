// Package boltkv provides the durable key-value backend for the router's
// slot store, encoding records with RLP inside a single bbolt bucket.
package boltkv

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("router")

// ErrPathRequired is returned when the backing file path is missing.
var ErrPathRequired = errors.New("boltkv: database path must be configured")

// Store wraps a bbolt database behind the router's Storage interface.
type Store struct {
	db *bolt.DB
}

// Open initialises the backing database, creating the bucket on first use.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltkv: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltkv: create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// KVPut RLP-encodes value and stores it under key.
func (s *Store) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("boltkv: encode %s: %w", key, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, encoded)
	})
}

// KVGet loads and RLP-decodes the value stored under key. The boolean
// reports whether the key existed.
func (s *Store) KVGet(key []byte, out interface{}) (bool, error) {
	var encoded []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(bucketName).Get(key); raw != nil {
			encoded = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if encoded == nil {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(encoded, out); err != nil {
		return false, fmt.Errorf("boltkv: decode %s: %w", key, err)
	}
	return true, nil
}

// KVDelete removes the key. Deleting an absent key is not an error.
func (s *Store) KVDelete(key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(key)
	})
}

// KVIterate invokes fn for every key carrying the supplied prefix.
func (s *Store) KVIterate(prefix []byte, fn func(key []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketName).Cursor()
		for k, _ := cursor.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cursor.Next() {
			if err := fn(append([]byte(nil), k...)); err != nil {
				return err
			}
		}
		return nil
	})
}
