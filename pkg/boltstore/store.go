package boltstore

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	bbolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("boltstore: not found")

// Account is a persisted player login with its admin privileges.
type Account struct {
	Name         string
	PasswordHash []byte
	AdminFlags   uint32
	Created      time.Time
	LastLogin    time.Time
}

// Store wraps a bbolt database holding accounts and server settings.
type Store struct {
	bolt *bbolt.DB
}

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	// Ensure all buckets exist.
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketAccounts, bucketSettings} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if meta.Get(keySchema) == nil {
			return meta.Put(keySchema, intToKey(schemaVersion))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}

	return &Store{bolt: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// Schema returns the stored schema version.
func (s *Store) Schema() int {
	var v int
	s.bolt.View(func(tx *bbolt.Tx) error {
		v = keyToInt(tx.Bucket(bucketMeta).Get(keySchema))
		return nil
	})
	return v
}

// PutAccount persists an account (write-through).
func (s *Store) PutAccount(acc *Account) error {
	data, err := encodeAccount(acc)
	if err != nil {
		return fmt.Errorf("boltstore: encode account %s: %w", acc.Name, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccounts).Put(accountKey(acc.Name), data)
	})
}

// GetAccount loads the account with the given name (case-insensitive).
func (s *Store) GetAccount(name string) (*Account, error) {
	var acc *Account
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAccounts).Get(accountKey(name))
		if data == nil {
			return ErrNotFound
		}
		var err error
		acc, err = decodeAccount(data)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("boltstore: get account %s: %w", name, err)
	}
	return acc, nil
}

// DeleteAccount removes an account.
func (s *Store) DeleteAccount(name string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccounts).Delete(accountKey(name))
	})
}

// ListAccounts returns every account sorted by name.
func (s *Store) ListAccounts() ([]*Account, error) {
	var out []*Account
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			acc, err := decodeAccount(v)
			if err != nil {
				return fmt.Errorf("decode account %q: %w", string(k), err)
			}
			out = append(out, acc)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: list accounts: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SetAdminFlags updates only the admin flags of an existing account.
func (s *Store) SetAdminFlags(name string, flags uint32) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		data := b.Get(accountKey(name))
		if data == nil {
			return ErrNotFound
		}
		acc, err := decodeAccount(data)
		if err != nil {
			return err
		}
		acc.AdminFlags = flags
		enc, err := encodeAccount(acc)
		if err != nil {
			return err
		}
		return b.Put(accountKey(name), enc)
	})
}

// PutSetting stores a raw setting value.
func (s *Store) PutSetting(key string, value []byte) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSettings).Put([]byte(key), value)
	})
}

// GetSetting loads a raw setting value; ok is false if unset.
func (s *Store) GetSetting(key string) (value []byte, ok bool) {
	s.bolt.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketSettings).Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
			ok = true
		}
		return nil
	})
	return value, ok
}

// PutBool stores a boolean setting.
func (s *Store) PutBool(key string, v bool) error {
	b := []byte{0}
	if v {
		b[0] = 1
	}
	return s.PutSetting(key, b)
}

// GetBool loads a boolean setting, returning def if unset.
func (s *Store) GetBool(key string, def bool) bool {
	v, ok := s.GetSetting(key)
	if !ok || len(v) != 1 {
		return def
	}
	return v[0] == 1
}

// HasData reports whether any accounts exist.
func (s *Store) HasData() bool {
	has := false
	s.bolt.View(func(tx *bbolt.Tx) error {
		k, _ := tx.Bucket(bucketAccounts).Cursor().First()
		has = k != nil
		return nil
	})
	return has
}

// Backup creates a hot snapshot of the bbolt database using tx.WriteTo().
func (s *Store) Backup(path string) error {
	return s.bolt.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("boltstore: create backup %s: %w", path, err)
		}
		defer f.Close()
		_, err = tx.WriteTo(f)
		if err != nil {
			return fmt.Errorf("boltstore: write backup: %w", err)
		}
		log.Printf("boltstore: backup written to %s", path)
		return nil
	})
}
