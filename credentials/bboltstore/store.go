package bboltstore

import (
	"encoding/json"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/carefleet/carefleet-client/credentials"
)

var (
	bucketName  = []byte("credentials")
	pairKey     = []byte("pair")
	snapshotKey = []byte("snapshot")
)

var _ credentials.Store = (*Store)(nil)

// Store persists the credential pair and boot snapshot in a local bbolt
// file. A single Update transaction backs each write, so the pair is
// replaced atomically.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the credential database at path
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[bboltstore.Open] bolt.Open")
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[bboltstore.Open] create bucket")
	}
	return &Store{db: db}, nil
}

func (s *Store) Pair() (credentials.Pair, error) {
	var pair credentials.Pair
	err := s.get(pairKey, &pair)
	return pair, err
}

func (s *Store) SetPair(pair credentials.Pair) error {
	return s.put(pairKey, pair)
}

func (s *Store) Snapshot() (credentials.Snapshot, error) {
	var snapshot credentials.Snapshot
	err := s.get(snapshotKey, &snapshot)
	return snapshot, err
}

func (s *Store) SetSnapshot(snapshot credentials.Snapshot) error {
	return s.put(snapshotKey, snapshot)
}

// Clear removes the pair and the snapshot in one transaction
func (s *Store) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if err := b.Delete(pairKey); err != nil {
			return err
		}
		return b.Delete(snapshotKey)
	})
	return errors.Wrap(err, "[bboltstore.Clear] delete")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key []byte, out any) error {
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketName).Get(key)
		if data == nil {
			return nil // absent is the zero value, not an error
		}
		return json.Unmarshal(data, out)
	})
	return errors.Wrapf(err, "[bboltstore] get %s", key)
}

func (s *Store) put(key []byte, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "[bboltstore] marshal %s", key)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(key, data)
	})
	return errors.Wrapf(err, "[bboltstore] put %s", key)
}
