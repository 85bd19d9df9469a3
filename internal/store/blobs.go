package store

import (
	"encoding/binary"

	"github.com/boltdb/bolt"

	"github.com/Aman-CERP/mathdex/internal/errors"
	"github.com/Aman-CERP/mathdex/internal/pipeline"
)

var blobsBucket = []byte("blobs")

// BoltBlobStore implements pipeline.BlobStore on a bolt database. The
// pipeline opens two independent instances, one for URLs and one for
// compressed document text.
type BoltBlobStore struct {
	db *bolt.DB
}

// OpenBlobStore opens or creates a blob database at path.
func OpenBlobStore(path string) (*BoltBlobStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreOpen, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(blobsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(errors.ErrCodeStoreOpen, err)
	}
	return &BoltBlobStore{db: db}, nil
}

// Write stores data under doc, replacing any previous blob.
func (s *BoltBlobStore) Write(doc pipeline.DocID, data []byte) error {
	key := blobKey(doc)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(blobsBucket).Put(key[:], data)
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, err)
	}
	return nil
}

// Read returns the blob stored under doc, with ok=false when absent.
func (s *BoltBlobStore) Read(doc pipeline.DocID) (data []byte, ok bool, err error) {
	key := blobKey(doc)
	err = s.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(blobsBucket).Get(key[:])
		if val == nil {
			return nil
		}
		data = append([]byte(nil), val...)
		ok = true
		return nil
	})
	return data, ok, err
}

// Count returns the number of stored blobs.
func (s *BoltBlobStore) Count() (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(blobsBucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Close closes the database.
func (s *BoltBlobStore) Close() error {
	return s.db.Close()
}

func blobKey(doc pipeline.DocID) [4]byte {
	var key [4]byte
	binary.BigEndian.PutUint32(key[:], uint32(doc))
	return key
}
