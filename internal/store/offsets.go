package store

import (
	"encoding/binary"

	"github.com/boltdb/bolt"

	"github.com/Aman-CERP/mathdex/internal/errors"
	"github.com/Aman-CERP/mathdex/internal/pipeline"
)

var offsetsBucket = []byte("offsets")

// BoltOffsetStore implements pipeline.OffsetStore on a bolt database.
// Keys are 8 bytes (doc, pos), values 8 bytes (offset, length), both
// big-endian so a cursor walks records in document and position order.
type BoltOffsetStore struct {
	db *bolt.DB
}

// OpenOffsetStore opens or creates the offset database at path.
func OpenOffsetStore(path string) (*BoltOffsetStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreOpen, err)
	}
	// Durability points are chosen by Flush, not by every put.
	db.NoSync = true

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(offsetsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(errors.ErrCodeStoreOpen, err)
	}
	return &BoltOffsetStore{db: db}, nil
}

// Put writes the byte span for (doc, pos).
func (s *BoltOffsetStore) Put(doc pipeline.DocID, pos pipeline.Position, offset, nBytes uint32) error {
	var val [8]byte
	binary.BigEndian.PutUint32(val[0:4], offset)
	binary.BigEndian.PutUint32(val[4:8], nBytes)

	key := offsetKey(doc, pos)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(offsetsBucket).Put(key[:], val[:])
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, err)
	}
	return nil
}

// Get returns the byte span recorded for (doc, pos), with ok=false when
// no record exists.
func (s *BoltOffsetStore) Get(doc pipeline.DocID, pos pipeline.Position) (offset, nBytes uint32, ok bool, err error) {
	key := offsetKey(doc, pos)
	err = s.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(offsetsBucket).Get(key[:])
		if val == nil {
			return nil
		}
		offset = binary.BigEndian.Uint32(val[0:4])
		nBytes = binary.BigEndian.Uint32(val[4:8])
		ok = true
		return nil
	})
	return offset, nBytes, ok, err
}

// CountForDoc returns the number of offset records stored for doc.
func (s *BoltOffsetStore) CountForDoc(doc pipeline.DocID) (int, error) {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(doc))

	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(offsetsBucket).Cursor()
		for k, _ := c.Seek(prefix[:]); k != nil && binary.BigEndian.Uint32(k[0:4]) == uint32(doc); k, _ = c.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Flush forces the database to durable storage.
func (s *BoltOffsetStore) Flush() error {
	if err := s.db.Sync(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreFlush, err)
	}
	return nil
}

// Close closes the database.
func (s *BoltOffsetStore) Close() error {
	return s.db.Close()
}

// offsetKey packs (doc, pos) big-endian.
func offsetKey(doc pipeline.DocID, pos pipeline.Position) [8]byte {
	var key [8]byte
	binary.BigEndian.PutUint32(key[0:4], uint32(doc))
	binary.BigEndian.PutUint32(key[4:8], uint32(pos))
	return key
}
