package store

import (
	"encoding/json"

	"github.com/boltdb/bolt"

	"github.com/Aman-CERP/mathdex/internal/errors"
	"github.com/Aman-CERP/mathdex/internal/pipeline"
)

var mathBucket = []byte("expressions")

// BoltMathIndex implements pipeline.MathIndex on a bolt database.
// Subpath sets are stored per (doc, pos) under the same key layout as
// the offset store, so an expression's entry and its byte span share
// coordinates.
type BoltMathIndex struct {
	db *bolt.DB
}

// OpenMathIndex opens or creates the math index at path.
func OpenMathIndex(path string) (*BoltMathIndex, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreOpen, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(mathBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(errors.ErrCodeStoreOpen, err)
	}
	return &BoltMathIndex{db: db}, nil
}

// AddExpression stores the subpath set of one parsed expression.
func (m *BoltMathIndex) AddExpression(doc pipeline.DocID, pos pipeline.Position, subpaths []string) error {
	val, err := json.Marshal(subpaths)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, err)
	}
	key := offsetKey(doc, pos)
	err = m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(mathBucket).Put(key[:], val)
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWrite, err)
	}
	return nil
}

// Lookup returns the subpaths stored at (doc, pos), ok=false if none.
func (m *BoltMathIndex) Lookup(doc pipeline.DocID, pos pipeline.Position) (subpaths []string, ok bool, err error) {
	key := offsetKey(doc, pos)
	err = m.db.View(func(tx *bolt.Tx) error {
		val := tx.Bucket(mathBucket).Get(key[:])
		if val == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(val, &subpaths)
	})
	return subpaths, ok, err
}

// Count returns the number of stored expressions.
func (m *BoltMathIndex) Count() (int, error) {
	count := 0
	err := m.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(mathBucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Close closes the database.
func (m *BoltMathIndex) Close() error {
	return m.db.Close()
}
