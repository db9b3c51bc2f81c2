package services

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	bolt "go.etcd.io/bbolt"
)

// BoltDB implements the Store interface using a BoltDB backend for the conversation the chat backend
// replays to the language model. Exchanges are kept in one bucket keyed by a big-endian sequence number,
// so cursor order is insertion order.
type BoltDB struct {
	db *bolt.DB
}

var exchangesBucket = []byte("exchanges")

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the database
// with required buckets and returns an error if the database cannot be opened or initialized. The
// database file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(exchangesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return BoltDB{}, fmt.Errorf("failed to create bucket: %w", err)
	}

	return BoltDB{db: db}, nil
}

func sequenceKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// Exchanges returns up to limit of the most recent exchanges, oldest first. A limit of zero or less
// returns every stored exchange.
func (b BoltDB) Exchanges(_ context.Context, limit int) ([]models.Exchange, error) {
	var exchanges []models.Exchange
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(exchangesBucket)
		if bk == nil {
			return nil
		}

		c := bk.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(exchanges) == limit {
				break
			}
			var ex models.Exchange
			if err := json.Unmarshal(v, &ex); err != nil {
				return fmt.Errorf("failed to unmarshal exchange: %w", err)
			}
			exchanges = append(exchanges, ex)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(exchanges)
	return exchanges, nil
}

// AddExchange stores a new exchange. It generates a unique ID for the exchange by combining a sequence
// number with the exchange's original ID, and returns the new ID or an error if the operation fails.
func (b BoltDB) AddExchange(_ context.Context, ex models.Exchange) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(exchangesBucket)
		if bk == nil {
			return fmt.Errorf("bucket %s not found", exchangesBucket)
		}

		seq, err := bk.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		newID = fmt.Sprintf("%d-%s", seq, ex.ID)
		ex.ID = newID

		v, err := json.Marshal(ex)
		if err != nil {
			return fmt.Errorf("failed to marshal exchange: %w", err)
		}

		return bk.Put(sequenceKey(seq), v)
	})

	return newID, err
}

// Reset deletes every stored exchange. Sequence numbers restart from one.
func (b BoltDB) Reset(context.Context) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(exchangesBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to delete bucket: %w", err)
		}
		_, err := tx.CreateBucket(exchangesBucket)
		return err
	})
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}
