package services

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// DefaultCacheEntries is the capacity of a BoltCache created with a non-positive size.
const DefaultCacheEntries = 100

var (
	responsesBucket = []byte("responses")
	recencyBucket   = []byte("recency")
)

// BoltCache implements ResponseCache on a BoltDB file. It holds at most maxEntries responses and
// evicts the least recently used one when full. Recency is tracked in a second bucket keyed by a
// monotonic sequence, so the oldest key is always the first one.
type BoltCache struct {
	db         *bolt.DB
	maxEntries int
}

type cachedResponse struct {
	Response string `json:"response"`
	Seq      uint64 `json:"seq"`
}

// NewBoltCache opens or creates the cache file at path. The file is created with 0600 permissions.
func NewBoltCache(path string, maxEntries int) (BoltCache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltCache{}, errors.Wrap(err, "failed to open bolt db")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(responsesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(recencyBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return BoltCache{}, errors.Wrap(err, "failed to create buckets")
	}

	return BoltCache{db: db, maxEntries: maxEntries}, nil
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

// Get returns the response stored under key and marks it as most recently used.
func (b BoltCache) Get(_ context.Context, key string) (string, bool, error) {
	var (
		resp string
		ok   bool
	)
	err := b.db.Update(func(tx *bolt.Tx) error {
		responses := tx.Bucket(responsesBucket)
		v := responses.Get([]byte(key))
		if v == nil {
			return nil
		}

		var cr cachedResponse
		if err := json.Unmarshal(v, &cr); err != nil {
			return errors.Wrap(err, "failed to unmarshal cached response")
		}
		resp, ok = cr.Response, true

		return touch(tx, key, cr)
	})
	if err != nil {
		return "", false, err
	}
	return resp, ok, nil
}

// Put stores response under key, then evicts the least recently used entries beyond capacity.
func (b BoltCache) Put(_ context.Context, key, response string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		cr := cachedResponse{Response: response}
		if v := tx.Bucket(responsesBucket).Get([]byte(key)); v != nil {
			var old cachedResponse
			if err := json.Unmarshal(v, &old); err == nil {
				cr.Seq = old.Seq
			}
		}

		if err := touch(tx, key, cr); err != nil {
			return err
		}

		return b.evict(tx)
	})
}

// Len returns the number of cached responses.
func (b BoltCache) Len() (int, error) {
	n := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(responsesBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the underlying database.
func (b BoltCache) Close() error {
	return b.db.Close()
}

// touch writes cr under key with a fresh sequence number, dropping its previous recency record.
func touch(tx *bolt.Tx, key string, cr cachedResponse) error {
	recency := tx.Bucket(recencyBucket)
	if cr.Seq != 0 {
		if err := recency.Delete(seqKey(cr.Seq)); err != nil {
			return errors.Wrap(err, "failed to delete recency record")
		}
	}

	seq, err := recency.NextSequence()
	if err != nil {
		return errors.Wrap(err, "failed to get next sequence")
	}
	cr.Seq = seq
	if err := recency.Put(seqKey(seq), []byte(key)); err != nil {
		return errors.Wrap(err, "failed to put recency record")
	}

	v, err := json.Marshal(cr)
	if err != nil {
		return errors.Wrap(err, "failed to marshal cached response")
	}
	return tx.Bucket(responsesBucket).Put([]byte(key), v)
}

func (b BoltCache) evict(tx *bolt.Tx) error {
	recency := tx.Bucket(recencyBucket)

	var seqs [][]byte
	if err := recency.ForEach(func(k, _ []byte) error {
		seqs = append(seqs, k)
		return nil
	}); err != nil {
		return err
	}

	responses := tx.Bucket(responsesBucket)
	for i := 0; i < len(seqs)-b.maxEntries; i++ {
		key := recency.Get(seqs[i])
		if err := responses.Delete(key); err != nil {
			return errors.Wrap(err, "failed to evict response")
		}
		if err := recency.Delete(seqs[i]); err != nil {
			return errors.Wrap(err, "failed to evict recency record")
		}
	}
	return nil
}
