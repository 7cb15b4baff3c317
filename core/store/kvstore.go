// Package store implements the three-layer storage composition from spec
// section 4.1: an on-disk KeyValueStore, an in-memory Cache overlay with
// deferred atomic persistence, and a transient Staging overlay used during
// block execution.
package store

import (
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/shardflow/flownode/core/errs"
)

// gcThreshold and gcInterval mirror the size-triggered value-log GC loop
// used to keep an embedded LSM store from growing unboundedly, cross-pack
// grounded on klaytn's badger_database.go (see DESIGN.md).
const (
	gcThreshold = int64(1 << 30)
	gcInterval  = time.Minute
)

// KeyValueStore is the on-disk engine: point get/put/delete plus an atomic
// batch write, keyed by raw bytes (spec section 4.1). All failures are
// wrapped in errs.IoError.
type KeyValueStore struct {
	dir      string
	db       *badger.DB
	log      *logrus.Entry
	gcTicker *time.Ticker
	closeCh  chan struct{}
}

// Open creates or opens a KeyValueStore rooted at dir.
func Open(dir string, log *logrus.Entry) (*KeyValueStore, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return nil, errs.NewIoError("store.Open", fmt.Errorf("%s is not a directory", dir))
		}
	} else if os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return nil, errs.NewIoError("store.Open", mkErr)
		}
	} else {
		return nil, errs.NewIoError("store.Open", err)
	}

	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errs.NewIoError("store.Open", err)
	}

	kv := &KeyValueStore{
		dir:      dir,
		db:       db,
		log:      log.WithField("component", "kvstore").WithField("dir", dir),
		gcTicker: time.NewTicker(gcInterval),
		closeCh:  make(chan struct{}),
	}
	go kv.runValueLogGC()
	return kv, nil
}

// runValueLogGC periodically reclaims value-log space once the store has
// grown past gcThreshold since the last run.
func (kv *KeyValueStore) runValueLogGC() {
	lastSize := kv.currentSize()
	for {
		select {
		case <-kv.closeCh:
			return
		case <-kv.gcTicker.C:
			size := kv.currentSize()
			if size-lastSize < gcThreshold {
				continue
			}
			if err := kv.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
				kv.log.WithError(err).Warn("value log gc failed")
				continue
			}
			lastSize = kv.currentSize()
		}
	}
}

func (kv *KeyValueStore) currentSize() int64 {
	lsm, vlog := kv.db.Size()
	return lsm + vlog
}

// Get reads the value for key, returning (nil, false, nil) if absent.
func (kv *KeyValueStore) Get(key []byte) ([]byte, bool, error) {
	var out []byte
	err := kv.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, false, errs.NewIoError("Get", err)
	}
	return out, out != nil, nil
}

// Put writes key/value, committing immediately.
func (kv *KeyValueStore) Put(key, value []byte) error {
	err := kv.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return errs.NewIoError("Put", err)
	}
	return nil
}

// Delete removes key, a no-op if it is already absent.
func (kv *KeyValueStore) Delete(key []byte) error {
	err := kv.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return errs.NewIoError("Delete", err)
	}
	return nil
}

// WriteOp is one operation within an atomic Batch: Value non-nil means put,
// Value nil means delete.
type WriteOp struct {
	Key   []byte
	Value []byte
}

// WriteBatch atomically applies ops in order, matching spec section 4.1's
// "atomic batch write" contract. Either all ops land or none do.
func (kv *KeyValueStore) WriteBatch(ops []WriteOp) error {
	wb := kv.db.NewWriteBatch()
	defer wb.Cancel()
	for _, op := range ops {
		var err error
		if op.Value == nil {
			err = wb.Delete(op.Key)
		} else {
			err = wb.Set(op.Key, op.Value)
		}
		if err != nil {
			return errs.NewIoError("WriteBatch", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return errs.NewIoError("WriteBatch", err)
	}
	return nil
}

// Close stops the GC loop and closes the underlying database.
func (kv *KeyValueStore) Close() error {
	close(kv.closeCh)
	kv.gcTicker.Stop()
	if err := kv.db.Close(); err != nil {
		return errs.NewIoError("Close", err)
	}
	kv.log.Info("store closed")
	return nil
}
