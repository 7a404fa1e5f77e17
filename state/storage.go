package state

import (
	"bytes"
	"errors"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Batch is batch write interface
type Batch interface {
	// Put puts key and value into batch. It can not return error because actual writing is done with Write method
	Put(k, v []byte)
	Delete(k []byte)
	// Write writes all the pending operations to the database
	Write() error
}

// Storage is the key value store the state is persisted to
type Storage interface {
	Put(k, v []byte) error
	Get(k []byte) ([]byte, bool, error)
	Batch() Batch

	// Keys returns every key starting with prefix, in ascending order
	Keys(prefix []byte) ([][]byte, error)

	Close() error
}

// KVStorage is a k/v storage on disk using leveldb
type KVStorage struct {
	db     *leveldb.DB
	logger hclog.Logger
}

// KVBatch is a batch write for leveldb
type KVBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *KVBatch) Put(k, v []byte) {
	b.batch.Put(k, v)
}

func (b *KVBatch) Delete(k []byte) {
	b.batch.Delete(k)
}

func (b *KVBatch) Write() error {
	return b.db.Write(b.batch, nil)
}

func (kv *KVStorage) Batch() Batch {
	return &KVBatch{db: kv.db, batch: &leveldb.Batch{}}
}

func (kv *KVStorage) Put(k, v []byte) error {
	return kv.db.Put(k, v, nil)
}

func (kv *KVStorage) Get(k []byte) ([]byte, bool, error) {
	data, err := kv.db.Get(k, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, false, nil
		}

		return nil, false, err
	}

	return data, true, nil
}

func (kv *KVStorage) Keys(prefix []byte) ([][]byte, error) {
	iter := kv.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var keys [][]byte
	for iter.Next() {
		keys = append(keys, append([]byte(nil), iter.Key()...))
	}

	return keys, iter.Error()
}

func (kv *KVStorage) Close() error {
	kv.logger.Debug("closing leveldb storage")

	return kv.db.Close()
}

// NewLevelDBStorage opens, or creates, the leveldb database at path
func NewLevelDBStorage(path string, logger hclog.Logger) (Storage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}

	return &KVStorage{db: db, logger: logger.Named("leveldb")}, nil
}

type memStorage struct {
	l  *sync.Mutex
	db map[string][]byte
}

type memBatch struct {
	l   *sync.Mutex
	db  map[string][]byte
	ops []memOp
}

type memOp struct {
	key    string
	value  []byte
	delete bool
}

// NewMemoryStorage creates an inmemory storage
func NewMemoryStorage() Storage {
	return &memStorage{l: new(sync.Mutex), db: map[string][]byte{}}
}

func (m *memStorage) Put(p []byte, v []byte) error {
	m.l.Lock()
	defer m.l.Unlock()

	m.db[string(p)] = append([]byte(nil), v...)

	return nil
}

func (m *memStorage) Get(p []byte) ([]byte, bool, error) {
	m.l.Lock()
	defer m.l.Unlock()

	v, ok := m.db[string(p)]
	if !ok {
		return nil, false, nil
	}

	return v, true, nil
}

func (m *memStorage) Keys(prefix []byte) ([][]byte, error) {
	m.l.Lock()
	defer m.l.Unlock()

	var keys [][]byte

	for k := range m.db {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, []byte(k))
		}
	}

	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

	return keys, nil
}

func (m *memStorage) Batch() Batch {
	return &memBatch{l: m.l, db: m.db}
}

func (m *memStorage) Close() error {
	return nil
}

func (b *memBatch) Put(p, v []byte) {
	b.ops = append(b.ops, memOp{key: string(p), value: append([]byte(nil), v...)})
}

func (b *memBatch) Delete(p []byte) {
	b.ops = append(b.ops, memOp{key: string(p), delete: true})
}

func (b *memBatch) Write() error {
	b.l.Lock()
	defer b.l.Unlock()

	for _, op := range b.ops {
		if op.delete {
			delete(b.db, op.key)
		} else {
			b.db[op.key] = op.value
		}
	}

	b.ops = nil

	return nil
}
