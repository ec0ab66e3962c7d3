package db

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBProvider implements IterableProvider for LevelDB
type LevelDBProvider struct {
	once sync.Once
	db   *leveldb.DB
}

// NewLevelDBProvider opens (or creates) a LevelDB database in directory.
func NewLevelDBProvider(directory string) (*LevelDBProvider, error) {
	db, err := leveldb.OpenFile(directory, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open leveldb at %s", directory)
	}
	return &LevelDBProvider{db: db}, nil
}

// NewMemLevelDBProvider opens a LevelDB database held entirely in memory.
func NewMemLevelDBProvider() (*LevelDBProvider, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "open in-memory leveldb")
	}
	return &LevelDBProvider{db: db}, nil
}

func (p *LevelDBProvider) Get(key []byte) ([]byte, error) {
	value, err := p.db.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "leveldb get %q", key)
	}
	return value, nil
}

// GetBatch reads keys one by one; LevelDB has no MultiGet. Missing keys are
// left out of the result.
func (p *LevelDBProvider) GetBatch(keys [][]byte) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	snap, err := p.db.GetSnapshot()
	if err != nil {
		return nil, errors.Wrap(err, "leveldb snapshot")
	}
	defer snap.Release()

	for _, key := range keys {
		value, err := snap.Get(key, nil)
		if err != nil {
			if err == leveldb.ErrNotFound {
				continue
			}
			return nil, errors.Wrapf(err, "leveldb get %q", key)
		}
		result[string(key)] = value
	}
	return result, nil
}

func (p *LevelDBProvider) Put(key, value []byte) error {
	return errors.Wrapf(p.db.Put(key, value, nil), "leveldb put %q", key)
}

func (p *LevelDBProvider) Delete(key []byte) error {
	return errors.Wrapf(p.db.Delete(key, nil), "leveldb delete %q", key)
}

func (p *LevelDBProvider) Has(key []byte) (bool, error) {
	ok, err := p.db.Has(key, nil)
	return ok, errors.Wrapf(err, "leveldb has %q", key)
}

// Close closes the database once; stores sharing the provider may all call it.
func (p *LevelDBProvider) Close() error {
	var err error
	p.once.Do(func() {
		err = p.db.Close()
	})
	return err
}

func (p *LevelDBProvider) Batch() DatabaseBatch {
	return &LevelDBBatch{
		batch: new(leveldb.Batch),
		db:    p.db,
	}
}

func (p *LevelDBProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	iter := p.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		key := iter.Key()
		if !bytes.HasPrefix(key, prefix) {
			break
		}
		if !callback(key, iter.Value()) {
			break
		}
	}
	return errors.Wrap(iter.Error(), "leveldb iterate")
}

// LevelDBBatch implements DatabaseBatch for LevelDB
type LevelDBBatch struct {
	batch *leveldb.Batch
	db    *leveldb.DB
}

func (b *LevelDBBatch) Put(key, value []byte) {
	b.batch.Put(key, value)
}

func (b *LevelDBBatch) Delete(key []byte) {
	b.batch.Delete(key)
}

func (b *LevelDBBatch) Write() error {
	return errors.Wrap(b.db.Write(b.batch, nil), "leveldb batch write")
}

func (b *LevelDBBatch) Reset() {
	b.batch.Reset()
}

// Close is a no-op; LevelDB batches hold no external resources.
func (b *LevelDBBatch) Close() error {
	return nil
}
