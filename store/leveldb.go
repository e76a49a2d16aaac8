package store

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB is the embedded backend. Writes go through mu so CompareAndSwap is
// atomic with respect to every other writer in the process.
type LevelDB struct {
	db *leveldb.DB
	mu sync.Mutex
}

func NewLevelDB(dir string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// NewMemLevelDB opens a LevelDB backed by memory storage.
func NewMemLevelDB() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(_ context.Context, key string) ([]byte, error) {
	v, err := l.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (l *LevelDB) Put(_ context.Context, key string, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Put([]byte(key), value, nil)
}

func (l *LevelDB) Has(_ context.Context, key string) (bool, error) {
	return l.db.Has([]byte(key), nil)
}

func (l *LevelDB) Delete(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Delete([]byte(key), nil)
}

func (l *LevelDB) CompareAndSwap(_ context.Context, key string, old, next []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur, err := l.db.Get([]byte(key), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		if old != nil {
			return ErrConflict
		}
	case err != nil:
		return err
	default:
		if old == nil || !bytes.Equal(cur, old) {
			return ErrConflict
		}
	}
	return l.db.Put([]byte(key), next, nil)
}

func (l *LevelDB) Iterate(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	it := l.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer it.Release()

	for it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		// iterator buffers are reused between calls
		value := append([]byte(nil), it.Value()...)
		if err := fn(string(it.Key()), value); err != nil {
			return err
		}
	}
	return it.Error()
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}
