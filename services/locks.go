package services

import (
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// accountLocks serializes writers per account id inside this process.
// The store's compare-and-swap covers writers in other processes.
type accountLocks struct {
	m *xsync.Map[int64, *sync.Mutex]
}

func newAccountLocks() *accountLocks {
	return &accountLocks{m: xsync.NewMap[int64, *sync.Mutex]()}
}

// lock acquires every id in ascending order and returns the matching unlock.
func (l *accountLocks) lock(ids ...int64) func() {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	held := make([]*sync.Mutex, 0, len(sorted))
	for i, id := range sorted {
		if i > 0 && sorted[i-1] == id {
			continue
		}
		mu, _ := l.m.LoadOrStore(id, &sync.Mutex{})
		mu.Lock()
		held = append(held, mu)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
