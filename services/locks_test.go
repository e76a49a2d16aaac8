package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountLocks_OppositeOrderDoesNotDeadlock(t *testing.T) {
	locks := newAccountLocks()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := locks.lock(1, 2)
			counter++
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := locks.lock(2, 1, 2)
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, counter)
}
