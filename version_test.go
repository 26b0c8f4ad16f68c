package spaserve

import (
	"sync"
	"testing"

	"github.com/matryer/is"
)

func TestVersion(t *testing.T) {
	is := is.New(t)
	var v Version
	is.Equal(v.Current(), uint64(0))
	is.True(!v.Since(0))
	is.True(!v.Acknowledge())

	is.Equal(v.Advance(), uint64(1))
	is.True(v.Since(0))
	is.True(!v.Since(1))
	is.True(v.Acknowledge())
	is.True(!v.Acknowledge())

	// Several changes between polls are reported once
	v.Advance()
	v.Advance()
	is.True(v.Acknowledge())
	is.True(!v.Acknowledge())
	is.Equal(v.Current(), uint64(3))
}

func TestVersionConcurrentAcknowledge(t *testing.T) {
	is := is.New(t)
	var v Version
	v.Advance()
	var wg sync.WaitGroup
	var mu sync.Mutex
	acked := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v.Acknowledge() {
				mu.Lock()
				acked++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	is.Equal(acked, 1)
}
