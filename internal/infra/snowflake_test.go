package infra

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnowflakeIDsAreUniqueAndOrdered(t *testing.T) {
	gen := NewSnowflakeGenerator(1)

	prev := gen.Generate()
	for i := 0; i < 10000; i++ {
		id := gen.Generate()
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestSnowflakeConcurrentGeneration(t *testing.T) {
	gen := NewSnowflakeGenerator(1)

	const workers, perWorker = 8, 500
	ids := make(chan int64, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- gen.Generate()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, workers*perWorker)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestSnowflakeExtractTimestamp(t *testing.T) {
	gen := NewSnowflakeGenerator(1)

	before := time.Now().Add(-time.Second)
	id := gen.Generate()
	after := time.Now().Add(time.Second)

	ts := gen.ExtractTimestamp(id)
	assert.True(t, ts.After(before) && ts.Before(after), "timestamp %v outside [%v, %v]", ts, before, after)
}

func TestSnowflakeEncodesWorkerID(t *testing.T) {
	a := NewSnowflakeGenerator(1).Generate()
	b := NewSnowflakeGenerator(2).Generate()
	assert.NotEqual(t, a>>workerIDShift&1023, b>>workerIDShift&1023)
}
