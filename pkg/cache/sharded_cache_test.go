package cache

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOverwritesQuote(t *testing.T) {
	c := NewShardedQuoteCache()
	c.Set("BTCUSDT", 100, 101)
	c.Set("BTCUSDT", 102, 103)

	q, ok := c.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 102.0, q.Bid)
	assert.Equal(t, 103.0, q.Ask)
	assert.Equal(t, 1, c.Len())

	_, ok = c.Get("ETHUSDT")
	assert.False(t, ok)

	_, age, ok := c.GetWithAge("BTCUSDT")
	assert.True(t, ok)
	assert.GreaterOrEqual(t, age.Nanoseconds(), int64(0))
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	c := NewShardedQuoteCache()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c.Set("SYM"+strconv.Itoa(i%50), float64(i), float64(i+1))
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				if q, ok := c.Get("SYM" + strconv.Itoa(i%50)); ok {
					assert.Equal(t, q.Bid+1, q.Ask)
				}
				_ = c.All()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.Len())
	stats := c.Stats()
	assert.Equal(t, 50, stats.TotalItems)
	sum := 0
	for _, n := range stats.ShardCounts {
		sum += n
	}
	assert.Equal(t, 50, sum)
}
