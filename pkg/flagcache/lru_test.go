package flagcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRU(t *testing.T) {
	t.Parallel()

	var evicted []string
	c := newLRU(2, func(k string, _ int) { evicted = append(evicted, k) })

	c.put("a", 1)
	c.put("b", 2)
	_, _ = c.get("a") // a is now most recent
	c.put("c", 3)

	assert.Equal(t, []string{"b"}, evicted)
	_, ok := c.get("b")
	assert.False(t, ok)

	c.put("a", 10)
	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, c.len())

	var keys []string
	c.each(func(k string, _ int) { keys = append(keys, k) })
	assert.Equal(t, []string{"a", "c"}, keys)

	assert.True(t, c.remove("a"))
	assert.False(t, c.remove("a"))
	assert.Equal(t, []string{"b"}, evicted, "remove does not report an eviction")

	c.clear()
	assert.Zero(t, c.len())
}
