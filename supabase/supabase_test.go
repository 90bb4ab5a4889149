package supabase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSession(t *testing.T) {
	c := New("http://localhost:54321", "anon", "", "flex")
	assert.True(t, c.stale)
	assert.Equal(t, DefaultTimeout, c.timeout)

	first := c.session()
	assert.NotNil(t, first)
	assert.False(t, c.stale)
	assert.Same(t, first, c.session(), "a healthy session should be reused")

	c.stale = true
	second := c.session()
	assert.NotSame(t, first, second, "a failed request should replace the session")
	assert.False(t, c.stale)
}
