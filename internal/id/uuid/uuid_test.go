package uuid

import (
	"testing"

	guuid "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsValidV4(t *testing.T) {
	g := New()

	id, err := g.NewID()
	require.NoError(t, err)

	parsed, err := guuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, guuid.Version(4), parsed.Version())
}

func TestNewIDIsUnique(t *testing.T) {
	g := New()
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := g.NewID()
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}
