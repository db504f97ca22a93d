package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPort_PushPop(t *testing.T) {
	t.Parallel()

	port := NewPort()
	assert.False(t, port.HasData())

	chunk := NewChunk(1, Column{Name: "v", Values: []interface{}{42}})
	require.NoError(t, port.TryPush(ChunkUnit(chunk)))
	assert.True(t, port.HasData())

	unit, ok := port.TryPop()
	require.True(t, ok)
	assert.Equal(t, chunk, unit.Chunk())
	assert.False(t, port.HasData())

	_, ok = port.TryPop()
	assert.False(t, ok)
}

func TestPort_BusyUntilPopped(t *testing.T) {
	t.Parallel()

	port := NewPort()
	require.NoError(t, port.TryPush(ChunkUnit(NewChunk(0))))

	err := port.TryPush(ChunkUnit(NewChunk(0)))
	assert.True(t, errors.Is(err, ErrPortBusy))

	_, ok := port.TryPop()
	require.True(t, ok)
	assert.NoError(t, port.TryPush(ChunkUnit(NewChunk(0))))
}

func TestPort_Close(t *testing.T) {
	t.Parallel()

	port := NewPort()
	require.NoError(t, port.TryPush(ChunkUnit(NewChunk(0))))

	port.Close()
	port.Close() // idempotent
	assert.True(t, port.Closed())

	err := port.TryPush(ChunkUnit(NewChunk(0)))
	assert.True(t, errors.Is(err, ErrPortClosed))

	// A unit buffered before the close stays poppable.
	_, ok := port.TryPop()
	assert.True(t, ok)
}
