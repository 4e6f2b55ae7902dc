package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStatusTransitions(t *testing.T) {
	assert.True(t, SessionInitiated.CanAdvanceTo(SessionChunksReceived))
	assert.True(t, SessionAssembled.CanAdvanceTo(SessionHandedOff))
	assert.False(t, SessionAssembled.CanAdvanceTo(SessionInitiated))
	assert.False(t, SessionHandedOff.CanAdvanceTo(SessionAssembling))

	// failed/cancelled are reachable from any non-terminal state.
	assert.True(t, SessionInitiated.CanAdvanceTo(SessionFailed))
	assert.True(t, SessionAssembling.CanAdvanceTo(SessionCancelled))
	assert.False(t, SessionFailed.CanAdvanceTo(SessionAssembled))

	assert.True(t, SessionHandedOff.IsTerminal())
	assert.True(t, SessionFailed.IsTerminal())
	assert.True(t, SessionCancelled.IsTerminal())
	assert.False(t, SessionChunksReceived.IsTerminal())
}

func TestSessionAccounting(t *testing.T) {
	s := &UploadSession{
		DeclaredSize: 300,
		TotalChunks:  3,
		ChunkSizes:   map[int]int64{0: 100, 2: 100},
	}

	assert.Equal(t, int64(200), s.ReceivedBytes())
	assert.Equal(t, 2, s.ReceivedChunks())
	assert.Equal(t, 66, s.ProgressPercent())
	assert.False(t, s.Complete())

	s.ChunkSizes[1] = 100
	assert.True(t, s.Complete())
	assert.Equal(t, 100, s.ProgressPercent())
}

func TestSessionCloneIsIndependent(t *testing.T) {
	s := &UploadSession{
		ID:         "s1",
		ChunkSizes: map[int]int64{0: 100},
	}

	cp := s.Clone()
	s.ChunkSizes[1] = 100

	assert.Equal(t, int64(100), cp.ReceivedBytes())
	assert.Equal(t, int64(200), s.ReceivedBytes())
}

func TestStorageKeyBuilders(t *testing.T) {
	assert.Equal(t, "collections/ev1/a1.jpg", PrimaryKeyFor("ev1", "a1", ".JPG"))
	assert.Equal(t, "collections/ev1/preview_a1.jpg", PreviewKeyFor("ev1", "a1", ".jpg"))
	assert.Equal(t, "collections/ev1/preview_a1.mp4", PreviewKeyFor("ev1", "a1", "mp4"))
	assert.Equal(t, ".mov", ExtOf("IMG_0001.MOV"))
}
