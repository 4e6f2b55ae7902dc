package cleaner

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessionSweeper struct {
	calls  int
	gotAge time.Duration
}

func (f *fakeSessionSweeper) SweepStale(maxAge time.Duration) int {
	f.calls++
	f.gotAge = maxAge
	return 2
}

func TestSweepRemovesOnlyOldFiles(t *testing.T) {
	dir := t.TempDir()

	oldFile := filepath.Join(dir, "sess1_0")
	newFile := filepath.Join(dir, "sess2_0")
	require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o600))
	require.NoError(t, os.WriteFile(newFile, []byte("new"), 0o600))

	staleTime := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, staleTime, staleTime))

	sessions := &fakeSessionSweeper{}
	s := NewSweeper(dir, time.Hour, sessions)

	removed := s.Sweep()
	assert.Equal(t, 1, removed)

	_, err := os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(newFile)
	assert.NoError(t, err)

	assert.Equal(t, 1, sessions.calls)
	assert.Equal(t, time.Hour, sessions.gotAge)
}

func TestSweepSkipsDirectories(t *testing.T) {
	dir := t.TempDir()

	sub := filepath.Join(dir, "keep-me")
	require.NoError(t, os.Mkdir(sub, 0o700))
	staleTime := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(sub, staleTime, staleTime))

	s := NewSweeper(dir, time.Hour, nil)
	assert.Equal(t, 0, s.Sweep())

	_, err := os.Stat(sub)
	assert.NoError(t, err)
}
