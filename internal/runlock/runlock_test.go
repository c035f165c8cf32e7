package runlock

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", ".foodbuzz.lock")

	lock, err := Acquire(path, time.Hour)
	require.NoError(t, err)
	_, err = uuid.Parse(lock.RunID)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = Acquire(path, time.Hour)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Release())
	assert.NoFileExists(t, path)

	again, err := Acquire(path, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, lock.RunID, again.RunID)
	require.NoError(t, again.Release())
}

func TestAcquire_TakesOverStaleLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".foodbuzz.lock")
	old, err := json.Marshal(lockInfo{RunID: "old-run", AcquiredAt: time.Now().Add(-2 * time.Hour)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, old, 0o644))

	lock, err := Acquire(path, time.Hour)
	require.NoError(t, err)
	defer lock.Release()
	assert.NotEqual(t, "old-run", lock.RunID)
}

func TestAcquire_GarbageLockUsesModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".foodbuzz.lock")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, err := Acquire(path, time.Hour)
	assert.ErrorIs(t, err, ErrLocked)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))
	lock, err := Acquire(path, time.Hour)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestRelease_LeavesForeignLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".foodbuzz.lock")
	lock, err := Acquire(path, time.Hour)
	require.NoError(t, err)

	other, err := json.Marshal(lockInfo{RunID: "someone-else", AcquiredAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, other, 0o644))

	require.NoError(t, lock.Release())
	assert.FileExists(t, path)

	var nilLock *Lock
	assert.NoError(t, nilLock.Release())
}

func TestEvict_RestoresLockTakenMeanwhile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".foodbuzz.lock")
	fresh, err := json.Marshal(lockInfo{RunID: "winner", AcquiredAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, fresh, 0o644))

	err = evict(path, time.Hour, "loser")
	assert.ErrorIs(t, err, ErrLocked)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, string(fresh), string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEvict_RemovesStaleLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".foodbuzz.lock")
	old, err := json.Marshal(lockInfo{RunID: "old-run", AcquiredAt: time.Now().Add(-2 * time.Hour)})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, old, 0o644))

	require.NoError(t, evict(path, time.Hour, "next"))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Already evicted by someone else.
	require.NoError(t, evict(path, time.Hour, "late"))
}
