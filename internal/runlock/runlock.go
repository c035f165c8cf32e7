// Package runlock guards a data directory against concurrent pipeline runs.
package runlock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrLocked is returned when another run holds a fresh lock.
var ErrLocked = errors.New("data directory is locked by another run")

// Lock is a held lock file.
type Lock struct {
	path  string
	RunID string
}

type lockInfo struct {
	RunID      string    `json:"run_id"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Acquire creates the lock file at path. A lock older than staleAfter is
// assumed abandoned and taken over; a fresh one yields ErrLocked.
func Acquire(path string, staleAfter time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	info := lockInfo{RunID: uuid.NewString(), PID: os.Getpid(), AcquiredAt: time.Now().UTC()}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal lock: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := f.Write(data)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("write lock %s: %w", path, errors.Join(werr, cerr))
			}
			return &Lock{path: path, RunID: info.RunID}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lock %s: %w", path, err)
		}

		holder, stale := inspect(path, staleAfter)
		if !stale {
			return nil, fmt.Errorf("%w (run %s)", ErrLocked, holder)
		}
		if err := evict(path, staleAfter, info.RunID); err != nil {
			return nil, err
		}
	}
	return nil, ErrLocked
}

// evict moves a stale lock aside before deleting it. The rename is atomic, so
// of two runs racing to evict the same file only one moves it. If the file
// moved turns out to be fresh, another run took the lock in the meantime and it
// is linked back into place.
func evict(path string, staleAfter time.Duration, token string) error {
	tomb := path + ".stale-" + token
	if err := os.Rename(path, tomb); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("evict stale lock %s: %w", path, err)
	}

	holder, stale := inspect(tomb, staleAfter)
	if stale {
		if err := os.Remove(tomb); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale lock %s: %w", tomb, err)
		}
		return nil
	}

	if err := os.Link(tomb, path); err != nil && !errors.Is(err, os.ErrExist) {
		if rerr := os.Rename(tomb, path); rerr != nil {
			return fmt.Errorf("restore lock %s: %w", path, errors.Join(err, rerr))
		}
		return fmt.Errorf("%w (run %s)", ErrLocked, holder)
	}
	os.Remove(tomb)
	return fmt.Errorf("%w (run %s)", ErrLocked, holder)
}

// inspect reports the holder of an existing lock and whether it is stale.
// Unreadable lock files are judged by their modification time.
func inspect(path string, staleAfter time.Duration) (string, bool) {
	st, err := os.Stat(path)
	if err != nil {
		return "unknown", errors.Is(err, os.ErrNotExist)
	}
	acquired := st.ModTime()
	holder := "unknown"

	if data, err := os.ReadFile(path); err == nil {
		var info lockInfo
		if json.Unmarshal(data, &info) == nil && !info.AcquiredAt.IsZero() {
			acquired = info.AcquiredAt
			holder = info.RunID
		}
	}
	return holder, time.Since(acquired) > staleAfter
}

// Release removes the lock file if this lock still owns it.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read lock %s: %w", l.path, err)
	}
	var info lockInfo
	if json.Unmarshal(data, &info) == nil && info.RunID != l.RunID {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock %s: %w", l.path, err)
	}
	return nil
}
