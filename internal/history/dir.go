// Package history stores weekly entity snapshots as CSV files in a directory.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/elonfeng/foodbuzz/pkg/entity"
)

const (
	filePrefix = "mentions_"
	fileSuffix = ".csv"
)

// Dir keeps one mentions_<key>.csv per snapshot under a directory.
type Dir struct {
	path string
}

// NewDir returns a history rooted at path. The directory is created on the
// first save.
func NewDir(path string) *Dir {
	return &Dir{path: path}
}

// Path returns the file that holds the snapshot for key.
func (d *Dir) Path(key string) string {
	return filepath.Join(d.path, filePrefix+key+fileSuffix)
}

func (d *Dir) SaveSnapshot(_ context.Context, key string, entities []entity.Entity) error {
	return entity.WriteFile(d.Path(key), entities)
}

// SnapshotKeys lists keys of the snapshot files present. A missing directory
// holds no snapshots.
func (d *Dir) SnapshotKeys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history dir %s: %w", d.path, err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		key := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if key == "" {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (d *Dir) LoadSnapshot(_ context.Context, key string) ([]entity.Entity, error) {
	table, err := entity.ReadFile(d.Path(key))
	if err != nil {
		return nil, err
	}
	return table.Entities, nil
}
