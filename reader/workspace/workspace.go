// Package workspace measures how much disk the agent workspace occupies.
package workspace

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// Sizes is the measured footprint in bytes.
type Sizes struct {
	WorkspaceBytes int64
	DataBytes      int64
}

// Sizer walks the workspace and its data directory, skipping directories
// whose name is in Skip.
type Sizer struct {
	Root    string
	DataDir string
	Skip    []string
}

func (s *Sizer) Measure(ctx context.Context) (Sizes, error) {
	ws, err := DirSize(ctx, s.Root, s.Skip)
	if err != nil {
		return Sizes{}, err
	}
	var data int64
	if s.DataDir != "" {
		if data, err = DirSize(ctx, s.DataDir, s.Skip); err != nil {
			return Sizes{}, err
		}
	}
	return Sizes{WorkspaceBytes: ws, DataBytes: data}, nil
}

// DirSize sums regular file sizes under root. A missing root is empty;
// unreadable entries are skipped.
func DirSize(ctx context.Context, root string, skip []string) (int64, error) {
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	skipped := make(map[string]bool, len(skip))
	for _, name := range skip {
		skipped[name] = true
	}

	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && skipped[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
