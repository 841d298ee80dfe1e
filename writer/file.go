package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"clawdash/logger"
)

// FileWriter replaces the snapshot file atomically: readers see either the
// previous document or the new one, never a partial write.
type FileWriter struct {
	Path string
	Mode os.FileMode
	log  *logger.Entry
}

func NewFileWriter(path string) *FileWriter {
	return &FileWriter{
		Path: path,
		Mode: 0o644,
		log:  logger.GetLogger().WithComponent("file_writer"),
	}
}

func (w *FileWriter) Name() string { return "file" }

func (w *FileWriter) Publish(ctx context.Context, payload []byte, meta Meta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(w.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, w.Mode); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, w.Path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", w.Path, err)
	}

	w.log.WithRun(meta.RunID).WithFields(logger.Fields{
		"path":  w.Path,
		"bytes": len(payload),
	}).Info("snapshot published")
	return nil
}

func (w *FileWriter) Close() error { return nil }
