package state

import (
	"fmt"
	"os"
	"path/filepath"
)

// staged is a fully written temp file waiting to replace its destination.
type staged struct {
	tmp  string
	path string
}

// stage writes data to a uniquely named temp file beside path and syncs it
// to disk. Concurrent stages of the same path never share a temp file.
func stage(path string, data []byte) (staged, error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return staged{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return staged{}, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(tmp)
		return staged{}, fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return staged{}, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return staged{}, fmt.Errorf("failed to close temp file: %w", err)
	}
	return staged{tmp: tmp, path: path}, nil
}

func (s staged) commit() error {
	if err := os.Rename(s.tmp, s.path); err != nil {
		os.Remove(s.tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (s staged) discard() {
	os.Remove(s.tmp)
}

// writeAtomic replaces path with data via a synced temp file and rename.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	s, err := stage(path, data)
	if err != nil {
		return err
	}
	return s.commit()
}
