package fsx

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// AtomicWrite writes content to a temp file next to path and renames it into place.
// The parent directory must already exist.
func AtomicWrite(path string, content []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp := filepath.Join(dir, "."+base+".tmp")
	if err := writeSynced(tmp, content, mode); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		// On Windows, rename fails if the destination exists or is locked.
		if runtime.GOOS == "windows" {
			last := err
			for i := 0; i < 5; i++ {
				if _, statErr := os.Stat(path); statErr == nil {
					_ = os.Remove(path)
				}
				rerr := os.Rename(tmp, path)
				if rerr == nil {
					return nil
				}
				last = rerr
				time.Sleep(50 * time.Millisecond)
			}
			_ = os.Remove(tmp)
			return last
		}
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func writeSynced(path string, content []byte, mode fs.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// BackupFile creates a timestamped .bak copy if the file exists and returns its path.
func BackupFile(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(filepath.Dir(path), fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
	if err := os.WriteFile(bak, b, 0o600); err != nil {
		return "", err
	}
	return bak, nil
}
