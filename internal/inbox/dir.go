package inbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	batchExt  = ".json"
	failedExt = ".failed"
)

// Pending lists batch files in dir in commit order. A missing dir is empty.
func Pending(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading inbox: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), batchExt) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Done removes a committed batch.
func Done(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing batch: %w", err)
	}
	return nil
}

// MarkFailed renames path so Pending skips it and returns the new path.
func MarkFailed(path string) (string, error) {
	failed := path + failedExt
	if err := os.Rename(path, failed); err != nil {
		return "", fmt.Errorf("marking batch failed: %w", err)
	}
	return failed, nil
}

// Write stores b in dir under name, atomically via a hidden temp file.
func Write(dir, name string, b Batch) (string, error) {
	if !strings.HasSuffix(name, batchExt) {
		name += batchExt
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating inbox: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".batch-*")
	if err != nil {
		return "", fmt.Errorf("creating batch: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := b.Encode(tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing batch: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("writing batch: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("writing batch: %w", err)
	}
	return path, nil
}
