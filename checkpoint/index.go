package checkpoint

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// IndexFile lists the kept checkpoints of a directory, newest last
const IndexFile = "checkpoint"

// Index is the parsed checkpoint index
type Index struct {
	Latest string
	All    []string
}

// ReadIndex parses <dir>/checkpoint; a missing index is empty
func ReadIndex(dir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if errors.Is(err, os.ErrNotExist) {
		return &Index{}, nil
	}
	if err != nil {
		return nil, err
	}
	idx := &Index{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		value, err := strconv.Unquote(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", IndexFile, err)
		}
		switch strings.TrimSpace(key) {
		case "model_checkpoint_path":
			idx.Latest = value
		case "all_model_checkpoint_paths":
			idx.All = append(idx.All, value)
		}
	}
	return idx, sc.Err()
}

func (idx *Index) write(dir string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "model_checkpoint_path: %s\n", strconv.Quote(idx.Latest))
	for _, p := range idx.All {
		fmt.Fprintf(&b, "all_model_checkpoint_paths: %s\n", strconv.Quote(p))
	}
	tmp := filepath.Join(dir, IndexFile+".tmp")
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, IndexFile))
}

func updateIndex(dir, name string, maxToKeep int) error {
	idx, err := ReadIndex(dir)
	if err != nil {
		return err
	}
	idx.All = slices.DeleteFunc(idx.All, func(p string) bool { return p == name })
	idx.All = append(idx.All, name)
	idx.Latest = name
	if maxToKeep > 0 && len(idx.All) > maxToKeep {
		stale := idx.All[:len(idx.All)-maxToKeep]
		for _, p := range stale {
			if err := os.Remove(filepath.Join(dir, p)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
		idx.All = slices.Clone(idx.All[len(stale):])
	}
	return idx.write(dir)
}

// Latest returns the path of the newest checkpoint in dir
func Latest(dir string) (string, error) {
	idx, err := ReadIndex(dir)
	if err != nil {
		return "", err
	}
	if idx.Latest == "" {
		return "", fmt.Errorf("%s: %w", dir, ErrNoCheckpoint)
	}
	path := filepath.Join(dir, idx.Latest)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%s: %w", path, ErrNoCheckpoint)
	}
	return path, nil
}
