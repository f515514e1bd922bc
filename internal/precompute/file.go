package precompute

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile stores the runtime as indented JSON, replacing path atomically.
func WriteFile(path string, rt *Runtime) error {
	data, err := json.MarshalIndent(rt, "", "  ")
	if err != nil {
		return fmt.Errorf("encode derived runtime: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// ReadFile loads a runtime written by WriteFile. Missing files surface as os.ErrNotExist.
func ReadFile(path string) (*Runtime, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read derived runtime: %w", err)
	}
	var rt Runtime
	if err := json.Unmarshal(data, &rt); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if rt.Lines == nil {
		rt.Lines = map[string]LineTable{}
	}
	return &rt, nil
}
