package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDir is the root for on-disk artifacts when VERIMEET_STATE_DIR is unset.
const DefaultDir = "data/state"

// SessionArchivePath returns the path of the archived final-summary artifact
// for one session.
func SessionArchivePath(baseDir, sessionID string) string {
	base := strings.TrimSpace(baseDir)
	if base == "" {
		base = DefaultDir
	}
	return filepath.Join(base, "sessions", sessionID, "final_summary.json")
}

func LoadJSONFile[T any](path string) (T, error) {
	var zero T
	b, err := os.ReadFile(path)
	if err != nil {
		return zero, err
	}
	if err := json.Unmarshal(b, &zero); err != nil {
		return zero, err
	}
	return zero, nil
}

// SaveJSONFileIndented writes v atomically (tmp file + rename) with a
// trailing newline.
func SaveJSONFileIndented(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}

	_ = os.Remove(path) // Windows rename doesn't overwrite.
	return os.Rename(tmp, path)
}
