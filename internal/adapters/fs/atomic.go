package fs

import (
	"encoding/json"
	"fmt"
	"os"
)

// tmpSuffix marks files that are not yet committed. Startup recovery
// sweeps any leftovers.
const tmpSuffix = ".tmp"

// writeFileAtomic durably commits data to path: write to a temp file,
// fsync, then rename. A crash at any point leaves either the old content
// or the new content, never a partial write.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + tmpSuffix

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// writeJSONAtomic marshals v and commits it atomically to path.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return writeFileAtomic(path, data, 0o600)
}

// readJSON loads path into v.
func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
