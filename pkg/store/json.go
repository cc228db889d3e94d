package store

import (
	"encoding/json"
	"os"

	"github.com/crashappsec/gitup/pkg/core/atomicfile"
	"github.com/crashappsec/gitup/pkg/core/errors"
)

// saveJSON marshals v with indentation and writes it atomically with a
// `.backup` sibling, matching the Project Store's "backup-or-atomic-rename"
// invariant for every mutation.
func saveJSON[T any](path string, v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshaling "+path)
	}
	return atomicfile.WriteWithBackup(path, data, 0644)
}

// loadJSON reads and unmarshals path into a T, falling back to the
// `.backup` sibling on corruption. If the file (and backup) are absent,
// loadJSON returns the zero value and ok=false without error.
func loadJSON[T any](path string) (v T, ok bool, err error) {
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		return v, false, nil
	}

	validate := func(data []byte) error {
		var tmp T
		return json.Unmarshal(data, &tmp)
	}

	data, _, err := atomicfile.ReadOrBackup(path, validate)
	if err != nil {
		return v, false, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, nil
	}
	return v, true, nil
}
