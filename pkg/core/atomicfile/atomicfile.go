// Package atomicfile provides crash-safe writes for the project store,
// ignore monitor, and decision ledger: every mutation lands via a temp
// file and rename so a reader never observes a partially written file.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/crashappsec/gitup/pkg/core/errors"
)

// Write atomically replaces path with data. The write goes to path+".tmp"
// in the same directory (so the rename is same-filesystem), is fsynced,
// then renamed over path.
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", path)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrapf(err, "opening temp file for %s", path)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "writing temp file for %s", path)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "syncing temp file for %s", path)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "closing temp file for %s", path)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "replacing %s", path)
	}

	return nil
}

// WriteWithBackup behaves like Write but first copies any existing file at
// path to path+".backup" so a caller can recover from a corrupt write that
// passed the rename but failed validation on the next load.
func WriteWithBackup(path string, data []byte, perm os.FileMode) error {
	if existing, err := os.ReadFile(path); err == nil {
		backupPath := path + ".backup"
		if err := Write(backupPath, existing, perm); err != nil {
			return errors.Wrapf(err, "backing up %s", path)
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "reading existing %s", path)
	}

	return Write(path, data, perm)
}

// AppendLine appends a single line (with trailing newline) to path,
// creating it and any parent directories as needed. Used for append-only
// JSONL logs (audit.log, gi_changes.log) where full-file atomic rename
// would be wasteful on every entry.
func AppendLine(path string, line []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrapf(err, "opening %s for append", path)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return errors.Wrapf(err, "appending to %s", path)
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		if _, err := f.Write([]byte("\n")); err != nil {
			return errors.Wrapf(err, "appending newline to %s", path)
		}
	}

	return f.Sync()
}

// ReadOrBackup reads path; if it fails to read or the reader-supplied
// validate function rejects the contents, it falls back to path+".backup"
// and reports which source was used.
func ReadOrBackup(path string, validate func([]byte) error) (data []byte, fromBackup bool, err error) {
	data, readErr := os.ReadFile(path)
	if readErr == nil {
		if validate == nil {
			return data, false, nil
		}
		if verr := validate(data); verr == nil {
			return data, false, nil
		}
	}

	backupPath := path + ".backup"
	backupData, backupErr := os.ReadFile(backupPath)
	if backupErr != nil {
		if readErr != nil {
			return nil, false, errors.Wrap(readErr, fmt.Sprintf("reading %s and no backup available", path))
		}
		return nil, false, errors.Wrapf(errors.ErrCorrupt, "%s failed validation and no backup available", path)
	}

	if validate != nil {
		if verr := validate(backupData); verr != nil {
			return nil, false, errors.Wrap(verr, fmt.Sprintf("backup for %s is also corrupt", path))
		}
	}

	return backupData, true, nil
}
