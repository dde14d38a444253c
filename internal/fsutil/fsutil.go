// Package fsutil has the file helpers used when loading and saving models and tokenizers.
package fsutil

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// DefaultDirCreationPerm is used when creating new directories.
	DefaultDirCreationPerm = os.FileMode(0755)

	// DefaultFileCreationPerm is used when creating files.
	DefaultFileCreationPerm = os.FileMode(0644)
)

// SessionId is a random identifier of the running process, used to name temporary files.
var SessionId string

func init() {
	sessionUUID, err := uuid.NewRandom()
	if err != nil {
		panic(errors.Wrap(err, "failed generating UUID for SessionId"))
	}
	SessionId = strings.Replace(sessionUUID.String(), "-", "", -1)
}

// WriteFileAtomic writes contents to a temporary file in the same directory as filePath, and
// then renames it to filePath. Readers never observe a partially written file.
//
// Errors wrap errs.ErrIO.
func WriteFileAtomic(filePath string, contents []byte) (err error) {
	dir := filepath.Dir(filePath)
	if err = os.MkdirAll(dir, DefaultDirCreationPerm); err != nil {
		return errs.Wrap(errs.ErrIO, err, "creating directory %q", dir)
	}
	tmpFilePath := filepath.Join(dir, "."+filepath.Base(filePath)+".tmp_"+SessionId+"_"+uuid.NewString()[:8])
	tmpFile, err := os.OpenFile(tmpFilePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, DefaultFileCreationPerm)
	if err != nil {
		return errs.Wrap(errs.ErrIO, err, "creating temporary file in %q", dir)
	}
	tmpFileClosed := false
	defer func() {
		// If we exit with an error, make sure to close and remove unfinished temporary file.
		if !tmpFileClosed {
			_ = tmpFile.Close()
		}
		if err != nil {
			_ = os.Remove(tmpFilePath)
		}
	}()

	if _, err = tmpFile.Write(contents); err != nil {
		return errs.Wrap(errs.ErrIO, err, "writing to temporary file %q", tmpFilePath)
	}
	tmpFileClosed = true
	if err = tmpFile.Close(); err != nil {
		return errs.Wrap(errs.ErrIO, err, "failed to close temporary file %q", tmpFilePath)
	}
	if err = os.Rename(tmpFilePath, filePath); err != nil {
		return errs.Wrap(errs.ErrIO, err, "failed to move temporary file %q to %q", tmpFilePath, filePath)
	}
	return nil
}

// FileExists returns true if file or directory exists.
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, errs.Wrap(errs.ErrIO, err, "checking %q", path)
}

// ReadFile reads the contents of filePath, wrapping errors with errs.ErrIO.
func ReadFile(filePath string) ([]byte, error) {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errs.Wrap(errs.ErrIO, err, "can't read file %q", filePath)
	}
	return contents, nil
}
