package tokenizers

// HuggingFace Hub cache related functionality.
//
// Only files already in the local cache (e.g. downloaded by the Python `huggingface_hub`
// library) are read: this package never reaches out to the network.

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/go-tokenizers/errs"
	"github.com/gomlx/go-tokenizers/internal/fsutil"
)

// DefaultRevision used when none is configured.
const DefaultRevision = "main"

// RepoIdSeparator is used to separate repository/model names parts when mapping to file names.
// Likely only for internal use.
const RepoIdSeparator = "--"

func getEnvOr(key, defaultValue string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	return v
}

// DefaultCacheDir for HuggingFace Hub, same used by the python library.
//
// It is `${HF_HUB_CACHE}` if set, otherwise `${HF_HOME}/hub`. HF_HOME defaults to
// `${XDG_CACHE_HOME}/huggingface` if XDG_CACHE_HOME is set, or `~/.cache/huggingface` otherwise.
// So typically: `~/.cache/huggingface/hub/`.
func DefaultCacheDir() string {
	if hubCache := os.Getenv("HF_HUB_CACHE"); hubCache != "" {
		return hubCache
	}
	home, _ := os.UserHomeDir()
	cacheHome := getEnvOr("XDG_CACHE_HOME", filepath.Join(home, ".cache"))
	hfHome := getEnvOr("HF_HOME", filepath.Join(cacheHome, "huggingface"))
	return filepath.Join(hfHome, "hub")
}

// RepoFolderName returns a serialized version of a hf.co repo name and type, safe for disk storage
// as a single non-nested folder.
//
// Based on github.com/huggingface/huggingface_hub repo_folder_name.
func RepoFolderName(repoId, repoType string) string {
	parts := []string{repoType + "s"}
	parts = append(parts, strings.Split(repoId, "/")...)
	return strings.Join(parts, RepoIdSeparator)
}

// getSnapshotPath returns the "snapshot" path/link to the given commitHash and relativeFilePath.
func getSnapshotPath(storageDir, commitHash, relativeFilePath string) string {
	return filepath.Join(storageDir, "snapshots", commitHash, relativeFilePath)
}

// readCommitHashForRevision from disk.
// Notice revision can be a commitHash: if we don't find a revision file, we assume that is the case.
func readCommitHashForRevision(storageDir, revision string) (commitHash string, err error) {
	refPath := filepath.Join(storageDir, "refs", revision)
	exists, err := fsutil.FileExists(refPath)
	if err != nil {
		return "", err
	}
	if !exists {
		return revision, nil
	}
	contents, err := fsutil.ReadFile(refPath)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(contents)), nil
}

// CachedSnapshotDir returns the directory holding the files of the given revision of a
// repository in the HuggingFace Hub cache at cacheDir.
//
// It returns an error wrapping errs.ErrIO if the revision is not in the cache.
func CachedSnapshotDir(cacheDir, repoId, repoType, revision string) (string, error) {
	storageDir := filepath.Join(cacheDir, RepoFolderName(repoId, repoType))
	commitHash, err := readCommitHashForRevision(storageDir, revision)
	if err != nil {
		return "", err
	}
	snapshotDir := getSnapshotPath(storageDir, commitHash, "")
	exists, err := fsutil.FileExists(snapshotDir)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", errs.Errorf(errs.ErrIO, "revision %q of %q not found in the cache %q", revision, repoId, cacheDir)
	}
	return snapshotDir, nil
}
