package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// fsTypeFunc reports the filesystem type name of an existing path. An empty
// name means "unknown" and is treated as local.
type fsTypeFunc func(path string) (string, error)

var remoteFilesystems = map[string]struct{}{
	"afpfs":  {},
	"cifs":   {},
	"nfs":    {},
	"smbfs":  {},
	"smb2":   {},
	"webdav": {},
}

// ensureLocalFilesystem refuses journal paths on network mounts, where SQLite
// file locking is unreliable.
func ensureLocalFilesystem(path string, fsType fsTypeFunc) error {
	if path == "" {
		return fmt.Errorf("sqlite path is empty")
	}

	existing, err := closestExistingAncestor(path)
	if err != nil {
		return fmt.Errorf("resolve journal path %q: %w", path, err)
	}

	name, err := fsType(existing)
	if err != nil {
		return fmt.Errorf("detect filesystem for %q: %w", existing, err)
	}
	if isRemoteFilesystem(name) {
		return fmt.Errorf("journal path %q is on network filesystem %q; SQLite requires a local filesystem, set journal.path to a local file", path, name)
	}
	return nil
}

func closestExistingAncestor(path string) (string, error) {
	candidate, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}

	for {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(candidate)
		if parent == candidate {
			return "", fmt.Errorf("no existing parent for %q", path)
		}
		candidate = parent
	}
}

func isRemoteFilesystem(name string) bool {
	_, found := remoteFilesystems[strings.ToLower(strings.TrimSpace(name))]
	return found
}
