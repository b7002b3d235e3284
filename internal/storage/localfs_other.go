//go:build !linux

package storage

// Filesystem detection is only implemented on Linux; elsewhere the journal
// path is assumed to be local.
func statFilesystemType(string) (string, error) {
	return "", nil
}
