package engine

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// WeightsStore keeps weights buffers on disk under their BLAKE3 digest so an
// engine that only accepts a file path can load them. Identical buffers map to
// the same file and are written once.
type WeightsStore struct {
	dir string
}

// NewWeightsStore creates dir if needed.
func NewWeightsStore(dir string) (*WeightsStore, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, fmt.Errorf("weights directory is empty")
	}
	clean := filepath.Clean(trimmed)
	if err := os.MkdirAll(clean, 0o755); err != nil {
		return nil, fmt.Errorf("create weights directory: %w", err)
	}
	return &WeightsStore{dir: clean}, nil
}

// Dir returns the store's directory.
func (s *WeightsStore) Dir() string {
	return s.dir
}

// Digest returns the hex BLAKE3 digest of buf.
func Digest(buf []byte) string {
	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// Put writes buf to <dir>/<digest>.pb unless an identical file is already
// there, and returns the absolute path.
func (s *WeightsStore) Put(buf []byte) (string, error) {
	if len(buf) == 0 {
		return "", fmt.Errorf("weights buffer is empty")
	}

	path, err := filepath.Abs(filepath.Join(s.dir, Digest(buf)+".pb"))
	if err != nil {
		return "", fmt.Errorf("resolve weights path: %w", err)
	}
	if info, err := os.Stat(path); err == nil && info.Size() == int64(len(buf)) {
		return path, nil
	}

	tmp, err := os.CreateTemp(s.dir, ".weights-*")
	if err != nil {
		return "", fmt.Errorf("create temp weights file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(buf); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write weights: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close weights file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("publish weights file: %w", err)
	}
	return path, nil
}
