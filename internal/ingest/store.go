package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/inspection-tracker/constants"
	"github.com/joseph-ayodele/inspection-tracker/internal/common"
)

// ErrStorage marks failures reading or writing stored documents.
var ErrStorage = common.ErrStorage

// Store keeps uploaded documents so reports can be reprocessed later.
type Store interface {
	Save(fileName string, document []byte) (ref string, err error)
	Load(ref string) ([]byte, error)
}

// LocalStore writes documents into a single directory on disk.
type LocalStore struct {
	Root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root}
}

// Save writes the document under its base name and returns the absolute path.
// When a different document already holds that name, the stored name gets a
// content hash suffix instead. Writes go through a temp file and a rename.
func (s *LocalStore) Save(fileName string, document []byte) (string, error) {
	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("save %q: empty file name: %w", fileName, ErrStorage)
	}
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", s.Root, errors.Join(ErrStorage, err))
	}
	dst, err := filepath.Abs(filepath.Join(s.Root, name))
	if err != nil {
		return "", fmt.Errorf("abs path: %w", errors.Join(ErrStorage, err))
	}
	if held, err := os.ReadFile(dst); err == nil {
		if bytes.Equal(held, document) {
			return dst, nil
		}
		ext := filepath.Ext(name)
		dst = filepath.Join(filepath.Dir(dst), fmt.Sprintf("%s-%s%s", strings.TrimSuffix(name, ext), HashHex(document)[:8], ext))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("read %s: %w", dst, errors.Join(ErrStorage, err))
	}

	tmp, err := os.CreateTemp(s.Root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", errors.Join(ErrStorage, err))
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(document); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write %s: %w", dst, errors.Join(ErrStorage, err))
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", dst, errors.Join(ErrStorage, err))
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("rename to %s: %w", dst, errors.Join(ErrStorage, err))
	}
	return dst, nil
}

func (s *LocalStore) Load(ref string) ([]byte, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("load: empty reference: %w", ErrStorage)
	}
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.Root, path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, errors.Join(ErrStorage, err))
	}
	return b, nil
}

// HashHex is the sha256 content hash used for duplicate detection.
func HashHex(document []byte) string {
	sum := sha256.Sum256(document)
	return hex.EncodeToString(sum[:])
}

// AllowedExt checks if a file extension is in the allowed set.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
