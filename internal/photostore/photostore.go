package photostore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store persists guardian reference photos and returns the path recorded next
// to the embedding.
type Store interface {
	Save(data []byte, ext string) (string, error)
}

// Local writes photos under a directory on disk.
type Local struct {
	Dir string
}

// NewLocal creates the directory if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photo dir: %w", err)
	}
	return &Local{Dir: dir}, nil
}

// Save writes the photo with a generated name and returns its path.
func (l *Local) Save(data []byte, ext string) (string, error) {
	if ext == "" {
		ext = ".jpg"
	}
	path := filepath.Join(l.Dir, uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	return path, nil
}
