package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/bwise1/waste_patrol/config"
	"github.com/pkg/errors"
)

// StoredFile describes an uploaded object.
type StoredFile struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
}

// Store persists uploaded images.
type Store interface {
	Save(ctx context.Context, folder, filename string, data []byte) (StoredFile, error)
}

// New picks the backend named by cfg.StorageDriver.
func New(cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case config.StorageCloudinary:
		return NewCloudinary(cfg)
	default:
		return NewLocal(cfg.UploadDir, cfg.PublicBaseURL)
	}
}

// Local writes files below a directory served at /uploads.
type Local struct {
	root    string
	baseURL string
}

func NewLocal(root, baseURL string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "create upload directory")
	}
	return &Local{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (l *Local) Root() string {
	return l.root
}

func (l *Local) Save(ctx context.Context, folder, filename string, data []byte) (StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return StoredFile{}, err
	}
	name := filepath.Base(filename)
	dir := filepath.Join(l.root, filepath.Clean("/"+folder))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return StoredFile{}, errors.Wrap(err, "create folder")
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return StoredFile{}, errors.Wrap(err, "write file")
	}

	rel := strings.TrimPrefix(filepath.ToSlash(filepath.Join(filepath.Clean("/"+folder), name)), "/")
	return StoredFile{
		Filename: name,
		URL:      l.baseURL + "/uploads/" + rel,
		Size:     int64(len(data)),
	}, nil
}
