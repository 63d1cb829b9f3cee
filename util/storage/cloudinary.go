package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	"github.com/bwise1/waste_patrol/config"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/pkg/errors"
)

type Cloudinary struct {
	CLD *cloudinary.Cloudinary
}

func NewCloudinary(cfg *config.Config) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return nil, errors.Wrap(err, "initialize cloudinary")
	}

	return &Cloudinary{CLD: cld}, nil
}

func (c *Cloudinary) Save(ctx context.Context, folder, filename string, data []byte) (StoredFile, error) {
	publicID := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	resp, err := c.CLD.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:   folder,
		PublicID: publicID,
	})
	if err != nil {
		return StoredFile{}, errors.Wrap(err, "cloudinary upload")
	}
	if resp.Error.Message != "" {
		return StoredFile{}, errors.New(resp.Error.Message)
	}
	return StoredFile{
		Filename: filepath.Base(filename),
		URL:      resp.SecureURL,
		Size:     int64(resp.Bytes),
	}, nil
}
