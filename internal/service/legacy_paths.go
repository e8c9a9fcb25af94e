package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/noah-isme/taskhub-api/internal/models"
)

// legacyDisk locates pre-migration files on local disk.
type legacyDisk struct {
	fs   afero.Fs
	root string
}

func newLegacyDisk(fs afero.Fs, root string) legacyDisk {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	return legacyDisk{fs: fs, root: filepath.Clean(root)}
}

// path maps a legacy reference to a disk path. Relative references may not leave the root.
func (d legacyDisk) path(ref models.FileRef) (string, error) {
	switch ref.Kind {
	case models.FileKindLegacyAbsolute:
		return filepath.Clean(ref.Location), nil
	case models.FileKindLegacyRelative:
		rel := filepath.Clean(filepath.FromSlash(ref.Location))
		if rel == "." || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", ErrAttachmentNotFound
		}
		return filepath.Join(d.root, rel), nil
	default:
		return "", ErrAttachmentNotFound
	}
}

// stat returns the size of a regular file, or ErrAttachmentNotFound when it is absent.
func (d legacyDisk) stat(path string) (os.FileInfo, error) {
	info, err := d.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrAttachmentNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrAttachmentNotFound
	}
	return info, nil
}

func (d legacyDisk) remove(ref models.FileRef) error {
	path, err := d.path(ref)
	if err != nil {
		return err
	}
	if err := d.fs.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrAttachmentNotFound
		}
		return err
	}
	return nil
}
