package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"media-library/internal/filesystem"
	"media-library/internal/library"
	"media-library/internal/logging"
	"media-library/internal/mediatypes"
)

// ImageKind selects where a downloaded image is stored.
type ImageKind int

const (
	ImagePrimary ImageKind = iota
	ImageBackdrop
)

// SaveToLibraryFilesystem writes data to path inside the library while the
// file watcher ignores it, so the server's own writes never trigger a
// refresh. The ignore entry is removed on every exit path.
func (m *Manager) SaveToLibraryFilesystem(ctx context.Context, item *library.Item, path string, data io.Reader) error {
	if item == nil {
		return errors.New("save: nil item")
	}
	if path == "" {
		return errors.New("save: empty path")
	}
	if data == nil {
		return errors.New("save: nil data")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if m.ignore != nil {
		m.ignore.TemporarilyIgnore(path)
		defer m.ignore.RemoveTempIgnore(path)
	}

	if err := filesystem.WriteFileAtomic(path, &ctxReader{ctx: ctx, r: data}, 0o644); err != nil {
		return fmt.Errorf("save %s for %s: %w", path, item.Name, err)
	}
	logging.Debug("Saved %s for %s", path, item.Name)
	return nil
}

// SaveImage stores an image beside a folder item and records it on the
// item. Primary images become folder.<ext>; backdrops become
// backdrop.<ext>, backdrop1.<ext> and so on.
func (m *Manager) SaveImage(ctx context.Context, item *library.Item, data io.Reader, mimeType string, kind ImageKind, index int) (string, error) {
	if item == nil || !item.IsFolder() || item.Path == "" {
		return "", errors.New("save image: item is not a folder on disk")
	}
	ext := mediatypes.ExtensionForMimeType(mimeType)
	if ext == "" {
		return "", fmt.Errorf("save image: unsupported mime type %q", mimeType)
	}
	if index < 0 {
		return "", fmt.Errorf("save image: negative index %d", index)
	}

	var name string
	switch kind {
	case ImagePrimary:
		name = "folder" + ext
	case ImageBackdrop:
		name = "backdrop" + ext
		if index > 0 {
			name = "backdrop" + strconv.Itoa(index) + ext
		}
	default:
		return "", fmt.Errorf("save image: unknown kind %d", kind)
	}

	path := filepath.Join(item.Path, name)
	if err := m.SaveToLibraryFilesystem(ctx, item, path, data); err != nil {
		return "", err
	}

	switch kind {
	case ImagePrimary:
		item.PrimaryImagePath = path
	case ImageBackdrop:
		if index < len(item.BackdropImagePaths) {
			item.BackdropImagePaths[index] = path
		} else {
			item.BackdropImagePaths = append(item.BackdropImagePaths, path)
		}
	}
	return path, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
