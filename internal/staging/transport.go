package staging

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauern/featsync/internal/errs"
	"github.com/klauern/featsync/internal/logging"
)

// DirTransport fetches the remote snapshot from a directory export, the form
// remote systems publish through a mount or a file: URL. It copies every
// document below Source into the staging directory, preserving structure.
type DirTransport struct {
	// Source is the exported snapshot root.
	Source string
	// Extension filters copied files. Defaults to ".feature".
	Extension string
}

// SourceFromURL extracts a directory path from a remote URL. Plain paths are
// returned as-is; file: URLs are stripped of their scheme. Any other scheme
// is rejected.
func SourceFromURL(url string) (string, error) {
	switch {
	case strings.HasPrefix(url, "file://"):
		return strings.TrimPrefix(url, "file://"), nil
	case strings.Contains(url, "://"):
		return "", &errs.ConfigError{
			Field:   "remote.url",
			Message: "unsupported transport scheme, expected a directory path or file: URL",
		}
	default:
		return url, nil
	}
}

// FetchSnapshot copies the snapshot into dir.
func (t *DirTransport) FetchSnapshot(ctx context.Context, dir string) error {
	ext := t.Extension
	if ext == "" {
		ext = DefaultExtension
	}

	copied := 0
	err := filepath.WalkDir(t.Source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}

		rel, err := filepath.Rel(t.Source, path)
		if err != nil {
			return err
		}
		if err := copyFile(path, filepath.Join(dir, rel)); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		return &errs.FSError{Op: "fetch", Path: t.Source, Err: err}
	}

	logging.Debug("snapshot fetched",
		logging.Path(t.Source),
		logging.Count(copied),
	)
	return nil
}

// copyFile copies src to dst, creating parent directories as needed.
func copyFile(src, dst string) error {
	// #nosec G304 - paths come from a directory walk of the configured source
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}
