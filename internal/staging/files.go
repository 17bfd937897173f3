package staging

import (
	"os"

	"github.com/klauern/featsync/internal/cache"
	"github.com/klauern/featsync/internal/errs"
)

// FileReader reads document text through the file-content cache, so the same
// file compared by the diff manager and validated in a batch is read from
// disk once.
type FileReader struct {
	cache *cache.Cache[string]
}

// NewFileReader creates a reader backed by the given content cache. A nil
// cache disables memoization.
func NewFileReader(c *cache.Cache[string]) *FileReader {
	return &FileReader{cache: c}
}

// ReadFile returns the file's content, consulting the cache first.
func (fr *FileReader) ReadFile(path string) (string, error) {
	if fr.cache != nil {
		if content, ok := fr.cache.Get(cache.FileKey(path)); ok {
			return content, nil
		}
	}

	// #nosec G304 - paths are resolved from the configured feature roots
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &errs.FSError{Op: "read", Path: path, Err: err}
	}
	content := string(data)

	if fr.cache != nil {
		fr.cache.Set(cache.FileKey(path), content)
	}
	return content, nil
}

// WriteFile writes content and invalidates the cached copy for the path.
func (fr *FileReader) WriteFile(path, content string) error {
	// #nosec G306 - feature files should be readable
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return &errs.FSError{Op: "write", Path: path, Err: err}
	}
	if fr.cache != nil {
		fr.cache.Delete(cache.FileKey(path))
	}
	return nil
}
