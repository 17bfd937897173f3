// Package staging manages the ephemeral local mirror of the remote feature
// set used for comparison during a sync run.
package staging

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauern/featsync/internal/errs"
	"github.com/klauern/featsync/internal/events"
	"github.com/klauern/featsync/internal/logging"
)

// DefaultExtension is the document file extension considered during scans.
const DefaultExtension = ".feature"

// Transport populates a directory with the remote system's current feature
// snapshot. The concrete API behind it is out of scope here; production
// implementations wrap the remote service client, tests use fixtures.
type Transport interface {
	FetchSnapshot(ctx context.Context, dir string) error
}

// Manager owns the staging directory for one sync run. Concurrent runs
// against the same staging path are unsupported.
type Manager struct {
	localDir   string
	stagingDir string
	ext        string
	transport  Transport
	bus        *events.Bus
}

// Options configures a staging manager.
type Options struct {
	// LocalDir is the versioned local feature directory.
	LocalDir string
	// StagingDir is the ephemeral mirror location.
	StagingDir string
	// Extension filters scans to one document type. Defaults to ".feature".
	Extension string
	// Transport fetches the remote snapshot.
	Transport Transport
	// Bus receives staging and download events. Optional.
	Bus *events.Bus
}

// New creates a staging manager.
func New(opts Options) *Manager {
	ext := opts.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	return &Manager{
		localDir:   opts.LocalDir,
		stagingDir: opts.StagingDir,
		ext:        ext,
		transport:  opts.Transport,
		bus:        opts.Bus,
	}
}

// Create removes any pre-existing staging directory and recreates it empty.
// Staging is always a clean slate, never merged into a stale one.
func (m *Manager) Create() error {
	if err := os.RemoveAll(m.stagingDir); err != nil {
		return &errs.StagingError{Op: "create", Err: err}
	}
	if err := os.MkdirAll(m.stagingDir, 0o750); err != nil {
		return &errs.StagingError{Op: "create", Err: err}
	}
	logging.Debug("staging directory created", logging.Path(m.stagingDir))
	m.emit(events.StagingCreated, m.stagingDir)
	return nil
}

// Fetch asks the transport to populate the staging directory with the remote
// snapshot. On failure the partially-populated staging directory is wiped so
// stale data can never be mistaken for a valid snapshot, and the failure is
// wrapped as a staging error.
func (m *Manager) Fetch(ctx context.Context) error {
	defer logging.Timer("fetch-snapshot")()

	if err := m.transport.FetchSnapshot(ctx, m.stagingDir); err != nil {
		m.emit(events.DownloadFailed, err.Error())
		if cleanErr := os.RemoveAll(m.stagingDir); cleanErr != nil {
			logging.Warn("failed to wipe staging after fetch failure",
				logging.Path(m.stagingDir),
				logging.Err(cleanErr),
			)
		}
		return &errs.StagingError{Op: "fetch", Err: err}
	}
	m.emit(events.DownloadCompleted, m.stagingDir)
	return nil
}

// ListLocal returns document paths under the local directory, relative to it.
func (m *Manager) ListLocal() ([]string, error) {
	return m.scan(m.localDir)
}

// ListRemote returns document paths under the staging directory, relative to it.
func (m *Manager) ListRemote() ([]string, error) {
	return m.scan(m.stagingDir)
}

// Clean removes the staging directory. An already-absent directory is
// success; any other failure propagates as a staging error.
func (m *Manager) Clean() error {
	if err := os.RemoveAll(m.stagingDir); err != nil {
		return &errs.StagingError{Op: "clean", Err: err}
	}
	logging.Debug("staging directory removed", logging.Path(m.stagingDir))
	m.emit(events.StagingCleaned, m.stagingDir)
	return nil
}

// LocalPath resolves a relative document path against the local directory.
func (m *Manager) LocalPath(rel string) string {
	return filepath.Join(m.localDir, filepath.FromSlash(rel))
}

// StagedPath resolves a relative document path against the staging directory.
func (m *Manager) StagedPath(rel string) string {
	return filepath.Join(m.stagingDir, filepath.FromSlash(rel))
}

// scan walks root recursively, returning slash-separated relative paths of
// files with the configured document extension, sorted.
func (m *Manager) scan(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), m.ext) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, &errs.FSError{Op: "scan", Path: root, Err: err}
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *Manager) emit(name string, payload any) {
	if m.bus != nil {
		m.bus.Emit(name, payload)
	}
}
