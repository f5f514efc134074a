package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/gosimple/slug"
)

// Staging layout inside a workspace directory.
const (
	pageFile   = "page.html"
	cssDir     = "css"
	purgedDir  = "purged"
	dirPrefix  = "csstrim-"
	dirPerm    = 0o700
	filePerm   = 0o600
	cssExt     = ".css"
	purgedExt  = ".purged.css"
	maxNameLen = 96
)

// ErrReleased is returned when writing to a workspace that has been released.
var ErrReleased = errors.New("workspace already released")

// Workspace is an isolated staging directory owned by one run.
type Workspace struct {
	// dir is the absolute path of the staging directory.
	dir string

	// runID is the identifier of the owning run.
	runID string

	// onRelease is invoked once after the directory is removed.
	onRelease func(*Workspace, error)

	mu       sync.Mutex
	released bool
	once     sync.Once
	err      error
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithReleaseHook registers fn to be called once after Release removed the
// directory. fn receives the removal error, if any.
func WithReleaseHook(fn func(ws *Workspace, err error)) Option {
	return func(w *Workspace) {
		w.onRelease = fn
	}
}

// Acquire creates a new workspace under baseDir. If baseDir is empty the
// system temporary directory is used. runID is folded into the directory
// name for traceability; uniqueness comes from os.MkdirTemp.
func Acquire(baseDir, runID string, opts ...Option) (*Workspace, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if err := os.MkdirAll(baseDir, dirPerm); err != nil {
		return nil, fmt.Errorf("create workspace base %s: %w", baseDir, err)
	}

	pattern := dirPrefix + safeName(runID) + "-*"
	dir, err := os.MkdirTemp(baseDir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		_ = os.RemoveAll(dir) //nolint:errcheck // best effort cleanup
		return nil, fmt.Errorf("resolve workspace path: %w", err)
	}

	w := &Workspace{
		dir:   abs,
		runID: runID,
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Dir returns the staging directory path.
func (w *Workspace) Dir() string {
	return w.dir
}

// RunID returns the identifier of the owning run.
func (w *Workspace) RunID() string {
	return w.runID
}

// Released reports whether Release has been called.
func (w *Workspace) Released() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.released
}

// Release removes the staging directory and everything in it, including
// partially written files. Only the first call does any work; later calls
// return the first call's result. Release is safe on a nil Workspace.
func (w *Workspace) Release() error {
	if w == nil {
		return nil
	}
	w.once.Do(func() {
		w.mu.Lock()
		w.released = true
		w.mu.Unlock()

		w.err = os.RemoveAll(w.dir)
		if w.onRelease != nil {
			w.onRelease(w, w.err)
		}
	})
	return w.err
}

// StagePage stores the fetched page markup.
func (w *Workspace) StagePage(html []byte) error {
	return w.write(pageFile, html)
}

// StageStylesheet stores one raw stylesheet under its source identifier.
func (w *Workspace) StageStylesheet(sourceID string, css []byte) error {
	return w.write(filepath.Join(cssDir, safeName(sourceID)+cssExt), css)
}

// StagePurged stores one purged stylesheet under its source identifier.
func (w *Workspace) StagePurged(sourceID string, css []byte) error {
	return w.write(filepath.Join(purgedDir, safeName(sourceID)+purgedExt), css)
}

// Files lists every staged file relative to the workspace directory.
func (w *Workspace) Files() ([]string, error) {
	var files []string
	err := filepath.WalkDir(w.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// write stores data at rel inside the workspace.
func (w *Workspace) write(rel string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return ErrReleased
	}

	path := filepath.Join(w.dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("stage %s: %w", rel, err)
	}
	return nil
}

// safeName reduces s to a filesystem-safe token that cannot escape the
// workspace directory. Long names are truncated and suffixed with a hash
// of the whole input so that distinct inputs keep distinct names.
func safeName(s string) string {
	name := slug.Make(s)
	if len(name) > maxNameLen {
		sum := strconv.FormatUint(xxhash.Sum64String(s), 16)
		name = strings.TrimRight(name[:maxNameLen-len(sum)-1], "-") + "-" + sum
	}
	if name == "" {
		name = "unnamed"
	}
	return name
}
