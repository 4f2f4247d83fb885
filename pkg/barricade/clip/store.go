package clip

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/himanishpuri/barricade/pkg/utils"
	"github.com/spf13/afero"
)

// Store persists clip bytes under a reference.
type Store interface {
	// Save writes r under ref. A partially written clip is removed on error.
	Save(ctx context.Context, ref string, r io.Reader) error
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// Remove deletes a clip; a missing clip is not an error.
	Remove(ctx context.Context, ref string) error
	Exists(ctx context.Context, ref string) (bool, error)
	// LocalPath returns a filesystem path the audio toolchain can read. The
	// release func must be called when the path is no longer needed.
	LocalPath(ctx context.Context, ref string) (string, func(), error)
}

// ValidRef reports whether ref looks like a clip reference: a bare file name.
func ValidRef(ref string) bool {
	if ref == "" || ref == "." || ref == ".." {
		return false
	}
	return !strings.ContainsAny(ref, `/\`)
}

// LocalStore keeps clips as files in one directory.
type LocalStore struct {
	fs   afero.Fs
	root string // real directory when fs is the OS filesystem
}

// NewLocalStore stores clips under dir on disk.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := utils.MakeDir(dir); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &LocalStore{fs: afero.NewBasePathFs(afero.NewOsFs(), abs), root: abs}, nil
}

// NewFsStore stores clips in an arbitrary afero filesystem.
func NewFsStore(fs afero.Fs) *LocalStore {
	return &LocalStore{fs: fs}
}

func (s *LocalStore) Fs() afero.Fs {
	return s.fs
}

func (s *LocalStore) Save(ctx context.Context, ref string, r io.Reader) error {
	f, err := s.fs.OpenFile(ref, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.fs.Remove(ref)
		return err
	}
	return nil
}

func (s *LocalStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	return s.fs.Open(ref)
}

func (s *LocalStore) Remove(ctx context.Context, ref string) error {
	err := s.fs.Remove(ref)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *LocalStore) Exists(ctx context.Context, ref string) (bool, error) {
	return afero.Exists(s.fs, ref)
}

func (s *LocalStore) LocalPath(ctx context.Context, ref string) (string, func(), error) {
	if s.root != "" {
		path := filepath.Join(s.root, ref)
		if _, err := os.Stat(path); err != nil {
			return "", nil, err
		}
		return path, func() {}, nil
	}

	// not backed by disk, copy out to a temp file
	src, err := s.fs.Open(ref)
	if err != nil {
		return "", nil, err
	}
	defer src.Close()
	return copyToTemp(ctx, ref, src)
}

func copyToTemp(ctx context.Context, ref string, src io.Reader) (string, func(), error) {
	tmp, err := os.CreateTemp("", "clip-*"+filepath.Ext(ref))
	if err != nil {
		return "", nil, err
	}
	_, err = io.Copy(tmp, &ctxReader{ctx: ctx, r: src})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	path := tmp.Name()
	return path, func() { os.Remove(path) }, nil
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
