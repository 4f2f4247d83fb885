package clip

import (
	"context"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/himanishpuri/barricade/pkg/barricade/audio"
)

// Source is where a clip comes from.
type Source interface {
	// Open returns the clip stream with its original filename and declared
	// content type (empty when unknown).
	Open(ctx context.Context) (r io.ReadCloser, name, contentType string, err error)
}

var videoExtensions = map[string]bool{
	".mov":  true,
	".mp4":  true,
	".m4v":  true,
	".3gp":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
	".mts":  true,
	".m2ts": true,
	".wmv":  true,
	".mpg":  true,
	".mpeg": true,
}

// IsVideo reports whether a clip is a video: a video/* content type, or a
// known video extension when the content type says nothing.
func IsVideo(name, contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if strings.HasPrefix(ct, "video/") {
		return true
	}
	if ct != "" && ct != "application/octet-stream" {
		return false
	}
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// FileSource reads a clip from the local filesystem.
type FileSource struct {
	Path string
	// Name overrides the file name used for the extension check
	Name        string
	ContentType string
	// Remove deletes the file once the clip has been read, for spooled uploads
	Remove bool
}

func (s FileSource) Open(ctx context.Context) (io.ReadCloser, string, string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if s.Remove {
			os.Remove(s.Path)
		}
		return nil, "", "", err
	}
	name := s.Name
	if name == "" {
		name = filepath.Base(s.Path)
	}
	ct := s.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	}
	if s.Remove {
		return &removeOnClose{File: f, path: s.Path}, name, ct, nil
	}
	return f, name, ct, nil
}

// ReaderSource wraps an already open stream, such as a multipart upload.
type ReaderSource struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

func (s ReaderSource) Open(ctx context.Context) (io.ReadCloser, string, string, error) {
	if rc, ok := s.Reader.(io.ReadCloser); ok {
		return rc, s.Name, s.ContentType, nil
	}
	return io.NopCloser(s.Reader), s.Name, s.ContentType, nil
}

// Downloader fetches a remote video into dir and returns the local path.
type Downloader func(ctx context.Context, url, dir string) (string, error)

// YTDLPDownloader downloads with yt-dlp.
func YTDLPDownloader(ctx context.Context, url, dir string) (string, error) {
	path, _, err := audio.DownloadVideo(ctx, url, dir)
	return path, err
}

// RemoteSource downloads a video from a URL before importing it. The
// downloaded temp file is deleted when the returned stream is closed.
type RemoteSource struct {
	URL      string
	TempDir  string
	Download Downloader
}

func (s RemoteSource) Open(ctx context.Context) (io.ReadCloser, string, string, error) {
	download := s.Download
	if download == nil {
		download = YTDLPDownloader
	}
	dir := s.TempDir
	if dir == "" {
		dir = os.TempDir()
	}

	path, err := download(ctx, s.URL, dir)
	if err != nil {
		return nil, "", "", err
	}
	f, err := os.Open(path)
	if err != nil {
		os.Remove(path)
		return nil, "", "", err
	}
	name := filepath.Base(path)
	return &removeOnClose{File: f, path: path}, name, mime.TypeByExtension(filepath.Ext(name)), nil
}

type removeOnClose struct {
	*os.File
	path string
}

func (r *removeOnClose) Close() error {
	err := r.File.Close()
	os.Remove(r.path)
	return err
}
