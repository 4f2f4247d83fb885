package audio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/barricade/pkg/utils"
	"github.com/lrstanley/go-ytdlp"
)

// YTMetadata contains metadata extracted from YouTube video
type YTMetadata struct {
	ID         string  `json:"id"`          // YouTube video ID
	Title      string  `json:"title"`       // Video title
	Artist     string  `json:"artist"`      // Artist (if available)
	Track      string  `json:"track"`       // Track name (if available)
	Uploader   string  `json:"uploader"`    // Channel uploader
	Channel    string  `json:"channel"`     // Channel name
	Duration   float64 `json:"duration"`    // Duration in seconds
	WebpageURL string  `json:"webpage_url"` // Canonical YouTube URL
	Ext        string  `json:"ext"`
}

// ArtistName is the credited artist, falling back to the channel or uploader.
func (m YTMetadata) ArtistName() string {
	return pickArtist(m)
}

// TrackTitle is the track name when yt-dlp knows it, otherwise the video title.
func (m YTMetadata) TrackTitle() string {
	if strings.TrimSpace(m.Track) != "" {
		return m.Track
	}
	return m.Title
}

func pickArtist(meta YTMetadata) string {
	if strings.TrimSpace(meta.Artist) != "" {
		return meta.Artist
	}
	if strings.TrimSpace(meta.Channel) != "" {
		return meta.Channel
	}
	if strings.TrimSpace(meta.Uploader) != "" {
		return meta.Uploader
	}
	return "Unknown Artist"
}

// DownloadYouTubeAudio fetches the best audio stream of a video for catalog enrollment.
func DownloadYouTubeAudio(ctx context.Context, youtubeURL string, outputDir string) (string, *YTMetadata, error) {
	return download(ctx, youtubeURL, outputDir, "ba", 3*time.Minute)
}

// DownloadVideo fetches a video (with its audio) so it can be imported as a clip.
func DownloadVideo(ctx context.Context, videoURL string, outputDir string) (string, *YTMetadata, error) {
	return download(ctx, videoURL, outputDir, "b[ext=mp4]/b", 5*time.Minute)
}

func download(ctx context.Context, url, outputDir, format string, timeout time.Duration) (string, *YTMetadata, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	name := utils.GenerateUUID()
	dl := ytdlp.New().
		Format(format).
		NoPlaylist().
		NoWarnings().
		NoProgress().
		PrintJSON().
		Output(filepath.Join(outputDir, name+".%(ext)s"))

	result, err := dl.Run(ctx, url)
	if err != nil {
		removeMatching(outputDir, name)
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		if result != nil {
			return "", nil, fmt.Errorf("yt-dlp download failed: %v\nstderr: %s", err, result.Stderr)
		}
		return "", nil, fmt.Errorf("yt-dlp download failed: %w", err)
	}

	meta, err := parseYTDLPJSON(result.Stdout)
	if err != nil {
		removeMatching(outputDir, name)
		return "", nil, err
	}
	if meta.Artist == "" {
		meta.Artist = pickArtist(*meta)
	}

	matches, _ := filepath.Glob(filepath.Join(outputDir, name+".*"))
	for _, m := range matches {
		if !strings.HasSuffix(m, ".part") {
			return m, meta, nil
		}
	}
	return "", nil, fmt.Errorf("downloaded file not found for video %s", meta.ID)
}

// parseYTDLPJSON reads the first info object yt-dlp printed.
func parseYTDLPJSON(stdout string) (*YTMetadata, error) {
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var meta YTMetadata
		if err := json.Unmarshal([]byte(line), &meta); err != nil {
			return nil, fmt.Errorf("failed to parse yt-dlp JSON: %w", err)
		}
		if strings.TrimSpace(meta.ID) == "" {
			return nil, fmt.Errorf("missing video ID in yt-dlp output")
		}
		if strings.TrimSpace(meta.Title) == "" {
			return nil, fmt.Errorf("missing title in yt-dlp output")
		}
		return &meta, nil
	}
	return nil, fmt.Errorf("no JSON metadata in yt-dlp output")
}

func removeMatching(dir, name string) {
	matches, _ := filepath.Glob(filepath.Join(dir, name+".*"))
	for _, m := range matches {
		os.Remove(m)
	}
}
