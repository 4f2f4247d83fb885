package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/himanishpuri/barricade/pkg/utils"
)

const DefaultSampleRate = 11025

type ConvertWAVConfig struct {
	SampleRate int
	// Timeout applies when ctx carries no deadline.
	Timeout time.Duration
}

// ConvertToMonoWAV decodes the first audio stream of inputPath (audio or video
// container) into a mono 16-bit PCM WAV under outputDir and returns its path.
func ConvertToMonoWAV(
	ctx context.Context,
	inputPath string,
	outputDir string,
	cfg ConvertWAVConfig,
) (string, error) {

	if cfg.SampleRate == 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	// concurrent sessions may convert the same clip, so never reuse the input name
	outputPath := filepath.Join(outputDir, utils.GenerateUUID()+".wav")

	tmpPath := outputPath + ".tmp.wav"
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(
		ctx,
		"ffmpeg",
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-vn",      // drop video
		"-ac", "1", // mono
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)

	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed: %v (%s)", err, out)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}

	return outputPath, nil
}

// ExtractAudioTrack pulls the audio track out of a recorded clip. Clips with
// no audio stream fail with ErrNoAudioStream before ffmpeg is run.
func ExtractAudioTrack(ctx context.Context, clipPath, outputDir string, cfg ConvertWAVConfig) (string, error) {
	if _, err := os.Stat(clipPath); err != nil {
		return "", fmt.Errorf("clip not readable: %w", err)
	}
	if _, err := ReadMetadataFFmpeg(ctx, clipPath); err != nil {
		return "", err
	}
	return ConvertToMonoWAV(ctx, clipPath, outputDir, cfg)
}
