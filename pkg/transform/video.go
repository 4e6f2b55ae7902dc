package transform

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// TranscodeOpts bound the preview rendition. Zero values fall back to the
// defaults below.
type TranscodeOpts struct {
	MaxHeight    int
	CRF          int
	AudioBitrate string
}

const (
	defaultMaxHeight    = 720
	defaultCRF          = 28
	defaultAudioBitrate = "128k"

	// DefaultTranscodeTimeout is the hard wall-clock bound on one
	// subprocess run. On expiry the process is killed and the attempt
	// counts as a transcode failure.
	DefaultTranscodeTimeout = 10 * time.Minute
)

// Transcoder produces the video preview rendition and its thumbnail frame.
// It exists as an interface so tests can substitute a fake without spawning
// processes.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string, opts TranscodeOpts) error
	ExtractFrame(ctx context.Context, inputPath, outputPath string) error
}

// FFmpegTranscoder shells out to ffmpeg. The exit code is the only success
// signal; stderr is captured for diagnostics only.
type FFmpegTranscoder struct {
	FFmpegPath string
	Timeout    time.Duration
}

func NewFFmpegTranscoder(ffmpegPath string, timeout time.Duration) *FFmpegTranscoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = DefaultTranscodeTimeout
	}

	return &FFmpegTranscoder{FFmpegPath: ffmpegPath, Timeout: timeout}
}

func (t *FFmpegTranscoder) Transcode(ctx context.Context, inputPath, outputPath string, opts TranscodeOpts) error {
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = defaultMaxHeight
	}
	if opts.CRF <= 0 {
		opts.CRF = defaultCRF
	}
	if opts.AudioBitrate == "" {
		opts.AudioBitrate = defaultAudioBitrate
	}

	// -2 keeps the width even, which libx264 requires.
	scale := fmt.Sprintf("scale=-2:'min(%d,ih)'", opts.MaxHeight)

	args := []string{
		"-y",
		"-i", inputPath,
		"-vf", scale,
		"-c:v", "libx264",
		"-crf", strconv.Itoa(opts.CRF),
		"-preset", "veryfast",
		"-movflags", "+faststart",
		"-c:a", "aac",
		"-b:a", opts.AudioBitrate,
		outputPath,
	}

	return t.run(ctx, args)
}

// ExtractFrame grabs a representative frame one second in for the video
// thumbnail.
func (t *FFmpegTranscoder) ExtractFrame(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-y",
		"-ss", "00:00:01",
		"-i", inputPath,
		"-vframes", "1",
		"-vf", fmt.Sprintf("scale='min(%d,iw)':-2", ThumbWidth),
		outputPath,
	}

	return t.run(ctx, args)
}

func (t *FFmpegTranscoder) run(ctx context.Context, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.FFmpegPath, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: killed after %s", ErrTranscodeFailed, t.Timeout)
		}
		return fmt.Errorf("%w: %s: %s", ErrTranscodeFailed, err, stderrTail(stderr.Bytes()))
	}

	return nil
}

// stderrTail keeps error messages human sized; ffmpeg can emit pages.
func stderrTail(b []byte) string {
	const max = 512
	if len(b) > max {
		b = b[len(b)-max:]
	}
	return string(bytes.TrimSpace(b))
}
