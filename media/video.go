package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ncobase/spacearc/config"
)

// VideoRenderer renders a waveform video over an audio file with ffmpeg.
type VideoRenderer struct {
	runner    Runner
	binPath   string
	outputDir string
}

// NewVideoRenderer creates a renderer from the media config.
func NewVideoRenderer(runner Runner, cfg *config.Media) *VideoRenderer {
	return &VideoRenderer{
		runner:    runner,
		binPath:   cfg.FFmpegPath,
		outputDir: cfg.OutputDir,
	}
}

const waveformFilter = "[0:a]showwaves=s=1280x720:mode=line:colors=white[v]"

// Render produces an mp4 next to the audio artifact and returns its path.
// Progress comes from ffmpeg's -progress key=value stream measured against
// the probed input duration.
func (r *VideoRenderer) Render(ctx context.Context, audioPath string, onProgress ProgressFunc) (string, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return "", &PipelineError{
			Stage:   StageRendering,
			Message: fmt.Sprintf("cannot access audio file: %s", audioPath),
			Err:     err,
		}
	}
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", &PipelineError{
			Stage:   StageRendering,
			Message: fmt.Sprintf("cannot create output directory %s", r.outputDir),
			Err:     err,
		}
	}

	duration := r.probeDuration(ctx, audioPath)

	base := filepath.Base(audioPath)
	outPath := filepath.Join(r.outputDir, strings.TrimSuffix(base, filepath.Ext(base))+".mp4")

	args := []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", audioPath,
		"-filter_complex", waveformFilter,
		"-map", "[v]", "-map", "0:a",
		"-c:v", "libx264", "-preset", "fast", "-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-progress", "pipe:1", "-nostats",
		outPath,
	}

	res, err := r.runner.Stream(ctx, func(line string) {
		us, ok := ParseOutTime(line)
		if !ok || duration <= 0 {
			return
		}
		percent := int(us * 100 / duration.Microseconds())
		if percent > 99 {
			percent = 99
		}
		report(onProgress, Progress{Percent: percent})
	}, r.binPath, args...)
	log := commandLog(r.binPath, args, res)
	if err != nil {
		return "", &PipelineError{
			Stage:      StageRendering,
			Message:    "ffmpeg failed: " + lastLines(res.Stderr, 3),
			CommandLog: log,
			Err:        err,
		}
	}
	if _, err := os.Stat(outPath); err != nil {
		return "", &PipelineError{
			Stage:      StageRendering,
			Message:    "ffmpeg completed but output file is missing",
			CommandLog: log,
			Err:        err,
		}
	}

	report(onProgress, Progress{Percent: 100})
	return outPath, nil
}

// probeDuration reads the input duration from ffmpeg's banner. The probe
// invocation exits non-zero by design (no output file), so the error is
// ignored and only the banner is parsed.
func (r *VideoRenderer) probeDuration(ctx context.Context, path string) time.Duration {
	res, _ := r.runner.Run(ctx, r.binPath, "-hide_banner", "-i", path)
	return ParseFFmpegDuration(res.Stderr)
}

var (
	ffmpegDurationRe = regexp.MustCompile(`Duration:\s+(\d+):(\d+):(\d+)\.(\d+)`)
	outTimeUsRe      = regexp.MustCompile(`^out_time_us=(\d+)$`)
	outTimeMsRe      = regexp.MustCompile(`^out_time_ms=(\d+)$`)
)

// ParseFFmpegDuration extracts "Duration: HH:MM:SS.cc" from ffmpeg output.
func ParseFFmpegDuration(output string) time.Duration {
	m := ffmpegDurationRe.FindStringSubmatch(output)
	if m == nil {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])
	cs, _ := strconv.Atoi(m[4])
	return time.Duration(h)*time.Hour +
		time.Duration(min)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(cs)*10*time.Millisecond
}

// ParseOutTime reads the elapsed output time in microseconds from one
// -progress line. Despite its name, ffmpeg's out_time_ms carries
// microseconds; out_time_us is preferred when both appear.
func ParseOutTime(line string) (int64, bool) {
	if m := outTimeUsRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return v, true
		}
	}
	if m := outTimeMsRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
