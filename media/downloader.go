package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gosimple/slug"

	"github.com/ncobase/spacearc/config"
)

// Downloader fetches a space recording with yt-dlp.
type Downloader struct {
	runner      Runner
	binPath     string
	outputDir   string
	cookiesFile string
}

// NewDownloader creates a downloader from the media config.
func NewDownloader(runner Runner, cfg *config.Media) *Downloader {
	return &Downloader{
		runner:      runner,
		binPath:     cfg.YtdlpPath,
		outputDir:   cfg.OutputDir,
		cookiesFile: cfg.CookiesFile,
	}
}

// Download fetches sourceURL into the output directory. The file is named
// from the slugged title; the returned path is the produced artifact.
func (d *Downloader) Download(ctx context.Context, sourceURL, title string, onProgress ProgressFunc) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "space"
	}
	if err := os.MkdirAll(d.outputDir, 0o755); err != nil {
		return "", &PipelineError{
			Stage:   StageDownloading,
			Message: fmt.Sprintf("cannot create output directory %s", d.outputDir),
			Err:     err,
		}
	}

	args := []string{
		"--newline",
		"--no-playlist",
		"--output", filepath.Join(d.outputDir, base+".%(ext)s"),
	}
	if d.cookiesFile != "" {
		args = append(args, "--cookies", d.cookiesFile)
	}
	args = append(args, sourceURL)

	var dest string
	res, err := d.runner.Stream(ctx, func(line string) {
		if p, ok := ParseDownloadLine(line); ok {
			report(onProgress, p)
		}
		if path, ok := parseDestination(line); ok {
			dest = path
		}
	}, d.binPath, args...)
	log := commandLog(d.binPath, args, res)
	if err != nil {
		return "", &PipelineError{
			Stage:      StageDownloading,
			Message:    "yt-dlp failed: " + lastLines(res.Stderr, 3),
			CommandLog: log,
			Err:        err,
		}
	}

	if dest == "" {
		dest = d.findArtifact(base)
	}
	if dest == "" {
		return "", &PipelineError{
			Stage:      StageDownloading,
			Message:    "yt-dlp completed but no output file was produced",
			CommandLog: log,
		}
	}
	if _, err := os.Stat(dest); err != nil {
		return "", &PipelineError{
			Stage:      StageDownloading,
			Message:    fmt.Sprintf("downloaded file is missing: %s", dest),
			CommandLog: log,
			Err:        err,
		}
	}

	report(onProgress, Progress{Percent: 100})
	return dest, nil
}

// findArtifact locates the produced file when yt-dlp never printed a
// destination line, skipping leftover partial downloads.
func (d *Downloader) findArtifact(base string) string {
	matches, err := filepath.Glob(filepath.Join(d.outputDir, base+".*"))
	if err != nil {
		return ""
	}
	for _, m := range matches {
		ext := filepath.Ext(m)
		if ext == ".part" || ext == ".ytdl" {
			continue
		}
		return m
	}
	return ""
}

var (
	downloadPercentRe = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%`)
	downloadSizeRe    = regexp.MustCompile(`of\s+~?\s*(\d+(?:\.\d+)?)([KMGT]?i?B)`)
	downloadETARe     = regexp.MustCompile(`ETA\s+(\d+(?::\d+){1,2})`)
	destinationRe     = regexp.MustCompile(`^\[(?:download|ExtractAudio)\] Destination:\s+(.+)$`)
	mergerRe          = regexp.MustCompile(`^\[Merger\] Merging formats into "(.+)"$`)
)

// ParseDownloadLine extracts progress from one yt-dlp --newline stdout line,
// e.g. `[download]  42.1% of 12.34MiB at 1.23MiB/s ETA 00:42`.
func ParseDownloadLine(line string) (Progress, bool) {
	m := downloadPercentRe.FindStringSubmatch(line)
	if m == nil {
		return Progress{}, false
	}
	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Progress{}, false
	}
	p := Progress{Percent: int(percent)}

	if sm := downloadSizeRe.FindStringSubmatch(line); sm != nil {
		if total, ok := parseSizeBytes(sm[1], sm[2]); ok {
			p.Bytes = int64(float64(total) * percent / 100)
		}
	}
	if em := downloadETARe.FindStringSubmatch(line); em != nil {
		if secs, ok := parseClock(em[1]); ok {
			p.ETASeconds = &secs
		}
	}
	return p, true
}

func parseDestination(line string) (string, bool) {
	if m := destinationRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := mergerRe.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

var sizeUnits = map[string]float64{
	"B":   1,
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
	"TiB": 1 << 40,
	"KB":  1e3,
	"MB":  1e6,
	"GB":  1e9,
	"TB":  1e12,
}

func parseSizeBytes(value, unit string) (int64, bool) {
	mult, ok := sizeUnits[unit]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return int64(v * mult), true
}

// parseClock converts mm:ss or hh:mm:ss to seconds.
func parseClock(s string) (int64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	var total int64
	for _, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}
