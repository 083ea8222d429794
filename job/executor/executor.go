// Package executor binds the media pipelines to job kinds and registers
// them on the worker pool.
package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gosimple/slug"

	"github.com/ncobase/spacearc/config"
	"github.com/ncobase/spacearc/job/structs"
	"github.com/ncobase/spacearc/job/worker"
	"github.com/ncobase/spacearc/media"
)

// Executors owns the pipeline clients shared by every handler.
type Executors struct {
	cfg        *config.Media
	downloader *media.Downloader
	renderer   *media.VideoRenderer
	ai         *media.AIClient
}

// New builds the pipelines from the media config. The runner is injectable
// so tests can run handlers without yt-dlp or ffmpeg installed.
func New(cfg *config.Media, runner media.Runner) *Executors {
	if runner == nil {
		runner = media.NewRunner()
	}
	return &Executors{
		cfg:        cfg,
		downloader: media.NewDownloader(runner, cfg),
		renderer:   media.NewVideoRenderer(runner, cfg),
		ai:         media.NewAIClient(cfg.AI),
	}
}

// BreakerState exposes the AI circuit breaker state for the stats endpoint.
func (e *Executors) BreakerState() string {
	return e.ai.BreakerState()
}

// Register binds every job kind to its handler.
func (e *Executors) Register(pool *worker.Pool) {
	pool.Register(structs.KindSpaceDownload, e.Download)
	pool.Register(structs.KindTranscription, e.Transcribe)
	pool.Register(structs.KindTranslation, e.Translate)
	pool.Register(structs.KindVideoGeneration, e.RenderVideo)
	pool.Register(structs.KindTTS, e.Synthesize)
}

// Download fetches the space recording.
func (e *Executors) Download(ctx context.Context, job *structs.Job, rep worker.Reporter) (string, error) {
	sourceURL := payloadString(job, "source_url")
	if sourceURL == "" {
		return "", fmt.Errorf("job %d has no source_url", job.ID)
	}
	title := payloadString(job, "title")
	if title == "" {
		title = job.SpaceID
	}

	if err := rep.Downloading(ctx); err != nil {
		return "", err
	}

	pump := newProgressPump(ctx, rep)
	defer pump.cancel()

	dest, err := e.downloader.Download(pump.ctx, sourceURL, title, pump.report)
	if abandonErr := pump.abandoned(); abandonErr != nil {
		return "", abandonErr
	}
	if err != nil {
		return "", err
	}
	return dest, nil
}

// Transcribe turns the downloaded audio into a transcript file.
func (e *Executors) Transcribe(ctx context.Context, job *structs.Job, rep worker.Reporter) (string, error) {
	audioPath := payloadString(job, "audio_path")
	if audioPath == "" {
		return "", fmt.Errorf("job %d has no audio_path", job.ID)
	}

	if err := rep.Processing(ctx); err != nil {
		return "", err
	}

	pump := newProgressPump(ctx, rep)
	defer pump.cancel()

	transcript, err := e.ai.Transcribe(pump.ctx, audioPath, pump.report)
	if abandonErr := pump.abandoned(); abandonErr != nil {
		return "", abandonErr
	}
	if err != nil {
		return "", err
	}

	return e.writeArtifact(artifactBase(audioPath)+".txt", transcript)
}

// Translate converts a transcript into the requested language.
func (e *Executors) Translate(ctx context.Context, job *structs.Job, rep worker.Reporter) (string, error) {
	transcriptPath := payloadString(job, "transcript_path")
	if transcriptPath == "" {
		return "", fmt.Errorf("job %d has no transcript_path", job.ID)
	}
	targetLang := payloadString(job, "target_lang")

	raw, err := os.ReadFile(transcriptPath)
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}

	if err := rep.Processing(ctx); err != nil {
		return "", err
	}

	pump := newProgressPump(ctx, rep)
	defer pump.cancel()

	translated, err := e.ai.Translate(pump.ctx, string(raw), targetLang, pump.report)
	if abandonErr := pump.abandoned(); abandonErr != nil {
		return "", abandonErr
	}
	if err != nil {
		return "", err
	}

	suffix := slug.Make(targetLang)
	if suffix == "" {
		suffix = "translated"
	}
	return e.writeArtifact(artifactBase(transcriptPath)+"."+suffix+".txt", translated)
}

// RenderVideo renders the waveform video for an archived recording.
func (e *Executors) RenderVideo(ctx context.Context, job *structs.Job, rep worker.Reporter) (string, error) {
	audioPath := payloadString(job, "audio_path")
	if audioPath == "" {
		return "", fmt.Errorf("job %d has no audio_path", job.ID)
	}

	if err := rep.Processing(ctx); err != nil {
		return "", err
	}

	pump := newProgressPump(ctx, rep)
	defer pump.cancel()

	out, err := e.renderer.Render(pump.ctx, audioPath, pump.report)
	if abandonErr := pump.abandoned(); abandonErr != nil {
		return "", abandonErr
	}
	if err != nil {
		return "", err
	}
	return out, nil
}

// Synthesize reads a transcript and produces spoken audio.
func (e *Executors) Synthesize(ctx context.Context, job *structs.Job, rep worker.Reporter) (string, error) {
	textPath := payloadString(job, "text_path")
	if textPath == "" {
		textPath = payloadString(job, "transcript_path")
	}
	if textPath == "" {
		return "", fmt.Errorf("job %d has no text_path", job.ID)
	}

	raw, err := os.ReadFile(textPath)
	if err != nil {
		return "", fmt.Errorf("read input text: %w", err)
	}

	if err := rep.Processing(ctx); err != nil {
		return "", err
	}

	pump := newProgressPump(ctx, rep)
	defer pump.cancel()

	outPath := filepath.Join(e.cfg.OutputDir, artifactBase(textPath)+".tts.mp3")
	out, err := e.ai.Speech(pump.ctx, string(raw), outPath, pump.report)
	if abandonErr := pump.abandoned(); abandonErr != nil {
		return "", abandonErr
	}
	if err != nil {
		return "", err
	}
	return out, nil
}

func (e *Executors) writeArtifact(name, content string) (string, error) {
	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(e.cfg.OutputDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

func payloadString(job *structs.Job, key string) string {
	if v, ok := job.Payload[key].(string); ok {
		return v
	}
	return ""
}

func artifactBase(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// progressPump forwards pipeline progress to the reporter. A write that
// hits a terminal row cancels the pipeline context, which is the job's
// cooperative cancellation: the reaper or an admin moved the row on, so
// the run is discarded.
type progressPump struct {
	ctx     context.Context
	cancel  context.CancelFunc
	rep     worker.Reporter
	dropped atomic.Bool
}

func newProgressPump(ctx context.Context, rep worker.Reporter) *progressPump {
	ctx, cancel := context.WithCancel(ctx)
	return &progressPump{ctx: ctx, cancel: cancel, rep: rep}
}

func (p *progressPump) report(prog media.Progress) {
	if p.dropped.Load() {
		return
	}
	err := p.rep.Progress(p.ctx, prog.Percent, prog.Bytes, prog.ETASeconds)
	if errors.Is(err, worker.ErrAbandoned) {
		p.dropped.Store(true)
		p.cancel()
	}
}

// abandoned converts the pipeline's cancellation back into ErrAbandoned when
// this pump triggered it.
func (p *progressPump) abandoned() error {
	if p.dropped.Load() {
		return worker.ErrAbandoned
	}
	return nil
}
