package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ncobase/spacearc/config"
	"github.com/ncobase/spacearc/job/structs"
	"github.com/ncobase/spacearc/job/worker"
	"github.com/ncobase/spacearc/media"
)

type scriptRunner struct {
	lines  []string
	before func()
	err    error
}

func (s *scriptRunner) Run(ctx context.Context, name string, args ...string) (media.Result, error) {
	return media.Result{}, nil
}

func (s *scriptRunner) Stream(ctx context.Context, onLine func(string), name string, args ...string) (media.Result, error) {
	if s.before != nil {
		s.before()
	}
	for _, line := range s.lines {
		if ctx.Err() != nil {
			return media.Result{}, ctx.Err()
		}
		onLine(line)
	}
	return media.Result{}, s.err
}

type recordReporter struct {
	progressFn func(ctx context.Context, percent int, bytes int64, eta *int64) error
	stages     []string
}

func (r *recordReporter) Progress(ctx context.Context, percent int, bytes int64, eta *int64) error {
	if r.progressFn != nil {
		return r.progressFn(ctx, percent, bytes, eta)
	}
	return nil
}

func (r *recordReporter) Downloading(ctx context.Context) error {
	r.stages = append(r.stages, "downloading")
	return nil
}

func (r *recordReporter) Processing(ctx context.Context) error {
	r.stages = append(r.stages, "processing")
	return nil
}

func testMediaConfig(dir string) *config.Media {
	return &config.Media{
		OutputDir:  dir,
		YtdlpPath:  "yt-dlp",
		FFmpegPath: "ffmpeg",
		AI:         &config.AI{BaseURL: "http://127.0.0.1:0", Breaker: &config.Breaker{}},
	}
}

func TestDownloadHandler(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "my-space.mp3")
	runner := &scriptRunner{
		lines: []string{
			"[download]  40.0% of 10.00MiB at 1.00MiB/s ETA 00:06",
			"[ExtractAudio] Destination: " + dest,
		},
		before: func() {
			if err := os.WriteFile(dest, []byte("audio"), 0o644); err != nil {
				t.Fatalf("write artifact: %v", err)
			}
		},
	}

	e := New(testMediaConfig(dir), runner)
	rep := &recordReporter{}
	job := &structs.Job{
		ID:      1,
		SpaceID: "1abc",
		Kind:    structs.KindSpaceDownload,
		Payload: map[string]any{"source_url": "https://x.com/i/spaces/1abc", "title": "My Space"},
	}

	out, err := e.Download(context.Background(), job, rep)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if out != dest {
		t.Errorf("output = %q, want %q", out, dest)
	}
	if len(rep.stages) == 0 || rep.stages[0] != "downloading" {
		t.Errorf("stages = %v", rep.stages)
	}
}

func TestDownloadRequiresSourceURL(t *testing.T) {
	e := New(testMediaConfig(t.TempDir()), &scriptRunner{})
	job := &structs.Job{ID: 2, Payload: map[string]any{}}

	_, err := e.Download(context.Background(), job, &recordReporter{})
	if err == nil || !strings.Contains(err.Error(), "source_url") {
		t.Errorf("err = %v", err)
	}
}

func TestDownloadAbandonsOnGuardRejection(t *testing.T) {
	dir := t.TempDir()
	runner := &scriptRunner{
		lines: []string{
			"[download]  10.0% of 10.00MiB at 1.00MiB/s ETA 00:09",
			"[download]  20.0% of 10.00MiB at 1.00MiB/s ETA 00:08",
			"[download]  30.0% of 10.00MiB at 1.00MiB/s ETA 00:07",
		},
	}

	e := New(testMediaConfig(dir), runner)
	rep := &recordReporter{
		progressFn: func(ctx context.Context, percent int, bytes int64, eta *int64) error {
			// The row turned terminal underneath the run.
			return fmt.Errorf("progress write: %w", worker.ErrAbandoned)
		},
	}
	job := &structs.Job{
		ID:      3,
		SpaceID: "1abc",
		Payload: map[string]any{"source_url": "https://x.com/i/spaces/1abc"},
	}

	_, err := e.Download(context.Background(), job, rep)
	if !errors.Is(err, worker.ErrAbandoned) {
		t.Errorf("err = %v, want ErrAbandoned", err)
	}
}

func TestTranslateHandlerWritesArtifact(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "hola mundo"}},
			},
		})
	}))
	defer ts.Close()

	dir := t.TempDir()
	transcript := filepath.Join(dir, "space.txt")
	if err := os.WriteFile(transcript, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	cfg := testMediaConfig(dir)
	cfg.AI.BaseURL = ts.URL
	cfg.AI.Timeout = 5 * time.Second

	e := New(cfg, &scriptRunner{})
	rep := &recordReporter{}
	job := &structs.Job{
		ID:      4,
		SpaceID: "1abc",
		Kind:    structs.KindTranslation,
		Payload: map[string]any{"transcript_path": transcript, "target_lang": "Spanish"},
	}

	out, err := e.Translate(context.Background(), job, rep)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if !strings.HasSuffix(out, "space.spanish.txt") {
		t.Errorf("artifact = %q", out)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "hola mundo" {
		t.Errorf("artifact content = %q", data)
	}
	if len(rep.stages) == 0 || rep.stages[0] != "processing" {
		t.Errorf("stages = %v", rep.stages)
	}
}

func TestPayloadString(t *testing.T) {
	job := &structs.Job{Payload: map[string]any{"title": "My Space", "count": 3}}
	if got := payloadString(job, "title"); got != "My Space" {
		t.Errorf("title = %q", got)
	}
	if got := payloadString(job, "count"); got != "" {
		t.Errorf("non-string value = %q, want empty", got)
	}
	if got := payloadString(job, "missing"); got != "" {
		t.Errorf("missing key = %q, want empty", got)
	}
}

func TestArtifactBase(t *testing.T) {
	if got := artifactBase("/archives/my-space.mp3"); got != "my-space" {
		t.Errorf("base = %q", got)
	}
	if got := artifactBase("transcript.txt"); got != "transcript" {
		t.Errorf("base = %q", got)
	}
}
