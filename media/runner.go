// Package media drives the external tools and hosted model APIs that turn a
// claimed job into an archive artifact.
package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Result captures one finished command invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution so executors are testable without the
// real binaries. Stream forwards stdout lines as they appear, which the
// yt-dlp and ffmpeg progress parsers depend on.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
	Stream(ctx context.Context, onLine func(line string), name string, args ...string) (Result, error)
}

// NewRunner returns the production runner backed by os/exec.
func NewRunner() Runner {
	return &execRunner{}
}

type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode(err),
	}
	return result, err
}

func (r *execRunner) Stream(ctx context.Context, onLine func(string), name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, err
	}

	// Keep only the tail of stdout; progress output from a long download
	// runs to megabytes and the error text needs just the last lines.
	tail := newLineTail(200)
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		tail.append(line)
		if onLine != nil {
			onLine(line)
		}
	}
	scanErr := scanner.Err()

	err = cmd.Wait()
	result := Result{
		Stdout:   tail.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode(err),
	}
	if err != nil {
		return result, err
	}
	if scanErr != nil {
		return result, fmt.Errorf("read stdout: %w", scanErr)
	}
	return result, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

type lineTail struct {
	lines []string
	max   int
}

func newLineTail(max int) *lineTail {
	return &lineTail{max: max}
}

func (t *lineTail) append(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
}

func (t *lineTail) String() string {
	return strings.Join(t.lines, "\n")
}
