package media

import (
	"fmt"
	"strings"
)

// Pipeline stages reported in errors and logs.
const (
	StageDownloading  = "downloading"
	StageTranscribing = "transcribing"
	StageTranslating  = "translating"
	StageRendering    = "rendering"
	StageSynthesizing = "synthesizing"
)

// CommandLog captures one external command invocation.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exit_code"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// PipelineError is a stage-aware failure with optional command context. Its
// text ends up verbatim on the status page, so it keeps the tool tail.
type PipelineError struct {
	Stage      string     `json:"stage"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"command_log"`
	Err        error      `json:"-"`
}

func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s (cmd=%s exit=%d)",
		e.Stage, e.Message, e.CommandLog.Command, e.CommandLog.ExitCode)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// commandLog builds a CommandLog from a runner result.
func commandLog(name string, args []string, res Result) CommandLog {
	return CommandLog{
		Command:  name,
		Args:     args,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
}

// Progress is one progress observation from a pipeline.
type Progress struct {
	Percent    int
	Bytes      int64
	ETASeconds *int64
}

// ProgressFunc receives progress observations. Implementations must be cheap;
// pipelines call it from their stream loops.
type ProgressFunc func(Progress)

func report(fn ProgressFunc, p Progress) {
	if fn != nil {
		fn(p)
	}
}

// lastLines returns the last n non-empty lines of tool output, flattened for
// a single-line error message.
func lastLines(s string, n int) string {
	var kept []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		return "no output"
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, " | ")
}
