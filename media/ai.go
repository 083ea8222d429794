package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/ncobase/spacearc/config"
)

const (
	// transcribeChunkSize stays under the 25MB upload cap of
	// OpenAI-compatible transcription endpoints.
	transcribeChunkSize = 24 << 20
	// translateSegmentLen is the character budget per chat call.
	translateSegmentLen = 3000
	// speechChunkLen stays under the 4096-character synthesis input cap.
	speechChunkLen = 4000
)

// AIClient talks to an OpenAI-compatible API for transcription, translation
// and speech synthesis. Every request goes through a shared circuit breaker;
// a tripped breaker surfaces as a regular pipeline failure.
type AIClient struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	baseURL string
	apiKey  string
	cfg     *config.AI
}

// NewAIClient creates a client from the AI config section.
func NewAIClient(cfg *config.AI) *AIClient {
	settings := gobreaker.Settings{
		Name:        "spacearc-ai",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	}
	return &AIClient{
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		cfg:     cfg,
	}
}

// BreakerState reports the circuit breaker state for the stats endpoint.
func (c *AIClient) BreakerState() string {
	return c.breaker.State().String()
}

// Transcribe uploads the audio file in chunks and returns the joined
// transcript. Progress advances by chunk count.
func (c *AIClient) Transcribe(ctx context.Context, audioPath string, onProgress ProgressFunc) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", &PipelineError{
			Stage:   StageTranscribing,
			Message: fmt.Sprintf("cannot open audio file: %s", audioPath),
			Err:     err,
		}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", &PipelineError{Stage: StageTranscribing, Message: "cannot stat audio file", Err: err}
	}
	totalChunks := int((info.Size() + transcribeChunkSize - 1) / transcribeChunkSize)
	if totalChunks < 1 {
		totalChunks = 1
	}

	base := filepath.Base(audioPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	var sb strings.Builder
	buf := make([]byte, transcribeChunkSize)
	var bytesSent int64
	for i := 0; i < totalChunks; i++ {
		n, err := io.ReadFull(f, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return "", &PipelineError{Stage: StageTranscribing, Message: "cannot read audio file", Err: err}
		}
		if n == 0 {
			break
		}

		text, err := c.transcribeChunk(ctx, buf[:n], fmt.Sprintf("%s-part%02d%s", name, i+1, ext))
		if err != nil {
			return "", &PipelineError{Stage: StageTranscribing, Message: err.Error(), Err: err}
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.TrimSpace(text))

		bytesSent += int64(n)
		report(onProgress, Progress{Percent: (i + 1) * 100 / totalChunks, Bytes: bytesSent})
	}
	return strings.TrimSpace(sb.String()), nil
}

func (c *AIClient) transcribeChunk(ctx context.Context, data []byte, filename string) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(data); err != nil {
		return "", err
	}
	if err := w.WriteField("model", c.cfg.TranscribeModel); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	raw, err := c.do(req)
	if err != nil {
		return "", err
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return out.Text, nil
}

// Translate converts the transcript to the target language segment by
// segment. Progress advances per segment.
func (c *AIClient) Translate(ctx context.Context, transcript, targetLang string, onProgress ProgressFunc) (string, error) {
	if targetLang == "" {
		targetLang = "English"
	}
	segments := splitSegments(transcript, translateSegmentLen)
	if len(segments) == 0 {
		return "", &PipelineError{Stage: StageTranslating, Message: "transcript is empty"}
	}

	system := fmt.Sprintf(
		"You are a translator. Translate the user's text to %s. Reply with the translation only.",
		targetLang)

	var sb strings.Builder
	for i, segment := range segments {
		payload := map[string]any{
			"model": c.cfg.TranslateModel,
			"messages": []map[string]string{
				{"role": "system", "content": system},
				{"role": "user", "content": segment},
			},
		}
		raw, err := c.postJSON(ctx, "/chat/completions", payload)
		if err != nil {
			return "", &PipelineError{Stage: StageTranslating, Message: err.Error(), Err: err}
		}
		var out struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", &PipelineError{Stage: StageTranslating, Message: "decode completion response", Err: err}
		}
		if len(out.Choices) == 0 {
			return "", &PipelineError{Stage: StageTranslating, Message: "completion returned no choices"}
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.TrimSpace(out.Choices[0].Message.Content))

		report(onProgress, Progress{Percent: (i + 1) * 100 / len(segments)})
	}
	return sb.String(), nil
}

// Speech synthesizes the text into outPath, one chunk at a time. The audio
// chunks are concatenated in order.
func (c *AIClient) Speech(ctx context.Context, text, outPath string, onProgress ProgressFunc) (string, error) {
	chunks := splitSegments(text, speechChunkLen)
	if len(chunks) == 0 {
		return "", &PipelineError{Stage: StageSynthesizing, Message: "input text is empty"}
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", &PipelineError{Stage: StageSynthesizing, Message: "cannot create output directory", Err: err}
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", &PipelineError{Stage: StageSynthesizing, Message: "cannot create output file", Err: err}
	}
	defer out.Close()

	var written int64
	for i, chunk := range chunks {
		payload := map[string]any{
			"model": c.cfg.SpeechModel,
			"voice": c.cfg.SpeechVoice,
			"input": chunk,
		}
		raw, err := c.postJSON(ctx, "/audio/speech", payload)
		if err != nil {
			return "", &PipelineError{Stage: StageSynthesizing, Message: err.Error(), Err: err}
		}
		n, err := out.Write(raw)
		if err != nil {
			return "", &PipelineError{Stage: StageSynthesizing, Message: "cannot write output file", Err: err}
		}
		written += int64(n)
		report(onProgress, Progress{Percent: (i + 1) * 100 / len(chunks), Bytes: written})
	}
	return outPath, nil
}

func (c *AIClient) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// do executes the request through the circuit breaker.
func (c *AIClient) do(req *http.Request) ([]byte, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	out, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%s returned %d: %s",
				req.URL.Path, resp.StatusCode, lastLines(string(body), 1))
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

// splitSegments packs whole words into segments of at most max characters.
// A single word longer than max becomes its own segment.
func splitSegments(text string, max int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var segments []string
	var current strings.Builder
	for _, word := range words {
		if current.Len() > 0 && current.Len()+1+len(word) > max {
			segments = append(segments, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		segments = append(segments, current.String())
	}
	return segments
}
