package config

import (
	"time"

	"github.com/spf13/viper"
)

// Jobs represents the job processing configuration
type Jobs struct {
	Workers *Workers
	Reaper  *Reaper
	Media   *Media
}

// Workers configures the polling worker pool
type Workers struct {
	Count        int
	PollInterval time.Duration
	TaskTimeout  time.Duration
	Embedded     bool
}

// Reaper configures the stale job sweeper
type Reaper struct {
	Interval   time.Duration
	StaleAfter time.Duration
}

// Media configures the external tool pipelines
type Media struct {
	WorkDir     string
	OutputDir   string
	YtdlpPath   string
	FFmpegPath  string
	CookiesFile string
	AI          *AI
}

// AI configures the hosted model endpoint used by transcription,
// translation and speech jobs
type AI struct {
	BaseURL         string
	APIKey          string
	TranscribeModel string
	TranslateModel  string
	SpeechModel     string
	SpeechVoice     string
	Timeout         time.Duration
	Breaker         *Breaker
}

// Breaker configures the circuit breaker guarding the AI endpoint
type Breaker struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// getJobsConfig returns jobs config
func getJobsConfig(v *viper.Viper) *Jobs {
	return &Jobs{
		Workers: &Workers{
			Count:        getIntOrDefault(v, "jobs.workers.count", 4),
			PollInterval: getDurationOrDefault(v, "jobs.workers.poll_interval", 2*time.Second),
			TaskTimeout:  getDurationOrDefault(v, "jobs.workers.task_timeout", 6*time.Hour),
			Embedded:     getBoolOrDefault(v, "jobs.workers.embedded", true),
		},
		Reaper: &Reaper{
			Interval:   getDurationOrDefault(v, "jobs.reaper.interval", time.Minute),
			StaleAfter: getDurationOrDefault(v, "jobs.reaper.stale_after", time.Hour),
		},
		Media: &Media{
			WorkDir:     getStringOrDefault(v, "jobs.media.work_dir", "/tmp/spacearc"),
			OutputDir:   getStringOrDefault(v, "jobs.media.output_dir", "./archives"),
			YtdlpPath:   getStringOrDefault(v, "jobs.media.ytdlp_path", "yt-dlp"),
			FFmpegPath:  getStringOrDefault(v, "jobs.media.ffmpeg_path", "ffmpeg"),
			CookiesFile: v.GetString("jobs.media.cookies_file"),
			AI:          getAIConfig(v),
		},
	}
}

func getAIConfig(v *viper.Viper) *AI {
	return &AI{
		BaseURL:         getStringOrDefault(v, "jobs.media.ai.base_url", "https://api.openai.com/v1"),
		APIKey:          v.GetString("jobs.media.ai.api_key"),
		TranscribeModel: getStringOrDefault(v, "jobs.media.ai.transcribe_model", "whisper-1"),
		TranslateModel:  getStringOrDefault(v, "jobs.media.ai.translate_model", "gpt-4o-mini"),
		SpeechModel:     getStringOrDefault(v, "jobs.media.ai.speech_model", "tts-1"),
		SpeechVoice:     getStringOrDefault(v, "jobs.media.ai.speech_voice", "alloy"),
		Timeout:         getDurationOrDefault(v, "jobs.media.ai.timeout", 5*time.Minute),
		Breaker: &Breaker{
			MaxRequests: getUint32OrDefault(v, "jobs.media.ai.breaker.max_requests", 100),
			Interval:    getDurationOrDefault(v, "jobs.media.ai.breaker.interval", 5*time.Second),
			Timeout:     getDurationOrDefault(v, "jobs.media.ai.breaker.timeout", 30*time.Second),
		},
	}
}
