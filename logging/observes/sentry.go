package observes

import (
	"github.com/getsentry/sentry-go"
)

// SentryOptions carries the subset of Sentry settings this app configures.
type SentryOptions struct {
	Dsn         string
	Name        string
	Release     string
	Environment string
	SampleRate  float64
}

// NewSentry initializes the Sentry client. A nil option skips initialization.
func NewSentry(opt *SentryOptions) error {
	if opt == nil || opt.Dsn == "" {
		return nil
	}

	sampleRate := opt.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              opt.Dsn,
		AttachStacktrace: true,
		TracesSampleRate: sampleRate,
		ServerName:       opt.Name,
		Release:          opt.Release,
		Environment:      opt.Environment,
	})
}
