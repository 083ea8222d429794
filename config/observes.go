package config

import (
	"github.com/spf13/viper"
)

// Sentry config struct
type Sentry struct {
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	Environment string  `json:"environment" yaml:"environment"`
	Release     string  `json:"release" yaml:"release"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`
}

// getSentryConfig get sentry config
func getSentryConfig(v *viper.Viper) *Sentry {
	return &Sentry{
		Endpoint:    v.GetString("observes.sentry.endpoint"),
		Environment: v.GetString("observes.sentry.environment"),
		Release:     v.GetString("observes.sentry.release"),
		SampleRate:  getFloat64OrDefault(v, "observes.sentry.sample_rate", 1.0),
	}
}

// Observes config struct
type Observes struct {
	Sentry *Sentry
}

// get Observes config
func getObservesConfig(v *viper.Viper) *Observes {
	return &Observes{
		Sentry: getSentryConfig(v),
	}
}
