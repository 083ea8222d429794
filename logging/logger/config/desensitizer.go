package config

import "github.com/spf13/viper"

// Desensitization holds desensitization settings
type Desensitization struct {
	Enabled         bool     `json:"enabled" yaml:"enabled"`
	SensitiveFields []string `json:"sensitive_fields" yaml:"sensitive_fields"`
	PreservePrefix  int      `json:"preserve_prefix" yaml:"preserve_prefix"`
	PreserveSuffix  int      `json:"preserve_suffix" yaml:"preserve_suffix"`
	MaskChar        string   `json:"mask_char" yaml:"mask_char"`
}

// Default sensitive field patterns
var defaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "access_token", "owner_token",
	"secret", "api_key", "apikey",
	"email", "notify_email",
}

// getDesensitizationConfigs reads and returns desensitization configuration
func getDesensitizationConfigs(v *viper.Viper) *Desensitization {
	if !v.IsSet("logger.desensitization") {
		return &Desensitization{
			Enabled:         true,
			SensitiveFields: defaultSensitiveFields,
			PreservePrefix:  2,
			PreserveSuffix:  0,
			MaskChar:        "*",
		}
	}

	cfg := &Desensitization{
		Enabled:         v.GetBool("logger.desensitization.enabled"),
		SensitiveFields: v.GetStringSlice("logger.desensitization.sensitive_fields"),
		PreservePrefix:  v.GetInt("logger.desensitization.preserve_prefix"),
		PreserveSuffix:  v.GetInt("logger.desensitization.preserve_suffix"),
		MaskChar:        v.GetString("logger.desensitization.mask_char"),
	}

	if len(cfg.SensitiveFields) == 0 {
		cfg.SensitiveFields = defaultSensitiveFields
	}
	if cfg.MaskChar == "" {
		cfg.MaskChar = "*"
	}

	return cfg
}
