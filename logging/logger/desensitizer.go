package logger

import (
	"fmt"
	"strings"

	"github.com/ncobase/spacearc/logging/logger/config"
	"github.com/sirupsen/logrus"
)

// Desensitizer masks sensitive values in log fields by field name.
type Desensitizer struct {
	config *config.Desensitization
	fields map[string]bool
}

// NewDesensitizer creates a new desensitizer instance
func NewDesensitizer(cfg *config.Desensitization) *Desensitizer {
	fields := make(map[string]bool, len(cfg.SensitiveFields))
	for _, f := range cfg.SensitiveFields {
		fields[strings.ToLower(f)] = true
	}
	return &Desensitizer{config: cfg, fields: fields}
}

// DesensitizeFields processes log fields and masks sensitive data
func (d *Desensitizer) DesensitizeFields(fields logrus.Fields) logrus.Fields {
	if !d.config.Enabled {
		return fields
	}

	result := make(logrus.Fields, len(fields))
	for key, value := range fields {
		if d.isSensitiveField(key) {
			result[key] = d.maskValue(value)
		} else {
			result[key] = value
		}
	}
	return result
}

func (d *Desensitizer) isSensitiveField(key string) bool {
	key = strings.ToLower(key)
	if d.fields[key] {
		return true
	}
	for f := range d.fields {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}

// maskValue keeps the configured prefix and suffix visible and replaces
// the rest with the mask character.
func (d *Desensitizer) maskValue(value any) string {
	s := fmt.Sprint(value)
	prefix := d.config.PreservePrefix
	suffix := d.config.PreserveSuffix
	if prefix+suffix >= len(s) {
		return strings.Repeat(d.config.MaskChar, len(s))
	}
	masked := len(s) - prefix - suffix
	return s[:prefix] + strings.Repeat(d.config.MaskChar, masked) + s[len(s)-suffix:]
}
