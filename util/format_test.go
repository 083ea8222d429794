package util

import (
	"testing"
	"time"
)

func TestHumanizeBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0B"},
		{512, "512B"},
		{1024, "1.0KiB"},
		{1536, "1.5KiB"},
		{12934185, "12.3MiB"},
		{5 * 1024 * 1024 * 1024, "5.0GiB"},
	}
	for _, c := range cases {
		if got := HumanizeBytes(c.in); got != c.want {
			t.Errorf("HumanizeBytes(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatETA(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{-3 * time.Second, "00:00"},
		{0, "00:00"},
		{42 * time.Second, "00:42"},
		{95 * time.Second, "01:35"},
		{3723 * time.Second, "01:02:03"},
	}
	for _, c := range cases {
		if got := FormatETA(c.in); got != c.want {
			t.Errorf("FormatETA(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
