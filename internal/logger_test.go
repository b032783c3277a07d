package internal

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
)

func TestSecureLogger_RedactsCredentials(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		leaked   string
		expected string
	}{
		{
			name:     "ndus_cookie",
			message:  "sending Cookie: ndus=secret123; lang=en",
			leaked:   "secret123",
			expected: "[REDACTED]",
		},
		{
			name:     "bduss_cookie",
			message:  "header BDUSS=topsecret done",
			leaked:   "topsecret",
			expected: "[REDACTED]",
		},
		{
			name:     "sign_param",
			message:  "GET /share/download?sign=abc123&shareid=1",
			leaked:   "abc123",
			expected: "[REDACTED]",
		},
		{
			name:     "jstoken_param",
			message:  "GET /share/download?jsToken=tok999&web=1",
			leaked:   "tok999",
			expected: "[REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewSecureLogger(&buf, LogLevelDebug, false)

			logger.Info("%s", tt.message)
			out := buf.String()

			if strings.Contains(out, tt.leaked) {
				t.Errorf("credential leaked into log: %s", out)
			}
			if !strings.Contains(out, tt.expected) {
				t.Errorf("expected redaction marker in: %s", out)
			}
		})
	}
}

func TestSecureLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelWarn, false)

	logger.Debug("debug line")
	logger.Info("info line")
	logger.Warn("warn line")
	logger.Error("error line")

	out := buf.String()
	if strings.Contains(out, "debug line") || strings.Contains(out, "info line") {
		t.Errorf("lines below the level must be dropped: %s", out)
	}
	if !strings.Contains(out, "warn line") || !strings.Contains(out, "error line") {
		t.Errorf("warn and error must pass: %s", out)
	}
}

func TestSecureLogger_QuietMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug, true)

	logger.Info("progress")
	logger.Error("broken")

	out := buf.String()
	if strings.Contains(out, "progress") {
		t.Errorf("quiet mode must drop non-errors: %s", out)
	}
	if !strings.Contains(out, "broken") {
		t.Errorf("quiet mode must keep errors: %s", out)
	}
}

func TestSecureLogger_LogHTTPRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSecureLogger(&buf, LogLevelDebug, false)

	req, err := http.NewRequest(http.MethodGet, "https://www.terabox.com/api/shorturlinfo?shorturl=1abc", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Cookie", "ndus=verysecret")
	req.Header.Set("Referer", "https://www.terabox.com/")

	logger.LogHTTPRequest(req)
	out := buf.String()

	if strings.Contains(out, "verysecret") {
		t.Errorf("cookie header leaked: %s", out)
	}
	if !strings.Contains(out, "Referer") {
		t.Errorf("harmless headers should still be logged: %s", out)
	}
}
