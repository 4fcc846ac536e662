package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soak47/job-market-tracker/internal/logger"
)

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{level: "", wantInfo: true, wantWarn: true},
		{level: "debug", wantDebug: true, wantInfo: true, wantWarn: true},
		{level: "WARN", wantWarn: true},
		{level: "error"},
		{level: "bogus", wantInfo: true, wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			t.Setenv("LOG_FORMAT", "")

			var buf bytes.Buffer
			log := logger.NewWithWriter(&buf, "test")

			log.Debug("d")
			require.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("msg=d")))
			log.Info("i")
			require.Equal(t, tt.wantInfo, bytes.Contains(buf.Bytes(), []byte("msg=i")))
			log.Warn("w")
			require.Equal(t, tt.wantWarn, bytes.Contains(buf.Bytes(), []byte("msg=w")))
		})
	}
}

func TestJSONFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_FORMAT", "json")

	var buf bytes.Buffer
	logger.NewWithWriter(&buf, "worker").Info("batch stored", "count", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "worker", line["service"])
	require.Equal(t, "batch stored", line["msg"])
	require.EqualValues(t, 3, line["count"])
}
