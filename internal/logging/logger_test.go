package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAttachesBaseAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", slog.String("service", "vault"))
	logger.Debug("hello", slog.Int("n", 1))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "vault", rec["service"])
	require.Equal(t, "hello", rec["msg"])
	require.EqualValues(t, 1, rec["n"])
}

func TestNewFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "loud")
	logger.Debug("dropped")
	require.Zero(t, buf.Len())
	logger.Info("kept")
	require.NotZero(t, buf.Len())
}
