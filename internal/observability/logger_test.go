package observability

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/buildmedic/buildmedic-cli/internal/config"
)

// memSyncer collects log output in memory for assertions.
type memSyncer struct {
	lines [][]byte
}

func (m *memSyncer) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	m.lines = append(m.lines, cp)
	return len(p), nil
}

func (m *memSyncer) Sync() error { return nil }

func TestInitialize_JSONFormat(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &memSyncer{}
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "json",
		ServiceName: "buildmedic-test",
	}, zapcore.Lock(zapcore.AddSync(sink)))

	GetLogger().Info("hello")
	require.NotEmpty(t, sink.lines)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(sink.lines[0], &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "buildmedic-test", entry["logger"])
}

func TestInitialize_OnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &memSyncer{}
	second := &memSyncer{}
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "a"}, zapcore.Lock(zapcore.AddSync(first)))
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "b"}, zapcore.Lock(zapcore.AddSync(second)))

	GetLogger().Info("routed to first sink")
	assert.NotEmpty(t, first.lines)
	assert.Empty(t, second.lines)
}

func TestGetLogger_FallbackBeforeInit(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	// Must be safe to use even though Initialize never ran.
	logger.Debug("fallback logger is usable")
}

func TestInitialize_InvalidLevelDefaultsToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &memSyncer{}
	Initialize(config.LoggerConfig{Level: "shouting", Format: "json", ServiceName: "t"}, zapcore.Lock(zapcore.AddSync(sink)))

	GetLogger().Debug("suppressed at info level")
	assert.Empty(t, sink.lines)

	GetLogger().Info("visible")
	assert.Len(t, sink.lines, 1)
}
