package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/YuminosukeSato/mlbench/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message")
	testLogger.Error("error message", fmt.Errorf("boom"), ErrorCodeKey, ErrorFitFailed)

	require.NotEmpty(t, buffer.String())
	assert.True(t, testLogger.ContainsMessage("debug message"))
	assert.True(t, testLogger.ContainsMessage("warning message"))
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField("error", "boom"))
	assert.True(t, testLogger.ContainsField(ErrorCodeKey, ErrorFitFailed))
}

func TestTestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(
		StrategyKey, "RandomForestClassifier",
		DatasetKey, "iris",
	)
	contextLogger.Info("fold fitted", CVFoldKey, 0)

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "RandomForestClassifier", entries[0][StrategyKey])
	assert.Equal(t, "iris", entries[0][DatasetKey])
	assert.Equal(t, 0.0, entries[0][CVFoldKey])
}

func TestTestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	assert.True(t, testLogger.Enabled(ctx, LevelInfo))
	assert.True(t, testLogger.Enabled(ctx, LevelError))
	assert.False(t, testLogger.Enabled(ctx, LevelDebug))

	testLogger.Debug("hidden")
	testLogger.Info("shown")
	assert.False(t, testLogger.ContainsMessage("hidden"))
	assert.True(t, testLogger.ContainsMessage("shown"))
}

func TestTestLoggerConcurrent(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				testLogger.Info("candidate scored", "worker", id, "candidate", j)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 80)
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo)

	logger := p.GetLoggerWithName("benchmarking").With(StrategyKey, "BaggingRegressor")
	logger.Debug("dropped")
	logger.Info("saved", PathKey, "/tmp/x", DurationMsKey, 12)
	logger.Error("failed", fmt.Errorf("disk full"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "saved", first["message"])
	assert.Equal(t, "benchmarking", first[ComponentKey])
	assert.Equal(t, "BaggingRegressor", first[StrategyKey])
	assert.Equal(t, "/tmp/x", first[PathKey])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "disk full", second["error"])

	p.SetLevel(LevelDebug)
	assert.True(t, p.GetLogger().Enabled(context.Background(), LevelDebug))
}

func TestWarningsRoutedToProvider(t *testing.T) {
	var buf bytes.Buffer
	prev := Provider()
	SetProvider(NewZerologProvider(&buf, LevelInfo))
	defer SetProvider(prev)

	errors.Warn(errors.NewResultsPathWarning("/data/results", "path already exists and is not empty"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	warning, ok := entry["warning"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ResultsPathWarning", warning["type"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				var valErr *errors.ValidationError
				assert.True(t, errors.As(err, &valErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrFmtHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapByErrFmtHandler(slog.NewJSONHandler(&buf, nil)))

	logger.Error("fit failed", ErrAttr(errors.WithStack(fmt.Errorf("boom"))))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry[ErrAttrKey])
	assert.NotEmpty(t, entry[StacktraceAttrKey])

	// plain errors carry no stack
	buf.Reset()
	logger.Error("fit failed", ErrAttr(fmt.Errorf("plain")))
	entry = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, StacktraceAttrKey)
}

func TestSetupLogger(t *testing.T) {
	prev, prevSlog := Provider(), slog.Default()
	t.Cleanup(func() {
		SetProvider(prev)
		slog.SetDefault(prevSlog)
	})

	require.NoError(t, SetupLogger("debug"))
	zp, ok := Provider().(*ZerologProvider)
	require.True(t, ok)
	assert.True(t, zp.GetLogger().Enabled(context.Background(), LevelDebug))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))

	require.NoError(t, SetupLogger("error"))
	assert.False(t, GetLogger().Enabled(context.Background(), LevelWarn))

	assert.Error(t, SetupLogger("loud"))
}
