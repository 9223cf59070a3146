package logger

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// stripANSI removes ANSI color codes from a string for testing
func stripANSI(str string) string {
	return ansiRegex.ReplaceAllString(str, "")
}

func encode(t *testing.T, enc zapcore.Encoder, ent zapcore.Entry, fields ...zapcore.Field) string {
	t.Helper()
	buf, err := enc.EncodeEntry(ent, fields)
	require.NoError(t, err)
	defer buf.Free()
	return buf.String()
}

func entry(level zapcore.Level, name, msg string) zapcore.Entry {
	return zapcore.Entry{
		Level:      level,
		Time:       time.Date(2026, 3, 1, 13, 4, 35, 0, time.UTC),
		LoggerName: name,
		Message:    msg,
	}
}

// The encoder must never silently discard a field
func TestMinimalEncoderNeverDiscardsFields(t *testing.T) {
	enc := newMinimalEncoder(true)

	testFields := []struct {
		field    zapcore.Field
		mustFind string
	}{
		{zap.String("group", "parts"), "group=parts"},
		{zap.String("random_field_xyz", "important_data"), "random_field_xyz=important_data"},
		{zap.Int("critical_count", 999), "critical_count=999"},
		{zap.Int32("int32_field", 42), "int32_field=42"},
		{zap.Uint64("seed", 18446744073709551615), "seed=18446744073709551615"},
		{zap.Bool("dry_run", true), "dry_run=true"},
		{zap.Float64("ratio", 0.8), "ratio=0.8"},
		{zap.Duration("elapsed", 1500 * time.Millisecond), "elapsed=1.5s"},
		{zap.Strings("properties", []string{"Background", "FirstLetter"}), "properties=[Background,FirstLetter]"},
		{zap.String("field.with.dots", "test2"), "field.with.dots=test2"},
	}

	fields := make([]zapcore.Field, len(testFields))
	for i, tf := range testFields {
		fields[i] = tf.field
	}
	out := stripANSI(encode(t, enc, entry(zapcore.InfoLevel, "generate", "Testing field preservation"), fields...))

	for _, tf := range testFields {
		assert.Contains(t, out, tf.mustFind)
	}
}

func TestMinimalEncoderLayout(t *testing.T) {
	enc := newMinimalEncoder(false)

	out := encode(t, enc, entry(zapcore.InfoLevel, "generate.worker", "Accepted artifact"),
		zap.Int(FieldDurationMS, 4),
		zap.Int(FieldIndex, 17),
		zap.String(FieldRunID, "run-1"),
		zap.Int(FieldWorker, 2),
	)
	assert.Equal(t, "13:04:35  g.worker  Accepted artifact  run_id=run-1 worker=2 index=17 duration_ms=4\n", out)
}

func TestMinimalEncoderLevels(t *testing.T) {
	enc := newMinimalEncoder(false)

	assert.NotContains(t, encode(t, enc, entry(zapcore.InfoLevel, "", "hello")), "INFO")
	assert.Contains(t, encode(t, enc, entry(zapcore.DebugLevel, "", "hello")), "DEBUG")
	assert.Contains(t, encode(t, enc, entry(zapcore.WarnLevel, "", "hello")), "WARN")
	assert.Contains(t, encode(t, enc, entry(zapcore.ErrorLevel, "", "hello")), "ERROR")
}

func TestMinimalEncoderWithContext(t *testing.T) {
	var sb strings.Builder
	core := zapcore.NewCore(newMinimalEncoder(false), zapcore.AddSync(&sb), zapcore.DebugLevel)
	log := zap.New(core).Named("compose").Sugar().With(FieldRunID, "run-9")

	log.Infow("Composed", FieldIndex, 3)
	log.Infow("Composed", FieldIndex, 4)

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "compose  Composed  run_id=run-9 index=3")
	assert.Contains(t, lines[1], "run_id=run-9 index=4")
}

func TestMinimalEncoderDropsErrorVerbose(t *testing.T) {
	enc := newMinimalEncoder(false)

	out := encode(t, enc, entry(zapcore.ErrorLevel, "", "Run failed"), zap.Error(errors.New("boom")))
	assert.Contains(t, out, "error=boom")
	assert.NotContains(t, out, "errorVerbose")
}

func TestMinimalEncoderColor(t *testing.T) {
	colored := encode(t, newMinimalEncoder(true), entry(zapcore.InfoLevel, "db", "Opened"))
	plain := encode(t, newMinimalEncoder(false), entry(zapcore.InfoLevel, "db", "Opened"))

	assert.Contains(t, colored, "\x1b[")
	assert.NotContains(t, plain, "\x1b[")
	assert.Equal(t, plain, stripANSI(colored))
}

func TestAbbreviateName(t *testing.T) {
	assert.Equal(t, "generate", abbreviateName("generate"))
	assert.Equal(t, "g.worker", abbreviateName("generate.worker"))
	assert.Equal(t, "l.store.sql", abbreviateName("ledger.store.sql"))
}
