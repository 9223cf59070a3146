package logger

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Everforest palette
const (
	colorReset  = "\x1b[0m"
	colorBold   = "\x1b[1m"
	colorFg     = "\x1b[38;5;223m"
	colorTime   = "\x1b[38;5;107m"
	colorGreen  = "\x1b[38;5;108m"
	colorDeep   = "\x1b[38;5;65m"
	colorAqua   = "\x1b[38;5;109m"
	colorOrange = "\x1b[38;5;208m"
	colorYellow = "\x1b[38;5;179m"
	colorRed    = "\x1b[38;5;167m"
	colorRedBg  = "\x1b[48;5;52m"
	colorYelBg  = "\x1b[48;5;58m"
)

var bufferPool = buffer.NewPool()

// leadingFields are printed first, in this order, when present.
var leadingFields = []string{FieldRunID, FieldWorker, FieldIndex, FieldGroup}

// minimalEncoder is a compact console encoder:
//
//	13:04:35  generate  Accepted artifact  run_id=7f3a… worker=2 index=17 duration_ms=4
//
// Every field is printed as key=value; context fields go first.
type minimalEncoder struct {
	*zapcore.MapObjectEncoder
	color bool
}

func newMinimalEncoder(color bool) *minimalEncoder {
	return &minimalEncoder{MapObjectEncoder: zapcore.NewMapObjectEncoder(), color: color}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	clone := newMinimalEncoder(enc.color)
	for k, v := range enc.Fields {
		clone.Fields[k] = v
	}
	return clone
}

func (enc *minimalEncoder) paint(color, s string) string {
	if !enc.color || s == "" {
		return s
	}
	return color + s + colorReset
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := bufferPool.Get()

	final.AppendString(enc.paint(colorTime, ent.Time.Format("15:04:05")))

	if ent.Level != zapcore.InfoLevel {
		final.AppendString("  ")
		final.AppendString(enc.levelString(ent.Level))
	}

	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(enc.paint(componentColor(ent.LoggerName), abbreviateName(ent.LoggerName)))
	}

	final.AppendString("  ")
	final.AppendString(enc.paint(colorFg, ent.Message))

	// Encoder context (With) plus the entry's own fields
	all := zapcore.NewMapObjectEncoder()
	for k, v := range enc.Fields {
		all.Fields[k] = v
	}
	for _, f := range fields {
		f.AddTo(all)
	}
	if len(all.Fields) > 0 {
		final.AppendString("  ")
		final.AppendString(enc.formatFields(all.Fields))
	}

	final.AppendString("\n")
	return final, nil
}

func (enc *minimalEncoder) levelString(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return enc.paint(colorDeep, "DEBUG")
	case zapcore.WarnLevel:
		return enc.paint(colorBold+colorYelBg+colorYellow, "WARN")
	default:
		return enc.paint(colorBold+colorRedBg+colorRed, level.CapitalString())
	}
}

// componentColor picks a stable color per component name
func componentColor(name string) string {
	hash := 0
	for _, c := range name {
		hash += int(c)
	}
	switch hash % 3 {
	case 0:
		return colorGreen
	case 1:
		return colorDeep
	}
	return colorOrange
}

// abbreviateName shortens dotted component names: generate.worker -> g.worker
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 && parts[0] != "" {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

// formatFields renders every field as key=value, leading fields first and
// the rest in key order.
func (enc *minimalEncoder) formatFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(leadingFields))
	for _, k := range leadingFields {
		if _, ok := fields[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(fields))
	for k := range fields {
		// zap adds <key>Verbose for errors that format their own stack
		if base := strings.TrimSuffix(k, "Verbose"); base != k {
			if _, ok := fields[base]; ok {
				continue
			}
		}
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = enc.paint(colorDeep, k+"=") + enc.paint(valueColor(k, fields[k]), formatValue(fields[k]))
	}
	return strings.Join(parts, " ")
}

func valueColor(key string, v interface{}) string {
	switch {
	case key == FieldError:
		return colorRed
	case key == FieldRunID || key == FieldPath || key == FieldDir:
		return colorAqua
	}
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, time.Duration:
		return colorGreen
	}
	return colorFg
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if math.Trunc(x) == x && math.Abs(x) < 1e15 {
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
		return strconv.FormatFloat(x, 'g', 6, 64)
	case []interface{}:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case map[string]interface{}:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ":" + formatValue(x[k])
		}
		return "{" + strings.Join(parts, ",") + "}"
	}
	return fmt.Sprint(v)
}
