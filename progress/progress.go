// Package progress reports the progress of long-running commands and keeps
// the run counters of a generation.
//
// Implementations include:
//   - CLIEmitter: pretty-printed terminal output using pterm
//   - JSONEmitter: one JSON event per line, for scripts and CI logs
//   - Nop: discards everything
package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pterm/pterm"
)

// Emitter receives progress events. Implementations must be safe for
// concurrent use; workers report from their own goroutines.
type Emitter interface {
	// EmitStage announces the start of a processing stage
	EmitStage(stage string, message string)

	// EmitProgress announces that count of total items are done.
	// metadata carries per-stage details such as rejection counters.
	EmitProgress(count, total int, metadata map[string]interface{})

	// EmitComplete announces successful completion with a summary
	EmitComplete(summary map[string]interface{})

	// EmitError announces an error during processing
	EmitError(stage string, err error)

	// EmitInfo emits a general informational message
	EmitInfo(message string)
}

// Event is a structured JSON progress event.
type Event struct {
	Type      string                 `json:"type"` // "stage", "progress", "complete", "error", "info"
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// CLIEmitter prints progress to the terminal using pterm.
type CLIEmitter struct {
	verbosity int
	mu        sync.Mutex
}

// NewCLIEmitter creates a terminal emitter. Info lines need verbosity >= 1.
func NewCLIEmitter(verbosity int) *CLIEmitter {
	return &CLIEmitter{verbosity: verbosity}
}

// EmitStage prints a stage announcement.
func (e *CLIEmitter) EmitStage(stage string, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pterm.Printf("🔄 %s: %s\n", pterm.LightCyan(stage), message)
}

// EmitProgress prints "count/total" with any counters in metadata.
func (e *CLIEmitter) EmitProgress(count, total int, metadata map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	line := fmt.Sprintf("✅ %s/%d", pterm.Green(fmt.Sprintf("%d", count)), total)
	if e.verbosity >= 1 {
		for _, key := range sortedKeys(metadata) {
			line += fmt.Sprintf("  %s=%v", key, metadata[key])
		}
	}
	pterm.Println(line)
}

// EmitComplete prints the completion summary.
func (e *CLIEmitter) EmitComplete(summary map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pterm.Success.Println("Done")
	for _, key := range sortedKeys(summary) {
		pterm.Printf("  %s: %v\n", key, summary[key])
	}
}

// EmitError prints an error.
func (e *CLIEmitter) EmitError(stage string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pterm.Error.Printf("Error in %s: %v\n", stage, err)
}

// EmitInfo prints an informational message.
func (e *CLIEmitter) EmitInfo(message string) {
	if e.verbosity < 1 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	pterm.Info.Println(message)
}

// JSONEmitter writes one JSON event per line.
type JSONEmitter struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

// NewJSONEmitter writes events to w, or to stdout when w is nil.
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	if w == nil {
		w = os.Stdout
	}
	return &JSONEmitter{encoder: json.NewEncoder(w)}
}

func (e *JSONEmitter) emit(kind string, data map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.encoder.Encode(Event{Type: kind, Timestamp: time.Now(), Data: data})
}

// EmitStage emits a stage event.
func (e *JSONEmitter) EmitStage(stage string, message string) {
	e.emit("stage", map[string]interface{}{"stage": stage, "message": message})
}

// EmitProgress emits a progress event; metadata is merged into the data.
func (e *JSONEmitter) EmitProgress(count, total int, metadata map[string]interface{}) {
	data := map[string]interface{}{"count": count, "total": total}
	for k, v := range metadata {
		data[k] = v
	}
	e.emit("progress", data)
}

// EmitComplete emits a completion event.
func (e *JSONEmitter) EmitComplete(summary map[string]interface{}) {
	e.emit("complete", summary)
}

// EmitError emits an error event.
func (e *JSONEmitter) EmitError(stage string, err error) {
	e.emit("error", map[string]interface{}{"stage": stage, "error": err.Error()})
}

// EmitInfo emits an info event.
func (e *JSONEmitter) EmitInfo(message string) {
	e.emit("info", map[string]interface{}{"message": message})
}

// Nop discards every event.
type Nop struct{}

func (Nop) EmitStage(string, string)                      {}
func (Nop) EmitProgress(int, int, map[string]interface{}) {}
func (Nop) EmitComplete(map[string]interface{})           {}
func (Nop) EmitError(string, error)                       {}
func (Nop) EmitInfo(string)                               {}

// OrNop returns e, or Nop when e is nil.
func OrNop(e Emitter) Emitter {
	if e == nil {
		return Nop{}
	}
	return e
}
