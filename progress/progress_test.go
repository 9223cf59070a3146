package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCLIEmitter verifies the CLI emitter does not panic at any verbosity
func TestCLIEmitter(t *testing.T) {
	for _, v := range []int{0, 2} {
		e := NewCLIEmitter(v)
		e.EmitStage("generate", "100 artifacts")
		e.EmitProgress(10, 100, map[string]interface{}{"rule_rejected": 3})
		e.EmitInfo("info")
		e.EmitError("compose", errors.New("boom"))
		e.EmitComplete(map[string]interface{}{"accepted": 100})
	}
}

func TestJSONEmitter_EventStructure(t *testing.T) {
	var buf bytes.Buffer
	e := NewJSONEmitter(&buf)

	e.EmitStage("generate", "starting")
	e.EmitProgress(5, 10, map[string]interface{}{"duplicate_rejected": 2})
	e.EmitError("compose", errors.New("disk full"))

	dec := json.NewDecoder(&buf)
	var stage, prog, fail Event
	require.NoError(t, dec.Decode(&stage))
	require.NoError(t, dec.Decode(&prog))
	require.NoError(t, dec.Decode(&fail))

	assert.Equal(t, "stage", stage.Type)
	assert.Equal(t, "generate", stage.Data["stage"])
	assert.False(t, stage.Timestamp.IsZero())

	assert.Equal(t, "progress", prog.Type)
	assert.Equal(t, float64(5), prog.Data["count"])
	assert.Equal(t, float64(10), prog.Data["total"])
	assert.Equal(t, float64(2), prog.Data["duplicate_rejected"])

	assert.Equal(t, "error", fail.Type)
	assert.Equal(t, "disk full", fail.Data["error"])
}

func TestCounters_Concurrent(t *testing.T) {
	var c Counters
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Attempt()
				switch j % 4 {
				case 0:
					c.RejectRule()
				case 1:
					c.RejectDuplicate()
				default:
					c.Accept()
				}
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	assert.Equal(t, Snapshot{Attempts: 800, Accepted: 400, RuleRejected: 200, DuplicateRejected: 200}, s)
	assert.Equal(t, int64(400), s.Map()["accepted"])
}

func TestOrNop(t *testing.T) {
	assert.Equal(t, Nop{}, OrNop(nil))
	e := NewCLIEmitter(0)
	assert.Same(t, e, OrNop(e))
}
