package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/karouh/molehunt/internal/observability"
	"github.com/karouh/molehunt/pkg/store"
)

// ToolInvoker executes a named tool on behalf of an agent
type ToolInvoker interface {
	Invoke(ctx context.Context, agentName, tool string) (output string, err error)
}

// ToolInvokerFunc adapts a function to ToolInvoker
type ToolInvokerFunc func(ctx context.Context, agentName, tool string) (string, error)

func (f ToolInvokerFunc) Invoke(ctx context.Context, agentName, tool string) (string, error) {
	return f(ctx, agentName, tool)
}

// UseTool invokes a tool and records the outcome in the transcript
// store. Failures are recorded, not swallowed; the detection engine
// reads them back as behavioral evidence.
func (r *Runner) UseTool(ctx context.Context, agentName, tool string, turn int) (string, error) {
	if r.cfg.Tools == nil {
		return "", fmt.Errorf("no tool invoker configured")
	}

	output, err := r.cfg.Tools.Invoke(ctx, agentName, tool)
	observability.RecordToolInvocation(tool, err == nil)

	record := store.ToolRecord{
		Agent:   agentName,
		Tool:    tool,
		Success: err == nil,
		Turn:    turn,
	}
	if err != nil {
		record.Error = err.Error()
	}
	record.Timestamp = time.Now()

	if storeErr := r.store.AppendToolRecord(ctx, r.cfg.SessionID, record); storeErr != nil {
		return output, fmt.Errorf("tool record write: %w", storeErr)
	}
	return output, err
}
