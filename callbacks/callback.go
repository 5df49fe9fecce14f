// Package callbacks provides ready-made implementations of the
// orchestrator's Callback interface.
package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/agentflow/agents"
	"github.com/effective-security/agentflow/orchestrator"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ orchestrator.Callback = (*Noop)(nil)
	_ orchestrator.Callback = (*Printer)(nil)
	_ orchestrator.Callback = (*PackageLogger)(nil)
	_ orchestrator.Callback = (*Fanout)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []orchestrator.Callback
}

func NewFanout(callbacks ...orchestrator.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback orchestrator.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnRunStart(ctx context.Context, agent *agents.BoundAgent, input string) {
	for _, callback := range l.callbacks {
		callback.OnRunStart(ctx, agent, input)
	}
}

func (l *Fanout) OnRunEnd(ctx context.Context, agent *agents.BoundAgent, result *orchestrator.RunResult) {
	for _, callback := range l.callbacks {
		callback.OnRunEnd(ctx, agent, result)
	}
}

func (l *Fanout) OnRunError(ctx context.Context, agent *agents.BoundAgent, input string, err error) {
	for _, callback := range l.callbacks {
		callback.OnRunError(ctx, agent, input, err)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, agentName, toolName, input string) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, agentName, toolName, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, agentName, toolName, input, output string) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, agentName, toolName, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, agentName, toolName, input string, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, agentName, toolName, input, err)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, agentName, toolName string) {
	for _, callback := range l.callbacks {
		callback.OnToolNotFound(ctx, agentName, toolName)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnRunStart(ctx context.Context, agent *agents.BoundAgent, input string) {}
func (l *Noop) OnRunEnd(ctx context.Context, agent *agents.BoundAgent, result *orchestrator.RunResult) {
}
func (l *Noop) OnRunError(ctx context.Context, agent *agents.BoundAgent, input string, err error) {}
func (l *Noop) OnToolStart(ctx context.Context, agentName, toolName, input string)                {}
func (l *Noop) OnToolEnd(ctx context.Context, agentName, toolName, input, output string)          {}
func (l *Noop) OnToolError(ctx context.Context, agentName, toolName, input string, err error)     {}
func (l *Noop) OnToolNotFound(ctx context.Context, agentName, toolName string)                    {}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnRunStart(ctx context.Context, agent *agents.BoundAgent, input string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Run Start: %s\n", agent.Name())
	fmt.Fprintf(l.Out, "Input: %s\n", input)
}

func (l *Printer) OnRunEnd(ctx context.Context, agent *agents.BoundAgent, result *orchestrator.RunResult) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Run End: %s: %s, %d turns\n", agent.Name(), result.Status, result.ModelTurns)
	if l.Mode == ModeVerbose && result.Answer != "" {
		fmt.Fprintln(l.Out, result.Answer)
	}
}

func (l *Printer) OnRunError(ctx context.Context, agent *agents.BoundAgent, input string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Run Error: %s: %s\n", agent.Name(), err.Error())
}

func (l *Printer) OnToolStart(ctx context.Context, agentName, toolName, input string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Start: %s (%s)\n", toolName, agentName)
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Input: %s\n", input)
	}
}

func (l *Printer) OnToolEnd(ctx context.Context, agentName, toolName, input, output string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool End: %s (%s)\n", toolName, agentName)
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Output: %s\n", output)
	}
}

func (l *Printer) OnToolError(ctx context.Context, agentName, toolName, input string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Error: %s (%s): %s\n", toolName, agentName, err.Error())
}

func (l *Printer) OnToolNotFound(ctx context.Context, agentName, toolName string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Not Found: %s (%s)\n", toolName, agentName)
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnRunStart(ctx context.Context, agent *agents.BoundAgent, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "run_start",
		"agent", agent.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnRunEnd(ctx context.Context, agent *agents.BoundAgent, result *orchestrator.RunResult) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "run_end",
		"agent", agent.Name(),
		"run_id", result.RunID,
		"run_status", string(result.Status),
		"model_turns", result.ModelTurns,
	)
}

func (l *PackageLogger) OnRunError(ctx context.Context, agent *agents.BoundAgent, input string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "run_error",
		"agent", agent.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, agentName, toolName, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"agent", agentName,
		"tool", toolName,
		"input", input,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, agentName, toolName, input, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"agent", agentName,
		"tool", toolName,
		"output", output,
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, agentName, toolName, input string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"agent", agentName,
		"tool", toolName,
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, agentName, toolName string) {
	l.logger.ContextKV(ctx, xlog.WARNING,
		"event", "tool_not_found",
		"agent", agentName,
		"tool", toolName,
	)
}
