package mcshell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// execContext carries everything a stage executor needs beyond its own
// stage description: the session pool, subprocess runner, buffer
// store, and resource limits for this pipeline invocation.
type execContext struct {
	pool    *SessionPool
	runner  *SubprocessRunner
	buffers *BufferStore
	limits  EngineLimits
	log     Logger
	metrics *Metrics
}

// execResult is what an executor hands back to the orchestrator: a
// pull-style output stream plus a finish function the orchestrator
// must call once the stream has been fully consumed (or abandoned on
// cancel), so subprocesses are reaped and final warnings recorded.
type execResult struct {
	output io.Reader
	finish func() error
}

// noopFinish is used by executors whose output is already fully
// materialized and owns no background resource.
func noopFinish() error { return nil }

// toolExecutor invokes a remote tool server, either once (for_each
// false) or per JSON-line via the For-Each Driver.
type toolExecutor struct{}

func (toolExecutor) execute(
	ctx context.Context,
	stage Stage,
	upstream io.Reader,
	ec *execContext,
	diag *StageDiagnostic,
) (execResult, error) {
	if stage.ForEach {
		out, err := runForEachTool(ctx, stage, upstream, ec, diag)
		if err != nil {
			return execResult{}, err
		}
		return execResult{output: bytes.NewReader(out), finish: noopFinish}, nil
	}

	args := cloneArgs(stage.Args)

	// Bind the upstream stream into the arguments only when the tool's
	// declared schema advertises the conventional "input" key;
	// otherwise a tool stage without for_each simply opens a new
	// pipeline segment and the upstream is discarded unread.
	if desc, err := ec.pool.Describe(ctx, stage.Server, stage.Name); err == nil {
		if schemaHasKey(desc.Schema, "input") {
			in, _, err := readAllBounded(upstream, ec.limits.MaxStageInputBytes)
			if err != nil {
				return execResult{}, fmt.Errorf("reading upstream for tool stage: %w", err)
			}
			args["input"] = in
		}
	}

	out, err := ec.pool.Invoke(ctx, stage.Server, stage.Name, args)
	if err != nil {
		return execResult{}, err
	}
	diag.BytesOut = int64(len(out))
	return execResult{output: bytes.NewReader(out), finish: noopFinish}, nil
}

// commandExecutor spawns an allow-listed utility wired to the upstream
// stream, either once or per JSON-line via the For-Each Driver.
type commandExecutor struct{}

func (commandExecutor) execute(
	ctx context.Context,
	stage Stage,
	upstream io.Reader,
	ec *execContext,
	diag *StageDiagnostic,
) (execResult, error) {
	if stage.ForEach {
		out, err := runForEachCommand(ctx, stage, upstream, ec, diag)
		if err != nil {
			return execResult{}, err
		}
		return execResult{output: bytes.NewReader(out), finish: noopFinish}, nil
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if ec.limits.MaxSubprocessWall > 0 {
		runCtx, cancel = context.WithTimeout(ctx, ec.limits.MaxSubprocessWall)
	}

	stdout, wait, err := ec.runner.Run(runCtx, stage.Command, stage.CommandArgs, upstream)
	if err != nil {
		if cancel != nil {
			cancel()
		}
		return execResult{}, err
	}

	finish := func() error {
		defer func() {
			if cancel != nil {
				cancel()
			}
		}()
		stderr, err := wait()
		if err != nil {
			return err
		}
		if stderr != "" {
			diag.Warnings = append(diag.Warnings, "stderr: "+stderr)
		}
		return nil
	}

	return execResult{output: stdout, finish: finish}, nil
}

// previewExecutor summarizes an upstream stream into a bounded,
// self-describing text blob that need not be valid JSON.
type previewExecutor struct{}

// previewReadCap bounds how much upstream previewExecutor will look at
// while building its summary; it then discards the rest of the
// upstream so no stage leaves an open stream behind.
const previewReadCap = 8 << 20

func (previewExecutor) execute(
	_ context.Context,
	stage Stage,
	upstream io.Reader,
	_ *execContext,
	diag *StageDiagnostic,
) (execResult, error) {
	data, _, err := readAllBounded(upstream, previewReadCap)
	if err != nil {
		return execResult{}, fmt.Errorf("reading upstream for preview: %w", err)
	}
	if _, err := io.Copy(io.Discard, upstream); err != nil {
		return execResult{}, fmt.Errorf("draining upstream for preview: %w", err)
	}

	summary := summarize([]byte(data), stage.Chars)
	diag.BytesOut = int64(len(summary))
	return execResult{output: bytes.NewReader([]byte(summary)), finish: noopFinish}, nil
}

// readBuffersExecutor discards its upstream and emits a JSON object
// mapping each requested buffer name to its stored contents.
type readBuffersExecutor struct{}

func (readBuffersExecutor) execute(
	_ context.Context,
	stage Stage,
	upstream io.Reader,
	ec *execContext,
	diag *StageDiagnostic,
) (execResult, error) {
	io.Copy(io.Discard, upstream)

	values, missing := ec.buffers.All(stage.Buffers)
	for _, name := range missing {
		diag.Warnings = append(diag.Warnings, fmt.Sprintf("read_buffers: unknown buffer %q", name))
		ec.log.Warn("read_buffers referenced unknown buffer", "name", name)
	}

	out, err := json.Marshal(values)
	if err != nil {
		return execResult{}, fmt.Errorf("marshal read_buffers result: %w", err)
	}
	diag.BytesOut = int64(len(out))
	return execResult{output: bytes.NewReader(out), finish: noopFinish}, nil
}

// executorFor returns the executor implementing stage.Kind. Validate
// guarantees Kind is one of the four known tags before this is called.
func executorFor(kind StageKind) interface {
	execute(context.Context, Stage, io.Reader, *execContext, *StageDiagnostic) (execResult, error)
} {
	switch kind {
	case StageTool:
		return toolExecutor{}
	case StageCommand:
		return commandExecutor{}
	case StagePreview:
		return previewExecutor{}
	case StageReadBuffers:
		return readBuffersExecutor{}
	default:
		return nil
	}
}

func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}

func schemaHasKey(schema map[string]any, key string) bool {
	if schema == nil {
		return false
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = props[key]
	return ok
}
