package mcshell

import (
	"context"
	"io"
	"strings"
	"time"
)

// Orchestrator composes Validate, the per-stage executors, buffer
// capture, and the final drain into one end-to-end pipeline run. It
// holds no per-invocation state itself; ExecutePipeline constructs a
// fresh BufferStore for each call so concurrent invocations never share
// buffers.
type Orchestrator struct {
	pool    *SessionPool
	runner  *SubprocessRunner
	allow   Allowlist
	limits  EngineLimits
	log     Logger
	metrics *Metrics
}

// NewOrchestrator wires the components a pipeline run needs.
func NewOrchestrator(pool *SessionPool, runner *SubprocessRunner, allow Allowlist, limits EngineLimits, log Logger) *Orchestrator {
	if log == nil {
		log = NewNopLogger()
	}
	return &Orchestrator{pool: pool, runner: runner, allow: allow, limits: limits, log: log}
}

// SetMetrics attaches the Prometheus collectors pipeline runs report
// to. Nil is safe and disables reporting (the default).
func (o *Orchestrator) SetMetrics(m *Metrics) { o.metrics = m }

// ExecutePipeline validates p, then runs its stages in order, threading
// each stage's output into the next as upstream. The returned
// PipelineResult is always populated, even on failure: Status and
// Error describe what happened, Diagnostics carries one entry per
// stage attempted.
func (o *Orchestrator) ExecutePipeline(ctx context.Context, p Pipeline) PipelineResult {
	result := o.run(ctx, p)
	o.metrics.observePipeline(result.Status)
	for _, diag := range result.Diagnostics {
		o.metrics.observeStage(diag)
	}
	return result
}

func (o *Orchestrator) run(ctx context.Context, p Pipeline) PipelineResult {
	if err := Validate(p, o.allow); err != nil {
		return errorResult(err, nil)
	}

	buffers := NewBufferStore()
	ec := &execContext{
		pool:    o.pool,
		runner:  o.runner,
		buffers: buffers,
		limits:  o.limits,
		log:     o.log,
		metrics: o.metrics,
	}

	var upstream io.Reader = strings.NewReader(p.InitialInput)
	diagnostics := make([]StageDiagnostic, 0, len(p.Stages))

	for i, stage := range p.Stages {
		select {
		case <-ctx.Done():
			return errorResult(&ErrCancelled{}, diagnostics)
		default:
		}

		diag := StageDiagnostic{StageIndex: i, Kind: stage.Kind}
		start := time.Now()

		counted := newLimitedCountingReader(upstream, o.limits.MaxStageInputBytes)

		executor := executorFor(stage.Kind)
		res, err := executor.execute(ctx, stage, counted, ec, &diag)
		if err != nil {
			diag.BytesIn = counted.read
			diag.Duration = time.Since(start)
			diagnostics = append(diagnostics, diag)
			return errorResult(err, diagnostics)
		}

		output := res.output
		var bb *boundedBuffer
		if stage.SaveTo != "" {
			bb = newBoundedBuffer(o.limits.MaxBufferBytes)
			output = teeIntoBuffer(output, bb)
		}

		isLast := i == len(p.Stages)-1
		readLimit := o.limits.MaxStageInputBytes
		if isLast {
			readLimit = o.limits.MaxOutputBytes
		}

		captured, truncated, readErr := readAllBounded(output, readLimit)
		finishErr := res.finish()
		// A command stage copies its upstream into the child's stdin on a
		// background goroutine, so the count is only final once the stage
		// has finished.
		diag.BytesIn = counted.read
		diag.Duration = time.Since(start)
		if isLast {
			diag.BytesOut = int64(len(captured))
		}
		if truncated {
			diag.Warnings = append(diag.Warnings, "output truncated at configured byte limit")
		}
		diagnostics = append(diagnostics, diag)

		if readErr != nil {
			return errorResult(readErr, diagnostics)
		}
		if finishErr != nil {
			return errorResult(finishErr, diagnostics)
		}

		if bb != nil {
			if bb.exceeded {
				return errorResult(&ErrBufferLimitExceeded{Name: stage.SaveTo, Limit: o.limits.MaxBufferBytes}, diagnostics)
			}
			buffers.Put(stage.SaveTo, bb.buf.Bytes())
			o.metrics.observeBuffer(bb.buf.Len())
		}

		if isLast {
			return PipelineResult{
				Output:      captured,
				Diagnostics: diagnostics,
				Status:      StatusOK,
			}
		}

		upstream = strings.NewReader(captured)
	}

	// Not reached: Validate guarantees at least one stage, and the last
	// stage always returns from inside the loop.
	return PipelineResult{Status: StatusOK, Diagnostics: diagnostics}
}

// errorResult builds the failure envelope for err, classifying it into
// an EngineError when it originates from this package and falling back
// to KindValidation-free generic wrapping otherwise.
func errorResult(err error, diagnostics []StageDiagnostic) PipelineResult {
	status := StatusError
	kind, ok := Classify(err)
	if !ok {
		kind = KindInternal
	}
	if kind == KindCancelled {
		status = StatusCancelled
	}
	return PipelineResult{
		Diagnostics: diagnostics,
		Status:      status,
		Error: &EngineError{
			Kind:    kind,
			Message: err.Error(),
		},
	}
}
