package mcshell

import "time"

// EngineLimits bounds the resources a single pipeline invocation may
// consume. Every field has a recommended default and is overridable by
// the surrounding runtime (see cmd/mcshelld).
type EngineLimits struct {
	// MaxStageInputBytes bounds how much a single stage materializes in
	// memory: the upstream read by a tool stage without for_each, the
	// output of each non-final stage as the orchestrator drains it, and
	// each for_each command item's output. Preview stages use their own
	// fixed read cap.
	MaxStageInputBytes int64

	// MaxBufferBytes bounds the total bytes a save_to buffer may
	// accumulate for one pipeline invocation.
	MaxBufferBytes int64

	// MaxOutputBytes bounds the final drained output returned in the
	// result envelope. Exceeding it truncates with a warning rather
	// than failing the pipeline.
	MaxOutputBytes int64

	// MaxSubprocessWall bounds how long a single command stage's
	// subprocess may run before it is terminated.
	MaxSubprocessWall time.Duration

	// MaxToolWall bounds how long a single remote tool invocation may
	// run before it is abandoned.
	MaxToolWall time.Duration

	// MaxForEachItems bounds the number of JSON-lines a for_each stage
	// may fan out to.
	MaxForEachItems int

	// TerminationGrace is how long a subprocess is given to exit after
	// a gentle signal before it is force-killed.
	TerminationGrace time.Duration
}

// DefaultLimits returns the recommended bounds from the design's
// resource model.
func DefaultLimits() EngineLimits {
	return EngineLimits{
		MaxStageInputBytes: 32 << 20,
		MaxBufferBytes:     32 << 20,
		MaxOutputBytes:     8 << 20,
		MaxSubprocessWall:  60 * time.Second,
		MaxToolWall:        60 * time.Second,
		MaxForEachItems:    10_000,
		TerminationGrace:   3 * time.Second,
	}
}
