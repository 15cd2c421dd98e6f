package mcshell

import "time"

// StageKind tags the closed set of stage variants a pipeline may
// contain. Exhaustive switches on StageKind should always carry a
// default case that rejects unknown tags at validation time.
type StageKind string

const (
	StageTool         StageKind = "tool"
	StageCommand      StageKind = "command"
	StagePreview      StageKind = "preview"
	StageReadBuffers  StageKind = "read_buffers"
)

// Stage is one unit of work in a Pipeline. Which fields are meaningful
// is determined entirely by Kind; Validate (validate.go) rejects fields
// that don't belong to the declared kind.
type Stage struct {
	Kind StageKind `json:"kind"`

	// tool fields.
	Name   string         `json:"name,omitempty"`
	Server string         `json:"server,omitempty"`
	Args   map[string]any `json:"args,omitempty"`

	// command fields.
	Command     string   `json:"command,omitempty"`
	CommandArgs []string `json:"command_args,omitempty"`

	// shared tool/command fields.
	ForEach bool   `json:"for_each,omitempty"`
	SaveTo  string `json:"save_to,omitempty"`

	// preview fields.
	Chars int `json:"chars,omitempty"`

	// read_buffers fields.
	Buffers []string `json:"buffers,omitempty"`
}

// Pipeline is an ordered sequence of stages plus an optional initial
// input fed to the first stage.
type Pipeline struct {
	Stages       []Stage `json:"stages"`
	InitialInput string  `json:"initial_input,omitempty"`
}

// Status is the terminal state of a pipeline invocation.
type Status string

const (
	StatusOK        Status = "ok"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// StageDiagnostic records one stage's execution for the result
// envelope's diagnostics array.
type StageDiagnostic struct {
	StageIndex int           `json:"stage_index"`
	Kind       StageKind     `json:"kind"`
	BytesIn    int64         `json:"bytes_in"`
	BytesOut   int64         `json:"bytes_out"`
	Duration   time.Duration `json:"duration"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// PipelineResult is the structured return value of an end-to-end
// pipeline execution: the result envelope described in the public
// operations facade.
type PipelineResult struct {
	Output      string            `json:"output"`
	Diagnostics []StageDiagnostic `json:"diagnostics"`
	Status      Status            `json:"status"`
	Error       *EngineError      `json:"error,omitempty"`
}

// EngineError is the structured error carried by a failed or cancelled
// PipelineResult. Use Classify(err) or errors.As against the concrete
// Err* type in errors.go to recover kind-specific fields; EngineError
// itself only carries the kind and a flattened message for transport.
type EngineError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *EngineError) Error() string { return string(e.Kind) + ": " + e.Message }

// ToolDescriptor describes one tool exposed by a remote tool server, as
// returned by list_all_tools and get_tool_details.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema,omitempty"`
}
