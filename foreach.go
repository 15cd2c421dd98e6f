package mcshell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// forEachError is the array element the For-Each Driver emits in place
// of a result when one item's execution fails. It never appears
// alongside a successful result for the same item.
type forEachError struct {
	Error string `json:"error"`
}

// forEachElement builds the JSON array element for one item's raw
// output. When the output is itself valid JSON it is embedded
// verbatim (so a jq-style command emitting "1" contributes the bare
// number 1, not a quoted string); otherwise the raw bytes are encoded
// as a JSON string.
func forEachElement(output []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	data, err := json.Marshal(string(output))
	if err != nil {
		return json.RawMessage(`""`)
	}
	return json.RawMessage(data)
}

// forEachErrorElement marshals msg as an error-marker array element.
func forEachErrorElement(msg string) json.RawMessage {
	data, err := json.Marshal(forEachError{Error: msg})
	if err != nil {
		return json.RawMessage(`{"error":"internal"}`)
	}
	return json.RawMessage(data)
}

// collectForEachLines reads upstream as JSON-lines, skipping blank
// lines, and enforces limits.MaxForEachItems. It returns the raw text
// of each non-empty line; parsing into a typed value is left to the
// caller since tool and command stages consume a line differently.
func collectForEachLines(upstream io.Reader, limit int, stageIndex int) ([]string, error) {
	scanner := scanNonEmptyLines(upstream)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if len(bytes.TrimSpace([]byte(line))) == 0 {
			continue
		}
		if limit > 0 && len(lines) >= limit {
			return nil, &ErrForEachLimitExceeded{StageIndex: stageIndex, Limit: limit}
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading for_each input: %w", err)
	}
	return lines, nil
}

// runForEachTool drives stage once per upstream JSON-line, parsing
// each line as a JSON object and merging its keys over stage.Args
// (the line supplies per-item arguments; stage.Args supplies defaults
// shared across every item). A line that fails to parse as a JSON
// object is recorded as a per-item error and does not abort the rest
// of the fan-out.
func runForEachTool(
	ctx context.Context,
	stage Stage,
	upstream io.Reader,
	ec *execContext,
	diag *StageDiagnostic,
) ([]byte, error) {
	lines, err := collectForEachLines(upstream, ec.limits.MaxForEachItems, diag.StageIndex)
	if err != nil {
		return nil, err
	}
	ec.metrics.observeForEachFanOut(len(lines))

	elements := make([]json.RawMessage, len(lines))
	for i, line := range lines {
		select {
		case <-ctx.Done():
			return nil, &ErrCancelled{}
		default:
		}

		var itemArgs map[string]any
		if err := json.Unmarshal([]byte(line), &itemArgs); err != nil {
			elements[i] = forEachErrorElement(fmt.Sprintf("invalid JSON: %v", err))
			continue
		}

		args := cloneArgs(stage.Args)
		for k, v := range itemArgs {
			args[k] = v
		}

		res, err := ec.pool.Invoke(ctx, stage.Server, stage.Name, args)
		if err != nil {
			elements[i] = forEachErrorElement(err.Error())
			diag.Warnings = append(diag.Warnings, fmt.Sprintf("item %d: %v", i, err))
			continue
		}
		elements[i] = forEachElement(res)
	}

	return json.Marshal(elements)
}

// runForEachCommand drives stage once per upstream line, spawning a
// fresh subprocess per item and feeding it the line's raw text on
// stdin (the line is not JSON-decoded; command stages operate on text,
// not structured arguments).
func runForEachCommand(
	ctx context.Context,
	stage Stage,
	upstream io.Reader,
	ec *execContext,
	diag *StageDiagnostic,
) ([]byte, error) {
	lines, err := collectForEachLines(upstream, ec.limits.MaxForEachItems, diag.StageIndex)
	if err != nil {
		return nil, err
	}
	ec.metrics.observeForEachFanOut(len(lines))

	elements := make([]json.RawMessage, len(lines))
	for i, line := range lines {
		select {
		case <-ctx.Done():
			return nil, &ErrCancelled{}
		default:
		}

		runCtx := ctx
		var cancel context.CancelFunc
		if ec.limits.MaxSubprocessWall > 0 {
			runCtx, cancel = context.WithTimeout(ctx, ec.limits.MaxSubprocessWall)
		}

		stdout, wait, err := ec.runner.Run(runCtx, stage.Command, stage.CommandArgs, bytes.NewReader([]byte(line)))
		if err != nil {
			if cancel != nil {
				cancel()
			}
			elements[i] = forEachErrorElement(err.Error())
			continue
		}

		outBytes, _, readErr := readAllBounded(stdout, ec.limits.MaxStageInputBytes)
		stdout.Close()
		stderr, waitErr := wait()
		if cancel != nil {
			cancel()
		}

		if waitErr != nil {
			elements[i] = forEachErrorElement(waitErr.Error())
			diag.Warnings = append(diag.Warnings, fmt.Sprintf("item %d: %v", i, waitErr))
			continue
		}
		if readErr != nil {
			elements[i] = forEachErrorElement(readErr.Error())
			continue
		}
		if stderr != "" {
			diag.Warnings = append(diag.Warnings, fmt.Sprintf("item %d stderr: %s", i, stderr))
		}
		elements[i] = forEachElement([]byte(outBytes))
	}

	return json.Marshal(elements)
}
