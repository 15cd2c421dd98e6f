package mcshell

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeForEachArray parses data as the JSON array the For-Each Driver
// emits and returns its raw elements in order.
func decodeForEachArray(t *testing.T, data []byte) []json.RawMessage {
	t.Helper()
	var items []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &items))
	return items
}

// decodeForEachErr reports whether element is an error-marker object
// and, if so, its message.
func decodeForEachErr(t *testing.T, element json.RawMessage) (string, bool) {
	t.Helper()
	var e forEachError
	if err := json.Unmarshal(element, &e); err == nil && e.Error != "" {
		return e.Error, true
	}
	return "", false
}

func TestCollectForEachLinesSkipsBlankAndEnforcesLimit(t *testing.T) {
	lines, err := collectForEachLines(strings.NewReader("a\n\nb\nc"), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lines)

	_, err = collectForEachLines(strings.NewReader("a\nb\nc"), 2, 5)
	require.Error(t, err)
	var lerr *ErrForEachLimitExceeded
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, 5, lerr.StageIndex)
	assert.Equal(t, 2, lerr.Limit)
}

func TestForEachElementEmbedsValidJSONVerbatim(t *testing.T) {
	assert.Equal(t, json.RawMessage("1"), forEachElement([]byte("1\n")))
	assert.Equal(t, json.RawMessage(`"plain text"`), forEachElement([]byte("plain text")))
	assert.Equal(t, json.RawMessage(`""`), forEachElement([]byte("")))
}

func TestRunForEachCommandProcessesEachLineIndependently(t *testing.T) {
	ec := newTestExecContext(t)
	stage := Stage{Kind: StageCommand, Command: "tr", CommandArgs: []string{"a-z", "A-Z"}, ForEach: true}
	diag := &StageDiagnostic{}

	out, err := runForEachCommand(context.Background(), stage, strings.NewReader("one\ntwo\nthree"), ec, diag)
	require.NoError(t, err)

	items := decodeForEachArray(t, out)
	require.Len(t, items, 3)
	assert.Equal(t, json.RawMessage(`"ONE"`), items[0])
	assert.Equal(t, json.RawMessage(`"TWO"`), items[1])
	assert.Equal(t, json.RawMessage(`"THREE"`), items[2])
}

func TestRunForEachCommandRecordsPerItemFailure(t *testing.T) {
	ec := newTestExecContext(t)
	stage := Stage{Kind: StageCommand, Command: "grep", CommandArgs: []string{"needle"}, ForEach: true}
	diag := &StageDiagnostic{}

	out, err := runForEachCommand(context.Background(), stage, strings.NewReader("needle in haystack\nno match here"), ec, diag)
	require.NoError(t, err)

	items := decodeForEachArray(t, out)
	require.Len(t, items, 2)
	assert.Equal(t, json.RawMessage(`"needle in haystack"`), items[0])
	_, isErr := decodeForEachErr(t, items[1])
	assert.True(t, isErr)
}

func TestRunForEachCommandRespectsLimit(t *testing.T) {
	ec := newTestExecContext(t)
	ec.limits.MaxForEachItems = 1
	stage := Stage{Kind: StageCommand, Command: "tr", CommandArgs: []string{"a-z", "A-Z"}, ForEach: true}
	diag := &StageDiagnostic{StageIndex: 2}

	_, err := runForEachCommand(context.Background(), stage, strings.NewReader("one\ntwo"), ec, diag)
	require.Error(t, err)
	var lerr *ErrForEachLimitExceeded
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, 2, lerr.StageIndex)
}

func TestRunForEachCommandZeroLinesEmitsEmptyArray(t *testing.T) {
	ec := newTestExecContext(t)
	stage := Stage{Kind: StageCommand, Command: "tr", CommandArgs: []string{"a-z", "A-Z"}, ForEach: true}
	diag := &StageDiagnostic{}

	out, err := runForEachCommand(context.Background(), stage, strings.NewReader("\n\n"), ec, diag)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
}

func TestRunForEachToolRecordsInvalidJSONAsError(t *testing.T) {
	ec := newTestExecContext(t)
	stage := Stage{Kind: StageTool, Server: "missing", Name: "noop"}
	diag := &StageDiagnostic{}

	out, err := runForEachTool(context.Background(), stage, strings.NewReader("not json\n"), ec, diag)
	require.NoError(t, err)

	items := decodeForEachArray(t, out)
	require.Len(t, items, 1)
	msg, isErr := decodeForEachErr(t, items[0])
	require.True(t, isErr)
	assert.Contains(t, msg, "invalid JSON")
}
