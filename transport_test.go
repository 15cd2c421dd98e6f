package mcshell

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdioTransportWriteResponseFramesOneLine(t *testing.T) {
	var out bytes.Buffer
	transport := NewStdioTransport(strings.NewReader(""), &out)

	err := transport.WriteResponse(RPCResponse{ID: "1", Result: json.RawMessage(`"ok"`)})
	require.NoError(t, err)

	assert.Equal(t, `{"id":"1","result":"ok"}`+"\n", out.String())
}

func TestStdioTransportWriteAfterCloseFails(t *testing.T) {
	var out bytes.Buffer
	transport := NewStdioTransport(strings.NewReader(""), &out)
	require.NoError(t, transport.Close())

	err := transport.WriteResponse(RPCResponse{ID: "1"})
	require.Error(t, err)
	var cerr *ErrTransportClosed
	assert.ErrorAs(t, err, &cerr)
}

func TestStdioTransportReadRequestsYieldsEachLine(t *testing.T) {
	input := `{"id":"1","method":"list_available_shell_commands"}` + "\n" +
		`{"id":"2","method":"list_all_tools"}` + "\n"
	transport := NewStdioTransport(strings.NewReader(input), &bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var ids []string
	for req, err := range transport.ReadRequests(ctx) {
		require.NoError(t, err)
		ids = append(ids, req.ID)
	}
	assert.Equal(t, []string{"1", "2"}, ids)
}

func TestStdioTransportReadRequestsYieldsParseErrorThenContinues(t *testing.T) {
	input := "not json\n" + `{"id":"2","method":"list_all_tools"}` + "\n"
	transport := NewStdioTransport(strings.NewReader(input), &bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var ids []string
	var errCount int
	for req, err := range transport.ReadRequests(ctx) {
		if err != nil {
			errCount++
			continue
		}
		ids = append(ids, req.ID)
	}
	assert.Equal(t, 1, errCount)
	assert.Equal(t, []string{"2"}, ids)
}

func TestStdioTransportReadRequestsSkipsBlankLines(t *testing.T) {
	input := "\n" + `{"id":"1","method":"list_all_tools"}` + "\n\n"
	transport := NewStdioTransport(strings.NewReader(input), &bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var count int
	for range transport.ReadRequests(ctx) {
		count++
	}
	assert.Equal(t, 1, count)
}
