package mcshell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShellDefaults(t *testing.T) {
	s := NewShell()
	defer s.Close()

	assert.Equal(t, DefaultLimits(), s.limits)
}

func TestNewShellAppliesOptions(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxForEachItems = 7

	s := NewShell(WithLimits(limits), WithRegistry(NewStaticRegistryClient(nil)))
	defer s.Close()

	assert.Equal(t, 7, s.limits.MaxForEachItems)
}

func TestShellListAvailableShellCommands(t *testing.T) {
	s := NewShell()
	defer s.Close()

	commands, err := s.ListAvailableShellCommands(context.Background())
	require.NoError(t, err)
	assert.Contains(t, commands, "jq")
}

func TestShellGetToolDetailsRequiresServerAndTool(t *testing.T) {
	s := NewShell()
	defer s.Close()

	_, err := s.GetToolDetails(context.Background(), ToolDetailsRequest{})
	assert.Error(t, err)

	_, err = s.GetToolDetails(context.Background(), ToolDetailsRequest{Server: "x"})
	assert.Error(t, err)
}

func TestShellExecutePipelineDelegatesToOrchestrator(t *testing.T) {
	s := NewShell()
	defer s.Close()

	p := Pipeline{
		InitialInput: "hello",
		Stages:       []Stage{{Kind: StageCommand, Command: "tr", CommandArgs: []string{"a-z", "A-Z"}}},
	}

	result := s.ExecutePipeline(context.Background(), p)
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, "HELLO", result.Output)
}

func TestShellListAllToolsEmptyRegistry(t *testing.T) {
	s := NewShell()
	defer s.Close()

	tools, err := s.ListAllTools(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tools)
}

func TestShellCloseIsIdempotent(t *testing.T) {
	s := NewShell()
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
