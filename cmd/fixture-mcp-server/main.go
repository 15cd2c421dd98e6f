// fixture-mcp-server is a minimal MCP tool server used to exercise
// mcshell's session pool and tool stages in tests and local
// development, without depending on a real third-party tool server
// being reachable.
//
// Usage:
//
//	go build -o fixture-mcp-server ./cmd/fixture-mcp-server
//	# then register it with a StaticRegistryClient as a "stdio" server
//	# pointed at the built binary.
package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// UppercaseArgs is the input schema for the uppercase tool. It uses
// the conventional "input" key so pipelines can chain a tool stage
// straight off an upstream stage's output without naming the field.
type UppercaseArgs struct {
	Input string `json:"input" jsonschema:"Text to uppercase"`
}

// WordCountArgs mirrors UppercaseArgs: a single "input" field, this
// time counting whitespace-separated words.
type WordCountArgs struct {
	Input string `json:"input" jsonschema:"Text to count words in"`
}

// ConcatArgs has no "input" key, so a tool stage using it without
// for_each never auto-binds the upstream stream; callers must supply
// parts explicitly via args or per-item via for_each.
type ConcatArgs struct {
	Parts     []string `json:"parts" jsonschema:"Strings to concatenate"`
	Separator string   `json:"separator,omitempty" jsonschema:"Separator between parts (default empty)"`
}

func main() {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "fixture-mcp-server",
			Version: "1.0.0",
		},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "uppercase",
		Description: "Uppercase the given text",
	}, func(
		ctx context.Context,
		req *mcp.CallToolRequest,
		args UppercaseArgs,
	) (*mcp.CallToolResult, any, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: strings.ToUpper(args.Input)},
			},
		}, nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "word_count",
		Description: "Count whitespace-separated words in the given text",
	}, func(
		ctx context.Context,
		req *mcp.CallToolRequest,
		args WordCountArgs,
	) (*mcp.CallToolResult, any, error) {
		count := len(strings.Fields(args.Input))
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("%d", count)},
			},
		}, nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "concat",
		Description: "Concatenate multiple strings with an optional separator",
	}, func(
		ctx context.Context,
		req *mcp.CallToolRequest,
		args ConcatArgs,
	) (*mcp.CallToolResult, any, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: strings.Join(args.Parts, args.Separator)},
			},
		}, nil, nil
	})

	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		log.Fatalf("fixture-mcp-server: %v", err)
	}
}
