package mcshell

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// clientInfo identifies this engine to every remote tool server it
// connects to.
var clientInfo = &mcp.Implementation{Name: "mcshell", Version: "0.1.0"}

// session wraps one live connection to a remote tool server. Callers
// serialize through mu because the underlying protocol may not permit
// concurrent requests over a single logical connection; this also
// satisfies the "no parallel duplicate sessions" rule by construction
// since every invocation against a server funnels through the one
// *session held for that name.
type session struct {
	mu  sync.Mutex
	cs  *mcp.ClientSession
	srv ServerDescriptor
}

// SessionPool maintains one live MCP client session per remote tool
// server, opened lazily on first reference and reused for the
// lifetime of the engine process. It is the client-side counterpart of
// the SDK's in-process MCP server support: where the SDK hosts tools
// for Claude to call, the pool calls tools hosted by others.
type SessionPool struct {
	registry RegistryClient
	limits   EngineLimits
	log      Logger

	mu       sync.Mutex
	sessions map[string]*session
	opening  singleflight.Group
}

// NewSessionPool returns a pool that resolves server descriptors from
// registry.
func NewSessionPool(registry RegistryClient, limits EngineLimits, log Logger) *SessionPool {
	if log == nil {
		log = NewNopLogger()
	}
	return &SessionPool{
		registry: registry,
		limits:   limits,
		log:      log,
		sessions: make(map[string]*session),
	}
}

// Invoke calls tool on server with args and returns the remote result
// flattened to UTF-8 bytes suitable for placing on the inter-stage
// stream.
func (p *SessionPool) Invoke(ctx context.Context, server, tool string, args map[string]any) ([]byte, error) {
	s, err := p.sessionFor(ctx, server)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	callCtx := ctx
	var cancel context.CancelFunc
	if p.limits.MaxToolWall > 0 {
		callCtx, cancel = context.WithTimeout(ctx, p.limits.MaxToolWall)
		defer cancel()
	}

	res, err := s.cs.CallTool(callCtx, &mcp.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
	if err != nil {
		p.dropSession(server)
		return nil, &ErrToolTransport{Server: server, Cause: err}
	}

	out := flattenContent(res.Content)
	if res.IsError {
		return nil, &ErrToolInvocation{Server: server, Tool: tool, Message: string(out)}
	}
	return out, nil
}

// ListTools aggregates capabilities across every server known to the
// registry.
func (p *SessionPool) ListTools(ctx context.Context) (map[string][]ToolDescriptor, error) {
	servers, err := p.registry.Servers(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]ToolDescriptor, len(servers))
	for _, srv := range servers {
		descs, err := p.listServerTools(ctx, srv.Name)
		if err != nil {
			p.log.Warn("list_tools: server unreachable", "server", srv.Name, "error", err)
			continue
		}
		out[srv.Name] = descs
	}
	return out, nil
}

// Describe returns one tool's descriptor, or ErrNotFound if either the
// server or the tool name is unknown.
func (p *SessionPool) Describe(ctx context.Context, server, tool string) (ToolDescriptor, error) {
	descs, err := p.listServerTools(ctx, server)
	if err != nil {
		return ToolDescriptor{}, err
	}
	for _, d := range descs {
		if d.Name == tool {
			return d, nil
		}
	}
	return ToolDescriptor{}, &ErrNotFound{Server: server, Tool: tool}
}

func (p *SessionPool) listServerTools(ctx context.Context, server string) ([]ToolDescriptor, error) {
	s, err := p.sessionFor(ctx, server)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.cs.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		p.dropSession(server)
		return nil, &ErrToolTransport{Server: server, Cause: err}
	}

	descs := make([]ToolDescriptor, 0, len(res.Tools))
	for _, t := range res.Tools {
		descs = append(descs, ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			Schema:      schemaToMap(t.InputSchema),
		})
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs, nil
}

// sessionFor returns the live session for server, opening it lazily if
// needed. Concurrent first-use is coalesced through a singleflight
// group keyed by server name, so the engine never opens two sessions
// for the same server.
func (p *SessionPool) sessionFor(ctx context.Context, server string) (*session, error) {
	p.mu.Lock()
	if s, ok := p.sessions[server]; ok {
		p.mu.Unlock()
		return s, nil
	}
	p.mu.Unlock()

	v, err, _ := p.opening.Do(server, func() (any, error) {
		p.mu.Lock()
		if s, ok := p.sessions[server]; ok {
			p.mu.Unlock()
			return s, nil
		}
		p.mu.Unlock()

		srv, err := p.registry.Lookup(ctx, server)
		if err != nil {
			return nil, err
		}

		transport, err := newClientTransport(srv)
		if err != nil {
			return nil, &ErrToolTransport{Server: server, Cause: err}
		}

		client := mcp.NewClient(clientInfo, nil)
		cs, err := client.Connect(ctx, transport)
		if err != nil {
			return nil, &ErrToolTransport{Server: server, Cause: err}
		}

		s := &session{cs: cs, srv: srv}
		p.mu.Lock()
		p.sessions[server] = s
		p.mu.Unlock()
		p.log.Info("opened tool server session", "server", server, "transport", srv.Transport)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session), nil
}

// dropSession closes and forgets server's session so the next
// reference reopens it after a transport error.
func (p *SessionPool) dropSession(server string) {
	p.mu.Lock()
	s, ok := p.sessions[server]
	delete(p.sessions, server)
	p.mu.Unlock()
	if ok {
		_ = s.cs.Close()
	}
}

// Close closes every open session concurrently, used during engine
// shutdown.
func (p *SessionPool) Close() error {
	p.mu.Lock()
	sessions := make([]*session, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.sessions = make(map[string]*session)
	p.mu.Unlock()

	var g errgroup.Group
	for _, s := range sessions {
		s := s
		g.Go(func() error { return s.cs.Close() })
	}
	return g.Wait()
}

// newClientTransport builds the SDK transport implied by srv's
// descriptor: a subprocess-backed stdio server, or an HTTP streaming
// endpoint.
func newClientTransport(srv ServerDescriptor) (mcp.Transport, error) {
	switch srv.Transport {
	case "stdio", "":
		if srv.Command == "" {
			return nil, fmt.Errorf("server %s: stdio transport requires a command", srv.Name)
		}
		cmd := exec.Command(srv.Command, srv.Args...)
		for k, v := range srv.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
		return &mcp.CommandTransport{Command: cmd}, nil
	case "http", "sse":
		if srv.Address == "" {
			return nil, fmt.Errorf("server %s: http transport requires an address", srv.Name)
		}
		return mcp.NewStreamableClientTransport(srv.Address, nil), nil
	default:
		return nil, fmt.Errorf("server %s: unknown transport %q", srv.Name, srv.Transport)
	}
}

// flattenContent serializes an MCP tool result's content items to a
// canonical UTF-8 form: concatenated text when every item is text,
// otherwise the content array marshaled as JSON.
func flattenContent(content []mcp.Content) []byte {
	allText := true
	var text []byte
	for i, c := range content {
		tc, ok := c.(*mcp.TextContent)
		if !ok {
			allText = false
			break
		}
		if i > 0 {
			text = append(text, '\n')
		}
		text = append(text, tc.Text...)
	}
	if allText {
		return text
	}

	data, err := json.Marshal(content)
	if err != nil {
		return []byte(fmt.Sprintf("%v", content))
	}
	return data
}

// schemaToMap normalizes the SDK's typed input schema into a plain map
// for transport in ToolDescriptor.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
