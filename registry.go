package mcshell

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ServerDescriptor is the connection information the runtime hands
// back for one remote tool server.
type ServerDescriptor struct {
	Name      string            `json:"name"`
	Transport string            `json:"transport"` // "stdio" | "http" | "sse"
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Address   string            `json:"address,omitempty"`
}

// RegistryClient resolves the set of remote tool servers the engine
// may talk to. The engine reads a runtime pointer (host:port) from its
// environment and asks this client to enumerate servers; when the
// pointer is unset, Servers returns an empty slice and Lookup always
// fails with ErrRuntimeUnavailable.
type RegistryClient interface {
	// Servers lists every tool server known to the runtime.
	Servers(ctx context.Context) ([]ServerDescriptor, error)

	// Lookup resolves one server by name.
	Lookup(ctx context.Context, name string) (ServerDescriptor, error)
}

// HTTPRegistryClient resolves tool servers from a runtime registry
// reached over HTTP, the way kadirpekel-hector's httpclient wraps
// net/http with bounded retries for an upstream service. mcshell's
// registry surface is simpler (one GET, no auth), so it is built
// directly on net/http rather than pulling in a retry middleware for a
// single call site.
type HTTPRegistryClient struct {
	baseURL string
	hc      *http.Client
}

// NewHTTPRegistryClient returns a client pointed at baseURL, or a
// disabled client if baseURL is empty. A bare host:port without a
// scheme is reached over plain http.
func NewHTTPRegistryClient(baseURL string) *HTTPRegistryClient {
	if baseURL != "" && !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &HTTPRegistryClient{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPRegistryClient) Servers(ctx context.Context) ([]ServerDescriptor, error) {
	if c.baseURL == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/servers", nil)
	if err != nil {
		return nil, fmt.Errorf("build registry request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}

	var servers []ServerDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&servers); err != nil {
		return nil, fmt.Errorf("decode registry response: %w", err)
	}
	return servers, nil
}

func (c *HTTPRegistryClient) Lookup(ctx context.Context, name string) (ServerDescriptor, error) {
	if c.baseURL == "" {
		return ServerDescriptor{}, &ErrRuntimeUnavailable{}
	}

	servers, err := c.Servers(ctx)
	if err != nil {
		return ServerDescriptor{}, err
	}
	for _, s := range servers {
		if s.Name == name {
			return s, nil
		}
	}
	return ServerDescriptor{}, &ErrNotFound{Server: name}
}

// StaticRegistryClient serves a fixed, in-memory set of server
// descriptors. Used in tests and for embedding the engine where the
// caller already knows its tool servers rather than discovering them
// from a runtime.
type StaticRegistryClient struct {
	servers map[string]ServerDescriptor
}

// NewStaticRegistryClient returns a registry backed by servers.
func NewStaticRegistryClient(servers []ServerDescriptor) *StaticRegistryClient {
	m := make(map[string]ServerDescriptor, len(servers))
	for _, s := range servers {
		m[s.Name] = s
	}
	return &StaticRegistryClient{servers: m}
}

func (c *StaticRegistryClient) Servers(ctx context.Context) ([]ServerDescriptor, error) {
	out := make([]ServerDescriptor, 0, len(c.servers))
	for _, s := range c.servers {
		out = append(out, s)
	}
	return out, nil
}

func (c *StaticRegistryClient) Lookup(ctx context.Context, name string) (ServerDescriptor, error) {
	s, ok := c.servers[name]
	if !ok {
		return ServerDescriptor{}, &ErrNotFound{Server: name}
	}
	return s, nil
}
