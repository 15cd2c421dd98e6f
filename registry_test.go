package mcshell

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticRegistryClientLookup(t *testing.T) {
	registry := NewStaticRegistryClient([]ServerDescriptor{
		{Name: "fixture", Transport: "stdio", Command: "fixture-mcp-server"},
	})

	desc, err := registry.Lookup(context.Background(), "fixture")
	require.NoError(t, err)
	assert.Equal(t, "fixture-mcp-server", desc.Command)

	_, err = registry.Lookup(context.Background(), "missing")
	require.Error(t, err)
	var nferr *ErrNotFound
	require.ErrorAs(t, err, &nferr)
}

func TestStaticRegistryClientServers(t *testing.T) {
	registry := NewStaticRegistryClient([]ServerDescriptor{
		{Name: "a"}, {Name: "b"},
	})

	servers, err := registry.Servers(context.Background())
	require.NoError(t, err)
	assert.Len(t, servers, 2)
}

func TestHTTPRegistryClientServersAndLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/servers", r.URL.Path)
		json.NewEncoder(w).Encode([]ServerDescriptor{
			{Name: "remote", Transport: "http", Address: "http://example.invalid"},
		})
	}))
	defer srv.Close()

	client := NewHTTPRegistryClient(srv.URL)

	servers, err := client.Servers(context.Background())
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "remote", servers[0].Name)

	desc, err := client.Lookup(context.Background(), "remote")
	require.NoError(t, err)
	assert.Equal(t, "http://example.invalid", desc.Address)

	_, err = client.Lookup(context.Background(), "nope")
	require.Error(t, err)
}

func TestHTTPRegistryClientEmptyBaseURLUnavailable(t *testing.T) {
	client := NewHTTPRegistryClient("")

	servers, err := client.Servers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, servers)

	_, err = client.Lookup(context.Background(), "anything")
	require.Error(t, err)
	var unavailable *ErrRuntimeUnavailable
	require.ErrorAs(t, err, &unavailable)
}

func TestHTTPRegistryClientNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPRegistryClient(srv.URL)
	_, err := client.Servers(context.Background())
	assert.Error(t, err)
}
