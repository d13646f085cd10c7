package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/claimgraph/internal/graph"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claimgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, graph.BackendSQLite, cfg.Backend())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
graph:
  backend: none
federation:
  self: http://a.example.org/
  partners:
    - http://b.example.org/
    - http://c.example.org
  timeout: 3s
rebuild:
  threads: 2
query:
  default_timeout: 250ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, graph.BackendNone, cfg.Backend())
	assert.Equal(t, "http://a.example.org", cfg.Federation.Self)
	assert.Equal(t, []string{"http://b.example.org", "http://c.example.org"}, cfg.Federation.Partners)
	assert.Equal(t, 3*time.Second, cfg.Federation.Timeout)
	assert.Equal(t, 2, cfg.Rebuild.Threads)
	assert.Equal(t, 100, cfg.Rebuild.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Query.DefaultTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "graph:\n  path: from-file.db\n")
	t.Setenv("CLAIMGRAPH_GRAPH_PATH", "from-env.db")
	t.Setenv("CLAIMGRAPH_REBUILD_THREADS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Graph.Path)
	assert.Equal(t, 8, cfg.Rebuild.Threads)
}

func TestLoad_MissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Graph.Backend = "neptune" }},
		{"sqlite without path", func(c *Config) { c.Graph.Path = "" }},
		{"zero threads", func(c *Config) { c.Rebuild.Threads = 0 }},
		{"zero batch size", func(c *Config) { c.Rebuild.BatchSize = 0 }},
		{"partners without self", func(c *Config) { c.Federation.Partners = []string{"http://b"} }},
		{"negative rate", func(c *Config) { c.Federation.RatePerSecond = -1 }},
		{"zero query timeout", func(c *Config) { c.Query.DefaultTimeout = 0 }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_NoneBackendAllowsEmptyPath(t *testing.T) {
	cfg := Default()
	cfg.Graph.Backend = "none"
	cfg.Graph.Path = ""
	assert.NoError(t, cfg.Validate())
}

func TestYAML_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Federation.Self = "http://a"
	cfg.Federation.Partners = []string{"http://b"}

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(out), "default_timeout: 5s")

	var back Config
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, cfg, back)
}
