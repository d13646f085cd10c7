// Package config loads server settings from a YAML file and CLAIMGRAPH_*
// environment variables.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/roach88/claimgraph/internal/graph"
)

// DefaultPath is read when no config file is named explicitly.
const DefaultPath = "claimgraph.yaml"

// EnvPrefix prefixes environment overrides, e.g. CLAIMGRAPH_GRAPH_BACKEND.
const EnvPrefix = "CLAIMGRAPH"

//go:embed schema.cue
var schemaSource string

// Config is the full server configuration.
type Config struct {
	Server     Server     `mapstructure:"server" yaml:"server" json:"server"`
	Graph      Graph      `mapstructure:"graph" yaml:"graph" json:"graph"`
	Records    Records    `mapstructure:"records" yaml:"records" json:"records"`
	Federation Federation `mapstructure:"federation" yaml:"federation" json:"federation"`
	Rebuild    Rebuild    `mapstructure:"rebuild" yaml:"rebuild" json:"rebuild"`
	Query      Query      `mapstructure:"query" yaml:"query" json:"query"`
}

type Server struct {
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr"`
}

// Graph selects the claim graph backend.
type Graph struct {
	Backend            string `mapstructure:"backend" yaml:"backend" json:"backend"`
	Path               string `mapstructure:"path" yaml:"path" json:"path"`
	AutoRebuildOnEmpty bool   `mapstructure:"auto_rebuild_on_empty" yaml:"auto_rebuild_on_empty" json:"auto_rebuild_on_empty"`
}

type Records struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// Federation lists the partner servers searched by /query/search.
type Federation struct {
	Self          string        `mapstructure:"self" yaml:"self" json:"self"`
	Partners      []string      `mapstructure:"partners" yaml:"partners" json:"partners"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second" yaml:"rate_per_second" json:"rate_per_second"`
	Burst         int           `mapstructure:"burst" yaml:"burst" json:"burst"`
}

type Rebuild struct {
	Threads   int `mapstructure:"threads" yaml:"threads" json:"threads"`
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size"`
}

type Query struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout" json:"default_timeout"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080"},
		Graph: Graph{
			Backend:            strings.ToLower(string(graph.BackendSQLite)),
			Path:               "claimgraph.db",
			AutoRebuildOnEmpty: true,
		},
		Records: Records{Path: "records.db"},
		Federation: Federation{
			Partners:      []string{},
			Timeout:       10 * time.Second,
			RatePerSecond: 10,
			Burst:         5,
		},
		Rebuild: Rebuild{Threads: 4, BatchSize: 100},
		Query:   Query{DefaultTimeout: graph.DefaultTimeout},
	}
}

// Load reads path (or DefaultPath when empty), applies environment
// overrides and validates the result. A missing DefaultPath is not an
// error; a missing explicit path is.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := path
	if file == "" {
		file = DefaultPath
	}
	v.SetConfigFile(file)
	v.SetConfigType("yaml")

	if _, err := os.Stat(file); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	} else if path != "" || !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config %s: %w", file, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("graph.backend", d.Graph.Backend)
	v.SetDefault("graph.path", d.Graph.Path)
	v.SetDefault("graph.auto_rebuild_on_empty", d.Graph.AutoRebuildOnEmpty)
	v.SetDefault("records.path", d.Records.Path)
	v.SetDefault("federation.self", d.Federation.Self)
	v.SetDefault("federation.partners", d.Federation.Partners)
	v.SetDefault("federation.timeout", d.Federation.Timeout)
	v.SetDefault("federation.rate_per_second", d.Federation.RatePerSecond)
	v.SetDefault("federation.burst", d.Federation.Burst)
	v.SetDefault("rebuild.threads", d.Rebuild.Threads)
	v.SetDefault("rebuild.batch_size", d.Rebuild.BatchSize)
	v.SetDefault("query.default_timeout", d.Query.DefaultTimeout)
}

func (c *Config) normalize() {
	c.Graph.Backend = strings.ToLower(strings.TrimSpace(c.Graph.Backend))
	if c.Federation.Partners == nil {
		c.Federation.Partners = []string{}
	}
	for i, p := range c.Federation.Partners {
		c.Federation.Partners[i] = strings.TrimRight(strings.TrimSpace(p), "/")
	}
	c.Federation.Self = strings.TrimRight(strings.TrimSpace(c.Federation.Self), "/")
}

// Validate checks c against the embedded CUE schema.
func (c Config) Validate() error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	value := ctx.CompileBytes(data, cue.Filename("config.json"))
	if err := value.Err(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Backend returns the configured backend type.
func (c Config) Backend() graph.BackendType {
	return graph.BackendType(strings.ToUpper(c.Graph.Backend))
}

// YAML renders c the way config files are written.
func (c Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return out, nil
}
