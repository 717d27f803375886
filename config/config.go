/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package config reads the YAML configuration of a mesh node.
//
// A configuration names the node, picks the catalog and state store backends,
// lists the stream providers and seeds the catalog with nodes and modules:
//
//	name: pricing-node
//	log_level: info
//	ask_timeout: 5s
//	passivation_timeout: 2m
//	catalog:
//	  application_types: [app]
//	  store:
//	    kind: bolt
//	    path: /var/lib/mesh/catalog.db
//	streams:
//	  - kind: memory
//	  - kind: nats
//	    url: nats://127.0.0.1:4222
//	modules_dir: /var/lib/mesh/modules
//	modules: [builtin:pricing]
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/systemorph/meshweaver/catalog"
	"github.com/systemorph/meshweaver/internal/validation"
	"github.com/systemorph/meshweaver/log"
	"github.com/systemorph/meshweaver/node"
)

// Store backend kinds
const (
	StoreMemory = "memory"
	StoreBolt   = "bolt"
	StoreSQLite = "sqlite"
	StoreEtcd   = "etcd"
	StoreRedis  = "redis"
)

// Stream provider kinds
const (
	StreamMemory = "memory"
	StreamNATS   = "nats"
)

var (
	// ErrNameRequired is returned when the configuration does not name the node
	ErrNameRequired = errors.New("mesh name is required")
	// ErrUnknownKind is returned for an unsupported store or stream kind
	ErrUnknownKind = errors.New("unknown kind")
)

// Config is the configuration of a mesh node
type Config struct {
	// Name of the mesh node
	Name string `yaml:"name"`
	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level"`
	// AskTimeout bounds every grain call
	AskTimeout time.Duration `yaml:"ask_timeout"`
	// PassivationTimeout deactivates idle grains; zero keeps the runtime default
	PassivationTimeout time.Duration `yaml:"passivation_timeout"`
	// Catalog configures the node catalog
	Catalog CatalogConfig `yaml:"catalog"`
	// State is the store of the grain durable state
	State StoreConfig `yaml:"state"`
	// Streams lists the stream providers
	Streams []StreamConfig `yaml:"streams"`
	// ModulesDir is watched for modules to install
	ModulesDir string `yaml:"modules_dir"`
	// Modules are installed at startup, in order
	Modules []string `yaml:"modules"`
	// Nodes are written to the catalog at startup
	Nodes []*node.MeshNode `yaml:"nodes"`
}

// CatalogConfig configures the catalog
type CatalogConfig struct {
	// Namespace prefixes the catalog keys in the store
	Namespace string `yaml:"namespace"`
	// ApplicationTypes are the address types keyed per instance
	ApplicationTypes []string `yaml:"application_types"`
	// Store holds the nodes
	Store StoreConfig `yaml:"store"`
}

// StoreConfig selects and configures a persistence backend
type StoreConfig struct {
	Kind        string        `yaml:"kind"`
	Path        string        `yaml:"path"`
	Endpoints   []string      `yaml:"endpoints"`
	Namespace   string        `yaml:"namespace"`
	Addr        string        `yaml:"addr"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	Prefix      string        `yaml:"prefix"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// StreamConfig selects and configures a stream provider
type StreamConfig struct {
	Kind string `yaml:"kind"`
	// Name is the provider name nodes refer to. Defaults to the kind.
	Name          string        `yaml:"name"`
	Retention     int           `yaml:"retention"`
	URL           string        `yaml:"url"`
	StreamName    string        `yaml:"stream_name"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	MaxAge        time.Duration `yaml:"max_age"`
	InMemory      bool          `yaml:"in_memory"`
}

// New creates a Config for the named node with the defaults applied
func New(name string) (*Config, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	config := &Config{Name: name}
	config.sanitize()
	return config, nil
}

// Load reads and validates the configuration file at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config=(%s): %w", path, err)
	}
	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid config=(%s): %w", path, err)
	}
	return config, nil
}

// Parse decodes and validates a YAML configuration
func Parse(data []byte) (*Config, error) {
	config := new(Config)
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	config.sanitize()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	chain := validation.
		New(validation.AllErrors()).
		AddAssertion(c.Name != "", ErrNameRequired.Error()).
		AddAssertion(log.ParseLevel(c.LogLevel) != log.InvalidLevel, fmt.Sprintf("invalid log level %q", c.LogLevel)).
		AddAssertion(c.AskTimeout > 0, "ask timeout must be positive").
		AddAssertion(c.PassivationTimeout >= 0, "passivation timeout must not be negative").
		AddValidator(c.Catalog.Store.validator("catalog store")).
		AddValidator(c.State.validator("state store"))

	names := make([]string, 0, len(c.Streams))
	for i, s := range c.Streams {
		chain.AddValidator(s.validator(fmt.Sprintf("stream %d", i)))
		chain.AddAssertion(!slices.Contains(names, s.Name), fmt.Sprintf("duplicate stream provider %q", s.Name))
		names = append(names, s.Name)
	}
	for _, n := range c.Nodes {
		if n == nil {
			chain.AddAssertion(false, "empty node entry")
			continue
		}
		chain.AddValidator(n)
	}
	for _, location := range c.Modules {
		chain.AddAssertion(location != "", "empty module location")
	}
	return chain.Validate()
}

// Level returns the configured log level
func (c *Config) Level() log.Level {
	return log.ParseLevel(c.LogLevel)
}

// CatalogConfig returns the catalog settings
func (c *Config) CatalogConfig() *catalog.Config {
	config := catalog.DefaultConfig()
	if c.Catalog.Namespace != "" {
		config.Namespace = c.Catalog.Namespace
	}
	if len(c.Catalog.ApplicationTypes) > 0 {
		config.ApplicationTypes = slices.Clone(c.Catalog.ApplicationTypes)
	}
	return config
}

func (c *Config) sanitize() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.AskTimeout == 0 {
		c.AskTimeout = 5 * time.Second
	}
	if c.Catalog.Store.Kind == "" {
		c.Catalog.Store.Kind = StoreMemory
	}
	if c.State.Kind == "" {
		c.State.Kind = StoreMemory
	}
	if len(c.Streams) == 0 {
		c.Streams = []StreamConfig{{Kind: StreamMemory}}
	}
	for i := range c.Streams {
		if c.Streams[i].Name == "" {
			c.Streams[i].Name = c.Streams[i].Kind
		}
	}
}

func (s StoreConfig) validator(field string) validation.Validator {
	chain := validation.New(validation.FailFast())
	switch s.Kind {
	case StoreMemory:
	case StoreBolt, StoreSQLite:
		chain.AddValidator(validation.NewEmptyStringValidator(field+" path", s.Path))
	case StoreEtcd:
		chain.AddAssertion(len(s.Endpoints) > 0, field+" requires etcd endpoints")
	case StoreRedis:
		chain.AddValidator(validation.NewTCPAddressValidator(s.Addr)).
			AddValidator(validation.NewBooleanValidator(s.DB >= 0, field+" redis db must not be negative"))
	default:
		chain.AddAssertion(false, fmt.Sprintf("%s: %v %q", field, ErrUnknownKind, s.Kind))
	}
	return chain
}

func (s StreamConfig) validator(field string) validation.Validator {
	chain := validation.New(validation.FailFast())
	switch s.Kind {
	case StreamMemory:
		chain.AddAssertion(s.Retention >= 0, field+" retention must not be negative")
	case StreamNATS:
		chain.AddValidator(validation.NewEmptyStringValidator(field+" url", s.URL))
	default:
		chain.AddAssertion(false, fmt.Sprintf("%s: %v %q", field, ErrUnknownKind, s.Kind))
	}
	return chain
}

// equal reports whether both configurations open the same backend
func (s StoreConfig) equal(other StoreConfig) bool {
	return s.Kind == other.Kind &&
		s.Path == other.Path &&
		slices.Equal(s.Endpoints, other.Endpoints) &&
		s.Namespace == other.Namespace &&
		s.Addr == other.Addr &&
		s.DB == other.DB &&
		s.Prefix == other.Prefix
}
