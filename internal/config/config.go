// Package config loads the metasino server configuration from HCL.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/metasino/internal/store"
	"github.com/lox/metasino/internal/table"
)

// Config represents the complete server configuration
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Store  StoreSettings  `hcl:"store,block"`
	Tables []TableConfig  `hcl:"table,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`

	// AuthURL enables token checks against an external service. Without it
	// clients are trusted to name their own account.
	AuthURL    string `hcl:"auth_url,optional"`
	AuthSecret string `hcl:"auth_secret,optional"`
}

// StoreSettings selects where table state is persisted
type StoreSettings struct {
	Backend string `hcl:"backend,optional"`
	Path    string `hcl:"path,optional"`
}

// TableConfig describes a table opened when the server starts
type TableConfig struct {
	Name             string `hcl:"name,label"`
	Initiator        string `hcl:"initiator"`
	RequiredStartBet int64  `hcl:"required_start_bet"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from an HCL file. A missing file yields the
// defaults.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Store.Backend == "" {
		c.Store.Backend = store.BackendMemory
	}
	if c.Store.Path == "" {
		switch c.Store.Backend {
		case store.BackendFile:
			c.Store.Path = "tables"
		case store.BackendSQLite:
			c.Store.Path = "metasino.db"
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}

	switch c.Store.Backend {
	case store.BackendMemory, store.BackendFile, store.BackendSQLite:
	default:
		return fmt.Errorf("invalid store backend: %s", c.Store.Backend)
	}

	if c.Server.AuthURL != "" {
		u, err := url.Parse(c.Server.AuthURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid auth url: %s", c.Server.AuthURL)
		}
	}

	seen := make(map[string]bool, len(c.Tables))
	for _, t := range c.Tables {
		if seen[t.Name] {
			return fmt.Errorf("table %s: declared more than once", t.Name)
		}
		seen[t.Name] = true

		if t.Initiator == "" {
			return fmt.Errorf("table %s: initiator must be set", t.Name)
		}
		if t.RequiredStartBet <= 0 {
			return fmt.Errorf("table %s: required start bet must be positive", t.Name)
		}
		if table.Balance(t.RequiredStartBet) > table.MaxStartBet {
			return fmt.Errorf("table %s: required start bet exceeds %d", t.Name, table.MaxStartBet)
		}
	}

	return nil
}

// Address returns the full listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
