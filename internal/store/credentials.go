// Package store persists an agent's provider -> integration id mappings in
// <agent dir>/credentials.json.
//
// The file looks like:
//
//	{
//	  "mappings": {
//	    "google": "Z29vZ2xlOnJpY2hhcmRAYWNoby5pbzo3MDIwOjEwMzgz",
//	    "hubspot": "aHVic3BvdDp3b3JrQGNvbXBhbnkuY29t"
//	  }
//	}
//
// A missing or unreadable file loads as an empty mapping. Saving replaces the
// whole file and drops any other top-level keys. There is no locking: two
// processes saving the same agent race and the last write wins.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	core "agcred/internal/core"
	"agcred/internal/fsx"
	"agcred/internal/logging"
)

type credentialFile struct {
	Mappings core.Mappings `json:"mappings"`
}

// AgentConfig holds one agent's credential mappings in memory.
// Mutations are not persisted until Save is called.
type AgentConfig struct {
	// AgentPath is the agent directory. It is not checked for existence.
	AgentPath string

	mappings core.Mappings
	loadErr  error
}

// decodeOptions accept what a lenient JSON reader would: the last duplicate
// member wins and invalid UTF-8 becomes U+FFFD.
var decodeOptions = json.JoinOptions(
	jsontext.AllowDuplicateNames(true),
	jsontext.AllowInvalidUTF8(true),
)

// New returns an empty config for agentPath without touching the disk.
func New(agentPath string) *AgentConfig {
	return &AgentConfig{AgentPath: agentPath, mappings: core.Mappings{}}
}

// Load reads credentials.json from agentPath. It never fails: a missing file,
// a read error or malformed JSON all yield an empty mapping, the latter two
// with a warning on the context logger.
func Load(ctx context.Context, agentPath string) *AgentConfig {
	c := New(agentPath)
	p := c.Path()
	b, err := os.ReadFile(p)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.FromContext(ctx).Warn("failed to load agent credential config", "path", p, "error", err)
			c.loadErr = err
		}
		return c
	}
	m, err := decode(ctx, b)
	if err != nil {
		logging.FromContext(ctx).Warn("failed to load agent credential config", "path", p, "error", err)
		c.loadErr = err
		return c
	}
	c.mappings = m
	return c
}

// decode extracts the "mappings" object. A missing or non-object value is an
// empty mapping; entries whose value is not a string are skipped.
func decode(ctx context.Context, b []byte) (core.Mappings, error) {
	var top map[string]jsontext.Value
	if err := json.Unmarshal(b, &top, decodeOptions); err != nil {
		return nil, err
	}
	out := core.Mappings{}
	raw, ok := top["mappings"]
	if !ok || raw.Kind() != '{' {
		return out, nil
	}
	var entries map[string]jsontext.Value
	if err := json.Unmarshal(raw, &entries, decodeOptions); err != nil {
		return nil, err
	}
	for provider, v := range entries {
		if v.Kind() != '"' {
			logging.FromContext(ctx).Warn("skipping non-string integration id", "provider", provider)
			continue
		}
		var id string
		if err := json.Unmarshal(v, &id, decodeOptions); err != nil {
			return nil, err
		}
		out[provider] = id
	}
	return out, nil
}

// LoadErr returns the read or parse error that Load fell back from, or nil
// when the file was absent or loaded cleanly. Saving after such an error
// replaces the unreadable file.
func (c *AgentConfig) LoadErr() error { return c.loadErr }

// Path returns the location of the agent's credentials.json.
func (c *AgentConfig) Path() string {
	return filepath.Join(c.AgentPath, core.ConfigFilename)
}

// Save writes the mappings to credentials.json, replacing the file in full.
// The agent directory must already exist. Failures are logged and returned.
func (c *AgentConfig) Save(ctx context.Context) error {
	p := c.Path()
	logger := logging.FromContext(ctx)

	data, err := encode(c.mappings)
	if err != nil {
		logger.Error("failed to save agent credential config", "path", p, "error", err)
		return fmt.Errorf("save agent credential config: %w", err)
	}
	if err := fsx.AtomicWrite(p, data, fs.FileMode(0o600)); err != nil {
		logger.Error("failed to save agent credential config", "path", p, "error", err)
		return fmt.Errorf("save agent credential config: %w", err)
	}
	c.loadErr = nil
	logger.Info("saved agent credential config", "path", p)
	return nil
}

func encode(m core.Mappings) ([]byte, error) {
	if m == nil {
		m = core.Mappings{}
	}
	// Invalid UTF-8 in an id is written as U+FFFD rather than failing the save.
	b, err := json.Marshal(credentialFile{Mappings: m},
		jsontext.WithIndent("  "),
		jsontext.SpaceAfterColon(true),
		jsontext.AllowInvalidUTF8(true),
		json.Deterministic(true),
	)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// IntegrationID returns the integration id mapped to provider.
// ok is false when the provider has no mapping.
func (c *AgentConfig) IntegrationID(provider string) (id string, ok bool) {
	id, ok = c.mappings[provider]
	return id, ok
}

// SetIntegrationID maps provider to id, replacing any previous value.
func (c *AgentConfig) SetIntegrationID(provider, id string) {
	if c.mappings == nil {
		c.mappings = core.Mappings{}
	}
	c.mappings[provider] = id
}

// RemoveIntegration deletes the mapping for provider and reports whether one existed.
func (c *AgentConfig) RemoveIntegration(provider string) bool {
	if _, ok := c.mappings[provider]; !ok {
		return false
	}
	delete(c.mappings, provider)
	return true
}

// ListMappings returns a copy of all mappings.
func (c *AgentConfig) ListMappings() core.Mappings {
	out := maps.Clone(c.mappings)
	if out == nil {
		out = core.Mappings{}
	}
	return out
}

// HasMapping reports whether provider is mapped.
func (c *AgentConfig) HasMapping(provider string) bool {
	_, ok := c.mappings[provider]
	return ok
}

// Providers returns the mapped provider names in sorted order.
func (c *AgentConfig) Providers() []string {
	return c.mappings.Providers()
}

// Len returns the number of mappings.
func (c *AgentConfig) Len() int { return len(c.mappings) }

// IntegrationIDForAgent loads agentPath and looks up provider.
func IntegrationIDForAgent(ctx context.Context, agentPath, provider string) (string, bool) {
	return Load(ctx, agentPath).IntegrationID(provider)
}

// SetIntegrationIDForAgent loads agentPath, maps provider to id and saves immediately.
func SetIntegrationIDForAgent(ctx context.Context, agentPath, provider, id string) error {
	c := Load(ctx, agentPath)
	c.SetIntegrationID(provider, id)
	return c.Save(ctx)
}

// RemoveIntegrationForAgent loads agentPath and removes provider, saving only
// when a mapping was actually removed.
func RemoveIntegrationForAgent(ctx context.Context, agentPath, provider string) (bool, error) {
	c := Load(ctx, agentPath)
	if !c.RemoveIntegration(provider) {
		return false, nil
	}
	if err := c.Save(ctx); err != nil {
		return true, err
	}
	return true, nil
}
