package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration problems: bad values, unknown networks or
// drivers.
var ErrInvalid = errors.New("invalid configuration")

// DefaultFile is the configuration file looked up when no path is given.
const DefaultFile = "ledgerforge.yaml"

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"

	PersistEach = "each"
	PersistEnd  = "end"
)

// Config represents the ledgerforge configuration.
type Config struct {
	Sources  SourcesConfig            `yaml:"sources"`
	Cache    CacheConfig              `yaml:"cache"`
	Ledger   LedgerConfig             `yaml:"ledger"`
	Compiler CompilerConfig           `yaml:"compiler"`
	Networks map[string]NetworkConfig `yaml:"networks"`
	Metrics  MetricsConfig            `yaml:"metrics"`
	Runs     RunsConfig               `yaml:"runs"`
}

// SourcesConfig locates the source units.
type SourcesConfig struct {
	Root      string `yaml:"root"`
	Extension string `yaml:"extension"`
}

// CacheConfig selects the build cache backend.
type CacheConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

// LedgerConfig selects the deployment ledger backend and flush strategy.
type LedgerConfig struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	// Persist is "each" (flush after every deployment) or "end" (flush once per run).
	Persist string `yaml:"persist"`
}

// CompilerConfig configures the external compiler collaborator.
type CompilerConfig struct {
	Driver  string        `yaml:"driver"`
	Command string        `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

// NetworkConfig configures one deployment target.
type NetworkConfig struct {
	Driver  string            `yaml:"driver"`
	Command string            `yaml:"command"`
	Account string            `yaml:"account"`
	Params  map[string]string `yaml:"params"`
	Timeout time.Duration     `yaml:"timeout"`
	Node    *NodeConfig       `yaml:"node"`
	// Units carries per-unit constructor arguments and transaction parameters.
	Units map[string]UnitConfig `yaml:"units"`
}

// NodeConfig describes a local node process started before deployment.
type NodeConfig struct {
	Command string `yaml:"command"`
	// Ready is a regular expression matched against the node's output lines.
	Ready   string        `yaml:"ready"`
	Timeout time.Duration `yaml:"timeout"`
}

// UnitConfig is the deployment configuration of one unit on one network.
type UnitConfig struct {
	Args   []string          `yaml:"args"`
	Params map[string]string `yaml:"params"`
}

// MetricsConfig controls the optional Prometheus textfile output.
type MetricsConfig struct {
	File string `yaml:"file"`
}

// RunsConfig locates the run journal.
type RunsConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Sources: SourcesConfig{
			Root:      "contracts",
			Extension: ".sol",
		},
		Cache: CacheConfig{
			Backend: BackendFile,
			Dir:     filepath.Join(".ledgerforge", "cache"),
		},
		Ledger: LedgerConfig{
			Backend: BackendFile,
			Dir:     filepath.Join(".ledgerforge", "ledger"),
			Persist: PersistEach,
		},
		Compiler: CompilerConfig{
			Driver:  "exec",
			Timeout: 5 * time.Minute,
		},
		Networks: map[string]NetworkConfig{},
		Runs: RunsConfig{
			Dir: filepath.Join(".ledgerforge", "runs"),
		},
	}
}

// Load reads configuration from file, falling back to defaults.
// If configPath is empty, it looks for ledgerforge.yaml in the current directory.
// A missing file is not an error.
func Load(configPath string) (*Config, error) {
	defaults := Default()

	if configPath == "" {
		configPath = DefaultFile
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaults, nil
		}
		return nil, err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrInvalid, configPath, err)
	}

	defaults.Merge(&fileCfg)
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return defaults, nil
}

// Merge combines another config into this one, with other taking precedence
// for every field it sets.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Sources.Root != "" {
		c.Sources.Root = other.Sources.Root
	}
	if other.Sources.Extension != "" {
		c.Sources.Extension = other.Sources.Extension
	}
	if other.Cache.Backend != "" {
		c.Cache.Backend = other.Cache.Backend
	}
	if other.Cache.Dir != "" {
		c.Cache.Dir = other.Cache.Dir
	}
	if other.Ledger.Backend != "" {
		c.Ledger.Backend = other.Ledger.Backend
	}
	if other.Ledger.Dir != "" {
		c.Ledger.Dir = other.Ledger.Dir
	}
	if other.Ledger.Persist != "" {
		c.Ledger.Persist = other.Ledger.Persist
	}
	if other.Compiler.Driver != "" {
		c.Compiler.Driver = other.Compiler.Driver
	}
	if other.Compiler.Command != "" {
		c.Compiler.Command = other.Compiler.Command
	}
	if other.Compiler.Timeout != 0 {
		c.Compiler.Timeout = other.Compiler.Timeout
	}
	if len(other.Networks) > 0 {
		c.Networks = other.Networks
	}
	if other.Metrics.File != "" {
		c.Metrics.File = other.Metrics.File
	}
	if other.Runs.Dir != "" {
		c.Runs.Dir = other.Runs.Dir
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Sources.Root) == "" {
		errs = append(errs, errors.New("sources.root is required"))
	}
	if !strings.HasPrefix(c.Sources.Extension, ".") {
		errs = append(errs, fmt.Errorf("sources.extension must start with '.' (got %q)", c.Sources.Extension))
	}
	if err := validateBackend("cache.backend", c.Cache.Backend); err != nil {
		errs = append(errs, err)
	}
	if err := validateBackend("ledger.backend", c.Ledger.Backend); err != nil {
		errs = append(errs, err)
	}
	switch c.Ledger.Persist {
	case PersistEach, PersistEnd:
	default:
		errs = append(errs, fmt.Errorf("ledger.persist must be %s|%s (got %q)", PersistEach, PersistEnd, c.Ledger.Persist))
	}
	if c.Compiler.Timeout < 0 {
		errs = append(errs, errors.New("compiler.timeout must be >= 0"))
	}
	for _, name := range c.NetworkNames() {
		n := c.Networks[name]
		if n.Timeout < 0 {
			errs = append(errs, fmt.Errorf("networks.%s.timeout must be >= 0", name))
		}
		if n.Node != nil {
			if strings.TrimSpace(n.Node.Command) == "" {
				errs = append(errs, fmt.Errorf("networks.%s.node.command is required when node is set", name))
			}
			if _, err := regexp.Compile(n.Node.Ready); err != nil {
				errs = append(errs, fmt.Errorf("networks.%s.node.ready: %w", name, err))
			}
			if n.Node.Timeout < 0 {
				errs = append(errs, fmt.Errorf("networks.%s.node.timeout must be >= 0", name))
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func validateBackend(field, v string) error {
	switch v {
	case BackendFile, BackendSQLite:
		return nil
	default:
		return fmt.Errorf("%s must be %s|%s (got %q)", field, BackendFile, BackendSQLite, v)
	}
}

// NetworkNames returns configured network names, sorted.
func (c *Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for n := range c.Networks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Network returns the configuration of the named network.
func (c *Config) Network(name string) (NetworkConfig, error) {
	n, ok := c.Networks[name]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("%w: unknown network %q (configured: %s)", ErrInvalid, name, strings.Join(c.NetworkNames(), ", "))
	}
	if n.Driver == "" {
		n.Driver = "exec"
	}
	return n, nil
}

// ResolvePaths rewrites relative directories in c to be relative to baseDir.
func (c *Config) ResolvePaths(baseDir string) {
	c.Sources.Root = resolveUnder(baseDir, c.Sources.Root)
	c.Cache.Dir = resolveUnder(baseDir, c.Cache.Dir)
	c.Ledger.Dir = resolveUnder(baseDir, c.Ledger.Dir)
	c.Runs.Dir = resolveUnder(baseDir, c.Runs.Dir)
	if c.Metrics.File != "" {
		c.Metrics.File = resolveUnder(baseDir, c.Metrics.File)
	}
}

func resolveUnder(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(baseDir, p))
}
