// Package config loads the description of a cache and memory system from a
// YAML file and from environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/simplemem/mem/mem"
)

// Environment variables that override the file.
const (
	EnvCacheLatency  = "SIMPLEMEM_CACHE_LATENCY"
	EnvCacheSize     = "SIMPLEMEM_CACHE_SIZE"
	EnvMemoryLatency = "SIMPLEMEM_MEMORY_LATENCY"
)

// Size is a number of bytes. In YAML it can be written as a plain integer or
// with a unit, such as "16kB" or "4GB". Units are powers of 1024.
type Size uint64

// UnmarshalYAML parses the size.
func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	n, err := mem.ParseSize(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}

	*s = Size(n)

	return nil
}

// MarshalYAML writes the size with a binary unit.
func (s Size) MarshalYAML() (any, error) {
	return mem.HumanSize(uint64(s)), nil
}

// CacheConfig describes the cache.
type CacheConfig struct {
	Latency   int  `yaml:"latency"`
	Size      Size `yaml:"size"`
	BlockSize Size `yaml:"block_size"`
	NumPorts  int  `yaml:"num_ports"`
}

// MemoryConfig describes the memory controller.
type MemoryConfig struct {
	Latency  int  `yaml:"latency"`
	Capacity Size `yaml:"capacity"`
}

// AgentConfig describes a requester. Scripted accesses are issued first,
// then the random reads and writes.
type AgentConfig struct {
	Port         int      `yaml:"port"`
	Accesses     []string `yaml:"accesses,omitempty"`
	Reads        int      `yaml:"reads,omitempty"`
	Writes       int      `yaml:"writes,omitempty"`
	Seed         int64    `yaml:"seed,omitempty"`
	AddressBase  uint64   `yaml:"address_base,omitempty"`
	AddressRange Size     `yaml:"address_range,omitempty"`
}

// SystemConfig describes a whole system.
type SystemConfig struct {
	Cache  CacheConfig   `yaml:"cache"`
	Memory MemoryConfig  `yaml:"memory"`
	Agents []AgentConfig `yaml:"agents"`

	// InstAgent is an optional requester connected to the instruction port
	// of the memory controller.
	InstAgent *AgentConfig `yaml:"inst_agent,omitempty"`
}

// Default returns a system with a 16kB cache of 64-byte blocks and a latency
// of 1 cycle, in front of a memory with a latency of 10 cycles.
func Default() SystemConfig {
	return SystemConfig{
		Cache: CacheConfig{
			Latency:   1,
			Size:      Size(16 * mem.KB),
			BlockSize: 64,
			NumPorts:  1,
		},
		Memory: MemoryConfig{
			Latency:  10,
			Capacity: Size(4 * mem.GB),
		},
	}
}

// Load reads the configuration file, applies the environment overrides and
// validates the result. An empty path starts from the default system.
func Load(path string) (SystemConfig, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return SystemConfig{}, fmt.Errorf("loading config: %w", err)
		}
		defer f.Close()

		cfg, err = Decode(f)
		if err != nil {
			return SystemConfig{}, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return SystemConfig{}, err
	}

	if err := cfg.Validate(); err != nil {
		return SystemConfig{}, err
	}

	return cfg, nil
}

// Decode parses a YAML document on top of the default system. Unknown
// fields are errors.
func Decode(r io.Reader) (SystemConfig, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	err := decoder.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return SystemConfig{}, err
	}

	return cfg, nil
}

// Encode writes the configuration as YAML.
func (c SystemConfig) Encode(w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(c); err != nil {
		return err
	}

	return encoder.Close()
}

// LoadEnvFiles loads variables from the given .env files into the process
// environment. Variables that are already set are kept. Missing files are
// skipped.
func LoadEnvFiles(files ...string) error {
	existing := make([]string, 0, len(files))

	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}

	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading env files: %w", err)
	}

	return nil
}

// ApplyEnv overrides the configuration with the SIMPLEMEM_ environment
// variables.
func ApplyEnv(cfg *SystemConfig) error {
	if v, ok := os.LookupEnv(EnvCacheLatency); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCacheLatency, err)
		}

		cfg.Cache.Latency = n
	}

	if v, ok := os.LookupEnv(EnvCacheSize); ok {
		n, err := mem.ParseSize(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCacheSize, err)
		}

		cfg.Cache.Size = Size(n)
	}

	if v, ok := os.LookupEnv(EnvMemoryLatency); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMemoryLatency, err)
		}

		cfg.Memory.Latency = n
	}

	return nil
}

// Validate checks that the system can be built.
func (c SystemConfig) Validate() error {
	if c.Cache.Latency < 0 || c.Memory.Latency < 0 {
		return fmt.Errorf("%w: latency must not be negative",
			mem.ErrInvalidParameter)
	}

	if c.Cache.BlockSize == 0 || c.Cache.Size == 0 ||
		c.Cache.Size%c.Cache.BlockSize != 0 {
		return fmt.Errorf(
			"%w: cache size %d is not a positive multiple of block size %d",
			mem.ErrInvalidSize, c.Cache.Size, c.Cache.BlockSize)
	}

	if c.Memory.Capacity == 0 {
		return fmt.Errorf("%w: memory capacity must be positive",
			mem.ErrInvalidSize)
	}

	if c.Cache.NumPorts < 1 {
		return fmt.Errorf("%w: need at least one cache port",
			mem.ErrInvalidParameter)
	}

	return c.agentsMustBeValid()
}

func (c SystemConfig) agentsMustBeValid() error {
	used := make(map[int]bool)

	for i, a := range c.Agents {
		if a.Port < 0 || a.Port >= c.Cache.NumPorts {
			return fmt.Errorf("%w: agent %d uses port %d, cache has %d ports",
				mem.ErrInvalidParameter, i, a.Port, c.Cache.NumPorts)
		}

		if used[a.Port] {
			return fmt.Errorf("%w: port %d has more than one agent",
				mem.ErrInvalidParameter, a.Port)
		}

		used[a.Port] = true

		if err := a.validate(); err != nil {
			return fmt.Errorf("agent %d: %w", i, err)
		}
	}

	if c.InstAgent != nil {
		if err := c.InstAgent.validate(); err != nil {
			return fmt.Errorf("instruction agent: %w", err)
		}
	}

	return nil
}

func (a AgentConfig) validate() error {
	if a.Reads < 0 || a.Writes < 0 {
		return fmt.Errorf("%w: negative access count", mem.ErrInvalidParameter)
	}

	if (a.Reads > 0 || a.Writes > 0) && a.AddressRange < 4 {
		return fmt.Errorf("%w: random accesses need an address range",
			mem.ErrInvalidParameter)
	}

	return nil
}
