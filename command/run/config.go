package run

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl"
	"github.com/hashicorp/hcl/hcl/ast"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/energyvm/energy-edge/chain"
	"github.com/energyvm/energy-edge/state/runtime/tracer/structtracer"
	"github.com/energyvm/energy-edge/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	errInvalidLogLevel     = errors.New("invalid log level")
	errNegativeGenesis     = errors.New("genesis balances cannot be negative")
	errMissingTracePath    = errors.New("trace output path is required")
	errNegativeTraceLimit  = errors.New("trace limit cannot be negative")
	errUnknownConfigSuffix = errors.New("unknown config file suffix")
	errInvalidHCLRoot      = errors.New("hcl config root is not an object")
)

// genesisKey names the repeatable genesis block of the config
const genesisKey = "genesis"

// Config defines the node configuration used by the run command
type Config struct {
	ChainConfig string            `json:"chain_config" yaml:"chain_config" hcl:"chain_config"`
	DataDir     string            `json:"data_dir" yaml:"data_dir" hcl:"data_dir"`
	LogLevel    string            `json:"log_level" yaml:"log_level" hcl:"log_level"`
	Genesis     []*GenesisAccount `json:"genesis" yaml:"genesis" hcl:"genesis"`
	Trace       *Trace            `json:"trace" yaml:"trace" hcl:"trace"`
}

// GenesisAccount is an account seeded into an empty state
type GenesisAccount struct {
	Address         string `json:"address" yaml:"address" hcl:"address"`
	Balance         int64  `json:"balance" yaml:"balance" hcl:"balance"`
	FrozenForEnergy int64  `json:"frozen_for_energy" yaml:"frozen_for_energy" hcl:"frozen_for_energy"`
}

// Trace enables the opcode trace of every applied transaction
type Trace struct {
	Path     string `json:"path" yaml:"path" hcl:"path"`
	Format   string `json:"format" yaml:"format" hcl:"format"`
	Compress bool   `json:"compress" yaml:"compress" hcl:"compress"`
	Memory   bool   `json:"memory" yaml:"memory" hcl:"memory"`
	Stack    bool   `json:"stack" yaml:"stack" hcl:"stack"`
	Storage  bool   `json:"storage" yaml:"storage" hcl:"storage"`
	Limit    int    `json:"limit" yaml:"limit" hcl:"limit"`
}

// DefaultConfig returns the config used when no file is given: in-memory
// state, default chain parameters and no tracing
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "INFO",
	}
}

// ReadConfigFile reads the config file from the specified path, builds a Config object
// and returns it.
//
// Supported file types: .json, .hcl, .yaml, .yml
func ReadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var unmarshalFunc func([]byte, interface{}) error

	switch {
	case strings.HasSuffix(path, ".hcl"):
		unmarshalFunc = unmarshalHCL
	case strings.HasSuffix(path, ".json"):
		unmarshalFunc = json.Unmarshal
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		unmarshalFunc = yaml.Unmarshal
	default:
		return nil, fmt.Errorf("%w: %s is neither hcl, json, yaml nor yml", errUnknownConfigSuffix, path)
	}

	config := DefaultConfig()
	if err := unmarshalFunc(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// unmarshalHCL decodes an hcl config. Each genesis block, or each element of a
// genesis list, is decoded as one account: plain hcl decoding would split a
// block into one account per attribute.
func unmarshalHCL(data []byte, out interface{}) error {
	config, ok := out.(*Config)
	if !ok {
		return hcl.Unmarshal(data, out)
	}

	file, err := hcl.ParseBytes(data)
	if err != nil {
		return err
	}

	root, ok := file.Node.(*ast.ObjectList)
	if !ok {
		return errInvalidHCLRoot
	}

	rest := &ast.ObjectList{}

	for _, item := range root.Items {
		if len(item.Keys) > 0 && item.Keys[0].Token.Value() == genesisKey {
			continue
		}

		rest.Add(item)
	}

	if err := hcl.DecodeObject(config, rest); err != nil {
		return err
	}

	for _, item := range root.Filter(genesisKey).Items {
		var nodes []ast.Node

		switch val := item.Val.(type) {
		case *ast.ListType:
			nodes = val.List
		default:
			nodes = []ast.Node{val}
		}

		for _, node := range nodes {
			acc := &GenesisAccount{}
			if err := hcl.DecodeObject(acc, node); err != nil {
				return fmt.Errorf("genesis account: %w", err)
			}

			config.Genesis = append(config.Genesis, acc)
		}
	}

	return nil
}

// Validate reports every problem of the config at once
func (c *Config) Validate() error {
	var result *multierror.Error

	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		result = multierror.Append(result, fmt.Errorf("%w: %q", errInvalidLogLevel, c.LogLevel))
	}

	for _, acc := range c.Genesis {
		if _, err := types.ParseAddress(acc.Address); err != nil {
			result = multierror.Append(result, fmt.Errorf("genesis account %q: %w", acc.Address, err))
		}

		if acc.Balance < 0 || acc.FrozenForEnergy < 0 {
			result = multierror.Append(result, fmt.Errorf("genesis account %q: %w", acc.Address, errNegativeGenesis))
		}
	}

	if c.Trace != nil {
		if c.Trace.Path == "" {
			result = multierror.Append(result, errMissingTracePath)
		}

		if _, err := structtracer.ParseFormat(c.Trace.Format); err != nil {
			result = multierror.Append(result, err)
		}

		if c.Trace.Limit < 0 {
			result = multierror.Append(result, errNegativeTraceLimit)
		}
	}

	return result.ErrorOrNil()
}

// tracerConfig maps the trace section onto the tracer capture settings
func (t *Trace) tracerConfig() structtracer.Config {
	return structtracer.Config{
		EnableMemory:     t.Memory,
		EnableStack:      t.Stack,
		EnableStorage:    t.Storage,
		EnableReturnData: true,
		Limit:            t.Limit,
	}
}

// readChainParams loads the network parameters from a JSON chain file on
// top of the defaults. An empty path keeps the defaults. A fork schedule in
// the file replaces the default one as a whole.
func readChainParams(path string) (*chain.Params, error) {
	params := chain.DefaultParams()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		defaultForks := params.Forks
		params.Forks = nil

		if err := json.Unmarshal(data, params); err != nil {
			return nil, fmt.Errorf("failed to parse chain config %s: %w", path, err)
		}

		if params.Forks == nil {
			params.Forks = defaultForks
		}
	}

	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chain config: %w", err)
	}

	return params, nil
}
