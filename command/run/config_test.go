package run

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energyvm/energy-edge/chain"
	"github.com/energyvm/energy-edge/state/runtime/tracer/structtracer"
)

const genesisOwner = "0x000000000000000000000000000000000000a001"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestReadConfigFile(t *testing.T) {
	t.Parallel()

	expected := &Config{
		DataDir:  "/var/lib/energy",
		LogLevel: "DEBUG",
		Genesis: []*GenesisAccount{
			{Address: genesisOwner, Balance: 100, FrozenForEnergy: 2_000_000},
		},
		Trace: &Trace{Path: "trace.out", Format: "json", Compress: true, Limit: 10},
	}

	cases := []struct {
		name    string
		content string
	}{
		{
			name: "config.json",
			content: `{
				"data_dir": "/var/lib/energy",
				"log_level": "DEBUG",
				"genesis": [{"address": "` + genesisOwner + `", "balance": 100, "frozen_for_energy": 2000000}],
				"trace": {"path": "trace.out", "format": "json", "compress": true, "limit": 10}
			}`,
		},
		{
			name: "config.hcl",
			content: `
data_dir = "/var/lib/energy"
log_level = "DEBUG"

genesis {
  address = "` + genesisOwner + `"
  balance = 100
  frozen_for_energy = 2000000
}

trace {
  path = "trace.out"
  format = "json"
  compress = true
  limit = 10
}
`,
		},
		{
			name: "config.yaml",
			content: `
data_dir: /var/lib/energy
log_level: DEBUG
genesis:
  - address: "` + genesisOwner + `"
    balance: 100
    frozen_for_energy: 2000000
trace:
  path: trace.out
  format: json
  compress: true
  limit: 10
`,
		},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			config, err := ReadConfigFile(writeFile(t, c.name, c.content))
			require.NoError(t, err)
			assert.Equal(t, expected, config)
			assert.NoError(t, config.Validate())
		})
	}
}

func TestReadConfigFile_Defaults(t *testing.T) {
	t.Parallel()

	config, err := ReadConfigFile(writeFile(t, "config.yml", "data_dir: db\n"))
	require.NoError(t, err)

	assert.Equal(t, "db", config.DataDir)
	assert.Equal(t, "INFO", config.LogLevel)
	assert.Nil(t, config.Trace)
}

func TestReadConfigFile_HCLGenesis(t *testing.T) {
	t.Parallel()

	other := "0x000000000000000000000000000000000000a002"

	expected := []*GenesisAccount{
		{Address: genesisOwner, Balance: 100, FrozenForEnergy: 2_000_000},
		{Address: other, Balance: 7},
	}

	cases := []struct {
		name    string
		content string
	}{
		{
			name: "repeated blocks",
			content: `
log_level = "DEBUG"

genesis {
  address = "` + genesisOwner + `"
  balance = 100
  frozen_for_energy = 2000000
}

genesis {
  address = "` + other + `"
  balance = 7
}
`,
		},
		{
			name: "list of objects",
			content: `
log_level = "DEBUG"

genesis = [
  {
    address = "` + genesisOwner + `"
    balance = 100
    frozen_for_energy = 2000000
  },
  {
    address = "` + other + `"
    balance = 7
  },
]
`,
		},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			config, err := ReadConfigFile(writeFile(t, "config.hcl", c.content))
			require.NoError(t, err)

			// one account per block, never one per attribute
			assert.Equal(t, expected, config.Genesis)
			assert.Equal(t, "DEBUG", config.LogLevel)
			assert.NoError(t, config.Validate())
		})
	}
}

func TestReadConfigFile_UnknownSuffix(t *testing.T) {
	t.Parallel()

	_, err := ReadConfigFile(writeFile(t, "config.toml", "data_dir = 'x'"))
	assert.ErrorIs(t, err, errUnknownConfigSuffix)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	config := &Config{
		LogLevel: "LOUD",
		Genesis: []*GenesisAccount{
			{Address: "bogus"},
			{Address: genesisOwner, Balance: -1},
		},
		Trace: &Trace{Format: "xml", Limit: -1},
	}

	err := config.Validate()
	require.Error(t, err)

	// every problem is reported, not only the first one
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	assert.Len(t, merr.Errors, 6)

	for _, target := range []error{
		errInvalidLogLevel,
		errNegativeGenesis,
		errMissingTracePath,
		errNegativeTraceLimit,
		structtracer.ErrUnknownFormat,
	} {
		assert.ErrorIs(t, err, target)
	}
}

func TestReadChainParams(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		params, err := readChainParams("")
		require.NoError(t, err)
		assert.Equal(t, chain.DefaultParams(), params)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "chain.json", `{"energyFee": 140, "forks": {"vm": 0, "transferToken": 50}}`)

		params, err := readChainParams(path)
		require.NoError(t, err)

		assert.Equal(t, int64(140), params.EnergyFee)
		assert.Equal(t, chain.DefaultMaxFeeLimit, params.MaxFeeLimit)

		// the fork schedule of the file replaces the default one
		assert.Equal(t, &chain.Forks{chain.VM: chain.NewFork(0), chain.TransferToken: chain.NewFork(50)}, params.Forks)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()

		path := writeFile(t, "chain.json", `{"energyFee": 0, "forks": {"warp": 0}}`)

		_, err := readChainParams(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "energy fee must be positive")
		assert.Contains(t, err.Error(), `unknown fork "warp"`)
	})
}
