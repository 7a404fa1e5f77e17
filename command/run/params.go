package run

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/energyvm/energy-edge/chain"
	"github.com/energyvm/energy-edge/command"
	"github.com/energyvm/energy-edge/helper/hex"
	"github.com/energyvm/energy-edge/types"
)

const (
	ownerFlag             = "owner"
	codeFlag              = "code"
	contractFlag          = "contract"
	dataFlag              = "data"
	nameFlag              = "name"
	feeLimitFlag          = "fee-limit"
	callValueFlag         = "call-value"
	tokenIDFlag           = "token-id"
	tokenValueFlag        = "token-value"
	percentFlag           = "consume-user-resource-percent"
	originEnergyLimitFlag = "origin-energy-limit"
	blockFlag             = "block"
	timestampFlag         = "timestamp"
	constantFlag          = "constant"
)

const (
	defaultFeeLimit          = int64(1_000_000_000)
	defaultPercent           = int64(100)
	defaultOriginEnergyLimit = int64(10_000_000)
	defaultBlock             = int64(1)
)

var (
	errMissingOwner   = errors.New("owner address is required")
	errMissingTarget  = errors.New("either contract code or a contract address is required")
	errBothTargets    = errors.New("contract code and contract address are mutually exclusive")
	errConstantDeploy = errors.New("a deployment cannot be a constant call")
)

type runParams struct {
	configPath string
	dataDir    string
	logLevel   string

	owner       string
	code        string
	contract    string
	data        string
	name        string
	feeLimit    int64
	callValue   int64
	tokenID     int64
	tokenValue  int64
	percent     int64
	originLimit int64
	blockNumber int64
	timestamp   int64
	constant    bool

	config *Config
	params *chain.Params
	tx     *types.Transaction
}

func (p *runParams) setFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.configPath, command.ConfigFlag, "", "the path to the node config file (json, hcl or yaml)")
	cmd.Flags().StringVar(&p.dataDir, command.DataDirFlag, "", "the leveldb state directory, in-memory state when empty")
	cmd.Flags().StringVar(&p.logLevel, command.LogLevelFlag, "", "the log level, overrides the config file")

	cmd.Flags().StringVar(&p.owner, ownerFlag, "", "the address sending the transaction (hex or base58)")
	cmd.Flags().StringVar(&p.code, codeFlag, "", "the hex creation code of a contract to deploy")
	cmd.Flags().StringVar(&p.contract, contractFlag, "", "the address of a deployed contract to trigger")
	cmd.Flags().StringVar(&p.data, dataFlag, "", "hex call data, appended to the creation code on deployment")
	cmd.Flags().StringVar(&p.name, nameFlag, "", "the name recorded for a deployed contract")

	cmd.Flags().Int64Var(&p.feeLimit, feeLimitFlag, defaultFeeLimit, "the fee limit of the transaction, in sun")
	cmd.Flags().Int64Var(&p.callValue, callValueFlag, 0, "the value transferred to the contract, in sun")
	cmd.Flags().Int64Var(&p.tokenID, tokenIDFlag, 0, "the id of the token transferred to the contract")
	cmd.Flags().Int64Var(&p.tokenValue, tokenValueFlag, 0, "the amount of token transferred to the contract")
	cmd.Flags().Int64Var(&p.percent, percentFlag, defaultPercent, "the share of the energy bill paid by callers")
	cmd.Flags().Int64Var(&p.originLimit, originEnergyLimitFlag, defaultOriginEnergyLimit,
		"the energy the creator pays at most per transaction")
	cmd.Flags().Int64Var(&p.blockNumber, blockFlag, defaultBlock, "the number of the block the transaction is applied in")
	cmd.Flags().Int64Var(&p.timestamp, timestampFlag, 0, "the timestamp of the transaction and its block")
	cmd.Flags().BoolVar(&p.constant, constantFlag, false, "run a read-only call that is neither billed nor persisted")

	cmd.MarkFlagsMutuallyExclusive(codeFlag, contractFlag)
}

// initRawParams resolves the node config, the chain parameters and the
// transaction to apply
func (p *runParams) initRawParams(cmd *cobra.Command) error {
	if err := p.initConfig(cmd); err != nil {
		return err
	}

	params, err := readChainParams(p.config.ChainConfig)
	if err != nil {
		return err
	}

	p.params = params

	return p.initTransaction()
}

func (p *runParams) initConfig(cmd *cobra.Command) error {
	config := DefaultConfig()

	if p.configPath != "" {
		var err error

		if config, err = ReadConfigFile(p.configPath); err != nil {
			return fmt.Errorf("failed to read config %s: %w", p.configPath, err)
		}
	}

	if cmd.Flags().Changed(command.DataDirFlag) {
		config.DataDir = p.dataDir
	}

	if cmd.Flags().Changed(command.LogLevelFlag) {
		config.LogLevel = p.logLevel
	}

	if err := config.Validate(); err != nil {
		return err
	}

	p.config = config

	return nil
}

func (p *runParams) initTransaction() error {
	if p.owner == "" {
		return errMissingOwner
	}

	owner, err := types.ParseAddress(p.owner)
	if err != nil {
		return fmt.Errorf("invalid owner: %w", err)
	}

	data, err := hex.DecodeHex(p.data)
	if err != nil {
		return fmt.Errorf("invalid call data: %w", err)
	}

	tx := &types.Transaction{
		Owner:      owner,
		CallValue:  p.callValue,
		TokenID:    p.tokenID,
		TokenValue: p.tokenValue,
		FeeLimit:   p.feeLimit,
		Timestamp:  p.timestamp,
	}

	switch {
	case p.code != "" && p.contract != "":
		return errBothTargets
	case p.code != "":
		if p.constant {
			return errConstantDeploy
		}

		code, err := hex.DecodeHex(p.code)
		if err != nil {
			return fmt.Errorf("invalid contract code: %w", err)
		}

		tx.Type = types.CreateContractTx
		tx.Data = append(code, data...)
		tx.NewContract = &types.NewContract{
			Name:                       p.name,
			ConsumeUserResourcePercent: p.percent,
			OriginEnergyLimit:          p.originLimit,
		}
	case p.contract != "":
		contract, err := types.ParseAddress(p.contract)
		if err != nil {
			return fmt.Errorf("invalid contract: %w", err)
		}

		tx.Type = types.TriggerContractTx
		tx.ContractAddress = contract
		tx.Data = data
	default:
		return errMissingTarget
	}

	p.tx = tx.ComputeHash()

	return nil
}
