package run

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/energyvm/energy-edge/chain"
	"github.com/energyvm/energy-edge/command"
	"github.com/energyvm/energy-edge/energy"
	"github.com/energyvm/energy-edge/helper/common"
	"github.com/energyvm/energy-edge/state"
	"github.com/energyvm/energy-edge/state/runtime/tracer/structtracer"
	"github.com/energyvm/energy-edge/types"
)

// stateDir is the leveldb directory inside the data dir
const stateDir = "state"

func GetCommand() *cobra.Command {
	params := &runParams{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Deploys or triggers a contract against a local state and prints the receipt",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return params.initRawParams(cmd)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			runCommand(cmd, params)
		},
	}

	params.setFlags(runCmd)

	return runCmd
}

func runCommand(cmd *cobra.Command, params *runParams) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	result, err := params.execute()
	if err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(result)
}

func (p *runParams) execute() (command.CommandResult, error) {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "energy-edge",
		Level: hclog.LevelFromString(p.config.LogLevel),
	})

	storage, err := openStorage(p.config.DataDir, logger)
	if err != nil {
		return nil, err
	}

	defer storage.Close()

	executor := state.NewExecutor(p.params, state.NewState(storage), logger)

	if err := seedGenesis(executor, p.params, p.config.Genesis); err != nil {
		return nil, err
	}

	if trace := p.config.Trace; trace != nil {
		closeTrace, err := attachTraceSink(executor, trace)
		if err != nil {
			return nil, err
		}

		defer closeTrace()
	}

	block := &state.BlockContext{
		Number:    p.blockNumber,
		Timestamp: p.timestamp,
	}

	if p.constant {
		res, err := executor.Call(executor.NewTxn(), block, p.tx)
		if err != nil {
			return nil, err
		}

		return newCallResult(res), nil
	}

	var logs int

	executor.AddTriggerSink(state.TriggerFunc(func(trigger *state.ContractTrigger) error {
		logs++

		logger.Debug("contract log",
			"address", trigger.Log.Address,
			"topics", len(trigger.Log.Topics),
			"index", trigger.Index,
		)

		return nil
	}))

	txn := executor.NewTxn()

	receipt, err := executor.Apply(txn, block, p.tx)
	if err != nil {
		return nil, err
	}

	executor.EndBlock(txn, block)

	if err := txn.Flush(); err != nil {
		return nil, fmt.Errorf("failed to commit state: %w", err)
	}

	logger.Info("transaction applied", "hash", receipt.TxHash, "result", receipt.Result, "logs", logs)

	return newReceiptResult(receipt), nil
}

func openStorage(dataDir string, logger hclog.Logger) (state.Storage, error) {
	if dataDir == "" {
		return state.NewMemoryStorage(), nil
	}

	if err := common.SetupDataDir(dataDir, []string{stateDir}); err != nil {
		return nil, err
	}

	return state.NewLevelDBStorage(filepath.Join(dataDir, stateDir), logger)
}

// seedGenesis initializes an empty state with the genesis accounts and the
// network energy counters. A state that was already seeded is left alone.
func seedGenesis(executor *state.Executor, params *chain.Params, genesis []*GenesisAccount) error {
	txn := executor.NewTxn()

	if txn.GetDynamicProperties().TotalEnergyCurrentLimit != 0 {
		return nil
	}

	var weight int64

	for _, acc := range genesis {
		addr, err := types.ParseAddress(acc.Address)
		if err != nil {
			return err
		}

		txn.PutAccount(addr, &types.Account{
			Type:            types.AccountTypeNormal,
			Balance:         acc.Balance,
			FrozenForEnergy: acc.FrozenForEnergy,
		})

		weight += acc.FrozenForEnergy / energy.TrxPrecision
	}

	txn.PutDynamicProperties(&types.DynamicProperties{
		TotalEnergyWeight:       weight,
		TotalEnergyCurrentLimit: params.TotalEnergyLimit,
	})

	return txn.Flush()
}

func attachTraceSink(executor *state.Executor, trace *Trace) (func(), error) {
	format, err := structtracer.ParseFormat(trace.Format)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(trace.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}

	executor.SetTraceSink(structtracer.NewSink(f, format, trace.Compress), trace.tracerConfig())

	return func() { _ = f.Close() }, nil
}
