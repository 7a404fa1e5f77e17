package state

import (
	"errors"
	"strings"
	"time"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"

	"github.com/energyvm/energy-edge/chain"
	"github.com/energyvm/energy-edge/energy"
	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/state/runtime/tracer/structtracer"
	"github.com/energyvm/energy-edge/state/runtime/vm"
	"github.com/energyvm/energy-edge/timeutils"
	"github.com/energyvm/energy-edge/types"
)

var (
	ErrVMDisabled               = errors.New("vm is not enabled")
	ErrFeeLimitOutOfBounds      = errors.New("fee limit out of bounds")
	ErrDuplicateContract        = errors.New("contract address already exists")
	ErrInvalidTokenID           = errors.New("invalid token id")
	ErrConstantCallWithValue    = errors.New("constant call cannot carry value")
	ErrContractNotFound         = errors.New("contract not found")
	ErrInvalidPercent           = errors.New("consume user resource percent must be within [0, 100]")
	ErrInvalidOriginEnergyLimit = errors.New("origin energy limit must be positive")
	ErrInvalidCallValue         = errors.New("call value and token value cannot be negative")
	ErrInvalidTxType            = errors.New("invalid transaction type")
	ErrOwnerNotFound            = errors.New("owner account not found")
	ErrMissingNewContract       = errors.New("missing new contract parameters")
)

// BlockContext describes the block the transactions are applied in
type BlockContext struct {
	Number    int64
	Timestamp int64
	Coinbase  types.Address

	// BlockHash resolves the hash of a previous block
	BlockHash func(number int64) types.Hash

	// Validating is set when replaying a block produced by another node
	Validating bool
}

// Executor is the entry point of contract transactions. It owns the vm and
// builds a Transition for every transaction.
type Executor struct {
	logger hclog.Logger
	params *chain.Params
	state  *State
	vm     *vm.VM
	clock  timeutils.Clock

	triggers triggers

	traceSink   *structtracer.Sink
	traceConfig structtracer.Config
}

func NewExecutor(params *chain.Params, state *State, logger hclog.Logger) *Executor {
	return &Executor{
		logger: logger.Named("executor"),
		params: params,
		state:  state,
		vm:     vm.NewVM(logger),
		clock:  timeutils.SystemClock{},
	}
}

// SetClock replaces the clock the cpu time budget is read from
func (e *Executor) SetClock(clock timeutils.Clock) {
	e.clock = clock
}

// SetTraceSink makes every applied transaction write its opcode trace to sink
func (e *Executor) SetTraceSink(sink *structtracer.Sink, config structtracer.Config) {
	e.traceSink = sink
	e.traceConfig = config
}

func (e *Executor) AddTriggerSink(sink TriggerSink) {
	e.triggers.add(sink)
}

// NewTxn opens a view over the committed state
func (e *Executor) NewTxn() *Txn {
	return NewTxn(e.state)
}

// Forks returns the protocol upgrades active at block number
func (e *Executor) Forks(number int64) chain.ForksInTime {
	if e.params.Forks == nil || number < 0 {
		return chain.ForksInTime{}
	}

	return e.params.Forks.At(uint64(number))
}

// Processor returns the resource model active at block number
func (e *Executor) Processor(number int64) *energy.Processor {
	return energy.NewProcessor(e.logger, e.params, e.Forks(number))
}

func (e *Executor) timeRatio(block *BlockContext, tx *types.Transaction) float64 {
	if !block.Validating {
		return 1.0
	}

	if tx.RecordedResult == types.ResultOutOfTime {
		return e.params.MinTimeRatio
	}

	return e.params.MaxTimeRatio
}

func (e *Executor) newTransition(txn *Txn, block *BlockContext, tx *types.Transaction) *Transition {
	forks := e.Forks(block.Number)

	return &Transition{
		logger:    e.logger,
		params:    e.params,
		forks:     forks,
		processor: energy.NewProcessor(e.logger, e.params, forks),
		vm:        e.vm,
		clock:     e.clock,
		txn:       txn,
		block:     block,
		tx:        tx,
		ratio:     e.timeRatio(block, tx),
	}
}

// Apply executes tx on txn and returns its receipt. A validation error
// leaves txn untouched and the transaction must be dropped.
func (e *Executor) Apply(txn *Txn, block *BlockContext, tx *types.Transaction) (*types.Receipt, error) {
	return e.apply(e.newTransition(txn, block, tx))
}

func (e *Executor) apply(t *Transition) (*types.Receipt, error) {
	defer metrics.MeasureSince([]string{"vm", "execute"}, time.Now())

	if err := t.setup(); err != nil {
		metrics.IncrCounter([]string{"vm", "tx", "invalid"}, 1)

		return nil, err
	}

	if e.traceSink != nil {
		t.tracer = structtracer.NewStructTracer(e.traceConfig)
	}

	t.run()

	if err := t.finalize(); err != nil {
		return nil, err
	}

	receipt := t.receipt()

	metrics.IncrCounter([]string{"vm", "tx", strings.ToLower(receipt.Result.String())}, 1)

	e.logger.Debug(
		"transaction applied",
		"hash", t.tx.Hash,
		"type", t.tx.Type,
		"result", receipt.Result,
		"energy", receipt.EnergyUsageTotal,
		"fee", receipt.EnergyFee,
	)

	if receipt.Succeeded() {
		if err := e.triggers.emit(t.tx.Hash, t.block, receipt.Logs); err != nil {
			e.logger.Warn("failed to deliver contract triggers", "hash", t.tx.Hash, "err", err)
		}
	}

	if t.tracer != nil {
		if err := e.traceSink.Write(t.tx.Hash.String(), t.tracer.Result()); err != nil {
			e.logger.Warn("failed to write trace", "hash", t.tx.Hash, "err", err)
		}
	}

	return receipt, nil
}

// Call runs a read-only trigger against txn. The state is never modified
// and no energy is billed.
func (e *Executor) Call(txn *Txn, block *BlockContext, tx *types.Transaction) (*runtime.FrameResult, error) {
	t := e.newTransition(txn, block, tx)
	t.constant = true
	t.ratio = 1.0

	if err := t.setup(); err != nil {
		return nil, err
	}

	t.run()

	if err := t.finalize(); err != nil {
		return nil, err
	}

	return t.result, nil
}

// EndBlock closes the block on txn: in adaptive mode the network energy
// average and ceiling move according to the energy the block consumed
func (e *Executor) EndBlock(txn *Txn, block *BlockContext) {
	e.Processor(block.Number).EndBlock(txn, block.Number)
}
