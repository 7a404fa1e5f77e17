package state

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/energyvm/energy-edge/chain"
	"github.com/energyvm/energy-edge/crypto"
	"github.com/energyvm/energy-edge/energy"
	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/state/runtime/tracer/structtracer"
	"github.com/energyvm/energy-edge/state/runtime/vm"
	"github.com/energyvm/energy-edge/timeutils"
	"github.com/energyvm/energy-edge/types"
)

// Transition applies one contract transaction: setup validates it and
// builds the root message, run drives the vm and finalize settles the
// outcome and the energy bill
type Transition struct {
	logger    hclog.Logger
	params    *chain.Params
	forks     chain.ForksInTime
	processor *energy.Processor
	vm        *vm.VM
	clock     timeutils.Clock

	txn   *Txn
	block *BlockContext
	tx    *types.Transaction

	// constant transitions run against a throwaway checkpoint and are never billed
	constant bool

	// ratio scales the cpu time budget of the transaction
	ratio float64

	msg         *runtime.Contract
	contract    *types.Contract
	energyLimit uint64
	tracer      *structtracer.StructTracer

	view   *Txn
	result *runtime.FrameResult
	bill   *energy.Bill
}

// now is the slot the resource counters are evaluated at
func (t *Transition) now() int64 {
	return t.block.Number
}

func (t *Transition) setup() error {
	tx := t.tx

	if !t.forks.VM {
		return ErrVMDisabled
	}

	if t.constant && (tx.CallValue != 0 || tx.TokenValue != 0) {
		return ErrConstantCallWithValue
	}

	if tx.FeeLimit < 0 || tx.FeeLimit > t.params.MaxFeeLimit {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrFeeLimitOutOfBounds, tx.FeeLimit, t.params.MaxFeeLimit)
	}

	if tx.CallValue < 0 || tx.TokenValue < 0 {
		return ErrInvalidCallValue
	}

	if err := t.checkToken(); err != nil {
		return err
	}

	owner := t.txn.GetAccount(tx.Owner)
	if owner == nil {
		return fmt.Errorf("%w: %s", ErrOwnerNotFound, tx.Owner)
	}

	if owner.Balance < tx.CallValue {
		return fmt.Errorf("%w: balance %d, call value %d", ErrInsufficientBalance, owner.Balance, tx.CallValue)
	}

	if tx.TokenValue > 0 && owner.AssetBalance(tx.TokenID) < tx.TokenValue {
		return fmt.Errorf(
			"%w: token %d balance %d, token value %d",
			ErrInsufficientBalance, tx.TokenID, owner.AssetBalance(tx.TokenID), tx.TokenValue,
		)
	}

	var err error

	switch tx.Type {
	case types.CreateContractTx:
		err = t.setupCreate(owner)
	case types.TriggerContractTx:
		err = t.setupCall(owner)
	default:
		err = fmt.Errorf("%w: %s", ErrInvalidTxType, tx.Type)
	}

	if err != nil {
		return err
	}

	t.msg.TokenID = tx.TokenID
	t.msg.TokenValue = tx.TokenValue
	t.msg.Static = t.constant

	return t.txn.Err()
}

func (t *Transition) checkToken() error {
	tx := t.tx

	if tx.TokenID == 0 && tx.TokenValue == 0 {
		return nil
	}

	if !t.forks.TransferToken {
		return fmt.Errorf("%w: token transfer is not active", ErrInvalidTokenID)
	}

	if !types.ValidTokenID(tx.TokenID) {
		return fmt.Errorf("%w: %d", ErrInvalidTokenID, tx.TokenID)
	}

	return nil
}

func (t *Transition) setupCreate(owner *types.Account) error {
	tx := t.tx

	if t.constant {
		return fmt.Errorf("%w: constant deployment", ErrInvalidTxType)
	}

	nc := tx.NewContract
	if nc == nil {
		return ErrMissingNewContract
	}

	if nc.ConsumeUserResourcePercent < 0 || nc.ConsumeUserResourcePercent > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidPercent, nc.ConsumeUserResourcePercent)
	}

	if t.forks.EnergyLimitFixRatio && nc.OriginEnergyLimit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidOriginEnergyLimit, nc.OriginEnergyLimit)
	}

	addr := crypto.DeployAddress(tx.Hash, tx.Owner)
	if t.txn.AccountExists(addr) {
		return fmt.Errorf("%w: %s", ErrDuplicateContract, addr)
	}

	limit := t.processor.AccountEnergyLimit(owner, t.txn.GetDynamicProperties(), tx.FeeLimit, tx.CallValue, t.now())
	t.energyLimit = nonNegative(limit)

	meta := &types.Contract{
		Origin:                     tx.Owner,
		Name:                       nc.Name,
		ConsumeUserResourcePercent: nc.ConsumeUserResourcePercent,
		OriginEnergyLimit:          nc.OriginEnergyLimit,
	}

	t.msg = runtime.NewContractCreation(0, tx.Owner, tx.Owner, addr, tx.CallValue, t.energyLimit, tx.Data, meta)

	return nil
}

func (t *Transition) setupCall(owner *types.Account) error {
	tx := t.tx

	contract := t.txn.GetContract(tx.ContractAddress)
	if contract == nil {
		return fmt.Errorf("%w: %s", ErrContractNotFound, tx.ContractAddress)
	}

	t.contract = contract

	if t.constant {
		t.energyLimit = nonNegative(t.params.MaxEnergyLimitForConstant)
	} else {
		limit := t.processor.TotalEnergyLimit(
			owner,
			t.txn.GetAccount(contract.Origin),
			contract,
			tx.Owner,
			t.txn.GetDynamicProperties(),
			tx.FeeLimit,
			tx.CallValue,
			t.now(),
		)
		t.energyLimit = nonNegative(limit)
	}

	t.msg = runtime.NewContractCall(
		0,
		tx.Owner,
		tx.Owner,
		tx.ContractAddress,
		tx.CallValue,
		t.energyLimit,
		t.txn.GetCode(tx.ContractAddress),
		tx.Data,
	)

	return nil
}

func nonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}

	return uint64(v)
}

func (t *Transition) deadline() timeutils.Deadline {
	budget := float64(t.params.MaxCPUTimeOfOneTx) * t.ratio * float64(time.Millisecond)

	return timeutils.NewDeadline(t.clock, time.Duration(budget))
}

func (t *Transition) run() {
	env := &vm.Env{
		Ctx: runtime.TxContext{
			TxHash:      t.tx.Hash,
			Origin:      t.tx.Owner,
			Coinbase:    t.block.Coinbase,
			Number:      t.block.Number,
			Timestamp:   t.block.Timestamp,
			ChainID:     t.params.ChainID,
			EnergyPrice: t.processor.EnergyPrice(),
			BlockHash:   t.block.BlockHash,
		},
		Forks:          t.forks,
		Deadline:       t.deadline(),
		MaxNativeDepth: t.params.MaxNativeDepth,
	}

	if t.tracer != nil {
		env.Tracer = t.tracer
	}

	t.view = t.txn.Checkpoint()
	t.result = t.vm.Execute(env, t.view, t.msg)
}

// finalize settles the frame result on the transaction checkpoint. A
// successful result keeps its effects, a failed one only pays for energy.
func (t *Transition) finalize() error {
	result := t.result

	if result.Succeeded() {
		for _, addr := range result.Deleted {
			t.view.DeleteAccount(addr)
		}

		result.UpdateEnergyUsed(t.energyLimit)
	} else {
		result.ClearEffects()
		result.RejectCallEdges()

		if !runtime.KeepsEnergy(result.Err) {
			result.SpendAllEnergy()
		}
	}

	if t.constant {
		t.view.Discard()

		return nil
	}

	var contract *types.Contract
	if !t.tx.IsCreate() {
		contract = t.contract
	}

	bill, err := t.processor.PayEnergyBill(t.view, t.tx.Owner, contract, int64(result.EnergyUsed), t.now())
	if err != nil {
		t.view.Discard()

		return fmt.Errorf("failed to pay energy bill: %w", err)
	}

	if err := t.view.Err(); err != nil {
		t.view.Discard()

		return err
	}

	t.bill = bill
	t.view.Commit()

	return nil
}

func (t *Transition) receipt() *types.Receipt {
	result := t.result

	receipt := &types.Receipt{
		TxHash:      t.tx.Hash,
		Result:      runtime.ResultCode(result.Err),
		ReturnValue: result.ReturnValue,
		Logs:        result.Logs,
		CallEdges:   result.CallEdges,
	}

	if result.Err != nil {
		receipt.ErrorMessage = result.Err.Error()
	}

	if t.tx.IsCreate() {
		addr := t.msg.Address
		receipt.ContractAddress = &addr
	}

	if t.bill != nil {
		receipt.EnergyUsage = t.bill.EnergyUsage
		receipt.EnergyFee = t.bill.EnergyFee
		receipt.OriginEnergyUsage = t.bill.OriginEnergyUsage
		receipt.EnergyUsageTotal = t.bill.EnergyUsageTotal
	} else {
		receipt.EnergyUsageTotal = int64(result.EnergyUsed)
	}

	return receipt
}
