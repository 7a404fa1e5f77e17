package runtime

import (
	"errors"

	"github.com/energyvm/energy-edge/types"
)

// TxContext is the context of the transaction and the block it belongs to
type TxContext struct {
	TxHash      types.Hash
	Origin      types.Address
	Coinbase    types.Address
	Number      int64
	Timestamp   int64
	ChainID     int64
	EnergyPrice int64

	// BlockHash resolves the hash of a previous block, nil resolves to zero
	BlockHash func(number int64) types.Hash
}

// StateView is the account/contract state seen by one execution frame.
// Views nest: NewCheckpoint forks a child view, Commit merges the child
// back into the view it was forked from and Discard drops it.
type StateView interface {
	AccountExists(addr types.Address) bool
	GetAccount(addr types.Address) *types.Account
	PutAccount(addr types.Address, account *types.Account)
	CreateAccount(addr types.Address, accountType types.AccountType)
	DeleteAccount(addr types.Address)

	GetBalance(addr types.Address) int64
	AddBalance(addr types.Address, delta int64) error
	GetTokenBalance(addr types.Address, tokenID int64) int64
	AddTokenBalance(addr types.Address, tokenID int64, delta int64) error

	GetCode(addr types.Address) []byte
	SaveCode(addr types.Address, code []byte)
	GetContract(addr types.Address) *types.Contract
	CreateContract(contract *types.Contract)

	GetStorage(addr types.Address, key types.Hash) types.Hash
	PutStorage(addr types.Address, key types.Hash, value types.Hash)

	GetDynamicProperties() *types.DynamicProperties
	PutDynamicProperties(props *types.DynamicProperties)

	NewCheckpoint() StateView
	Commit()
	Discard()
}

type CallType int

const (
	Call CallType = iota
	CallCode
	DelegateCall
	StaticCall
	CallToken
	Create
	Create2
)

func (c CallType) String() string {
	switch c {
	case Call:
		return "CALL"
	case CallCode:
		return "CALLCODE"
	case DelegateCall:
		return "DELEGATECALL"
	case StaticCall:
		return "STATICCALL"
	case CallToken:
		return "CALLTOKEN"
	case Create:
		return "CREATE"
	case Create2:
		return "CREATE2"
	default:
		return "UNKNOWN"
	}
}

func (c CallType) IsCreate() bool {
	return c == Create || c == Create2
}

// Contract is the message a frame is executing
type Contract struct {
	Code        []byte
	Type        CallType
	CodeAddress types.Address
	Address     types.Address
	Origin      types.Address
	Caller      types.Address
	Depth       int
	Value       int64
	TokenID     int64
	TokenValue  int64
	Input       []byte
	Energy      uint64
	Static      bool

	// Meta is the contract record created alongside a deployment
	Meta *types.Contract
}

func NewContract(
	depth int,
	origin types.Address,
	from types.Address,
	to types.Address,
	value int64,
	energy uint64,
	code []byte,
) *Contract {
	return &Contract{
		Caller:      from,
		Origin:      origin,
		CodeAddress: to,
		Address:     to,
		Energy:      energy,
		Value:       value,
		Code:        code,
		Depth:       depth,
	}
}

func NewContractCreation(
	depth int,
	origin types.Address,
	from types.Address,
	to types.Address,
	value int64,
	energy uint64,
	code []byte,
	meta *types.Contract,
) *Contract {
	c := NewContract(depth, origin, from, to, value, energy, code)
	c.Type = Create
	c.Meta = meta

	return c
}

func NewContractCall(
	depth int,
	origin types.Address,
	from types.Address,
	to types.Address,
	value int64,
	energy uint64,
	code []byte,
	input []byte,
) *Contract {
	c := NewContract(depth, origin, from, to, value, energy, code)
	c.Input = input

	return c
}

// FrameResult is everything a terminated frame hands back to its caller
type FrameResult struct {
	ReturnValue []byte
	EnergyLeft  uint64
	EnergyUsed  uint64

	// Refund is the pending storage-clear refund, applied only at the top level
	Refund uint64

	// Err is nil on success, ErrExecutionReverted on REVERT, the fault otherwise
	Err error

	Logs []*types.Log

	// Touched lists the accounts a successful execution entered or paid,
	// in order of first appearance, possibly repeated
	Touched []types.Address

	Deleted   []types.Address
	CallEdges []*types.CallEdge
}

func (r *FrameResult) Succeeded() bool { return r.Err == nil }
func (r *FrameResult) Failed() bool    { return r.Err != nil }
func (r *FrameResult) Reverted() bool  { return errors.Is(r.Err, ErrExecutionReverted) }

// Merge folds a finished child frame into r. Call edges are always kept,
// everything else only survives when the child succeeded.
func (r *FrameResult) Merge(child *FrameResult) {
	if child.Failed() {
		child.RejectCallEdges()
	}

	r.CallEdges = append(r.CallEdges, child.CallEdges...)

	if child.Failed() {
		return
	}

	r.Logs = append(r.Logs, child.Logs...)
	r.Touched = append(r.Touched, child.Touched...)
	r.Deleted = append(r.Deleted, child.Deleted...)
	r.Refund += child.Refund
}

func (r *FrameResult) RejectCallEdges() {
	for _, edge := range r.CallEdges {
		edge.Rejected = true
	}
}

// ClearEffects drops the tentative effects of a failed execution
func (r *FrameResult) ClearEffects() {
	r.Logs = nil
	r.Touched = nil
	r.Deleted = nil
	r.Refund = 0
}

// UpdateEnergyUsed applies the refund to a successful execution.
// The refund can go up to half the energy used.
func (r *FrameResult) UpdateEnergyUsed(energyLimit uint64) {
	r.EnergyUsed = energyLimit - r.EnergyLeft

	refund := r.Refund
	if maxRefund := r.EnergyUsed / 2; refund > maxRefund {
		refund = maxRefund
	}

	r.EnergyLeft += refund
	r.EnergyUsed -= refund
	r.Refund = 0
}

// SpendAllEnergy force-spends the remaining energy
func (r *FrameResult) SpendAllEnergy() {
	r.EnergyUsed += r.EnergyLeft
	r.EnergyLeft = 0
}

var (
	ErrInvalidOpcode            = errors.New("invalid opcode")
	ErrStackUnderflow           = errors.New("stack underflow")
	ErrStackOverflow            = errors.New("stack overflow")
	ErrMemoryOverflow           = errors.New("memory overflow")
	ErrInvalidJump              = errors.New("invalid jump destination")
	ErrStaticMutation           = errors.New("state mutation in static call")
	ErrReturnDataOutOfBounds    = errors.New("return data out of bounds")
	ErrOutOfEnergy              = errors.New("out of energy")
	ErrOutOfTime                = errors.New("cpu time budget exceeded")
	ErrNativeDepth              = errors.New("native recursion depth exceeded")
	ErrExecutionReverted        = errors.New("execution was reverted")
	ErrTransferFailed           = errors.New("transfer failed")
	ErrContractAddressCollision = errors.New("contract address collision")
	ErrCodeStoreOutOfEnergy     = errors.New("contract creation code storage out of energy")
	ErrPrecompileFailed         = errors.New("precompiled contract failed")
	ErrInsufficientBalance      = errors.New("insufficient balance for transfer")
	ErrInvalidTokenID           = errors.New("invalid token id")
	ErrDepth                    = errors.New("max call depth exceeded")
)

// IsFatal reports whether err aborts every ancestor frame and the whole transaction
func IsFatal(err error) bool {
	return errors.Is(err, ErrOutOfTime) || errors.Is(err, ErrNativeDepth)
}

// KeepsEnergy reports whether a frame terminating with err keeps its unspent energy
func KeepsEnergy(err error) bool {
	return err == nil || errors.Is(err, ErrExecutionReverted) || errors.Is(err, ErrTransferFailed)
}

// ResultCode classifies the terminal error of a top level frame
func ResultCode(err error) types.ResultCode {
	switch {
	case err == nil:
		return types.ResultSuccess
	case errors.Is(err, ErrExecutionReverted):
		return types.ResultRevert
	case errors.Is(err, ErrInvalidJump):
		return types.ResultBadJumpDestination
	case errors.Is(err, ErrMemoryOverflow):
		return types.ResultOutOfMemory
	case errors.Is(err, ErrPrecompileFailed):
		return types.ResultPrecompiledContract
	case errors.Is(err, ErrStackUnderflow):
		return types.ResultStackTooSmall
	case errors.Is(err, ErrStackOverflow):
		return types.ResultStackTooLarge
	case errors.Is(err, ErrInvalidOpcode), errors.Is(err, ErrStaticMutation):
		return types.ResultIllegalOperation
	case errors.Is(err, ErrOutOfEnergy), errors.Is(err, ErrCodeStoreOutOfEnergy):
		return types.ResultOutOfEnergy
	case errors.Is(err, ErrOutOfTime):
		return types.ResultOutOfTime
	case errors.Is(err, ErrNativeDepth):
		return types.ResultJVMStackOverflow
	case errors.Is(err, ErrTransferFailed):
		return types.ResultTransferFailed
	default:
		return types.ResultUnknown
	}
}
