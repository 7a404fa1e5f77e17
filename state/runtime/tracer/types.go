package tracer

import (
	"github.com/energyvm/energy-edge/types"
	"github.com/holiman/uint256"
)

// RuntimeHost is the interface defining the methods for accessing state by tracer
type RuntimeHost interface {
	// GetRefund returns the pending storage refund of the frame
	GetRefund() uint64
	// GetStorage access the storage slot at the given address and slot hash
	GetStorage(types.Address, types.Hash) types.Hash
}

// VMState lets a tracer stop the frame it observes
type VMState interface {
	Halt()
}

type Tracer interface {
	Clear()
	GetResult() (interface{}, error)

	// Tx-level
	TxStart(energyLimit uint64)
	TxEnd(energyLeft uint64)

	// Call-level
	CallStart(
		depth int, // begins from 1
		from, to types.Address,
		callType int,
		energy uint64,
		value int64,
		input []byte,
	)
	CallEnd(
		depth int, // begins from 1
		output []byte,
		energyUsed uint64,
		err error,
	)

	// Op-level
	CaptureState(
		memory []byte,
		stack []uint256.Int,
		opCode int,
		contractAddress types.Address,
		sp int,
		host RuntimeHost,
		state VMState,
	)
	ExecuteState(
		contractAddress types.Address,
		pc uint64,
		opCode string,
		availableEnergy uint64,
		cost uint64,
		lastReturnData []byte,
		depth int,
		err error,
		host RuntimeHost,
	)
}
