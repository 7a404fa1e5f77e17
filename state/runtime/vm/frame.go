package vm

import (
	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/types"
	"github.com/holiman/uint256"
)

// frame is the execution of one message: its code, operand stack,
// memory and energy meter. Frames live in the session arena and refer
// to their caller by index.
type frame struct {
	s      *session
	index  int
	parent int

	msg  *runtime.Contract
	view runtime.StateView
	code []byte

	bitmap *bitmap
	pc     uint64
	stack  *Stack
	memory *Memory

	energyLimit uint64
	energyUsed  uint64

	// callAllowance is the energy the pending call instruction forwards,
	// set while pricing it
	callAllowance uint64

	// returnData is the output of the last child frame
	returnData []byte

	ret    []byte
	result *runtime.FrameResult

	stop bool
	err  error
}

func (f *frame) energyLeft() uint64 {
	return f.energyLimit - f.energyUsed
}

func (f *frame) spendEnergy(n uint64) bool {
	if n > f.energyLeft() {
		return false
	}

	f.energyUsed += n

	return true
}

func (f *frame) refundEnergy(n uint64) {
	if n > f.energyUsed {
		n = f.energyUsed
	}

	f.energyUsed -= n
}

func (f *frame) halt() {
	f.stop = true
}

func (f *frame) exit(err error) {
	f.stop = true
	f.err = err
}

func (f *frame) address() types.Address {
	return f.msg.Address
}

func (f *frame) validJumpdest(dest *uint256.Int) bool {
	udest, overflow := dest.Uint64WithOverflow()
	if overflow || udest >= uint64(len(f.code)) {
		return false
	}

	return f.bitmap.isSet(udest)
}

func (f *frame) depth() int {
	return f.msg.Depth
}

// finish closes the energy meter and hands the outcome to the result.
// A fault that is neither a revert nor a failed transfer burns the whole allowance.
func (f *frame) finish() *runtime.FrameResult {
	if !runtime.KeepsEnergy(f.err) {
		f.energyUsed = f.energyLimit
		f.ret = nil
	}

	r := f.result
	r.ReturnValue = f.ret
	r.Err = f.err
	r.EnergyUsed = f.energyUsed
	r.EnergyLeft = f.energyLimit - f.energyUsed

	if r.Failed() {
		r.ClearEffects()
	}

	returnStack(f.stack)
	f.stack = nil
	f.memory = nil

	return r
}
