package vm

import (
	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/types"
)

// run executes the frame until it halts, faults or runs off the end of its code
func (f *frame) run() {
	for !f.stop {
		pc, available := f.pc, f.energyLeft()

		op, cost, traced := f.step()
		if traced && f.s.tracer != nil {
			f.s.tracer.ExecuteState(
				f.address(),
				pc,
				op.String(),
				available,
				cost,
				f.returnData,
				f.depth()+1,
				f.err,
				f,
			)
		}
	}
}

// step runs a single instruction. It reports the instruction, the energy
// charged for it and whether it got far enough to be traced.
func (f *frame) step() (OpCode, uint64, bool) {
	if f.pc >= uint64(len(f.code)) {
		f.halt()

		return STOP, 0, false
	}

	op := OpCode(f.code[f.pc])

	operation := f.s.table[op]
	if operation == nil {
		f.exit(runtime.ErrInvalidOpcode)

		return op, 0, true
	}

	if sLen := f.stack.len(); sLen < operation.minStack {
		f.exit(runtime.ErrStackUnderflow)

		return op, 0, true
	} else if sLen > operation.maxStack {
		f.exit(runtime.ErrStackOverflow)

		return op, 0, true
	}

	if f.msg.Static && operation.mutates != nil && operation.mutates(f.stack) {
		f.exit(runtime.ErrStaticMutation)

		return op, 0, true
	}

	var memorySize uint64

	if operation.memorySize != nil {
		size, overflow := operation.memorySize(f.stack)
		if overflow {
			f.exit(runtime.ErrMemoryOverflow)

			return op, 0, true
		}

		if memorySize, overflow = safeMul(numWords(size), 32); overflow || memorySize > MemoryLimit {
			f.exit(runtime.ErrMemoryOverflow)

			return op, 0, true
		}
	}

	cost := operation.constantEnergy
	if !f.spendEnergy(cost) {
		f.exit(runtime.ErrOutOfEnergy)

		return op, cost, true
	}

	if operation.dynamicEnergy != nil {
		dynamicCost, err := operation.dynamicEnergy(f, memorySize)
		cost += dynamicCost

		if err != nil {
			f.exit(err)

			return op, cost, true
		}

		if !f.spendEnergy(dynamicCost) {
			f.exit(runtime.ErrOutOfEnergy)

			return op, cost, true
		}
	}

	if f.s.tracer != nil {
		f.s.tracer.CaptureState(
			f.memory.Data(),
			f.stack.Data(),
			int(op),
			f.address(),
			f.stack.len(),
			f,
			f,
		)

		if f.stop {
			return op, cost, true
		}
	}

	if f.s.deadline.Expired() {
		f.exit(runtime.ErrOutOfTime)

		return op, cost, true
	}

	if memorySize > 0 {
		f.memory.Resize(memorySize)
	}

	operation.execute(f)

	if !operation.jumps {
		f.pc++
	}

	return op, cost, true
}

// Halt stops the frame on behalf of a tracer
func (f *frame) Halt() {
	f.halt()
}

func (f *frame) GetRefund() uint64 {
	return f.result.Refund
}

func (f *frame) GetStorage(addr types.Address, key types.Hash) types.Hash {
	return f.view.GetStorage(addr, key)
}
