package vm

import (
	"github.com/energyvm/energy-edge/chain"
	"github.com/energyvm/energy-edge/state/runtime"
)

type (
	executionFunc func(f *frame)

	// energyFunc returns the dynamic part of an instruction's price.
	// memorySize is the word-aligned memory the instruction needs.
	energyFunc func(f *frame, memorySize uint64) (uint64, error)

	// memorySizeFunc returns the required size, and whether the operation overflowed a uint64
	memorySizeFunc func(s *Stack) (size uint64, overflow bool)

	// mutatesFunc reports whether the instruction, with the current stack,
	// would change state
	mutatesFunc func(s *Stack) bool
)

type operation struct {
	execute        executionFunc
	constantEnergy uint64
	dynamicEnergy  energyFunc

	// minStack tells how many stack items are required
	minStack int
	// maxStack specifies the max length the stack can have for this operation
	// to not overflow the stack
	maxStack int

	memorySize memorySizeFunc
	mutates    mutatesFunc

	// jumps reports whether the instruction sets the program counter itself
	jumps bool
}

// JumpTable contains the instructions enabled at a given set of protocol upgrades
type JumpTable [256]*operation

func minStack(pops, _ int) int {
	return pops
}

func maxStack(pops, push int) int {
	return StackLimit + pops - push
}

func alwaysMutates(*Stack) bool {
	return true
}

// valueAt reports a non zero value at stack position n
func valueAt(n int) mutatesFunc {
	return func(s *Stack) bool {
		return !s.Back(n).IsZero()
	}
}

// NewJumpTable returns the instruction set for the given protocol upgrades
func NewJumpTable(forks chain.ForksInTime) *JumpTable {
	tbl := newBaseInstructionSet()

	if forks.TransferToken {
		enableTransferToken(&tbl)
	}

	if forks.Constantinople {
		enableConstantinople(&tbl)
	}

	if forks.Solidity059 {
		enableSolidity059(&tbl)
	}

	if forks.Istanbul {
		enableIstanbul(&tbl)
	}

	return &tbl
}

func enableTransferToken(tbl *JumpTable) {
	tbl[CALLTOKEN] = &operation{
		execute:        opCall(runtime.CallToken),
		constantEnergy: CallEnergy,
		dynamicEnergy:  energyCallToken,
		minStack:       minStack(8, 1),
		maxStack:       maxStack(8, 1),
		memorySize:     memoryCallToken,
		mutates:        valueAt(2),
	}
	tbl[TOKENBALANCE] = &operation{
		execute:        opTokenBalance,
		constantEnergy: TokenBalanceEnergy,
		minStack:       minStack(2, 1),
		maxStack:       maxStack(2, 1),
	}
	tbl[CALLTOKENVALUE] = &operation{
		execute:        opCallTokenValue,
		constantEnergy: EnergyQuickStep,
		minStack:       minStack(0, 1),
		maxStack:       maxStack(0, 1),
	}
	tbl[CALLTOKENID] = &operation{
		execute:        opCallTokenID,
		constantEnergy: EnergyQuickStep,
		minStack:       minStack(0, 1),
		maxStack:       maxStack(0, 1),
	}
}

func enableConstantinople(tbl *JumpTable) {
	tbl[SHL] = &operation{
		execute:        opSHL,
		constantEnergy: EnergyFastestStep,
		minStack:       minStack(2, 1),
		maxStack:       maxStack(2, 1),
	}
	tbl[SHR] = &operation{
		execute:        opSHR,
		constantEnergy: EnergyFastestStep,
		minStack:       minStack(2, 1),
		maxStack:       maxStack(2, 1),
	}
	tbl[SAR] = &operation{
		execute:        opSAR,
		constantEnergy: EnergyFastestStep,
		minStack:       minStack(2, 1),
		maxStack:       maxStack(2, 1),
	}
	tbl[EXTCODEHASH] = &operation{
		execute:        opExtCodeHash,
		constantEnergy: ExtCodeHashEnergy,
		minStack:       minStack(1, 1),
		maxStack:       maxStack(1, 1),
	}
	tbl[CREATE2] = &operation{
		execute:        opCreate(true),
		constantEnergy: CreateEnergy,
		dynamicEnergy:  energyCreate2,
		minStack:       minStack(4, 1),
		maxStack:       maxStack(4, 1),
		memorySize:     memoryCreate2,
		mutates:        alwaysMutates,
	}
}

func enableSolidity059(tbl *JumpTable) {
	tbl[ISCONTRACT] = &operation{
		execute:        opIsContract,
		constantEnergy: IsContractEnergy,
		minStack:       minStack(1, 1),
		maxStack:       maxStack(1, 1),
	}
}

func enableIstanbul(tbl *JumpTable) {
	tbl[CHAINID] = &operation{
		execute:        opChainID,
		constantEnergy: EnergyQuickStep,
		minStack:       minStack(0, 1),
		maxStack:       maxStack(0, 1),
	}
	tbl[SELFBALANCE] = &operation{
		execute:        opSelfBalance,
		constantEnergy: SelfBalanceEnergy,
		minStack:       minStack(0, 1),
		maxStack:       maxStack(0, 1),
	}
}

func unaryOp(exec executionFunc, energy uint64) *operation {
	return &operation{
		execute:        exec,
		constantEnergy: energy,
		minStack:       minStack(1, 1),
		maxStack:       maxStack(1, 1),
	}
}

func binaryOp(exec executionFunc, energy uint64) *operation {
	return &operation{
		execute:        exec,
		constantEnergy: energy,
		minStack:       minStack(2, 1),
		maxStack:       maxStack(2, 1),
	}
}

func ternaryOp(exec executionFunc, energy uint64) *operation {
	return &operation{
		execute:        exec,
		constantEnergy: energy,
		minStack:       minStack(3, 1),
		maxStack:       maxStack(3, 1),
	}
}

func pusher(exec executionFunc, energy uint64) *operation {
	return &operation{
		execute:        exec,
		constantEnergy: energy,
		minStack:       minStack(0, 1),
		maxStack:       maxStack(0, 1),
	}
}

func newBaseInstructionSet() JumpTable {
	tbl := JumpTable{
		STOP: {
			execute:        opStop,
			constantEnergy: EnergyZeroStep,
			minStack:       minStack(0, 0),
			maxStack:       maxStack(0, 0),
		},
		ADD:        binaryOp(opAdd, EnergyFastestStep),
		MUL:        binaryOp(opMul, EnergyFastStep),
		SUB:        binaryOp(opSub, EnergyFastestStep),
		DIV:        binaryOp(opDiv, EnergyFastStep),
		SDIV:       binaryOp(opSdiv, EnergyFastStep),
		MOD:        binaryOp(opMod, EnergyFastStep),
		SMOD:       binaryOp(opSmod, EnergyFastStep),
		ADDMOD:     ternaryOp(opAddmod, EnergyMidStep),
		MULMOD:     ternaryOp(opMulmod, EnergyMidStep),
		SIGNEXTEND: binaryOp(opSignExtend, EnergyFastStep),
		EXP: {
			execute:        opExp,
			constantEnergy: ExpEnergy,
			dynamicEnergy:  energyExp,
			minStack:       minStack(2, 1),
			maxStack:       maxStack(2, 1),
		},
		LT:     binaryOp(opLt, EnergyFastestStep),
		GT:     binaryOp(opGt, EnergyFastestStep),
		SLT:    binaryOp(opSlt, EnergyFastestStep),
		SGT:    binaryOp(opSgt, EnergyFastestStep),
		EQ:     binaryOp(opEq, EnergyFastestStep),
		ISZERO: unaryOp(opIszero, EnergyFastestStep),
		AND:    binaryOp(opAnd, EnergyFastestStep),
		OR:     binaryOp(opOr, EnergyFastestStep),
		XOR:    binaryOp(opXor, EnergyFastestStep),
		NOT:    unaryOp(opNot, EnergyFastestStep),
		BYTE:   binaryOp(opByte, EnergyFastestStep),
		SHA3: {
			execute:        opSha3,
			constantEnergy: Sha3Energy,
			dynamicEnergy:  energySha3,
			minStack:       minStack(2, 1),
			maxStack:       maxStack(2, 1),
			memorySize:     memorySha3,
		},
		ADDRESS:      pusher(opAddress, EnergyQuickStep),
		BALANCE:      unaryOp(opBalance, BalanceEnergy),
		ORIGIN:       pusher(opOrigin, EnergyQuickStep),
		CALLER:       pusher(opCaller, EnergyQuickStep),
		CALLVALUE:    pusher(opCallValue, EnergyQuickStep),
		CALLDATALOAD: unaryOp(opCallDataLoad, EnergyFastestStep),
		CALLDATASIZE: pusher(opCallDataSize, EnergyQuickStep),
		CALLDATACOPY: {
			execute:        opCallDataCopy,
			constantEnergy: EnergyFastestStep,
			dynamicEnergy:  energyCallDataCopy,
			minStack:       minStack(3, 0),
			maxStack:       maxStack(3, 0),
			memorySize:     memoryCallDataCopy,
		},
		CODESIZE: pusher(opCodeSize, EnergyQuickStep),
		CODECOPY: {
			execute:        opCodeCopy,
			constantEnergy: EnergyFastestStep,
			dynamicEnergy:  energyCodeCopy,
			minStack:       minStack(3, 0),
			maxStack:       maxStack(3, 0),
			memorySize:     memoryCodeCopy,
		},
		GASPRICE:    pusher(opGasPrice, EnergyQuickStep),
		EXTCODESIZE: unaryOp(opExtCodeSize, ExtCodeSizeEnergy),
		EXTCODECOPY: {
			execute:        opExtCodeCopy,
			constantEnergy: ExtCodeCopyEnergy,
			dynamicEnergy:  energyExtCodeCopy,
			minStack:       minStack(4, 0),
			maxStack:       maxStack(4, 0),
			memorySize:     memoryExtCodeCopy,
		},
		RETURNDATASIZE: pusher(opReturnDataSize, EnergyQuickStep),
		RETURNDATACOPY: {
			execute:        opReturnDataCopy,
			constantEnergy: EnergyFastestStep,
			dynamicEnergy:  energyReturnDataCopy,
			minStack:       minStack(3, 0),
			maxStack:       maxStack(3, 0),
			memorySize:     memoryReturnDataCopy,
		},
		BLOCKHASH:  unaryOp(opBlockhash, BlockHashEnergy),
		COINBASE:   pusher(opCoinbase, EnergyQuickStep),
		TIMESTAMP:  pusher(opTimestamp, EnergyQuickStep),
		NUMBER:     pusher(opNumber, EnergyQuickStep),
		DIFFICULTY: pusher(opPushZero, EnergyQuickStep),
		GASLIMIT:   pusher(opPushZero, EnergyQuickStep),
		POP: {
			execute:        opPop,
			constantEnergy: EnergyQuickStep,
			minStack:       minStack(1, 0),
			maxStack:       maxStack(1, 0),
		},
		MLOAD: {
			execute:        opMload,
			constantEnergy: EnergyFastestStep,
			dynamicEnergy:  pureMemoryEnergy,
			minStack:       minStack(1, 1),
			maxStack:       maxStack(1, 1),
			memorySize:     memoryMLoad,
		},
		MSTORE: {
			execute:        opMstore,
			constantEnergy: EnergyFastestStep,
			dynamicEnergy:  pureMemoryEnergy,
			minStack:       minStack(2, 0),
			maxStack:       maxStack(2, 0),
			memorySize:     memoryMStore,
		},
		MSTORE8: {
			execute:        opMstore8,
			constantEnergy: EnergyFastestStep,
			dynamicEnergy:  pureMemoryEnergy,
			minStack:       minStack(2, 0),
			maxStack:       maxStack(2, 0),
			memorySize:     memoryMStore8,
		},
		SLOAD: unaryOp(opSload, SloadEnergy),
		SSTORE: {
			execute:       opSstore,
			dynamicEnergy: energySStore,
			minStack:      minStack(2, 0),
			maxStack:      maxStack(2, 0),
			mutates:       alwaysMutates,
		},
		JUMP: {
			execute:        opJump,
			constantEnergy: EnergyMidStep,
			minStack:       minStack(1, 0),
			maxStack:       maxStack(1, 0),
			jumps:          true,
		},
		JUMPI: {
			execute:        opJumpi,
			constantEnergy: EnergySlowStep,
			minStack:       minStack(2, 0),
			maxStack:       maxStack(2, 0),
			jumps:          true,
		},
		PC:    pusher(opPc, EnergyQuickStep),
		MSIZE: pusher(opMsize, EnergyQuickStep),
		GAS:   pusher(opGas, EnergyQuickStep),
		JUMPDEST: {
			execute:        opJumpdest,
			constantEnergy: EnergySpecialStep,
			minStack:       minStack(0, 0),
			maxStack:       maxStack(0, 0),
		},
		CREATE: {
			execute:        opCreate(false),
			constantEnergy: CreateEnergy,
			dynamicEnergy:  pureMemoryEnergy,
			minStack:       minStack(3, 1),
			maxStack:       maxStack(3, 1),
			memorySize:     memoryCreate,
			mutates:        alwaysMutates,
		},
		CALL: {
			execute:        opCall(runtime.Call),
			constantEnergy: CallEnergy,
			dynamicEnergy:  energyCall,
			minStack:       minStack(7, 1),
			maxStack:       maxStack(7, 1),
			memorySize:     memoryCall,
			mutates:        valueAt(2),
		},
		CALLCODE: {
			execute:        opCall(runtime.CallCode),
			constantEnergy: CallEnergy,
			dynamicEnergy:  energyCallCode,
			minStack:       minStack(7, 1),
			maxStack:       maxStack(7, 1),
			memorySize:     memoryCall,
		},
		RETURN: {
			execute:       opReturn,
			dynamicEnergy: pureMemoryEnergy,
			minStack:      minStack(2, 0),
			maxStack:      maxStack(2, 0),
			memorySize:    memoryReturn,
		},
		DELEGATECALL: {
			execute:        opCall(runtime.DelegateCall),
			constantEnergy: CallEnergy,
			dynamicEnergy:  energyDelegateCall,
			minStack:       minStack(6, 1),
			maxStack:       maxStack(6, 1),
			memorySize:     memoryDelegateCall,
		},
		STATICCALL: {
			execute:        opCall(runtime.StaticCall),
			constantEnergy: CallEnergy,
			dynamicEnergy:  energyStaticCall,
			minStack:       minStack(6, 1),
			maxStack:       maxStack(6, 1),
			memorySize:     memoryStaticCall,
		},
		REVERT: {
			execute:       opRevert,
			dynamicEnergy: pureMemoryEnergy,
			minStack:      minStack(2, 0),
			maxStack:      maxStack(2, 0),
			memorySize:    memoryRevert,
		},
		SELFDESTRUCT: {
			execute:        opSelfDestruct,
			constantEnergy: SelfdestructEnergy,
			minStack:       minStack(1, 0),
			maxStack:       maxStack(1, 0),
			mutates:        alwaysMutates,
		},
	}

	for i := 0; i < 32; i++ {
		tbl[PUSH1+OpCode(i)] = &operation{
			execute:        makePush(uint64(i + 1)),
			constantEnergy: EnergyFastestStep,
			minStack:       minStack(0, 1),
			maxStack:       maxStack(0, 1),
		}
	}

	for i := 1; i <= 16; i++ {
		tbl[DUP1+OpCode(i-1)] = &operation{
			execute:        makeDup(i),
			constantEnergy: EnergyFastestStep,
			minStack:       minStack(i, i+1),
			maxStack:       maxStack(i, i+1),
		}
		tbl[SWAP1+OpCode(i-1)] = &operation{
			execute:        makeSwap(i),
			constantEnergy: EnergyFastestStep,
			minStack:       minStack(i+1, i+1),
			maxStack:       maxStack(i+1, i+1),
		}
	}

	for i := 0; i <= 4; i++ {
		tbl[LOG0+OpCode(i)] = &operation{
			execute:        makeLog(i),
			constantEnergy: LogEnergy,
			dynamicEnergy:  makeEnergyLog(uint64(i)),
			minStack:       minStack(i+2, 0),
			maxStack:       maxStack(i+2, 0),
			memorySize:     memoryLog,
			mutates:        alwaysMutates,
		}
	}

	return tbl
}
