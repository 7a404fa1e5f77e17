package structtracer

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/holiman/uint256"

	"github.com/energyvm/energy-edge/helper/hex"
	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/state/runtime/tracer"
	"github.com/energyvm/energy-edge/types"
)

// storage opcodes, mirrored here to keep the tracer independent of the vm package
const (
	opSload  = 0x54
	opSstore = 0x55
)

type Config struct {
	EnableMemory     bool // enable memory capture
	EnableStack      bool // enable stack capture
	EnableStorage    bool // enable storage capture
	EnableReturnData bool // enable return data capture

	// Limit stops recording after this many steps, zero keeps everything
	Limit int
}

type StructLog struct {
	Pc            uint64
	Op            string
	Energy        uint64
	EnergyCost    uint64
	Memory        []byte
	MemorySize    int
	Stack         []uint256.Int
	ReturnData    []byte
	Storage       map[types.Hash]types.Hash
	Depth         int
	RefundCounter uint64
	Err           error
}

func (l *StructLog) ErrorString() string {
	if l.Err != nil {
		return l.Err.Error()
	}

	return ""
}

// StructTracer records one StructLog per executed instruction
type StructTracer struct {
	Config Config

	reason    error
	interrupt uint32

	logs        []StructLog
	energyLimit uint64
	energyUsed  uint64
	output      []byte
	err         error
	storage     map[types.Address]map[types.Hash]types.Hash

	currentMemory []byte
	currentStack  []uint256.Int
}

func NewStructTracer(config Config) *StructTracer {
	return &StructTracer{
		Config:  config,
		storage: make(map[types.Address]map[types.Hash]types.Hash),
	}
}

// Cancel halts the traced execution at the next instruction. GetResult returns err afterwards.
func (t *StructTracer) Cancel(err error) {
	t.reason = err
	atomic.StoreUint32(&t.interrupt, 1)
}

func (t *StructTracer) cancelled() bool {
	return atomic.LoadUint32(&t.interrupt) == 1
}

func (t *StructTracer) Clear() {
	t.reason = nil
	atomic.StoreUint32(&t.interrupt, 0)
	t.logs = t.logs[:0]
	t.energyLimit = 0
	t.energyUsed = 0
	t.output = t.output[:0]
	t.err = nil
	t.storage = make(map[types.Address]map[types.Hash]types.Hash)
	t.currentMemory = t.currentMemory[:0]
	t.currentStack = t.currentStack[:0]
}

func (t *StructTracer) TxStart(energyLimit uint64) {
	t.energyLimit = energyLimit
}

func (t *StructTracer) TxEnd(energyLeft uint64) {
	t.energyUsed = t.energyLimit - energyLeft
}

func (t *StructTracer) CallStart(
	depth int,
	from, to types.Address,
	callType int,
	energy uint64,
	value int64,
	input []byte,
) {
}

func (t *StructTracer) CallEnd(
	depth int,
	output []byte,
	energyUsed uint64,
	err error,
) {
	if depth == 1 {
		t.output = output
		t.err = err
	}
}

func (t *StructTracer) full() bool {
	return t.Config.Limit > 0 && len(t.logs) >= t.Config.Limit
}

func (t *StructTracer) CaptureState(
	memory []byte,
	stack []uint256.Int,
	opCode int,
	contractAddress types.Address,
	sp int,
	host tracer.RuntimeHost,
	state tracer.VMState,
) {
	if t.cancelled() {
		state.Halt()

		return
	}

	if t.full() {
		return
	}

	t.captureMemory(memory)
	t.captureStack(stack)
	t.captureStorage(stack, opCode, contractAddress, sp, host)
}

func (t *StructTracer) captureMemory(memory []byte) {
	if !t.Config.EnableMemory {
		return
	}

	// always allocate new space to get new reference
	t.currentMemory = make([]byte, len(memory))

	copy(t.currentMemory, memory)
}

func (t *StructTracer) captureStack(stack []uint256.Int) {
	if !t.Config.EnableStack {
		return
	}

	t.currentStack = make([]uint256.Int, len(stack))

	copy(t.currentStack, stack)
}

func (t *StructTracer) captureStorage(
	stack []uint256.Int,
	opCode int,
	contractAddress types.Address,
	sp int,
	host tracer.RuntimeHost,
) {
	if !t.Config.EnableStorage || (opCode != opSload && opCode != opSstore) {
		return
	}

	slots, ok := t.storage[contractAddress]
	if !ok {
		slots = make(map[types.Hash]types.Hash)
	}

	switch opCode {
	case opSload:
		if sp < 1 {
			return
		}

		slot := types.Hash(stack[sp-1].Bytes32())
		slots[slot] = host.GetStorage(contractAddress, slot)

	case opSstore:
		if sp < 2 {
			return
		}

		slots[types.Hash(stack[sp-1].Bytes32())] = types.Hash(stack[sp-2].Bytes32())
	}

	t.storage[contractAddress] = slots
}

func (t *StructTracer) ExecuteState(
	contractAddress types.Address,
	pc uint64,
	opCode string,
	availableEnergy uint64,
	cost uint64,
	lastReturnData []byte,
	depth int,
	err error,
	host tracer.RuntimeHost,
) {
	if t.full() {
		return
	}

	log := StructLog{
		Pc:            pc,
		Op:            opCode,
		Energy:        availableEnergy,
		EnergyCost:    cost,
		Depth:         depth,
		RefundCounter: host.GetRefund(),
		Err:           err,
	}

	if t.Config.EnableMemory {
		log.MemorySize = len(t.currentMemory)
		log.Memory = append([]byte{}, t.currentMemory...)
	}

	if t.Config.EnableStack {
		log.Stack = append([]uint256.Int{}, t.currentStack...)
	}

	if t.Config.EnableReturnData {
		log.ReturnData = append([]byte{}, lastReturnData...)
	}

	if t.Config.EnableStorage {
		if slots, ok := t.storage[contractAddress]; ok {
			log.Storage = make(map[types.Hash]types.Hash, len(slots))

			for k, v := range slots {
				log.Storage[k] = v
			}
		}
	}

	t.logs = append(t.logs, log)
}

type StructTraceResult struct {
	Failed      bool           `json:"failed"`
	Energy      uint64         `json:"energy"`
	ReturnValue string         `json:"returnValue"`
	StructLogs  []StructLogRes `json:"structLogs"`
}

type StructLogRes struct {
	Pc            uint64            `json:"pc"`
	Op            string            `json:"op"`
	Energy        uint64            `json:"energy"`
	EnergyCost    uint64            `json:"energyCost"`
	Depth         int               `json:"depth"`
	Error         string            `json:"error,omitempty"`
	Stack         []string          `json:"stack,omitempty"`
	Memory        []string          `json:"memory,omitempty"`
	ReturnData    string            `json:"returnData,omitempty"`
	Storage       map[string]string `json:"storage,omitempty"`
	RefundCounter uint64            `json:"refund,omitempty"`
}

func (t *StructTracer) GetResult() (interface{}, error) {
	if t.reason != nil {
		return nil, t.reason
	}

	return t.Result(), nil
}

// Result builds the trace of the last transaction
func (t *StructTracer) Result() *StructTraceResult {
	var returnValue string

	// a faulted execution returns nothing, a revert keeps its reason
	if t.err == nil || errors.Is(t.err, runtime.ErrExecutionReverted) {
		returnValue = fmt.Sprintf("%x", t.output)
	}

	return &StructTraceResult{
		Failed:      t.err != nil,
		Energy:      t.energyUsed,
		ReturnValue: returnValue,
		StructLogs:  formatStructLogs(t.logs),
	}
}

func formatStructLogs(originalLogs []StructLog) []StructLogRes {
	res := make([]StructLogRes, len(originalLogs))

	for index, log := range originalLogs {
		res[index] = StructLogRes{
			Pc:            log.Pc,
			Op:            log.Op,
			Energy:        log.Energy,
			EnergyCost:    log.EnergyCost,
			Depth:         log.Depth,
			Error:         log.ErrorString(),
			RefundCounter: log.RefundCounter,
		}

		if log.Stack != nil {
			stack := make([]string, len(log.Stack))
			for i := range log.Stack {
				stack[i] = log.Stack[i].Hex()
			}

			res[index].Stack = stack
		}

		if log.Memory != nil {
			memory := make([]string, 0, (len(log.Memory)+31)/32)
			for i := 0; i+32 <= len(log.Memory); i += 32 {
				memory = append(memory, hex.EncodeToString(log.Memory[i:i+32]))
			}

			res[index].Memory = memory
		}

		if len(log.ReturnData) > 0 {
			res[index].ReturnData = hex.EncodeToHex(log.ReturnData)
		}

		if log.Storage != nil {
			storage := make(map[string]string, len(log.Storage))
			for k, v := range log.Storage {
				storage[hex.EncodeToString(k.Bytes())] = hex.EncodeToString(v.Bytes())
			}

			res[index].Storage = storage
		}
	}

	return res
}
