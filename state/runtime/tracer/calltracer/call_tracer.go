package calltracer

import (
	"sync"

	"github.com/holiman/uint256"

	"github.com/energyvm/energy-edge/helper/hex"
	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/state/runtime/tracer"
	"github.com/energyvm/energy-edge/types"
)

// Call is one node of the call tree
type Call struct {
	Type       string  `json:"type"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	Value      int64   `json:"value,omitempty"`
	Energy     string  `json:"energy"`
	EnergyUsed string  `json:"energyUsed"`
	Input      string  `json:"input"`
	Output     string  `json:"output"`
	Error      string  `json:"error,omitempty"`
	Calls      []*Call `json:"calls,omitempty"`

	parent *Call
}

// CallTracer builds the tree of frames entered by a transaction
type CallTracer struct {
	call       *Call
	activeCall *Call

	cancelLock sync.RWMutex
	reason     error
	stop       bool
}

func (c *CallTracer) Cancel(err error) {
	c.cancelLock.Lock()
	defer c.cancelLock.Unlock()

	c.reason = err
	c.stop = true
}

func (c *CallTracer) cancelled() bool {
	c.cancelLock.RLock()
	defer c.cancelLock.RUnlock()

	return c.stop
}

func (c *CallTracer) Clear() {
	c.call = nil
	c.activeCall = nil
}

func (c *CallTracer) GetResult() (interface{}, error) {
	c.cancelLock.RLock()
	defer c.cancelLock.RUnlock()

	if c.reason != nil {
		return nil, c.reason
	}

	return c.call, nil
}

func (c *CallTracer) TxStart(energyLimit uint64) {
}

func (c *CallTracer) TxEnd(energyLeft uint64) {
}

func (c *CallTracer) CallStart(depth int, from, to types.Address, callType int,
	energy uint64, value int64, input []byte) {
	if c.cancelled() {
		return
	}

	call := &Call{
		Type:   runtime.CallType(callType).String(),
		From:   from.String(),
		To:     to.String(),
		Value:  value,
		Energy: hex.EncodeUint64(energy),
		Input:  hex.EncodeToHex(input),
	}

	if depth == 1 || c.activeCall == nil {
		c.call = call
		c.activeCall = call

		return
	}

	call.parent = c.activeCall
	c.activeCall.Calls = append(c.activeCall.Calls, call)
	c.activeCall = call
}

func (c *CallTracer) CallEnd(depth int, output []byte, energyUsed uint64, err error) {
	if c.activeCall == nil {
		return
	}

	c.activeCall.Output = hex.EncodeToHex(output)
	c.activeCall.EnergyUsed = hex.EncodeUint64(energyUsed)

	if err != nil {
		c.activeCall.Error = err.Error()
	}

	if depth > 1 && c.activeCall.parent != nil {
		c.activeCall = c.activeCall.parent
	}
}

func (c *CallTracer) CaptureState(memory []byte, stack []uint256.Int, opCode int,
	contractAddress types.Address, sp int, host tracer.RuntimeHost, state tracer.VMState) {
	if c.cancelled() {
		state.Halt()
	}
}

func (c *CallTracer) ExecuteState(contractAddress types.Address, pc uint64, opcode string,
	availableEnergy uint64, cost uint64, lastReturnData []byte, depth int, err error, host tracer.RuntimeHost) {
}
