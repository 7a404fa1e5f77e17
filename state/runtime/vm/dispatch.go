package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/energyvm/energy-edge/helper/keccak"
	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/state/runtime/tracer"
	"github.com/energyvm/energy-edge/timeutils"
	"github.com/energyvm/energy-edge/types"
)

const (
	noteCall    = "call"
	noteCreate  = "create"
	noteSuicide = "suicide"
)

// session is the execution of one transaction: the live frames, the
// internal transaction counter and the native recursion guard
type session struct {
	vm       *VM
	env      *Env
	table    *JumpTable
	tracer   tracer.Tracer
	deadline timeutils.Deadline

	frames      []*frame
	nonce       uint64
	nativeDepth int
}

// newEdge records an internal transaction. Its hash chains the
// transaction hash with a per-transaction counter.
func (s *session) newEdge(
	caller, callee types.Address,
	value, tokenID, tokenValue int64,
	depth int,
	note string,
) *types.CallEdge {
	var n [8]byte

	binary.BigEndian.PutUint64(n[:], s.nonce)
	s.nonce++

	return &types.CallEdge{
		Hash:       types.BytesToHash(keccak.Keccak256(nil, s.env.Ctx.TxHash[:], n[:])),
		Caller:     caller,
		Callee:     callee,
		Value:      value,
		TokenID:    tokenID,
		TokenValue: tokenValue,
		Depth:      depth,
		Note:       note,
	}
}

// softFailure is a call that never started: the caller gets its allowance back
func softFailure(msg *runtime.Contract, err error) *runtime.FrameResult {
	return &runtime.FrameResult{
		EnergyLeft: msg.Energy,
		Err:        err,
	}
}

func canTransfer(view runtime.StateView, msg *runtime.Contract) bool {
	switch msg.Type {
	case runtime.Call, runtime.CallCode:
		return view.GetBalance(msg.Caller) >= msg.Value
	case runtime.CallToken:
		return msg.TokenValue == 0 || view.GetTokenBalance(msg.Caller, msg.TokenID) >= msg.TokenValue
	}

	return true
}

func moveBalance(view runtime.StateView, from, to types.Address, amount int64) error {
	if amount == 0 {
		return nil
	}

	if err := view.AddBalance(from, -amount); err != nil {
		return fmt.Errorf("%w: %v", runtime.ErrTransferFailed, err)
	}

	if !view.AccountExists(to) {
		view.CreateAccount(to, types.AccountTypeNormal)
	}

	if err := view.AddBalance(to, amount); err != nil {
		return fmt.Errorf("%w: %v", runtime.ErrTransferFailed, err)
	}

	return nil
}

func moveToken(view runtime.StateView, from, to types.Address, tokenID, amount int64) error {
	if amount == 0 {
		return nil
	}

	if err := view.AddTokenBalance(from, tokenID, -amount); err != nil {
		return fmt.Errorf("%w: %v", runtime.ErrTransferFailed, err)
	}

	if !view.AccountExists(to) {
		view.CreateAccount(to, types.AccountTypeNormal)
	}

	if err := view.AddTokenBalance(to, tokenID, amount); err != nil {
		return fmt.Errorf("%w: %v", runtime.ErrTransferFailed, err)
	}

	return nil
}

// transfer moves the value carried by msg into its target
func transfer(view runtime.StateView, msg *runtime.Contract) error {
	switch msg.Type {
	case runtime.Call, runtime.Create, runtime.Create2, runtime.CallToken:
	default:
		return nil
	}

	if err := moveBalance(view, msg.Caller, msg.Address, msg.Value); err != nil {
		return err
	}

	if msg.TokenValue > 0 {
		return moveToken(view, msg.Caller, msg.Address, msg.TokenID, msg.TokenValue)
	}

	return nil
}

// call runs a message call on a checkpoint of view. parent is nil for the
// top level frame.
func (s *session) call(parent *frame, view runtime.StateView, msg *runtime.Contract) *runtime.FrameResult {
	if parent != nil {
		if msg.Depth > MaxCallDepth {
			return softFailure(msg, runtime.ErrDepth)
		}

		if !canTransfer(view, msg) {
			return softFailure(msg, runtime.ErrInsufficientBalance)
		}
	}

	var edge *types.CallEdge
	if parent != nil {
		edge = s.newEdge(parent.address(), msg.CodeAddress, msg.Value, msg.TokenID, msg.TokenValue, msg.Depth, noteCall)
	}

	s.captureCallStart(msg)

	child := view.NewCheckpoint()

	var result *runtime.FrameResult

	if err := transfer(child, msg); err != nil {
		result = &runtime.FrameResult{EnergyLeft: msg.Energy, Err: err}
	} else if s.vm.precompiles.CanRun(msg.CodeAddress) {
		result = s.vm.precompiles.Run(msg.CodeAddress, msg.Input, msg.Energy)
	} else {
		msg.Code = child.GetCode(msg.CodeAddress)
		result = s.run(parent, child, msg)
	}

	if edge != nil {
		result.CallEdges = append([]*types.CallEdge{edge}, result.CallEdges...)
	}

	if result.Succeeded() {
		result.Touched = append([]types.Address{msg.Address}, result.Touched...)
		child.Commit()
	} else {
		child.Discard()
	}

	s.captureCallEnd(msg, result)

	return result
}

// create deploys msg.Code at msg.Address on a checkpoint of view
func (s *session) create(parent *frame, view runtime.StateView, msg *runtime.Contract) *runtime.FrameResult {
	var edge *types.CallEdge
	if parent != nil {
		edge = s.newEdge(parent.address(), msg.Address, msg.Value, msg.TokenID, msg.TokenValue, msg.Depth, noteCreate)
	}

	s.captureCallStart(msg)

	child := view.NewCheckpoint()
	result := s.deploy(parent, child, msg)

	if edge != nil {
		result.CallEdges = append([]*types.CallEdge{edge}, result.CallEdges...)
	}

	if result.Succeeded() {
		result.Touched = append([]types.Address{msg.Address}, result.Touched...)
		child.Commit()
	} else {
		child.Discard()
	}

	s.captureCallEnd(msg, result)

	return result
}

func (s *session) deploy(parent *frame, view runtime.StateView, msg *runtime.Contract) *runtime.FrameResult {
	if view.AccountExists(msg.Address) {
		return &runtime.FrameResult{
			EnergyUsed: msg.Energy,
			Err:        runtime.ErrContractAddressCollision,
		}
	}

	view.CreateAccount(msg.Address, types.AccountTypeContract)

	if msg.Meta != nil {
		meta := msg.Meta.Copy()
		meta.Address = msg.Address
		view.CreateContract(meta)
	}

	if err := transfer(view, msg); err != nil {
		return &runtime.FrameResult{EnergyLeft: msg.Energy, Err: err}
	}

	result := s.run(parent, view, msg)
	if result.Failed() {
		return result
	}

	// the runtime code returned by the constructor is paid per byte
	codeEnergy := uint64(len(result.ReturnValue)) * CreateDataEnergy
	if codeEnergy > result.EnergyLeft {
		result.Err = runtime.ErrCodeStoreOutOfEnergy
		result.ReturnValue = nil
		result.SpendAllEnergy()
		result.ClearEffects()

		return result
	}

	result.EnergyLeft -= codeEnergy
	result.EnergyUsed += codeEnergy

	view.SaveCode(msg.Address, result.ReturnValue)

	return result
}

// run executes msg.Code in a new frame. A message without code succeeds
// immediately and keeps its energy.
func (s *session) run(parent *frame, view runtime.StateView, msg *runtime.Contract) *runtime.FrameResult {
	if len(msg.Code) == 0 {
		return &runtime.FrameResult{EnergyLeft: msg.Energy}
	}

	s.nativeDepth++
	defer func() {
		s.nativeDepth--
	}()

	if s.env.MaxNativeDepth > 0 && s.nativeDepth > s.env.MaxNativeDepth {
		return &runtime.FrameResult{
			EnergyUsed: msg.Energy,
			Err:        runtime.ErrNativeDepth,
		}
	}

	f := s.newFrame(parent, view, msg)

	s.frames = append(s.frames, f)
	defer func() {
		s.frames = s.frames[:len(s.frames)-1]
	}()

	f.run()

	return f.finish()
}

func (s *session) newFrame(parent *frame, view runtime.StateView, msg *runtime.Contract) *frame {
	f := &frame{
		s:           s,
		index:       len(s.frames),
		parent:      -1,
		msg:         msg,
		view:        view,
		code:        msg.Code,
		stack:       newStack(),
		memory:      newMemory(),
		energyLimit: msg.Energy,
		result:      &runtime.FrameResult{},
	}

	if parent != nil {
		f.parent = parent.index
	}

	f.bitmap = s.vm.jumpdests(msg)

	return f
}

func (s *session) captureCallStart(msg *runtime.Contract) {
	if s.tracer == nil {
		return
	}

	s.tracer.CallStart(
		msg.Depth+1,
		msg.Caller,
		msg.Address,
		int(msg.Type),
		msg.Energy,
		msg.Value,
		msg.Input,
	)
}

func (s *session) captureCallEnd(msg *runtime.Contract, result *runtime.FrameResult) {
	if s.tracer == nil {
		return
	}

	s.tracer.CallEnd(msg.Depth+1, result.ReturnValue, result.EnergyUsed, result.Err)
}
