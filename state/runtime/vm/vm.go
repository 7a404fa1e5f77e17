package vm

import (
	"sync"

	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"

	"github.com/energyvm/energy-edge/chain"
	"github.com/energyvm/energy-edge/helper/keccak"
	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/state/runtime/precompiled"
	"github.com/energyvm/energy-edge/state/runtime/tracer"
	"github.com/energyvm/energy-edge/timeutils"
	"github.com/energyvm/energy-edge/types"
)

const codeAnalysisCacheSize = 1024

// Env is everything a transaction execution needs besides the state
type Env struct {
	Ctx      runtime.TxContext
	Forks    chain.ForksInTime
	Deadline timeutils.Deadline
	Tracer   tracer.Tracer

	// MaxNativeDepth bounds the nesting of frames on the host stack, zero disables it
	MaxNativeDepth int
}

// VM runs contract code. It is safe for concurrent use, every Execute
// call works on its own session.
type VM struct {
	logger      hclog.Logger
	precompiles *precompiled.Precompiled

	// analysis caches jump destination bitmaps by code hash
	analysis *lru.Cache

	tablesLock sync.Mutex
	tables     map[chain.ForksInTime]*JumpTable
}

func NewVM(logger hclog.Logger) *VM {
	analysis, _ := lru.New(codeAnalysisCacheSize)

	return &VM{
		logger:      logger.Named("vm"),
		precompiles: precompiled.NewPrecompiled(),
		analysis:    analysis,
		tables:      map[chain.ForksInTime]*JumpTable{},
	}
}

func (v *VM) jumpTable(forks chain.ForksInTime) *JumpTable {
	v.tablesLock.Lock()
	defer v.tablesLock.Unlock()

	tbl, ok := v.tables[forks]
	if !ok {
		tbl = NewJumpTable(forks)
		v.tables[forks] = tbl
	}

	return tbl
}

// jumpdests returns the JUMPDEST bitmap of the code msg runs. Init code is
// analysed on every run, deployed code once per hash.
func (v *VM) jumpdests(msg *runtime.Contract) *bitmap {
	if msg.Type.IsCreate() {
		return analyzeCode(msg.Code)
	}

	hash := types.BytesToHash(keccak.Keccak256(nil, msg.Code))
	if b, ok := v.analysis.Get(hash); ok {
		if bm, ok := b.(*bitmap); ok {
			return bm
		}
	}

	bm := analyzeCode(msg.Code)
	v.analysis.Add(hash, bm)

	return bm
}

// Execute runs the top level message msg against view. Nothing is committed
// to view when the returned result failed.
func (v *VM) Execute(env *Env, view runtime.StateView, msg *runtime.Contract) *runtime.FrameResult {
	s := &session{
		vm:       v,
		env:      env,
		table:    v.jumpTable(env.Forks),
		tracer:   env.Tracer,
		deadline: env.Deadline,
	}

	if s.tracer != nil {
		s.tracer.TxStart(msg.Energy)
	}

	var result *runtime.FrameResult
	if msg.Type.IsCreate() {
		result = s.create(nil, view, msg)
	} else {
		result = s.call(nil, view, msg)
	}

	if s.tracer != nil {
		s.tracer.TxEnd(result.EnergyLeft)
	}

	if result.Failed() {
		v.logger.Debug("execution failed", "to", msg.Address, "err", result.Err, "used", result.EnergyUsed)
	}

	return result
}
