package precompiled

import (
	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/types"
)

type contract interface {
	energy(input []byte) uint64
	run(input []byte) ([]byte, error)
}

// Precompiled holds the natively implemented contracts living at the
// lowest addresses
type Precompiled struct {
	contracts map[types.Address]contract
}

// NewPrecompiled creates the set of precompiled contracts
func NewPrecompiled() *Precompiled {
	p := &Precompiled{}
	p.setupContracts()

	return p
}

func (p *Precompiled) setupContracts() {
	p.register("1", &ecrecover{})
	p.register("2", &sha256h{})
	p.register("3", &ripemd160h{})
	p.register("4", &identity{})
}

func (p *Precompiled) register(addrStr string, b contract) {
	if len(p.contracts) == 0 {
		p.contracts = map[types.Address]contract{}
	}

	p.contracts[types.StringToAddress(addrStr)] = b
}

// CanRun reports whether addr is a precompiled contract
func (p *Precompiled) CanRun(addr types.Address) bool {
	_, ok := p.contracts[addr]

	return ok
}

// Run executes the precompiled contract at addr with the given energy allowance
func (p *Precompiled) Run(addr types.Address, input []byte, energy uint64) *runtime.FrameResult {
	contract := p.contracts[addr]
	cost := contract.energy(input)

	// in the case of not enough energy the whole allowance is spent
	if energy < cost {
		return &runtime.FrameResult{
			EnergyUsed: energy,
			Err:        runtime.ErrOutOfEnergy,
		}
	}

	returnValue, err := contract.run(input)
	if err != nil {
		return &runtime.FrameResult{
			EnergyUsed: energy,
			Err:        runtime.ErrPrecompileFailed,
		}
	}

	return &runtime.FrameResult{
		ReturnValue: returnValue,
		EnergyUsed:  cost,
		EnergyLeft:  energy - cost,
	}
}

// get returns the first size bytes of input, zero padded on the right
func get(input []byte, size int) []byte {
	buf := make([]byte, size)
	copy(buf, input)

	return buf
}
