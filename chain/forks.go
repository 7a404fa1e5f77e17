package chain

// predefined protocol upgrades
const (
	// VM enables contract deployment and execution altogether
	VM = "vm"

	// TransferToken enables CALLTOKEN, TOKENBALANCE, CALLTOKENVALUE and CALLTOKENID
	TransferToken = "transferToken"

	// Constantinople enables SHL, SHR, SAR, CREATE2 and EXTCODEHASH
	Constantinople = "constantinople"

	// Solidity059 enables ISCONTRACT
	Solidity059 = "solidity059"

	// Istanbul enables CHAINID and SELFBALANCE
	Istanbul = "istanbul"

	// EnergyLimitFixRatio switches the energy limit and billing formulas
	// to the fixed ratio rules. One way.
	EnergyLimitFixRatio = "energyLimitFixRatio"

	// AdaptiveEnergy enables the adaptive network energy ceiling
	AdaptiveEnergy = "adaptiveEnergy"
)

var availableForks = []string{
	VM,
	TransferToken,
	Constantinople,
	Solidity059,
	Istanbul,
	EnergyLimitFixRatio,
	AdaptiveEnergy,
}

// Forks specifies when each upgrade is activated
type Forks map[string]*Fork

func (f *Forks) Is(name string, block uint64) bool {
	return active((*f)[name], block)
}

func (f *Forks) IsSupported(name string) bool {
	_, exists := (*f)[name]

	return exists
}

func (f *Forks) Copy() *Forks {
	out := make(Forks, len(*f))

	for name, fork := range *f {
		if fork != nil {
			out[name] = NewFork(uint64(*fork))
		}
	}

	return &out
}

func (f *Forks) At(block uint64) ForksInTime {
	return ForksInTime{
		VM:                  active((*f)[VM], block),
		TransferToken:       active((*f)[TransferToken], block),
		Constantinople:      active((*f)[Constantinople], block),
		Solidity059:         active((*f)[Solidity059], block),
		Istanbul:            active((*f)[Istanbul], block),
		EnergyLimitFixRatio: active((*f)[EnergyLimitFixRatio], block),
		AdaptiveEnergy:      active((*f)[AdaptiveEnergy], block),
	}
}

type Fork uint64

func NewFork(n uint64) *Fork {
	f := Fork(n)

	return &f
}

func (f Fork) Active(block uint64) bool {
	return block >= uint64(f)
}

// ForksInTime is the set of upgrades active at one block. It is passed by
// value into the interpreter and the resource model.
type ForksInTime struct {
	VM,
	TransferToken,
	Constantinople,
	Solidity059,
	Istanbul,
	EnergyLimitFixRatio,
	AdaptiveEnergy bool
}

var AllForksEnabled = &Forks{
	VM:                  NewFork(0),
	TransferToken:       NewFork(0),
	Constantinople:      NewFork(0),
	Solidity059:         NewFork(0),
	Istanbul:            NewFork(0),
	EnergyLimitFixRatio: NewFork(0),
	AdaptiveEnergy:      NewFork(0),
}

// AllForksInTime is AllForksEnabled at any block
var AllForksInTime = AllForksEnabled.At(0)

func active(ff *Fork, block uint64) bool {
	if ff == nil {
		return false
	}

	return ff.Active(block)
}

func IsForkAvailable(name string) bool {
	for _, f := range availableForks {
		if f == name {
			return true
		}
	}

	return false
}
