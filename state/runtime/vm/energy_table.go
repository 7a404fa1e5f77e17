package vm

import (
	"math/bits"

	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/energyvm/energy-edge/types"
	"github.com/holiman/uint256"
)

func safeAdd(x, y uint64) (uint64, bool) {
	sum, carry := bits.Add64(x, y, 0)

	return sum, carry != 0
}

func safeMul(x, y uint64) (uint64, bool) {
	hi, lo := bits.Mul64(x, y)

	return lo, hi != 0
}

// wordCost prices size bytes at perWord for each started word
func wordCost(size *uint256.Int, perWord uint64) (uint64, error) {
	if !size.IsUint64() {
		return 0, runtime.ErrOutOfEnergy
	}

	cost, overflow := safeMul(numWords(size.Uint64()), perWord)
	if overflow {
		return 0, runtime.ErrOutOfEnergy
	}

	return cost, nil
}

func pureMemoryEnergy(f *frame, memorySize uint64) (uint64, error) {
	return memoryEnergyCost(f.memory, memorySize)
}

// memoryCopierEnergy creates the energy function for instructions copying
// the number of bytes found at stackpos into memory
func memoryCopierEnergy(stackpos int) energyFunc {
	return func(f *frame, memorySize uint64) (uint64, error) {
		energy, err := memoryEnergyCost(f.memory, memorySize)
		if err != nil {
			return 0, err
		}

		words, err := wordCost(f.stack.Back(stackpos), CopyEnergy)
		if err != nil {
			return 0, err
		}

		if energy, overflow := safeAdd(energy, words); !overflow {
			return energy, nil
		}

		return 0, runtime.ErrOutOfEnergy
	}
}

var (
	energyCallDataCopy   = memoryCopierEnergy(2)
	energyCodeCopy       = memoryCopierEnergy(2)
	energyExtCodeCopy    = memoryCopierEnergy(3)
	energyReturnDataCopy = memoryCopierEnergy(2)
)

func energyExp(f *frame, _ uint64) (uint64, error) {
	exponentBytes := uint64(f.stack.Back(1).ByteLen())

	return exponentBytes * ExpByteEnergy, nil
}

func energySha3(f *frame, memorySize uint64) (uint64, error) {
	energy, err := memoryEnergyCost(f.memory, memorySize)
	if err != nil {
		return 0, err
	}

	words, err := wordCost(f.stack.Back(1), Sha3WordEnergy)
	if err != nil {
		return 0, err
	}

	if energy, overflow := safeAdd(energy, words); !overflow {
		return energy, nil
	}

	return 0, runtime.ErrOutOfEnergy
}

func energyCreate2(f *frame, memorySize uint64) (uint64, error) {
	energy, err := memoryEnergyCost(f.memory, memorySize)
	if err != nil {
		return 0, err
	}

	words, err := wordCost(f.stack.Back(2), Sha3WordEnergy)
	if err != nil {
		return 0, err
	}

	if energy, overflow := safeAdd(energy, words); !overflow {
		return energy, nil
	}

	return 0, runtime.ErrOutOfEnergy
}

// energySStore prices a storage write by the transition it makes:
// zero to non-zero costs SET, non-zero to zero costs CLEAR, anything else RESET
func energySStore(f *frame, _ uint64) (uint64, error) {
	key := toHash(f.stack.Back(0))
	current := f.view.GetStorage(f.msg.Address, key)

	switch value := f.stack.Back(1); {
	case current == types.ZeroHash && !value.IsZero():
		return SstoreSetEnergy, nil
	case current != types.ZeroHash && value.IsZero():
		return SstoreClearEnergy, nil
	default:
		return SstoreResetEnergy, nil
	}
}

func makeEnergyLog(n uint64) energyFunc {
	return func(f *frame, memorySize uint64) (uint64, error) {
		requestedSize, overflow := f.stack.Back(1).Uint64WithOverflow()
		if overflow {
			return 0, runtime.ErrOutOfEnergy
		}

		energy, err := memoryEnergyCost(f.memory, memorySize)
		if err != nil {
			return 0, err
		}

		var total, dataEnergy uint64

		if total, overflow = safeAdd(energy, n*LogTopicEnergy); overflow {
			return 0, runtime.ErrOutOfEnergy
		}

		if dataEnergy, overflow = safeMul(requestedSize, LogDataEnergy); overflow {
			return 0, runtime.ErrOutOfEnergy
		}

		if total, overflow = safeAdd(total, dataEnergy); overflow {
			return 0, runtime.ErrOutOfEnergy
		}

		return total, nil
	}
}

// callAllowance is the energy handed to a child frame: what was requested,
// capped to what the caller has left once the call itself is paid
func callAllowance(available, cost uint64, requested *uint256.Int) (uint64, error) {
	if available < cost {
		return 0, runtime.ErrOutOfEnergy
	}

	left := available - cost
	if !requested.IsUint64() || requested.Uint64() > left {
		return left, nil
	}

	return requested.Uint64(), nil
}

// makeCallEnergy builds the dynamic price of a call instruction. valuePos is the
// stack position of the transferred amount (-1 when none is transferred),
// newAccount tells whether funding a missing account is charged.
func makeCallEnergy(valuePos int, newAccount bool) energyFunc {
	return func(f *frame, memorySize uint64) (uint64, error) {
		var (
			energy   uint64
			overflow bool
		)

		if valuePos >= 0 && !f.stack.Back(valuePos).IsZero() {
			energy = CallValueTransfer

			if newAccount {
				to := toAddress(f.stack.Back(1))
				if !f.view.AccountExists(to) {
					energy += CallNewAccount
				}
			}
		}

		memoryEnergy, err := memoryEnergyCost(f.memory, memorySize)
		if err != nil {
			return 0, err
		}

		if energy, overflow = safeAdd(energy, memoryEnergy); overflow {
			return 0, runtime.ErrOutOfEnergy
		}

		f.callAllowance, err = callAllowance(f.energyLeft(), energy, f.stack.Back(0))
		if err != nil {
			return 0, err
		}

		if energy, overflow = safeAdd(energy, f.callAllowance); overflow {
			return 0, runtime.ErrOutOfEnergy
		}

		return energy, nil
	}
}

var (
	energyCall         = makeCallEnergy(2, true)
	energyCallCode     = makeCallEnergy(2, false)
	energyCallToken    = makeCallEnergy(2, true)
	energyDelegateCall = makeCallEnergy(-1, false)
	energyStaticCall   = makeCallEnergy(-1, false)
)

func memorySha3(s *Stack) (uint64, bool) {
	return calcMemSize64(s.Back(0), s.Back(1))
}

func memoryCallDataCopy(s *Stack) (uint64, bool) {
	return calcMemSize64(s.Back(0), s.Back(2))
}

func memoryReturnDataCopy(s *Stack) (uint64, bool) {
	return calcMemSize64(s.Back(0), s.Back(2))
}

func memoryCodeCopy(s *Stack) (uint64, bool) {
	return calcMemSize64(s.Back(0), s.Back(2))
}

func memoryExtCodeCopy(s *Stack) (uint64, bool) {
	return calcMemSize64(s.Back(1), s.Back(3))
}

func memoryMLoad(s *Stack) (uint64, bool) {
	return calcMemSize64WithUint(s.Back(0), 32)
}

func memoryMStore8(s *Stack) (uint64, bool) {
	return calcMemSize64WithUint(s.Back(0), 1)
}

func memoryMStore(s *Stack) (uint64, bool) {
	return calcMemSize64WithUint(s.Back(0), 32)
}

func memoryCreate(s *Stack) (uint64, bool) {
	return calcMemSize64(s.Back(1), s.Back(2))
}

func memoryCreate2(s *Stack) (uint64, bool) {
	return calcMemSize64(s.Back(1), s.Back(2))
}

// memoryCallArgs sizes a call by the larger of its input and output regions,
// which start at stack position in
func memoryCallArgs(in int) memorySizeFunc {
	return func(s *Stack) (uint64, bool) {
		x, overflow := calcMemSize64(s.Back(in+2), s.Back(in+3))
		if overflow {
			return 0, true
		}

		y, overflow := calcMemSize64(s.Back(in), s.Back(in+1))
		if overflow {
			return 0, true
		}

		if x > y {
			return x, false
		}

		return y, false
	}
}

var (
	memoryCall         = memoryCallArgs(3)
	memoryCallToken    = memoryCallArgs(4)
	memoryDelegateCall = memoryCallArgs(2)
	memoryStaticCall   = memoryCallArgs(2)
)

func memoryReturn(s *Stack) (uint64, bool) {
	return calcMemSize64(s.Back(0), s.Back(1))
}

func memoryRevert(s *Stack) (uint64, bool) {
	return calcMemSize64(s.Back(0), s.Back(1))
}

func memoryLog(s *Stack) (uint64, bool) {
	return calcMemSize64(s.Back(0), s.Back(1))
}
