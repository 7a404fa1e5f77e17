package vm

import (
	"math"

	"github.com/holiman/uint256"

	"github.com/energyvm/energy-edge/types"
)

// toAddress takes the low 20 bytes of a word
func toAddress(w *uint256.Int) types.Address {
	return types.Address(w.Bytes20())
}

func toHash(w *uint256.Int) types.Hash {
	return types.Hash(w.Bytes32())
}

// toInt64 narrows a word holding an amount, failing above math.MaxInt64
func toInt64(w *uint256.Int) (int64, bool) {
	if !w.IsUint64() || w.Uint64() > math.MaxInt64 {
		return 0, false
	}

	return int64(w.Uint64()), true
}
