package precompiled

import (
	"crypto/sha256"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck

	"github.com/energyvm/energy-edge/crypto"
	"github.com/energyvm/energy-edge/helper/common"
	"github.com/energyvm/energy-edge/helper/keccak"
)

type ecrecover struct{}

func (e *ecrecover) energy(_ []byte) uint64 {
	return 3000
}

// run returns the left padded signer address, or nothing when the
// signature does not recover
func (e *ecrecover) run(input []byte) ([]byte, error) {
	input = get(input, 128)

	// recover the value v. Expect all zeros except the last byte
	for i := 32; i < 63; i++ {
		if input[i] != 0 {
			return nil, nil
		}
	}

	if input[63] != 27 && input[63] != 28 {
		return nil, nil
	}

	sig := make([]byte, crypto.SignatureSize)
	copy(sig, input[64:128])
	sig[64] = input[63] - 27

	pubKey, err := crypto.Ecrecover(input[:32], sig)
	if err != nil {
		return nil, nil
	}

	dst := keccak.Keccak256(nil, pubKey[1:])

	return common.LeftPad(dst[12:], 32), nil
}

type identity struct{}

func (i *identity) energy(input []byte) uint64 {
	return baseEnergyCalc(input, 15, 3)
}

func (i *identity) run(in []byte) ([]byte, error) {
	return in, nil
}

type sha256h struct{}

func (s *sha256h) energy(input []byte) uint64 {
	return baseEnergyCalc(input, 60, 12)
}

func (s *sha256h) run(input []byte) ([]byte, error) {
	h := sha256.Sum256(input)

	return h[:], nil
}

type ripemd160h struct{}

func (r *ripemd160h) energy(input []byte) uint64 {
	return baseEnergyCalc(input, 600, 120)
}

func (r *ripemd160h) run(input []byte) ([]byte, error) {
	ripemd := ripemd160.New()
	ripemd.Write(input)

	return common.LeftPad(ripemd.Sum(nil), 32), nil
}

func baseEnergyCalc(input []byte, base, word uint64) uint64 {
	return base + uint64(len(input)+31)/32*word
}
