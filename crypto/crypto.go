package crypto

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	btc_ecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/energyvm/energy-edge/helper/keccak"
	"github.com/energyvm/energy-edge/types"
	"github.com/umbracle/fastrlp"
)

const (
	// SignatureSize is the size of an [R || S || V] signature
	SignatureSize = 65

	recoveryIDOffset = 27
)

var (
	errHashOfInvalidLength = errors.New("message hash of invalid length")
	errInvalidSignature    = errors.New("invalid signature")
)

// Keccak256 calculates the Keccak256 of the concatenated inputs
func Keccak256(v ...[]byte) []byte {
	return keccak.Keccak256(nil, v...)
}

// DeployAddress returns the address of a contract deployed by a top level
// CreateContractTx: keccak(rlp[txHash, owner])[12:]
func DeployAddress(txHash types.Hash, owner types.Address) types.Address {
	a := fastrlp.DefaultArenaPool.Get()
	defer fastrlp.DefaultArenaPool.Put(a)

	v := a.NewArray()
	v.Set(a.NewBytes(txHash.Bytes()))
	v.Set(a.NewBytes(owner.Bytes()))

	return types.BytesToAddress(keccak.Keccak256Rlp(nil, v)[12:])
}

// CreateAddress returns the address of a contract created by the CREATE opcode.
// The nonce is the transaction scoped creation counter.
func CreateAddress(txHash types.Hash, caller types.Address, nonce uint64) types.Address {
	a := fastrlp.DefaultArenaPool.Get()
	defer fastrlp.DefaultArenaPool.Put(a)

	v := a.NewArray()
	v.Set(a.NewBytes(txHash.Bytes()))
	v.Set(a.NewBytes(caller.Bytes()))
	v.Set(a.NewUint(nonce))

	return types.BytesToAddress(keccak.Keccak256Rlp(nil, v)[12:])
}

var create2Prefix = []byte{types.AddressPrefix}

// CreateAddress2 returns the address of a contract created by the CREATE2 opcode
func CreateAddress2(caller types.Address, salt [32]byte, initCode []byte) types.Address {
	return types.BytesToAddress(
		Keccak256(create2Prefix, caller.Bytes(), salt[:], Keccak256(initCode))[12:],
	)
}

// PubKeyToAddress returns the address of an uncompressed public key
func PubKeyToAddress(pub *btcec.PublicKey) types.Address {
	buf := pub.SerializeUncompressed()

	return types.BytesToAddress(Keccak256(buf[1:])[12:])
}

// GenerateKey generates a new secp256k1 private key
func GenerateKey() (*btcec.PrivateKey, error) {
	return btcec.NewPrivateKey()
}

// Sign produces an [R || S || V] signature with V in {0, 1}
func Sign(priv *btcec.PrivateKey, hash []byte) ([]byte, error) {
	if len(hash) != types.HashLength {
		return nil, fmt.Errorf("hash is required to be exactly %d bytes (%d)", types.HashLength, len(hash))
	}

	sig, err := btc_ecdsa.SignCompact(priv, hash, false)
	if err != nil {
		return nil, err
	}

	// move the recovery id from the front to the back
	out := make([]byte, SignatureSize)
	copy(out, sig[1:])
	out[SignatureSize-1] = sig[0] - recoveryIDOffset

	return out, nil
}

// Ecrecover returns the uncompressed public key that produced the signature
func Ecrecover(hash, sig []byte) ([]byte, error) {
	pub, err := RecoverPubKey(sig, hash)
	if err != nil {
		return nil, err
	}

	return pub.SerializeUncompressed(), nil
}

// RecoverPubKey verifies the compact signature "signature" of "hash"
func RecoverPubKey(signature, hash []byte) (*btcec.PublicKey, error) {
	if len(hash) != types.HashLength {
		return nil, errHashOfInvalidLength
	}

	if len(signature) != SignatureSize || signature[SignatureSize-1] > 1 {
		return nil, errInvalidSignature
	}

	btcsig := make([]byte, SignatureSize)
	btcsig[0] = signature[SignatureSize-1] + recoveryIDOffset
	copy(btcsig[1:], signature)

	pub, _, err := btc_ecdsa.RecoverCompact(btcsig, hash)
	if err != nil {
		return nil, err
	}

	return pub, nil
}
