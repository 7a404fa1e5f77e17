package keccak

import (
	"hash"

	"github.com/umbracle/fastrlp"
	"golang.org/x/crypto/sha3"
)

type hashImpl interface {
	hash.Hash
	Read(b []byte) (int, error)
}

// Keccak is the legacy keccak-256 hash with a scratch buffer for rlp values
type Keccak struct {
	buf  []byte
	tmp  []byte
	hash hashImpl
}

// NewKeccak256 returns a new keccak-256 hasher
func NewKeccak256() *Keccak {
	h, _ := sha3.NewLegacyKeccak256().(hashImpl)

	return &Keccak{
		hash: h,
		tmp:  make([]byte, h.Size()),
	}
}

// WriteRlp marshals the value and hashes it
func (k *Keccak) WriteRlp(dst []byte, v *fastrlp.Value) []byte {
	k.buf = v.MarshalTo(k.buf[:0])
	k.Write(k.buf)

	return k.Sum(dst)
}

// Write implements the hash interface
func (k *Keccak) Write(b []byte) (int, error) {
	return k.hash.Write(b)
}

// Reset implements the hash interface
func (k *Keccak) Reset() {
	k.buf = k.buf[:0]
	k.hash.Reset()
}

// Read hashes the content and returns the intermediate buffer.
func (k *Keccak) Read() []byte {
	_, _ = k.hash.Read(k.tmp)

	return k.tmp
}

// Sum implements the hash interface
func (k *Keccak) Sum(dst []byte) []byte {
	return k.hash.Sum(dst)
}
