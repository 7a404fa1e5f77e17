package types

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"

	"github.com/energyvm/energy-edge/helper/hex"
	"github.com/mr-tron/base58"
)

const (
	HashLength    = 32
	AddressLength = 20

	// AddressPrefix is the network byte prepended to an address in its base58check form
	AddressPrefix = byte(0x41)
)

var (
	ZeroAddress = Address{}
	ZeroHash    = Hash{}

	ErrInvalidBase58Address = errors.New("invalid base58 address")
)

type Hash [HashLength]byte

type Address [AddressLength]byte

func min(i, j int) int {
	if i < j {
		return i
	}

	return j
}

func BytesToHash(b []byte) Hash {
	var h Hash

	size := len(b)
	min := min(size, HashLength)

	copy(h[HashLength-min:], b[len(b)-min:])

	return h
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) String() string {
	return hex.EncodeToHex(h[:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash) UnmarshalText(input []byte) error {
	buf, err := hex.DecodeHex(string(input))
	if err != nil {
		return err
	}

	*h = BytesToHash(buf)

	return nil
}

func BytesToAddress(b []byte) Address {
	var a Address

	size := len(b)
	min := min(size, AddressLength)

	copy(a[AddressLength-min:], b[len(b)-min:])

	return a
}

func StringToHash(str string) Hash {
	return BytesToHash(stringToBytes(str))
}

func StringToAddress(str string) Address {
	return BytesToAddress(stringToBytes(str))
}

func (a Address) Bytes() []byte {
	return a[:]
}

func (a Address) String() string {
	return hex.EncodeToHex(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(input []byte) error {
	addr, err := ParseAddress(string(input))
	if err != nil {
		return err
	}

	*a = addr

	return nil
}

// Base58 renders the address in its prefixed base58check form
func (a Address) Base58() string {
	payload := make([]byte, 0, AddressLength+5)
	payload = append(payload, AddressPrefix)
	payload = append(payload, a[:]...)
	payload = append(payload, checksum(payload)...)

	return base58.Encode(payload)
}

// AddressFromBase58 decodes a prefixed base58check address
func AddressFromBase58(str string) (Address, error) {
	raw, err := base58.Decode(str)
	if err != nil {
		return ZeroAddress, fmt.Errorf("%w: %v", ErrInvalidBase58Address, err)
	}

	if len(raw) != AddressLength+5 || raw[0] != AddressPrefix {
		return ZeroAddress, ErrInvalidBase58Address
	}

	payload, sum := raw[:AddressLength+1], raw[AddressLength+1:]
	if string(checksum(payload)) != string(sum) {
		return ZeroAddress, fmt.Errorf("%w: bad checksum", ErrInvalidBase58Address)
	}

	return BytesToAddress(payload[1:]), nil
}

// ParseAddress accepts either the hex or the base58check form of an address
func ParseAddress(str string) (Address, error) {
	if strings.HasPrefix(str, "0x") {
		buf, err := hex.DecodeHex(str)
		if err != nil {
			return ZeroAddress, err
		}

		if len(buf) != AddressLength {
			return ZeroAddress, fmt.Errorf("expected %d address bytes, got %d", AddressLength, len(buf))
		}

		return BytesToAddress(buf), nil
	}

	return AddressFromBase58(str)
}

func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])

	return second[:4]
}

func stringToBytes(str string) []byte {
	str = strings.TrimPrefix(str, "0x")
	if len(str)%2 == 1 {
		str = "0" + str
	}

	b, _ := hex.DecodeHex(str)

	return b
}
