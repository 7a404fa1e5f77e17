package vm

import (
	"math"

	"github.com/energyvm/energy-edge/state/runtime"
	"github.com/holiman/uint256"
)

// Memory is the byte-addressable, word-aligned scratch space of a frame
type Memory struct {
	store          []byte
	lastEnergyCost uint64
}

func newMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Len() int {
	return len(m.store)
}

func (m *Memory) Data() []byte {
	return m.store
}

func (m *Memory) reset() {
	m.store = m.store[:0]
	m.lastEnergyCost = 0
}

func roundUpToWord(n uint64) uint64 {
	return (n + 31) / 32 * 32
}

func numWords(n uint64) uint64 {
	if n > math.MaxUint64-31 {
		return math.MaxUint64/32 + 1
	}

	return (n + 31) / 32
}

// memoryEnergyCost returns the incremental energy to grow the memory to
// newSize bytes: the cumulative price 3*w + w*w/512 minus what was
// already charged.
func memoryEnergyCost(mem *Memory, newSize uint64) (uint64, error) {
	if newSize == 0 {
		return 0, nil
	}

	if newSize > MemoryLimit {
		return 0, runtime.ErrMemoryOverflow
	}

	words := numWords(newSize)
	newSize = words * 32

	if newSize <= uint64(mem.Len()) {
		return 0, nil
	}

	square := words * words
	linCoef := words * MemoryEnergy
	quadCoef := square / QuadCoeffDiv
	newTotalFee := linCoef + quadCoef

	fee := newTotalFee - mem.lastEnergyCost
	mem.lastEnergyCost = newTotalFee

	return fee, nil
}

// Resize grows the memory to size bytes, it never shrinks
func (m *Memory) Resize(size uint64) {
	if uint64(m.Len()) < size {
		m.store = append(m.store, make([]byte, size-uint64(m.Len()))...)
	}
}

// Expand charges and grows the memory so that [offset, offset+size) is
// addressable. A zero size never expands.
func (m *Memory) Expand(offset, size uint64) (uint64, error) {
	if size == 0 {
		return 0, nil
	}

	end := offset + size
	if end < offset {
		return 0, runtime.ErrMemoryOverflow
	}

	fee, err := memoryEnergyCost(m, end)
	if err != nil {
		return 0, err
	}

	m.Resize(roundUpToWord(end))

	return fee, nil
}

// Set sets offset + size to value
func (m *Memory) Set(offset, size uint64, value []byte) {
	if size > 0 {
		copy(m.store[offset:offset+size], value)
	}
}

// Set32 sets the 32 bytes starting at offset to the value of val
func (m *Memory) Set32(offset uint64, val *uint256.Int) {
	val.WriteToSlice(m.store[offset : offset+32])
}

// GetCopy returns offset + size as a new slice
func (m *Memory) GetCopy(offset, size int64) []byte {
	if size == 0 {
		return nil
	}

	cpy := make([]byte, size)
	copy(cpy, m.store[offset:offset+size])

	return cpy
}

// GetPtr returns the slice backing offset + size
func (m *Memory) GetPtr(offset, size int64) []byte {
	if size == 0 {
		return nil
	}

	return m.store[offset : offset+size]
}

// calcMemSize64 calculates the required memory size, and returns
// the size and whether the result overflowed uint64
func calcMemSize64(off, l *uint256.Int) (uint64, bool) {
	if !l.IsUint64() {
		return 0, true
	}

	return calcMemSize64WithUint(off, l.Uint64())
}

func calcMemSize64WithUint(off *uint256.Int, length64 uint64) (uint64, bool) {
	// if length is zero, memsize is always zero, regardless of offset
	if length64 == 0 {
		return 0, false
	}

	offset64, overflow := off.Uint64WithOverflow()
	if overflow {
		return 0, true
	}

	val := offset64 + length64

	return val, val < offset64
}
