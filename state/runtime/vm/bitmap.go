package vm

import "github.com/energyvm/energy-edge/helper/common"

const bitmapSize = 8

// bitmap marks the valid JUMPDEST positions of a code segment
type bitmap struct {
	buf []byte
}

func (b *bitmap) isSet(i uint64) bool {
	if i/bitmapSize >= uint64(len(b.buf)) {
		return false
	}

	return b.buf[i/bitmapSize]&(1<<(i%bitmapSize)) != 0
}

func (b *bitmap) set(i uint64) {
	b.buf[i/bitmapSize] |= 1 << (i % bitmapSize)
}

func (b *bitmap) setCode(code []byte) {
	codeSize := len(code)
	b.buf = common.ExtendByteSlice(b.buf, codeSize/bitmapSize+1)

	for i := range b.buf {
		b.buf[i] = 0
	}

	for i := 0; i < codeSize; {
		c := code[i]

		if isPushOp(c) {
			// skip the push payload
			i += int(c) - int(PUSH1) + 2
		} else {
			if OpCode(c) == JUMPDEST {
				b.set(uint64(i))
			}
			i++
		}
	}
}

func analyzeCode(code []byte) *bitmap {
	b := &bitmap{}
	b.setCode(code)

	return b
}
