package vm

import (
	"sync"

	"github.com/holiman/uint256"
)

var stackPool = sync.Pool{
	New: func() interface{} {
		return &Stack{data: make([]uint256.Int, 0, 16)}
	},
}

// Stack is the operand stack of a frame. Arity and capacity are checked by
// the interpreter before an instruction runs, so the accessors do not.
type Stack struct {
	data []uint256.Int
}

func newStack() *Stack {
	s, _ := stackPool.Get().(*Stack)

	return s
}

func returnStack(s *Stack) {
	s.data = s.data[:0]
	stackPool.Put(s)
}

func (s *Stack) Data() []uint256.Int {
	return s.data
}

func (s *Stack) push(d *uint256.Int) {
	s.data = append(s.data, *d)
}

// push1 pushes a zero word and returns it for in-place assignment
func (s *Stack) push1() *uint256.Int {
	s.data = append(s.data, uint256.Int{})

	return &s.data[len(s.data)-1]
}

func (s *Stack) pop() (ret uint256.Int) {
	ret = s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]

	return
}

func (s *Stack) len() int {
	return len(s.data)
}

func (s *Stack) swap(n int) {
	s.data[s.len()-n], s.data[s.len()-1] = s.data[s.len()-1], s.data[s.len()-n]
}

func (s *Stack) dup(n int) {
	s.push(&s.data[s.len()-n])
}

func (s *Stack) peek() *uint256.Int {
	return &s.data[s.len()-1]
}

// Back returns the n'th item in stack
func (s *Stack) Back(n int) *uint256.Int {
	return &s.data[s.len()-n-1]
}
