// stack.go provides a linked list type stack that holds elements of any type.
// The bottom element is the first entry into the stack, while the top is
// the last entry to be added to the stack.

package util

import "sync"

// StackElement holds data in the Stack linked list.
type StackElement[T any] struct {
	E    T                // Data held by stack entry.
	prev *StackElement[T] // Pointer to the entry below this StackElement.
}

// Stack is a linked list stack. The zero value is an empty stack ready for use.
type Stack[T any] struct {
	top *StackElement[T] // The last element to be added to the stack.
	mx  sync.Mutex       // For synchronising multiple worker threads to one stack.
}

// Push adds a new element to the top of the stack.
func (s *Stack[T]) Push(e T) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.top = &StackElement[T]{
		E:    e,
		prev: s.top,
	}
}

// Pop removes and returns the last inserted element on the stack.
// The boolean is false if the stack was empty.
func (s *Stack[T]) Pop() (T, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.top == nil {
		var zero T
		return zero, false
	}
	e := s.top
	s.top = e.prev
	return e.E, true
}
