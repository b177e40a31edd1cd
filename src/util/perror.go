package util

import (
	"errors"
	"sync"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Perror provides a structure for listening for errors reported from parallel worker threads and means for retrieving
// errors when a parallel job has been completed.
type Perror struct {
	listen     chan error    // Channel for receiving error messages from worker threads.
	done       chan struct{} // Closed when the listener has drained listen.
	errors     []error       // Buffer of error messages.
	sync.Mutex               // For synchronising writes and reads.
}

// ----------------------
// ----- Constants ------
// ----------------------

// defaultBufferSize defines the fallback buffer size of the error array.
const defaultBufferSize = 16

// ---------------------
// ----- functions -----
// ---------------------

// NewPerror returns a pointer to a Perror struct with n number of pre-allocated slots for errors in the buffer.
func NewPerror(n int) *Perror {
	if n < 1 {
		n = defaultBufferSize
	}
	pe := Perror{
		listen: make(chan error),
		done:   make(chan struct{}),
		errors: make([]error, 0, n),
	}
	go pe.run()
	return &pe
}

// run collects errors from the listen channel until it is closed by Stop.
func (pe *Perror) run() {
	defer close(pe.done)
	for err := range pe.listen {
		pe.Lock()
		pe.errors = append(pe.errors, err)
		pe.Unlock()
	}
}

// Len returns the number of buffered errors.
func (pe *Perror) Len() int {
	pe.Lock()
	defer pe.Unlock()
	return len(pe.errors)
}

// Stop closes the error listener and waits until every appended error is buffered. Append must not be called
// after Stop.
func (pe *Perror) Stop() {
	close(pe.listen)
	<-pe.done
}

// Append sends the error message err to the error listener. <nil> errors are ignored.
func (pe *Perror) Append(err error) {
	if err != nil {
		pe.listen <- err
	}
}

// Errors returns a copy of the reported errors.
func (pe *Perror) Errors() []error {
	pe.Lock()
	defer pe.Unlock()
	return append([]error(nil), pe.errors...)
}

// Err returns all reported errors joined into one, or nil if none were reported. The result matches every
// reported error with errors.Is.
func (pe *Perror) Err() error {
	return errors.Join(pe.Errors()...)
}
