package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/pkg/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Writer buffers the output of one function in a strings.Builder.
// When the Close method is called the buffer is sent to the output
// listener, tagged with the Writer's sequence number.
type Writer struct {
	sb  strings.Builder
	seq int
	c   chan<- chunk
}

// Output receives chunks from worker threads and writes them in sequence order, regardless of the order in which
// the workers finish.
type Output struct {
	c    chan chunk
	done chan error
}

// chunk is a piece of output produced by the Writer with sequence number seq.
type chunk struct {
	seq  int
	text string
}

// ---------------------
// ----- Functions -----
// ---------------------

// Write writes a format string to the Writer's buffer.
func (w *Writer) Write(format string, args ...interface{}) {
	w.sb.WriteString(fmt.Sprintf(format, args...))
}

// Line writes s followed by a newline, adding the newline only if s does not end with one.
func (w *Writer) Line(s string) {
	w.sb.WriteString(s)
	if !strings.HasSuffix(s, "\n") {
		w.sb.WriteRune('\n')
	}
}

// Close sends the Writer's buffer to the output listener and detaches the Writer. The output of a Writer is
// released in one piece; nothing may be written after Close.
func (w *Writer) Close() {
	w.c <- chunk{seq: w.seq, text: w.sb.String()}
	w.sb = strings.Builder{}
	w.c = nil
}

// ReadSource reads the unit file named by opt.Src, or stdin if Src is "-".
func ReadSource(opt Options) ([]byte, error) {
	if opt.Src == "-" {
		b, err := io.ReadAll(bufio.NewReader(os.Stdin))
		return b, errors.Wrap(err, "stdin")
	}
	b, err := os.ReadFile(opt.Src)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errdefs.ErrNotFound, err.Error())
	}
	return b, err
}

// ListenWrite starts listening for worker thread outputs. The received data is written to w in sequence order:
// chunk n is held back until every chunk with a smaller sequence number was written or the Output is closed. t
// is the number of chunks buffered before a Writer blocks.
func ListenWrite(t int, w io.Writer) *Output {
	o := &Output{
		c:    make(chan chunk, t),
		done: make(chan error, 1),
	}
	bw := bufio.NewWriter(w)

	go func() {
		defer close(o.done)
		var werr error
		write := func(s string) {
			if werr == nil {
				_, werr = bw.WriteString(s)
			}
		}

		pending := make(map[int]string)
		next := 0
		for e1 := range o.c {
			pending[e1.seq] = e1.text
			for s, ok := pending[next]; ok; s, ok = pending[next] {
				write(s)
				delete(pending, next)
				next++
			}
		}

		// Sequence numbers that never produced output leave gaps; write the rest in order.
		keys := make([]int, 0, len(pending))
		for e1 := range pending {
			keys = append(keys, e1)
		}
		sort.Ints(keys)
		for _, e1 := range keys {
			write(pending[e1])
		}
		if werr == nil {
			werr = bw.Flush()
		}
		o.done <- werr
	}()
	return o
}

// NewWriter returns a Writer whose output is placed at position seq.
func (o *Output) NewWriter(seq int) *Writer {
	return &Writer{seq: seq, c: o.c}
}

// Close stops the listener once all buffered chunks are written and returns the first write error. No Writer of o
// may be used after Close.
func (o *Output) Close() error {
	close(o.c)
	return <-o.done
}
