// label.go provides a thread safe way of generating assembly labels for jumps.

package util

import (
	"fmt"
	"sync"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Labels hands out unique label names. Each function being lowered owns its own Labels, so label names are
// deterministic regardless of how many functions are lowered in parallel.
type Labels struct {
	indices [LabelJoin + 1]int // Numerical suffix of the next label per type.
	mx      sync.Mutex         // For synchronising worker threads.
}

// ---------------------
// ----- Constants -----
// ---------------------

// Label types.
const (
	LabelTaken = iota // Target of a branch taken when a select condition holds.
	LabelJoin         // Join point after both arms of a select.
)

// labelPrefixes stores the string literal prefixes for labels of types.
var labelPrefixes = [LabelJoin + 1]string{
	".Ltaken_",
	".Ljoin_",
}

// ---------------------
// ----- functions -----
// ---------------------

// New returns a new label of type typ.
func (l *Labels) New(typ int) string {
	l.mx.Lock()
	defer l.mx.Unlock()
	if typ < 0 || typ >= len(l.indices) {
		panic(fmt.Sprintf("BUG: unknown label type %d", typ))
	}
	s := fmt.Sprintf("%s%d", labelPrefixes[typ], l.indices[typ])
	l.indices[typ]++
	return s
}
