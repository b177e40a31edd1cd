// features.go provides the set of target extensions lowering rules may rely on.

package riscv

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"golang.org/x/sys/cpu"

	"rvlower/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Feature names a target extension flag.
type Feature string

// FeatureSet is an immutable set of enabled target extensions. The zero value has no extensions enabled.
type FeatureSet struct {
	set mapset.Set[Feature]
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	HasZbb Feature = "has_zbb" // Basic bit manipulation.
	HasZba Feature = "has_zba" // Address generation.
	HasZbs Feature = "has_zbs" // Single bit instructions.
	HasV   Feature = "has_v"   // Vector extension.
	HasM   Feature = "has_m"   // Integer multiply and divide.
	HasC   Feature = "has_c"   // Compressed instructions.
)

// Known lists every feature flag understood by ParseFeatures.
var Known = [...]Feature{HasZbb, HasZba, HasZbs, HasV, HasM, HasC}

// ---------------------
// ----- Functions -----
// ---------------------

// NewFeatureSet returns a FeatureSet holding the given flags.
func NewFeatureSet(flags ...Feature) FeatureSet {
	return FeatureSet{set: mapset.NewThreadUnsafeSet(flags...)}
}

// ParseFeatures parses a comma separated list of feature flags. Flags may be given with or without the "has_"
// prefix. Unknown flags are rejected; querying an unknown flag on a FeatureSet is not an error.
func ParseFeatures(s string) (FeatureSet, error) {
	var flags []Feature
	for _, e1 := range strings.Split(s, ",") {
		e1 = strings.ToLower(strings.TrimSpace(e1))
		if len(e1) < 1 {
			continue
		}
		if !strings.HasPrefix(e1, "has_") {
			e1 = "has_" + e1
		}
		f := Feature(e1)
		if !isKnown(f) {
			return FeatureSet{}, errors.Wrapf(ir.ErrUnsupportedOperation, "unknown target feature %q", e1)
		}
		flags = append(flags, f)
	}
	return NewFeatureSet(flags...), nil
}

// HostFeatures returns the extensions reported by the CPU running the program. It returns an empty set on
// anything but riscv64.
func HostFeatures() FeatureSet {
	var flags []Feature
	if cpu.RISCV64.HasZbb {
		flags = append(flags, HasZbb)
	}
	if cpu.RISCV64.HasZba {
		flags = append(flags, HasZba)
	}
	if cpu.RISCV64.HasZbs {
		flags = append(flags, HasZbs)
	}
	if cpu.RISCV64.HasV {
		flags = append(flags, HasV)
	}
	if cpu.RISCV64.HasC {
		flags = append(flags, HasC)
	}
	return NewFeatureSet(flags...)
}

// Has returns true if the flag f is enabled. Unknown flags are reported as absent.
func (fs FeatureSet) Has(f Feature) bool {
	if fs.set == nil {
		return false
	}
	return fs.set.Contains(f)
}

// Union returns a new FeatureSet holding the flags of both fs and o.
func (fs FeatureSet) Union(o FeatureSet) FeatureSet {
	res := NewFeatureSet(fs.Flags()...)
	for _, e1 := range o.Flags() {
		res.set.Add(e1)
	}
	return res
}

// Flags returns the enabled flags in lexical order.
func (fs FeatureSet) Flags() []Feature {
	if fs.set == nil {
		return nil
	}
	res := fs.set.ToSlice()
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// String returns the enabled flags as a comma separated list.
func (fs FeatureSet) String() string {
	flags := fs.Flags()
	s := make([]string, len(flags))
	for i1, e1 := range flags {
		s[i1] = string(e1)
	}
	return strings.Join(s, ",")
}

// isKnown returns true if f is listed in Known.
func isKnown(f Feature) bool {
	for _, e1 := range Known {
		if e1 == f {
			return true
		}
	}
	return false
}
