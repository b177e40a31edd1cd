// unit.go reads compilation units from TOML documents of the form
//
//	[target]
//	features = ["has_zbb"]
//
//	[[function]]
//	name = "smin_i8"
//	params = [8, 8]
//	  [[function.op]]
//	  kind = "smin"
//	  width = 8
//	  args = [0, 1]
//
// Values are numbered parameters first, then one per operation. A function returns its last operation's result
// unless "return" names another value.

package ir

import (
	"github.com/containerd/errdefs"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

type unitFile struct {
	Target struct {
		Features []string `toml:"features"`
		Scratch  int      `toml:"scratch"`
	} `toml:"target"`
	Functions []functionFile `toml:"function"`
}

type functionFile struct {
	Name   string   `toml:"name"`
	Params []int    `toml:"params"`
	Return *int     `toml:"return"`
	Ops    []opFile `toml:"op"`
}

type opFile struct {
	Kind  string `toml:"kind"`
	Width int    `toml:"width"`
	Args  []int  `toml:"args"`
	Imm   *int64 `toml:"imm"`
}

// ---------------------
// ----- Functions -----
// ---------------------

// ParseUnit decodes the TOML document src into a validated Unit called name.
func ParseUnit(name string, src []byte) (*Unit, error) {
	var uf unitFile
	if err := toml.Unmarshal(src, &uf); err != nil {
		return nil, errors.Wrapf(errdefs.ErrInvalidArgument, "%s: %s", name, err)
	}

	u := &Unit{
		Name:      name,
		Features:  uf.Target.Features,
		Scratch:   uf.Target.Scratch,
		Functions: make([]*Function, 0, len(uf.Functions)),
	}
	for _, e1 := range uf.Functions {
		f := NewFunction(e1.Name, e1.Params...)
		for i2, e2 := range e1.Ops {
			k, err := ParseKind(e2.Kind)
			if err != nil {
				return nil, errors.Wrapf(ErrUnsupportedOperation, "%s: function %s: op %d: %s", name, e1.Name, i2, err)
			}
			args := make([]Value, len(e2.Args))
			for i3, e3 := range e2.Args {
				args[i3] = Value(e3)
			}
			if e2.Imm != nil {
				if len(args) != 1 {
					return nil, errors.Wrapf(errdefs.ErrInvalidArgument,
						"%s: function %s: op %d: immediate rotate takes one operand", name, e1.Name, i2)
				}
				f.AppendImm(k, e2.Width, args[0], *e2.Imm)
			} else {
				if len(args) != 2 {
					return nil, errors.Wrapf(errdefs.ErrInvalidArgument,
						"%s: function %s: op %d: expected two operands, got %d", name, e1.Name, i2, len(args))
				}
				f.Append(k, e2.Width, args...)
			}
		}
		if e1.Return != nil {
			f.Return = Value(*e1.Return)
		} else if len(f.Ops) == 0 {
			f.Return = 0
		}
		u.Functions = append(u.Functions, f)
	}

	if err := ValidateUnit(u); err != nil {
		return nil, errors.Wrap(err, name)
	}
	return u, nil
}
