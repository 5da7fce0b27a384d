package wire

import (
	"fmt"

	"github.com/matzehuels/weft/pkg/errors"
)

// Ref is an index into a Table identifying one Part. Negative values are
// sentinel codes rather than indices.
type Ref int

// Sentinel codes for primitives that JSON cannot represent directly.
// The codes are part of the wire contract and must not be renumbered.
const (
	// RefAbsent marks an absent (undefined) value.
	RefAbsent Ref = -1
	// RefHole marks a hole in a sparse list.
	RefHole Ref = -2
	// RefNaN marks an IEEE not-a-number.
	RefNaN Ref = -3
	// RefPosInf marks positive infinity.
	RefPosInf Ref = -4
	// RefNegInf marks negative infinity.
	RefNegInf Ref = -5
	// RefNegZero marks IEEE negative zero, distinct from the literal 0.
	RefNegZero Ref = -6
)

// IsSentinel reports whether r is a sentinel code rather than a part index.
func (r Ref) IsSentinel() bool {
	return r < 0
}

// Valid reports whether r is resolvable against a table of n parts: either a
// known sentinel or an index in [0, n).
func (r Ref) Valid(n int) bool {
	if r.IsSentinel() {
		return r >= RefNegZero
	}
	return int(r) < n
}

// Part is one entry of a Table. The concrete type determines the part shape:
//
//   - nil, bool, int64, float64, string: inline literal
//   - Refs: plain ordered list
//   - Fields: plain string-keyed record
//   - Tagged: typed composite
type Part any

// Refs is a plain list part: an ordered sequence of child references.
type Refs []Ref

// Field is one key of a plain record part. Order is significant and is
// preserved on the wire.
type Field struct {
	Key string
	Ref Ref
}

// Fields is a plain record part: string keys in insertion order.
type Fields []Field

// Tagged is a typed composite part. Args holds a mix of Ref values (child
// references) and inline literals (e.g. a channel id or a base-85 byte
// payload); which positions are refs is defined per tag by the codec layer.
type Tagged struct {
	Tag  string
	Args []any
}

// Table is the ordered, reference-resolved output of flattening one value
// graph. Root is 0 for ordinary documents; for documents whose entire value
// is a sentinel, Parts is empty and Root holds the sentinel code.
type Table struct {
	Parts []Part
	Root  Ref
}

// IsSentinel reports whether the table encodes a whole-document sentinel.
func (t *Table) IsSentinel() bool {
	return t.Root.IsSentinel()
}

// Validate checks structural invariants: the root and every reference inside
// every part must be resolvable, and part shapes must be well formed.
func (t *Table) Validate() error {
	n := len(t.Parts)
	if t.IsSentinel() {
		if !t.Root.Valid(n) {
			return errors.New(errors.ErrCodeMalformedTable, "unknown sentinel code %d", t.Root)
		}
		if n != 0 {
			return errors.New(errors.ErrCodeMalformedTable, "sentinel document carries %d parts", n)
		}
		return nil
	}
	if t.Root != 0 {
		return errors.New(errors.ErrCodeMalformedTable, "root must be part 0, got %d", t.Root)
	}
	if n == 0 {
		return errors.New(errors.ErrCodeMalformedTable, "empty table")
	}
	for i, p := range t.Parts {
		if err := validatePart(p, n); err != nil {
			return errors.Wrap(errors.ErrCodeMalformedTable, err, "part %d", i)
		}
	}
	return nil
}

func validatePart(p Part, n int) error {
	switch pt := p.(type) {
	case nil, bool, int64, float64, string:
		return nil
	case Refs:
		for i, r := range pt {
			if !r.Valid(n) {
				return fmt.Errorf("element %d: unresolvable ref %d", i, r)
			}
		}
		return nil
	case Fields:
		for _, f := range pt {
			if !f.Ref.Valid(n) {
				return fmt.Errorf("key %q: unresolvable ref %d", f.Key, f.Ref)
			}
		}
		return nil
	case Tagged:
		if pt.Tag == "" {
			return fmt.Errorf("tagged part with empty tag")
		}
		for i, a := range pt.Args {
			if r, ok := a.(Ref); ok && !r.Valid(n) {
				return fmt.Errorf("tag %q arg %d: unresolvable ref %d", pt.Tag, i, r)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown part shape %T", p)
	}
}

// ArgRef interprets a tagged-part argument as a reference. Arguments decoded
// from the wire carry refs as int64; arguments built in memory carry them as
// Ref. Both forms are accepted.
func ArgRef(a any) (Ref, bool) {
	switch v := a.(type) {
	case Ref:
		return v, true
	case int64:
		return Ref(v), true
	default:
		return 0, false
	}
}

// ArgString interprets a tagged-part argument as an inline string.
func ArgString(a any) (string, bool) {
	s, ok := a.(string)
	return s, ok
}

// ArgInt interprets a tagged-part argument as an inline integer.
func ArgInt(a any) (int64, bool) {
	switch v := a.(type) {
	case int64:
		return v, true
	case Ref:
		return int64(v), true
	default:
		return 0, false
	}
}
