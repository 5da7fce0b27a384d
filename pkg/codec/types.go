package codec

import (
	"reflect"
)

// Marker is a distinguished primitive with no JSON representation.
type Marker int

const (
	// Absent is the "no value at all" marker (undefined, as opposed to null).
	Absent Marker = iota + 1
	// Hole marks an unset position inside a sparse list.
	Hole
)

// String implements fmt.Stringer for diagnostics.
func (m Marker) String() string {
	switch m {
	case Absent:
		return "absent"
	case Hole:
		return "hole"
	default:
		return "marker(?)"
	}
}

// =============================================================================
// Set
// =============================================================================

// Set is an insertion-ordered collection of distinct values. Comparable
// values are deduplicated by equality; values without a defined equality
// (maps, slices, functions) are deduplicated by identity.
type Set struct {
	elems []any
}

// NewSet creates a set holding the given elements in order.
func NewSet(elems ...any) *Set {
	s := &Set{}
	for _, e := range elems {
		s.Add(e)
	}
	return s
}

// Add appends v unless an equal element is already present.
// It returns the set to allow chaining.
func (s *Set) Add(v any) *Set {
	if !s.Has(v) {
		s.elems = append(s.elems, v)
	}
	return s
}

// Has reports whether an element equal to v is present.
func (s *Set) Has(v any) bool {
	for _, e := range s.elems {
		if sameValue(e, v) {
			return true
		}
	}
	return false
}

// Len returns the number of elements.
func (s *Set) Len() int {
	return len(s.elems)
}

// Values returns the elements in insertion order. The returned slice is a
// copy; mutating it does not affect the set.
func (s *Set) Values() []any {
	out := make([]any, len(s.elems))
	copy(out, s.elems)
	return out
}

// =============================================================================
// Map
// =============================================================================

// MapEntry is one key-value pair of a Map.
type MapEntry struct {
	Key   any
	Value any
}

// Map is an insertion-ordered key-value map whose keys may be arbitrary
// values, not just strings. Key equality follows the same rules as Set.
type Map struct {
	entries []MapEntry
}

// NewMap creates an empty ordered map.
func NewMap() *Map {
	return &Map{}
}

// Set stores v under k, replacing an existing entry with an equal key.
// It returns the map to allow chaining.
func (m *Map) Set(k, v any) *Map {
	for i, e := range m.entries {
		if sameValue(e.Key, k) {
			m.entries[i].Value = v
			return m
		}
	}
	m.entries = append(m.entries, MapEntry{Key: k, Value: v})
	return m
}

// Get returns the value stored under k.
func (m *Map) Get(k any) (any, bool) {
	for _, e := range m.entries {
		if sameValue(e.Key, k) {
			return e.Value, true
		}
	}
	return nil, false
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.entries)
}

// Entries returns the entries in insertion order. The returned slice is a
// copy; mutating it does not affect the map.
func (m *Map) Entries() []MapEntry {
	out := make([]MapEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// sameValue compares two dynamic values the way Set and Map keys require:
// == for comparable values, pointer identity for reference kinds without a
// defined equality.
func sameValue(a, b any) bool {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.IsValid() != rb.IsValid() {
		return false
	}
	if !ra.IsValid() {
		return true // both nil
	}
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func:
		return ra.Pointer() == rb.Pointer()
	default:
		if !ra.Comparable() {
			return false
		}
		return a == b
	}
}

// =============================================================================
// Byte buffers and typed views
// =============================================================================

// Buffer is a raw byte buffer with pointer identity, so aliased buffers
// flatten to a single shared part.
type Buffer struct {
	Data []byte
}

// NewBuffer wraps data in a Buffer. The data is not copied.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{Data: data}
}

// ViewKind names a typed numeric view over a Buffer. The values double as
// wire tags.
type ViewKind string

// The supported view catalog.
const (
	ViewInt8         ViewKind = "Int8Array"
	ViewUint8        ViewKind = "Uint8Array"
	ViewUint8Clamped ViewKind = "Uint8ClampedArray"
	ViewInt16        ViewKind = "Int16Array"
	ViewUint16       ViewKind = "Uint16Array"
	ViewInt32        ViewKind = "Int32Array"
	ViewUint32       ViewKind = "Uint32Array"
	ViewFloat32      ViewKind = "Float32Array"
	ViewFloat64      ViewKind = "Float64Array"
	ViewBigInt64     ViewKind = "BigInt64Array"
	ViewBigUint64    ViewKind = "BigUint64Array"
	ViewData         ViewKind = "DataView"
)

var viewKinds = map[ViewKind]bool{
	ViewInt8: true, ViewUint8: true, ViewUint8Clamped: true,
	ViewInt16: true, ViewUint16: true, ViewInt32: true, ViewUint32: true,
	ViewFloat32: true, ViewFloat64: true,
	ViewBigInt64: true, ViewBigUint64: true, ViewData: true,
}

// View is a typed interpretation of a Buffer. Two views over one Buffer
// flatten to two view parts referencing a single buffer part.
type View struct {
	Kind ViewKind
	Buf  *Buffer
}

// NewView creates a view of the given kind over buf.
func NewView(kind ViewKind, buf *Buffer) *View {
	return &View{Kind: kind, Buf: buf}
}

// =============================================================================
// Remote errors
// =============================================================================

// RemoteError is the decoded form of an error value that crossed the wire.
// Only the message survives serialization.
type RemoteError struct {
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return e.Message
}
