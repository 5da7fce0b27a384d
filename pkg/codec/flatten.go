package codec

import (
	"context"
	"math"
	"math/big"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"time"

	"github.com/matzehuels/weft/pkg/errors"
	"github.com/matzehuels/weft/pkg/observability"
	"github.com/matzehuels/weft/pkg/wire"
)

// timeLayout is the wire form of Date tags: ISO 8601 UTC with millisecond
// precision.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Flatten walks v once and produces its flat wire representation. Every
// composite with pointer identity receives exactly one part id, assigned in
// pre-order on first encounter, so shared and cyclic structure survives the
// round trip. The input is never mutated.
func Flatten(v any, opts *Options) (*wire.Table, error) {
	ctx := context.Background()
	start := time.Now()
	observability.Codec().OnFlattenStart(ctx)

	t, err := flatten(v, opts)

	partCount := 0
	if t != nil {
		partCount = len(t.Parts)
	}
	observability.Codec().OnFlattenComplete(ctx, partCount, time.Since(start), err)
	return t, err
}

func flatten(v any, opts *Options) (*wire.Table, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	f := &flattener{
		opts: opts,
		ids:  make(map[identKey]wire.Ref),
		root: v,
	}
	ref, err := f.flatten(v)
	if err != nil {
		return nil, err
	}
	if ref.IsSentinel() {
		return &wire.Table{Root: ref}, nil
	}
	return &wire.Table{Parts: f.parts}, nil
}

// identKey identifies one composite value. ns disambiguates derived parts
// that share a pointer with their origin (a []byte view and its implicit
// buffer part).
type identKey struct {
	ptr uintptr
	aux int
	ns  byte
}

const (
	nsDefault byte = 0
	nsBuffer  byte = 1
)

// identityOf extracts a stable identity for v, if it has one. Slices with no
// backing array and nil pointers have no identity; every occurrence is a
// fresh value.
func identityOf(v any) (identKey, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if rv.IsNil() {
			return identKey{}, false
		}
		return identKey{ptr: rv.Pointer()}, true
	case reflect.Slice:
		if rv.IsNil() || rv.Cap() == 0 {
			return identKey{}, false
		}
		return identKey{ptr: rv.Pointer(), aux: rv.Len()}, true
	default:
		return identKey{}, false
	}
}

type flattener struct {
	opts  *Options
	parts []wire.Part
	ids   map[identKey]wire.Ref
	segs  []string
	root  any
}

// alloc reserves the next part id. Callers fill the slot after visiting
// children, which is what makes pre-order numbering and cycles work.
func (f *flattener) alloc() wire.Ref {
	id := wire.Ref(len(f.parts))
	f.parts = append(f.parts, nil)
	return id
}

func (f *flattener) add(p wire.Part) wire.Ref {
	id := f.alloc()
	f.parts[id] = p
	return id
}

// memo returns the existing id for key, or reserves and registers a new one.
func (f *flattener) memo(key identKey, hasID bool) (wire.Ref, bool) {
	if hasID {
		if id, seen := f.ids[key]; seen {
			return id, true
		}
	}
	id := f.alloc()
	if hasID {
		f.ids[key] = id
	}
	return id, false
}

func (f *flattener) push(seg string) {
	f.segs = append(f.segs, seg)
}

func (f *flattener) pop() {
	f.segs = f.segs[:len(f.segs)-1]
}

func (f *flattener) fail(code errors.Code, v any, format string, args ...any) error {
	return newValueError(code, joinPath(f.segs), v, f.root, format, args...)
}

func (f *flattener) flatten(v any) (wire.Ref, error) {
	switch tv := v.(type) {
	case nil:
		return f.add(nil), nil
	case Marker:
		switch tv {
		case Absent:
			return wire.RefAbsent, nil
		case Hole:
			return wire.RefHole, nil
		}
		return 0, f.fail(errors.ErrCodeUnsupportedValue, v, "unknown marker %d", int(tv))
	case bool:
		return f.add(tv), nil
	case string:
		return f.add(tv), nil
	case int:
		return f.add(int64(tv)), nil
	case int8:
		return f.add(int64(tv)), nil
	case int16:
		return f.add(int64(tv)), nil
	case int32:
		return f.add(int64(tv)), nil
	case int64:
		return f.add(tv), nil
	case uint:
		return f.flattenUint(uint64(tv))
	case uint8:
		return f.add(int64(tv)), nil
	case uint16:
		return f.add(int64(tv)), nil
	case uint32:
		return f.add(int64(tv)), nil
	case uint64:
		return f.flattenUint(tv)
	case float32:
		return f.flattenFloat(float64(tv)), nil
	case float64:
		return f.flattenFloat(tv), nil
	case *big.Int:
		return f.flattenBigInt(tv), nil
	case time.Time:
		return f.add(wire.Tagged{Tag: "Date", Args: []any{tv.UTC().Format(timeLayout)}}), nil
	case *regexp.Regexp:
		return f.flattenTaggedString(tv, "RegExp", tv.String()), nil
	case *url.URL:
		return f.flattenTaggedString(tv, "URL", tv.String()), nil
	case url.Values:
		return f.flattenTaggedString(tv, "URLSearchParams", tv.Encode()), nil
	case *Buffer:
		return f.flattenBuffer(tv)
	case *View:
		return f.flattenView(tv)
	case []byte:
		return f.flattenRawBytes(tv)
	case []any:
		return f.flattenList(tv)
	case map[string]any:
		return f.flattenRecord(tv)
	case *Set:
		return f.flattenSet(tv)
	case *Map:
		return f.flattenMap(tv)
	}
	return f.flattenOther(v)
}

// flattenOther handles everything outside the static catalog: pending async
// sources, reflect-shaped maps and slices, custom reducers, plain error
// values, and finally the unsupported-value failure.
func (f *flattener) flattenOther(v any) (wire.Ref, error) {
	key, hasID := identityOf(v)
	if hasID {
		if id, seen := f.ids[key]; seen {
			return id, nil
		}
	}

	if f.opts != nil && f.opts.PendingReduce != nil {
		if tag, channel, ok := f.opts.PendingReduce(v); ok {
			id, seen := f.memo(key, hasID)
			if seen {
				return id, nil
			}
			f.parts[id] = wire.Tagged{Tag: tag, Args: []any{channel}}
			return id, nil
		}
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return 0, f.fail(errors.ErrCodeInvalidKey, v,
				"map has non-string key type %s (use *codec.Map for arbitrary keys)", rv.Type().Key())
		}
		return f.flattenReflectMap(rv, key, hasID)
	case reflect.Slice, reflect.Array:
		return f.flattenReflectSeq(rv, key, hasID)
	}

	if f.opts != nil {
		for _, r := range f.opts.Reducers {
			inner, ok := r.Reduce(v)
			if !ok {
				continue
			}
			id, seen := f.memo(key, hasID)
			if seen {
				return id, nil
			}
			innerRef, err := f.flatten(inner)
			if err != nil {
				return 0, err
			}
			f.parts[id] = wire.Tagged{Tag: r.Tag, Args: []any{innerRef}}
			return id, nil
		}
	}

	if ev, ok := v.(error); ok {
		id, seen := f.memo(key, hasID)
		if seen {
			return id, nil
		}
		f.parts[id] = wire.Tagged{Tag: "Error", Args: []any{ev.Error()}}
		return id, nil
	}

	return 0, f.fail(errors.ErrCodeUnsupportedValue, v, "cannot serialize value of type %T", v)
}

func (f *flattener) flattenUint(u uint64) (wire.Ref, error) {
	if u > math.MaxInt64 {
		return f.add(wire.Tagged{Tag: "BigInt", Args: []any{new(big.Int).SetUint64(u).String()}}), nil
	}
	return f.add(int64(u)), nil
}

func (f *flattener) flattenFloat(x float64) wire.Ref {
	switch {
	case math.IsNaN(x):
		return wire.RefNaN
	case math.IsInf(x, 1):
		return wire.RefPosInf
	case math.IsInf(x, -1):
		return wire.RefNegInf
	case x == 0 && math.Signbit(x):
		return wire.RefNegZero
	default:
		return f.add(x)
	}
}

func (f *flattener) flattenBigInt(b *big.Int) wire.Ref {
	key, hasID := identityOf(b)
	id, seen := f.memo(key, hasID)
	if seen {
		return id
	}
	f.parts[id] = wire.Tagged{Tag: "BigInt", Args: []any{b.String()}}
	return id
}

func (f *flattener) flattenTaggedString(v any, tag, arg string) wire.Ref {
	key, hasID := identityOf(v)
	id, seen := f.memo(key, hasID)
	if seen {
		return id
	}
	f.parts[id] = wire.Tagged{Tag: tag, Args: []any{arg}}
	return id
}

func (f *flattener) flattenBuffer(b *Buffer) (wire.Ref, error) {
	key, hasID := identityOf(b)
	id, seen := f.memo(key, hasID)
	if seen {
		return id, nil
	}
	f.parts[id] = wire.Tagged{Tag: "ArrayBuffer", Args: []any{wire.EncodeBase85(b.Data)}}
	return id, nil
}

func (f *flattener) flattenView(v *View) (wire.Ref, error) {
	if v.Buf == nil {
		return 0, f.fail(errors.ErrCodeUnsupportedValue, v, "view has no buffer")
	}
	if !viewKinds[v.Kind] {
		return 0, f.fail(errors.ErrCodeUnsupportedValue, v, "unknown view kind %q", v.Kind)
	}
	key, hasID := identityOf(v)
	id, seen := f.memo(key, hasID)
	if seen {
		return id, nil
	}
	bufRef, err := f.flattenBuffer(v.Buf)
	if err != nil {
		return 0, err
	}
	f.parts[id] = wire.Tagged{Tag: string(v.Kind), Args: []any{bufRef}}
	return id, nil
}

// flattenRawBytes encodes a bare []byte as a Uint8Array view over an
// implicit buffer part. The buffer part shares the slice's identity under a
// separate namespace, so two aliases of one slice produce one view part and
// one buffer part.
func (f *flattener) flattenRawBytes(b []byte) (wire.Ref, error) {
	key, hasID := identityOf(b)
	id, seen := f.memo(key, hasID)
	if seen {
		return id, nil
	}

	bufKey := identKey{ptr: key.ptr, aux: key.aux, ns: nsBuffer}
	bufRef, bufSeen := f.memo(bufKey, hasID)
	if !bufSeen {
		f.parts[bufRef] = wire.Tagged{Tag: "ArrayBuffer", Args: []any{wire.EncodeBase85(b)}}
	}
	f.parts[id] = wire.Tagged{Tag: string(ViewUint8), Args: []any{bufRef}}
	return id, nil
}

func (f *flattener) flattenList(list []any) (wire.Ref, error) {
	key, hasID := identityOf(list)
	id, seen := f.memo(key, hasID)
	if seen {
		return id, nil
	}

	refs := make(wire.Refs, len(list))
	for i, elem := range list {
		f.push(segmentIndex(i))
		r, err := f.flatten(elem)
		f.pop()
		if err != nil {
			return 0, err
		}
		refs[i] = r
	}
	f.parts[id] = refs
	return id, nil
}

func (f *flattener) flattenRecord(rec map[string]any) (wire.Ref, error) {
	key, hasID := identityOf(rec)
	id, seen := f.memo(key, hasID)
	if seen {
		return id, nil
	}

	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make(wire.Fields, 0, len(keys))
	for _, k := range keys {
		f.push(segmentKey(k))
		r, err := f.flatten(rec[k])
		f.pop()
		if err != nil {
			return 0, err
		}
		fields = append(fields, wire.Field{Key: k, Ref: r})
	}
	f.parts[id] = fields
	return id, nil
}

func (f *flattener) flattenReflectMap(rv reflect.Value, key identKey, hasID bool) (wire.Ref, error) {
	id, seen := f.memo(key, hasID)
	if seen {
		return id, nil
	}

	mapKeys := rv.MapKeys()
	names := make([]string, len(mapKeys))
	byName := make(map[string]reflect.Value, len(mapKeys))
	for i, mk := range mapKeys {
		names[i] = mk.String()
		byName[names[i]] = mk
	}
	sort.Strings(names)

	fields := make(wire.Fields, 0, len(names))
	for _, name := range names {
		f.push(segmentKey(name))
		r, err := f.flatten(rv.MapIndex(byName[name]).Interface())
		f.pop()
		if err != nil {
			return 0, err
		}
		fields = append(fields, wire.Field{Key: name, Ref: r})
	}
	f.parts[id] = fields
	return id, nil
}

func (f *flattener) flattenReflectSeq(rv reflect.Value, key identKey, hasID bool) (wire.Ref, error) {
	id, seen := f.memo(key, hasID)
	if seen {
		return id, nil
	}

	refs := make(wire.Refs, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		f.push(segmentIndex(i))
		r, err := f.flatten(rv.Index(i).Interface())
		f.pop()
		if err != nil {
			return 0, err
		}
		refs[i] = r
	}
	f.parts[id] = refs
	return id, nil
}

func (f *flattener) flattenSet(s *Set) (wire.Ref, error) {
	key, hasID := identityOf(s)
	id, seen := f.memo(key, hasID)
	if seen {
		return id, nil
	}

	args := make([]any, 0, s.Len())
	for i, elem := range s.elems {
		f.push(segmentIndex(i))
		r, err := f.flatten(elem)
		f.pop()
		if err != nil {
			return 0, err
		}
		args = append(args, r)
	}
	f.parts[id] = wire.Tagged{Tag: "Set", Args: args}
	return id, nil
}

func (f *flattener) flattenMap(m *Map) (wire.Ref, error) {
	key, hasID := identityOf(m)
	id, seen := f.memo(key, hasID)
	if seen {
		return id, nil
	}

	args := make([]any, 0, m.Len()*2)
	for i, e := range m.entries {
		f.push(segmentMapKey(i))
		kr, err := f.flatten(e.Key)
		f.pop()
		if err != nil {
			return 0, err
		}

		f.push(segmentMapValue(e.Key))
		vr, err := f.flatten(e.Value)
		f.pop()
		if err != nil {
			return 0, err
		}
		args = append(args, kr, vr)
	}
	f.parts[id] = wire.Tagged{Tag: "Map", Args: args}
	return id, nil
}
