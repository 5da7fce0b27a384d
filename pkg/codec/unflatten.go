package codec

import (
	"context"
	"math"
	"math/big"
	"net/url"
	"regexp"
	"time"

	"github.com/matzehuels/weft/pkg/errors"
	"github.com/matzehuels/weft/pkg/observability"
	"github.com/matzehuels/weft/pkg/wire"
)

// Unflatten reconstructs the value graph encoded in t. Aliased parts decode
// to a single shared instance and cyclic references are rebuilt faithfully.
// Tables from untrusted peers are safe to pass in: malformed references,
// unknown tags, and dangerous record keys all fail with coded errors instead
// of corrupting the result.
func Unflatten(t *wire.Table, opts *Options) (any, error) {
	ctx := context.Background()
	start := time.Now()
	observability.Codec().OnUnflattenStart(ctx, len(t.Parts))

	v, err := unflatten(t, opts)
	observability.Codec().OnUnflattenComplete(ctx, time.Since(start), err)
	return v, err
}

func unflatten(t *wire.Table, opts *Options) (any, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.Root.IsSentinel() {
		return sentinelValue(t.Root), nil
	}

	u := &unflattener{
		table:    t,
		opts:     opts,
		revivers: opts.reviverByTag(),
		arena:    make([]any, len(t.Parts)),
		state:    make([]uint8, len(t.Parts)),
	}
	return u.resolve(t.Root)
}

func sentinelValue(r wire.Ref) any {
	switch r {
	case wire.RefAbsent:
		return Absent
	case wire.RefHole:
		return Hole
	case wire.RefNaN:
		return math.NaN()
	case wire.RefPosInf:
		return math.Inf(1)
	case wire.RefNegInf:
		return math.Inf(-1)
	case wire.RefNegZero:
		return math.Copysign(0, -1)
	default:
		return nil
	}
}

const (
	stateUnbuilt uint8 = iota
	stateBuilding
	stateDone
)

type unflattener struct {
	table    *wire.Table
	opts     *Options
	revivers map[string]func(any) (any, error)
	arena    []any
	state    []uint8
}

// resolve returns the decoded value for ref. Containers are registered in
// the arena before their children are resolved, so back references into an
// in-progress ancestor succeed. A cycle that passes only through
// non-container parts cannot be built and is rejected.
func (u *unflattener) resolve(ref wire.Ref) (any, error) {
	if ref.IsSentinel() {
		return sentinelValue(ref), nil
	}
	if !ref.Valid(len(u.table.Parts)) {
		return nil, errors.New(errors.ErrCodeMalformedTable, "reference %d out of range", int(ref))
	}

	switch u.state[ref] {
	case stateDone:
		return u.arena[ref], nil
	case stateBuilding:
		return nil, errors.New(errors.ErrCodeMalformedTable,
			"cycle through non-container part %d", int(ref))
	}

	part := u.table.Parts[ref]
	switch p := part.(type) {
	case nil, bool, string, int64, float64:
		u.arena[ref] = p
		u.state[ref] = stateDone
		return p, nil
	case wire.Refs:
		return u.buildList(ref, p)
	case wire.Fields:
		return u.buildRecord(ref, p)
	case wire.Tagged:
		return u.buildTagged(ref, p)
	default:
		return nil, errors.New(errors.ErrCodeMalformedTable,
			"part %d has unexpected shape %T", int(ref), part)
	}
}

func (u *unflattener) buildList(ref wire.Ref, refs wire.Refs) (any, error) {
	list := make([]any, len(refs))
	u.arena[ref] = list
	u.state[ref] = stateDone

	for i, r := range refs {
		v, err := u.resolve(r)
		if err != nil {
			return nil, err
		}
		list[i] = v
	}
	return list, nil
}

func (u *unflattener) buildRecord(ref wire.Ref, fields wire.Fields) (any, error) {
	rec := make(map[string]any, len(fields))
	u.arena[ref] = rec
	u.state[ref] = stateDone

	for _, f := range fields {
		if err := errors.ValidateRecordKey(f.Key); err != nil {
			return nil, err
		}
		v, err := u.resolve(f.Ref)
		if err != nil {
			return nil, err
		}
		rec[f.Key] = v
	}
	return rec, nil
}

func (u *unflattener) buildTagged(ref wire.Ref, p wire.Tagged) (any, error) {
	switch p.Tag {
	case "Set":
		return u.buildSet(ref, p)
	case "Map":
		return u.buildOrderedMap(ref, p)
	case "Date":
		return u.buildLeaf(ref, p, u.reviveDate)
	case "RegExp":
		return u.buildLeaf(ref, p, u.reviveRegExp)
	case "BigInt":
		return u.buildLeaf(ref, p, u.reviveBigInt)
	case "URL":
		return u.buildLeaf(ref, p, u.reviveURL)
	case "URLSearchParams":
		return u.buildLeaf(ref, p, u.reviveQuery)
	case "ArrayBuffer":
		return u.buildLeaf(ref, p, u.reviveBuffer)
	case "Error":
		return u.buildLeaf(ref, p, u.reviveError)
	case TagPendingSingle, TagPendingSequence:
		return u.buildPending(ref, p)
	}
	if viewKinds[ViewKind(p.Tag)] {
		return u.buildView(ref, p)
	}
	if revive, ok := u.revivers[p.Tag]; ok {
		return u.buildCustom(ref, p, revive)
	}
	return nil, errors.New(errors.ErrCodeUnknownTag, "no reviver registered for tag %q", p.Tag)
}

func (u *unflattener) buildSet(ref wire.Ref, p wire.Tagged) (any, error) {
	s := &Set{elems: make([]any, 0, len(p.Args))}
	u.arena[ref] = s
	u.state[ref] = stateDone

	for _, arg := range p.Args {
		r, ok := wire.ArgRef(arg)
		if !ok {
			return nil, errors.New(errors.ErrCodeMalformedTable,
				"Set part %d has non-reference element", int(ref))
		}
		v, err := u.resolve(r)
		if err != nil {
			return nil, err
		}
		// Wire order is authoritative; no dedup on decode.
		s.elems = append(s.elems, v)
	}
	return s, nil
}

func (u *unflattener) buildOrderedMap(ref wire.Ref, p wire.Tagged) (any, error) {
	if len(p.Args)%2 != 0 {
		return nil, errors.New(errors.ErrCodeMalformedTable,
			"Map part %d has odd argument count", int(ref))
	}
	m := &Map{entries: make([]MapEntry, 0, len(p.Args)/2)}
	u.arena[ref] = m
	u.state[ref] = stateDone

	for i := 0; i < len(p.Args); i += 2 {
		kr, ok := wire.ArgRef(p.Args[i])
		if !ok {
			return nil, errors.New(errors.ErrCodeMalformedTable,
				"Map part %d has non-reference key", int(ref))
		}
		vr, ok := wire.ArgRef(p.Args[i+1])
		if !ok {
			return nil, errors.New(errors.ErrCodeMalformedTable,
				"Map part %d has non-reference value", int(ref))
		}
		k, err := u.resolve(kr)
		if err != nil {
			return nil, err
		}
		v, err := u.resolve(vr)
		if err != nil {
			return nil, err
		}
		m.entries = append(m.entries, MapEntry{Key: k, Value: v})
	}
	return m, nil
}

// buildLeaf handles tags whose single argument is an inline string.
func (u *unflattener) buildLeaf(ref wire.Ref, p wire.Tagged, revive func(string) (any, error)) (any, error) {
	if len(p.Args) != 1 {
		return nil, errors.New(errors.ErrCodeMalformedTable,
			"%s part %d needs a single string argument", p.Tag, int(ref))
	}
	arg, ok := wire.ArgString(p.Args[0])
	if !ok {
		return nil, errors.New(errors.ErrCodeMalformedTable,
			"%s part %d needs a single string argument", p.Tag, int(ref))
	}
	v, err := revive(arg)
	if err != nil {
		return nil, err
	}
	u.arena[ref] = v
	u.state[ref] = stateDone
	return v, nil
}

func (u *unflattener) reviveDate(s string) (any, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedTable, err, "invalid Date %q", s)
	}
	return t, nil
}

func (u *unflattener) reviveRegExp(s string) (any, error) {
	re, err := regexp.Compile(s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedTable, err, "invalid RegExp %q", s)
	}
	return re, nil
}

func (u *unflattener) reviveBigInt(s string) (any, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.New(errors.ErrCodeMalformedTable, "invalid BigInt %q", s)
	}
	return b, nil
}

func (u *unflattener) reviveURL(s string) (any, error) {
	parsed, err := url.Parse(s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedTable, err, "invalid URL %q", s)
	}
	return parsed, nil
}

func (u *unflattener) reviveQuery(s string) (any, error) {
	values, err := url.ParseQuery(s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedTable, err, "invalid URLSearchParams %q", s)
	}
	return values, nil
}

func (u *unflattener) reviveBuffer(s string) (any, error) {
	data, err := wire.DecodeBase85(s)
	if err != nil {
		return nil, err
	}
	return &Buffer{Data: data}, nil
}

func (u *unflattener) reviveError(s string) (any, error) {
	return &RemoteError{Message: s}, nil
}

// buildView resolves a typed view's backing buffer. Uint8Array decodes to a
// bare []byte; every other kind decodes to *View. Aliased views keep sharing
// one buffer part either way.
func (u *unflattener) buildView(ref wire.Ref, p wire.Tagged) (any, error) {
	if len(p.Args) != 1 {
		return nil, errors.New(errors.ErrCodeMalformedTable,
			"%s part %d needs a single buffer reference", p.Tag, int(ref))
	}
	bufRef, ok := wire.ArgRef(p.Args[0])
	if !ok {
		return nil, errors.New(errors.ErrCodeMalformedTable,
			"%s part %d has non-reference argument", p.Tag, int(ref))
	}

	u.state[ref] = stateBuilding
	resolved, err := u.resolve(bufRef)
	if err != nil {
		return nil, err
	}
	buf, ok := resolved.(*Buffer)
	if !ok {
		return nil, errors.New(errors.ErrCodeMalformedTable,
			"%s part %d references %T, want a buffer", p.Tag, int(ref), resolved)
	}

	var v any
	if ViewKind(p.Tag) == ViewUint8 {
		v = buf.Data
	} else {
		v = &View{Kind: ViewKind(p.Tag), Buf: buf}
	}
	u.arena[ref] = v
	u.state[ref] = stateDone
	return v, nil
}

func (u *unflattener) buildPending(ref wire.Ref, p wire.Tagged) (any, error) {
	if u.opts == nil || u.opts.PendingRevive == nil {
		return nil, errors.New(errors.ErrCodeUnknownTag,
			"tag %q requires an async decoding session", p.Tag)
	}
	if len(p.Args) != 1 {
		return nil, errors.New(errors.ErrCodeMalformedTable,
			"%s part %d needs a single channel id", p.Tag, int(ref))
	}
	channel, ok := wire.ArgInt(p.Args[0])
	if !ok {
		return nil, errors.New(errors.ErrCodeMalformedTable,
			"%s part %d needs a single channel id", p.Tag, int(ref))
	}
	v, err := u.opts.PendingRevive(p.Tag, channel)
	if err != nil {
		return nil, err
	}
	u.arena[ref] = v
	u.state[ref] = stateDone
	return v, nil
}

func (u *unflattener) buildCustom(ref wire.Ref, p wire.Tagged, revive func(any) (any, error)) (any, error) {
	if len(p.Args) != 1 {
		return nil, errors.New(errors.ErrCodeMalformedTable,
			"%s part %d needs a single inner reference", p.Tag, int(ref))
	}
	innerRef, ok := wire.ArgRef(p.Args[0])
	if !ok {
		return nil, errors.New(errors.ErrCodeMalformedTable,
			"%s part %d has non-reference argument", p.Tag, int(ref))
	}

	u.state[ref] = stateBuilding
	inner, err := u.resolve(innerRef)
	if err != nil {
		return nil, err
	}
	v, err := revive(inner)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidTag, err, "reviver for %q failed", p.Tag)
	}
	u.arena[ref] = v
	u.state[ref] = stateDone
	return v, nil
}
