package codec

import (
	"github.com/matzehuels/weft/pkg/errors"
)

// Reducer encodes values for one custom type tag. During Flatten the
// reducers are consulted in registration order for every value the built-in
// catalog does not recognize; the first reducer whose Reduce accepts the
// value wins, and its replacement inner value is flattened recursively.
type Reducer struct {
	// Tag is the wire name for values this reducer accepts.
	Tag string

	// Reduce reports whether it accepts v. On success it returns the
	// replacement inner value that will be flattened in v's place.
	Reduce func(v any) (inner any, ok bool)
}

// Reviver decodes tagged parts for one custom type tag.
type Reviver struct {
	// Tag is the wire name this reviver handles.
	Tag string

	// Revive rebuilds the original value from the decoded inner value.
	Revive func(inner any) (any, error)
}

// Options configures one Flatten or Unflatten session. The zero value is
// valid and enables only the built-in catalog. Options must not be mutated
// while a session is running.
type Options struct {
	// Reducers are consulted during Flatten, in order.
	Reducers []Reducer

	// Revivers are consulted during Unflatten, by tag.
	Revivers []Reviver

	// PendingReduce recognizes not-yet-available values (futures and push
	// sequences) and maps them to a channel id. Set by the stream package;
	// most callers leave it nil.
	PendingReduce func(v any) (tag string, channel int64, ok bool)

	// PendingRevive rebuilds a pending placeholder from its channel id.
	// Set by the stream package; most callers leave it nil.
	PendingRevive func(tag string, channel int64) (any, error)
}

// Pending wire tags registered by the async layer.
const (
	TagPendingSingle   = "PendingSingle"
	TagPendingSequence = "PendingSequence"
)

// builtinTags is the reserved tag catalog. Custom reducers and revivers may
// not shadow these names.
var builtinTags = map[string]bool{
	"Date":            true,
	"RegExp":          true,
	"BigInt":          true,
	"Set":             true,
	"Map":             true,
	"URL":             true,
	"URLSearchParams": true,
	"ArrayBuffer":     true,
	"Error":           true,
	TagPendingSingle:   true,
	TagPendingSequence: true,
}

func isReservedTag(tag string) bool {
	return builtinTags[tag] || viewKinds[ViewKind(tag)]
}

// validate checks the registries once per session.
func (o *Options) validate() error {
	if o == nil {
		return nil
	}
	seen := make(map[string]bool)
	for _, r := range o.Reducers {
		if err := checkTag(r.Tag, seen); err != nil {
			return err
		}
		if r.Reduce == nil {
			return errors.New(errors.ErrCodeInvalidTag, "reducer %q has no Reduce function", r.Tag)
		}
	}
	seen = make(map[string]bool)
	for _, r := range o.Revivers {
		if err := checkTag(r.Tag, seen); err != nil {
			return err
		}
		if r.Revive == nil {
			return errors.New(errors.ErrCodeInvalidTag, "reviver %q has no Revive function", r.Tag)
		}
	}
	return nil
}

func checkTag(tag string, seen map[string]bool) error {
	if err := errors.ValidateTagName(tag); err != nil {
		return err
	}
	if isReservedTag(tag) {
		return errors.New(errors.ErrCodeInvalidTag, "tag %q shadows a built-in", tag)
	}
	if seen[tag] {
		return errors.New(errors.ErrCodeInvalidTag, "tag %q registered twice", tag)
	}
	seen[tag] = true
	return nil
}

// reviverByTag builds the per-session lookup table.
func (o *Options) reviverByTag() map[string]func(any) (any, error) {
	if o == nil || len(o.Revivers) == 0 {
		return nil
	}
	m := make(map[string]func(any) (any, error), len(o.Revivers))
	for _, r := range o.Revivers {
		m[r.Tag] = r.Revive
	}
	return m
}
