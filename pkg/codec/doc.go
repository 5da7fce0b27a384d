// Package codec converts in-memory value graphs to and from the flat wire
// representation defined by [github.com/matzehuels/weft/pkg/wire].
//
// # Value Domain
//
// Flatten accepts Go's dynamic value vocabulary: nil, bool, string, every
// integer and float kind, []any lists (with [Hole] elements for sparse
// positions), map[string]any records, and a catalog of built-in composites
// ([Set], [Map], [Buffer], [View], *big.Int, time.Time, *regexp.Regexp,
// *url.URL, url.Values, []byte, and values implementing error). Values
// outside this domain are offered to caller-registered [Reducer]s; if none
// accepts, Flatten fails with a [ValueError] naming the offending value and
// its path from the root.
//
// # Identity and Cycles
//
// Composites with pointer identity are assigned exactly one part id on first
// encounter, before their children are visited. Aliased values therefore
// decode to one shared instance, and cyclic graphs terminate instead of
// recursing forever. Unflatten rebuilds cycles with a two-phase protocol:
// each container is allocated empty, registered under its id, then populated,
// so a child reference may legally point back at an in-progress ancestor.
//
// # Sessions
//
// Reducer and reviver sets are fixed for the duration of one Flatten or
// Unflatten call. Mutating an [Options] value while a call is running is not
// supported.
package codec
