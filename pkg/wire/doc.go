// Package wire defines the flat, JSON-safe representation of a value graph
// and its line-oriented text codec.
//
// # Data Model
//
// A flattened value graph is a [Table]: an ordered sequence of [Part] entries
// plus a root reference. Each Part describes exactly one node of the decoded
// graph and references its children by position ([Ref]). Four part shapes
// exist:
//
//   - inline literal: nil, bool, int64, float64, or string
//   - [Refs]: a plain ordered list, one Ref per element
//   - [Fields]: a plain string-keyed record with preserved key order
//   - [Tagged]: a typed composite, carrying a tag name and a mix of Refs
//     and inline arguments
//
// Negative Ref values are sentinels for the JSON-unrepresentable primitives
// (absence, array holes, NaN, the infinities, and negative zero).
//
// # Wire Format
//
// One Table per line. If the whole document is a sentinel, the line is the
// bare sentinel code ("-1" through "-6"). Otherwise the line is a JSON array
// whose element 0 is the root part; a plain list part is a JSON array of
// numbers, a plain record part is a JSON object, a tagged part is a JSON
// array whose first element is the tag string, and literal parts are JSON
// scalars.
//
// Async streams append chunk lines after the head line; see [Chunk]. Raw byte
// payloads embedded in tagged parts use the fixed-alphabet base-85 codec in
// this package ([EncodeBase85], [DecodeBase85]).
package wire
