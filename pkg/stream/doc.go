// Package stream multiplexes value graphs containing not-yet-available
// values over a line-oriented transport.
//
// [Encode] writes a head line describing the root value immediately, with
// each pending value ([Single] futures and [Sequence] push sequences)
// replaced by a numbered channel placeholder. As pending values settle,
// their results are appended as out-of-band chunk lines in readiness order,
// so a slow future never delays a fast one. Chunk payloads are themselves
// complete wire documents and may introduce further channels, nesting
// arbitrarily deep.
//
// [Decode] performs the inverse: the head line produces a usable value
// right away, with placeholders decoded to consumer-side [Single] and
// [Sequence] values that settle as their chunks arrive. A stream that ends
// while channels are still open fails those channels with a
// STREAM_INTERRUPTED error rather than blocking forever.
package stream
