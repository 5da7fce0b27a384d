// Package pkg provides the core libraries for Weft value-graph serialization.
//
// # Overview
//
// Weft flattens arbitrary value graphs into flat part tables that travel as
// single JSON lines, and multiplexes pending values (futures and push
// sequences) over the same line transport. The pkg directory is organized
// into four main areas:
//
//  1. [wire] - The line format (part tables, chunk framing, base-85)
//  2. [codec] - Flatten/unflatten between Go values and part tables
//  3. [stream] - Async multiplexing of pending values over line streams
//  4. [render] - Part-graph visualization via Graphviz
//
// # Architecture
//
// The typical data flow through Weft:
//
//	Go value graph
//	     ↓
//	[codec] package (identity-aware flatten)
//	     ↓
//	[wire] package (part table → JSON line)
//	     ↓
//	[stream] package (head line + channel chunks)
//	     ↓
//	line transport (file, pipe, socket)
//
// and the mirror path on decode.
//
// # Quick Start
//
// Flatten a value and write it as a wire line:
//
//	import (
//	    "github.com/matzehuels/weft/pkg/codec"
//	    "github.com/matzehuels/weft/pkg/wire"
//	)
//
//	table, err := codec.Flatten(map[string]any{"a": []any{1, 2}}, nil)
//	if err != nil {
//	    return err
//	}
//	line, err := wire.MarshalLine(table)
//
// Parse it back:
//
//	table, err := wire.ParseLine(line)
//	if err != nil {
//	    return err
//	}
//	v, err := codec.Unflatten(table, nil)
//
// Stream a document whose fields settle asynchronously:
//
//	import "github.com/matzehuels/weft/pkg/stream"
//
//	answer := stream.Go(func() (any, error) { return compute(ctx) })
//	err := stream.Encode(ctx, w, map[string]any{"answer": answer}, nil)
//
// # Main Packages
//
// [wire] - Wire-level types and parsing: part tables, reference encoding,
// sentinel codes, chunk framing for channels, and RFC 1924 base-85 for
// binary payloads.
//
// [codec] - The flatten/unflatten engine. Preserves identity and cycles,
// carries typed values (dates, big integers, regexps, URLs, buffers, ordered
// sets and maps), and accepts custom type tags through [codec.Options].
//
// [stream] - Incremental encoding and decoding. An encoder writes the head
// line immediately and settles channels in readiness order; a decoder
// surfaces them as [stream.Single] and [stream.Sequence] values.
//
// [render] - DOT generation and SVG/PNG/PDF conversion for part tables,
// used by the graph command.
//
// [cache] - Byte cache for rendered artifacts (file-backed and null
// implementations).
//
// [errors] - Coded errors shared across the module, with value-path context
// attached by the codec.
//
// [observability] - Pluggable hooks timing codec and stream operations.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...          # All tests
//	go test ./pkg/codec/...    # Specific package
//
// [wire]: https://pkg.go.dev/github.com/matzehuels/weft/pkg/wire
// [codec]: https://pkg.go.dev/github.com/matzehuels/weft/pkg/codec
// [stream]: https://pkg.go.dev/github.com/matzehuels/weft/pkg/stream
// [render]: https://pkg.go.dev/github.com/matzehuels/weft/pkg/render
// [cache]: https://pkg.go.dev/github.com/matzehuels/weft/pkg/cache
// [errors]: https://pkg.go.dev/github.com/matzehuels/weft/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/weft/pkg/observability
package pkg
