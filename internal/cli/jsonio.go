package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"net/url"
	"reflect"
	"regexp"
	"time"

	"github.com/matzehuels/weft/pkg/codec"
	"github.com/matzehuels/weft/pkg/stream"
	"github.com/matzehuels/weft/pkg/wire"
)

// fromJSON parses a JSON document into the codec's value domain. Integral
// numbers become int64, everything else float64.
func fromJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return fromJSONValue(v), nil
}

func fromJSONValue(v any) any {
	switch tv := v.(type) {
	case json.Number:
		if n, err := tv.Int64(); err == nil {
			return n
		}
		f, _ := tv.Float64()
		return f
	case []any:
		for i, e := range tv {
			tv[i] = fromJSONValue(e)
		}
		return tv
	case map[string]any:
		for k, e := range tv {
			tv[k] = fromJSONValue(e)
		}
		return tv
	default:
		return v
	}
}

// toDisplay converts a decoded value back to something encoding/json can
// print. The conversion is lossy on purpose: markers become null, special
// floats become strings, and typed values render as readable scalars.
// Shared structure is expanded and cycles are cut with a "…" placeholder.
func toDisplay(v any) any {
	return displayValue(v, map[uintptr]bool{})
}

func displayValue(v any, seen map[uintptr]bool) any {
	switch tv := v.(type) {
	case nil, bool, string, int, int64:
		return tv
	case float64:
		switch {
		case math.IsNaN(tv):
			return "NaN"
		case math.IsInf(tv, 1):
			return "Infinity"
		case math.IsInf(tv, -1):
			return "-Infinity"
		default:
			return tv
		}
	case codec.Marker:
		return nil
	case time.Time:
		return tv.UTC().Format(time.RFC3339Nano)
	case *big.Int:
		return tv.String()
	case *regexp.Regexp:
		return tv.String()
	case *url.URL:
		return tv.String()
	case url.Values:
		return tv.Encode()
	case []byte:
		return wire.EncodeBase85(tv)
	case *codec.Buffer:
		return wire.EncodeBase85(tv.Data)
	case *codec.View:
		return map[string]any{
			"kind": string(tv.Kind),
			"data": wire.EncodeBase85(tv.Buf.Data),
		}
	case *codec.RemoteError:
		return map[string]any{"error": tv.Message}
	case *stream.Single:
		return map[string]any{"pending": "single"}
	case *stream.Sequence:
		return map[string]any{"pending": "sequence"}
	case []any:
		return displayList(tv, seen)
	case map[string]any:
		return displayRecord(tv, seen)
	case *codec.Set:
		return displayList(tv.Values(), seen)
	case *codec.Map:
		entries := tv.Entries()
		out := make([]any, len(entries))
		for i, e := range entries {
			out[i] = []any{displayValue(e.Key, seen), displayValue(e.Value, seen)}
		}
		return out
	default:
		return fmt.Sprintf("%v", tv)
	}
}

func displayList(list []any, seen map[uintptr]bool) any {
	ptr := reflect.ValueOf(list).Pointer()
	if len(list) > 0 && seen[ptr] {
		return "…"
	}
	seen[ptr] = true
	defer delete(seen, ptr)

	out := make([]any, len(list))
	for i, e := range list {
		out[i] = displayValue(e, seen)
	}
	return out
}

func displayRecord(rec map[string]any, seen map[uintptr]bool) any {
	ptr := reflect.ValueOf(rec).Pointer()
	if seen[ptr] {
		return "…"
	}
	seen[ptr] = true
	defer delete(seen, ptr)

	out := make(map[string]any, len(rec))
	for k, e := range rec {
		out[k] = displayValue(e, seen)
	}
	return out
}

// marshalDisplay renders a display value as JSON, optionally indented.
func marshalDisplay(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
