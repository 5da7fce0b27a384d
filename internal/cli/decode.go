package cli

import (
	"bytes"
	"context"
	"fmt"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/matzehuels/weft/pkg/stream"
	"github.com/matzehuels/weft/pkg/wire"
)

// decodeCommand creates the decode command for converting wire data to JSON.
func (c *CLI) decodeCommand() *cobra.Command {
	var (
		output string
		pretty bool
		await  bool
	)

	cmd := &cobra.Command{
		Use:   "decode [input]",
		Short: "Decode wire data back to JSON",
		Long: `Decode a wire line (or a whole async stream) back to JSON.

A single-line input decodes directly. A multi-line input is treated as an
async stream: the head document is decoded and, with --await, every pending
channel is resolved before printing. The JSON rendering is lossy for typed
values; it is meant for inspection, not round-tripping.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args)
			if err != nil {
				return err
			}
			return c.runDecode(cmd.Context(), data, output, pretty, await)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&pretty, "pretty", c.Config.Encode.Pretty, "indent the JSON output")
	cmd.Flags().BoolVar(&await, "await", false, "resolve pending channels before printing")
	return cmd
}

func (c *CLI) runDecode(ctx context.Context, data []byte, output string, pretty, await bool) error {
	v, err := stream.Decode(ctx, bytes.NewReader(data), nil)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	display := toDisplay(v)
	if await {
		display, err = awaitDisplay(ctx, v)
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
	}

	out, err := marshalDisplay(display, pretty)
	if err != nil {
		return fmt.Errorf("render JSON: %w", err)
	}
	return writeOutput(output, append(out, '\n'))
}

// awaitDisplay resolves every pending value in v before rendering. Rejected
// singles and failed sequences render as error objects rather than aborting
// the whole document.
func awaitDisplay(ctx context.Context, v any) (any, error) {
	resolved, err := resolvePending(ctx, v, map[uintptr]bool{})
	if err != nil {
		return nil, err
	}
	return toDisplay(resolved), nil
}

func resolvePending(ctx context.Context, v any, seen map[uintptr]bool) (any, error) {
	switch tv := v.(type) {
	case *stream.Single:
		val, err := tv.Await(ctx)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			return map[string]any{"error": err.Error()}, nil
		}
		return resolvePending(ctx, val, seen)
	case *stream.Sequence:
		var items []any
		for {
			val, more, err := tv.Next(ctx)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err != nil {
				items = append(items, map[string]any{"error": err.Error()})
				break
			}
			if !more {
				break
			}
			resolved, rerr := resolvePending(ctx, val, seen)
			if rerr != nil {
				return nil, rerr
			}
			items = append(items, resolved)
		}
		return map[string]any{"items": items, "return": tv.Return()}, nil
	case []any:
		if len(tv) > 0 {
			ptr := reflect.ValueOf(tv).Pointer()
			if seen[ptr] {
				return tv, nil
			}
			seen[ptr] = true
		}
		for i, e := range tv {
			r, err := resolvePending(ctx, e, seen)
			if err != nil {
				return nil, err
			}
			tv[i] = r
		}
		return tv, nil
	case map[string]any:
		ptr := reflect.ValueOf(tv).Pointer()
		if seen[ptr] {
			return tv, nil
		}
		seen[ptr] = true
		for k, e := range tv {
			r, err := resolvePending(ctx, e, seen)
			if err != nil {
				return nil, err
			}
			tv[k] = r
		}
		return tv, nil
	default:
		return v, nil
	}
}

// parseDocument parses a single wire line, used by commands that work on
// one table rather than a stream.
func parseDocument(data []byte) (*wire.Table, error) {
	line := bytes.TrimSpace(data)
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return wire.ParseLine(line)
}
