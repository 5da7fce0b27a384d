package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/weft/pkg/codec"
	"github.com/matzehuels/weft/pkg/wire"
)

// encodeCommand creates the encode command for converting JSON to wire lines.
func (c *CLI) encodeCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "encode [input.json]",
		Short: "Encode a JSON document as a wire line",
		Long: `Encode a JSON document as a single weft wire line.

The input is read from the given file, or from stdin when no file is given.
Repeated references and cycles cannot be expressed in plain JSON, so the
encoded table is a tree; use the library API for graph-shaped values.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args)
			if err != nil {
				return err
			}
			return c.runEncode(data, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

// runEncode flattens the parsed document and writes its wire line.
func (c *CLI) runEncode(data []byte, output string) error {
	v, err := fromJSON(data)
	if err != nil {
		return err
	}

	table, err := codec.Flatten(v, nil)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	line, err := wire.MarshalLine(table)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	c.Logger.Debug("encoded document", "parts", len(table.Parts), "bytes", len(line))

	if err := writeOutput(output, append(line, '\n')); err != nil {
		return err
	}
	if output != "" {
		printSuccess("Encoded %d parts", len(table.Parts))
		printFile(output)
	}
	return nil
}

// readInput reads the optional file argument, falling back to stdin.
func readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return data, nil
}

// writeOutput writes data to the given path, or stdout when empty.
func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
