package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/weft/pkg/codec"
	"github.com/matzehuels/weft/pkg/wire"
)

// tailCommand creates the tail command for following an async stream.
func (c *CLI) tailCommand() *cobra.Command {
	var live bool

	cmd := &cobra.Command{
		Use:   "tail [stream]",
		Short: "Follow an async stream and show channel activity",
		Long: `Follow an async stream line by line, showing the head document and every
chunk as it arrives. Useful for watching a live stream through a pipe:

  producer | weft tail

With --live an interactive monitor shows one row per channel with its kind,
chunk count and terminal status.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, closeIn, err := openInput(args)
			if err != nil {
				return err
			}
			defer closeIn()

			if live {
				return c.runTailLive(in)
			}
			return c.runTail(in)
		},
	}

	cmd.Flags().BoolVar(&live, "live", c.Config.Tail.Live, "interactive channel monitor")
	return cmd
}

func openInput(args []string) (io.Reader, func(), error) {
	if len(args) == 0 || args[0] == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", args[0], err)
	}
	return f, func() { f.Close() }, nil
}

// tailEvent is one observed line of the stream.
type tailEvent struct {
	head    bool
	parts   int
	channel int64
	kind    string
	status  string
	preview string
	// terminal marks the chunk that settles its channel.
	terminal bool
	err      error
}

// previewLimit bounds the payload excerpt shown per line.
const previewLimit = 48

// readEvents parses the stream and emits one event per line. The channel is
// closed when the stream ends; a parse failure emits a final event carrying
// the error.
func readEvents(r io.Reader, events chan<- tailEvent) {
	defer close(events)

	kinds := map[int64]string{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)

	if !scanner.Scan() {
		events <- tailEvent{err: fmt.Errorf("stream ended before head line")}
		return
	}
	head, err := wire.ParseLine(scanner.Bytes())
	if err != nil {
		events <- tailEvent{err: err}
		return
	}
	registerChannels(head, kinds)
	events <- tailEvent{head: true, parts: len(head.Parts), preview: excerpt(scanner.Text())}

	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		chunk, err := wire.ParseChunk(scanner.Bytes())
		if err != nil {
			events <- tailEvent{err: err}
			return
		}
		payload, err := wire.ParseLine(chunk.Payload)
		if err != nil {
			events <- tailEvent{err: err}
			return
		}
		registerChannels(payload, kinds)

		kind := kinds[chunk.Channel]
		events <- tailEvent{
			channel:  chunk.Channel,
			kind:     kind,
			status:   statusName(kind, chunk.Status),
			preview:  excerpt(string(chunk.Payload)),
			terminal: kind != "sequence" || chunk.Status != wire.StatusYield,
		}
	}
	if err := scanner.Err(); err != nil {
		events <- tailEvent{err: err}
	}
}

// registerChannels records the kind of every channel the table introduces.
func registerChannels(t *wire.Table, kinds map[int64]string) {
	for _, p := range t.Parts {
		tagged, ok := p.(wire.Tagged)
		if !ok || len(tagged.Args) != 1 {
			continue
		}
		id, ok := wire.ArgInt(tagged.Args[0])
		if !ok {
			continue
		}
		switch tagged.Tag {
		case codec.TagPendingSingle:
			kinds[id] = "single"
		case codec.TagPendingSequence:
			kinds[id] = "sequence"
		}
	}
}

func statusName(kind string, status int) string {
	if kind == "sequence" {
		switch status {
		case wire.StatusYield:
			return "yield"
		case wire.StatusError:
			return "error"
		case wire.StatusReturn:
			return "return"
		}
	}
	switch status {
	case wire.StatusFulfilled:
		return "fulfilled"
	case wire.StatusRejected:
		return "rejected"
	}
	return fmt.Sprintf("status %d", status)
}

func excerpt(s string) string {
	if len(s) > previewLimit {
		return s[:previewLimit] + "…"
	}
	return s
}

// runTail prints one styled line per stream event.
func (c *CLI) runTail(r io.Reader) error {
	events := make(chan tailEvent)
	go readEvents(r, events)

	for ev := range events {
		switch {
		case ev.err != nil:
			printError("stream error: %v", ev.err)
			return ev.err
		case ev.head:
			printInfo("head %s %s", StyleNumber.Render(fmt.Sprintf("%d parts", ev.parts)), StyleDim.Render(ev.preview))
		default:
			status := StyleHighlight.Render(ev.status)
			if ev.status == "rejected" || ev.status == "error" {
				status = StyleWarning.Render(ev.status)
			}
			printInfo("channel %s %s %s %s",
				StyleNumber.Render(fmt.Sprintf("%d", ev.channel)),
				StyleDim.Render(ev.kind),
				status,
				StyleDim.Render(ev.preview))
		}
	}
	return nil
}

// runTailLive drives the interactive channel monitor.
func (c *CLI) runTailLive(r io.Reader) error {
	events := make(chan tailEvent)
	go readEvents(r, events)

	model := newTailModel(events)
	p := tea.NewProgram(model)
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	if m, ok := final.(tailModel); ok && m.err != nil {
		return m.err
	}
	return nil
}
