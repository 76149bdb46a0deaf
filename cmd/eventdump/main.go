package main

import (
	"bufio"
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"

	"github.com/aurora-is-near/stream-events/catalog"
	"github.com/aurora-is-near/stream-events/events"
	"github.com/aurora-is-near/stream-events/programlog"
)

var (
	program  = flag.String("program", "", "program name or base58 id (required unless -logs)")
	logsPath = flag.String("logs", "", "decode every event in a file of transaction log lines ('-' for stdin)")
	list     = flag.Bool("list", false, "list known programs and their events")
	strict   = flag.Bool("strict", false, "reject bytes left after the last field")
)

var config = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

func main() {
	flag.Parse()
	if err := run(os.Stdout, os.Stdin, flag.Args()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, stdin io.Reader, args []string) error {
	c := catalog.Default()

	if *list {
		listPrograms(w, c)
		return nil
	}

	if len(*logsPath) > 0 {
		in := stdin
		if *logsPath != "-" {
			f, err := os.Open(*logsPath)
			if err != nil {
				return fmt.Errorf("unable to open logs: %w", err)
			}
			defer f.Close()
			in = f
		}
		lines, err := readLines(in)
		if err != nil {
			return err
		}
		return dumpLogs(w, c, lines)
	}

	if len(*program) == 0 {
		return fmt.Errorf("-program must be specified")
	}
	p, err := c.Resolve(*program)
	if err != nil {
		return err
	}

	inputs := args
	if len(inputs) == 0 {
		if inputs, err = readLines(stdin); err != nil {
			return err
		}
	}
	for _, input := range inputs {
		if err := dump(w, p, input); err != nil {
			return err
		}
	}
	return nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); len(line) > 0 {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to read input: %w", err)
	}
	return lines, nil
}

// parseInput accepts 0x-prefixed hex, a "Program data: " log line or base64.
func parseInput(input string) ([]byte, error) {
	input = strings.TrimSpace(input)
	if data, ok, err := programlog.ParseDataLine(input); ok {
		return data, err
	}
	if strings.HasPrefix(input, "0x") || strings.HasPrefix(input, "0X") {
		data, err := hex.DecodeString(input[2:])
		if err != nil {
			return nil, fmt.Errorf("unable to decode hex input: %w", err)
		}
		return data, nil
	}
	data, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		return nil, fmt.Errorf("unable to decode input as base64: %w", err)
	}
	return data, nil
}

func decode(p *catalog.Program, data []byte) (events.Event, error) {
	d := events.Decoder{Registry: p.Registry, RejectTrailing: *strict}
	return d.Decode(data)
}

func dump(w io.Writer, p *catalog.Program, input string) error {
	data, err := parseInput(input)
	if err != nil {
		return err
	}
	ev, err := decode(p, data)
	if err != nil {
		_, _ = fmt.Fprintf(w, "%s: %v\n", p.Name, err)
		return nil
	}
	_, _ = fmt.Fprintf(w, "%s / %s\n", p.Name, ev.EventName())
	config.Fdump(w, ev)
	return nil
}

func dumpLogs(w io.Writer, c *catalog.Catalog, lines []string) error {
	emitted, err := programlog.ParseLogs(lines)
	if err != nil {
		return err
	}
	for _, e := range emitted {
		p, ok := c.Lookup(e.ProgramID)
		if !ok {
			_, _ = fmt.Fprintf(w, "line %d: %d bytes from unknown program %s\n", e.Line, len(e.Data), e.ProgramID)
			continue
		}
		ev, err := decode(p, e.Data)
		if err != nil {
			_, _ = fmt.Fprintf(w, "line %d: %s: %v\n", e.Line, p.Name, err)
			continue
		}
		_, _ = fmt.Fprintf(w, "line %d: %s / %s (depth %d)\n", e.Line, p.Name, ev.EventName(), e.Depth)
		config.Fdump(w, ev)
	}
	return nil
}

func listPrograms(w io.Writer, c *catalog.Catalog) {
	for _, p := range c.Programs() {
		_, _ = fmt.Fprintf(w, "%s (%s)\n", p.Name, p.ID)
		for _, rule := range p.Registry.Rules() {
			_, _ = fmt.Fprintf(w, "  %s %s\n", rule.Discriminator, rule.Name)
		}
	}
}
