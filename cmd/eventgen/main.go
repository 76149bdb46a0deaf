package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aurora-is-near/stream-events/idl"
	"github.com/aurora-is-near/stream-events/util"
)

var (
	idlPath = flag.String("idl", "", "path to Anchor IDL json")
	pkg     = flag.String("package", "", "generated package name (default: IDL name)")
	name    = flag.String("name", "", "program display name (default: IDL name)")
	output  = flag.String("out", "", "output file (default: stdout)")
	cpi     = flag.Bool("cpi", false, "events are emitted through self-CPI (16-byte tags)")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(*idlPath) == 0 {
		return fmt.Errorf("-idl must be specified")
	}
	data, err := os.ReadFile(*idlPath)
	if err != nil {
		return fmt.Errorf("unable to read IDL: %w", err)
	}
	doc, err := idl.Parse(data)
	if err != nil {
		return fmt.Errorf("unable to parse IDL: %w", err)
	}

	opts := idl.GenerateOpts{
		Package:  *pkg,
		Name:     *name,
		CPI:      *cpi,
		Filename: "events.go",
	}
	if len(opts.Package) == 0 {
		opts.Package = strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(doc.Name))
	}
	if len(*output) > 0 {
		opts.Filename = filepath.Base(*output)
	}

	src, err := idl.Generate(doc, opts)
	if err != nil {
		return err
	}
	if len(*output) == 0 {
		_, err = os.Stdout.Write(src)
		return err
	}
	return util.WriteFileAtomically(*output, src)
}
