package main

import (
	"fmt"

	"github.com/spf13/pflag"
)

// cliFlags holds parsed command-line options.
type cliFlags struct {
	input        string // positional: markdown file ("" or "-" = stdin)
	output       string
	configPath   string
	template     string
	pageSize     string
	orientation  string
	margin       float64
	headerFooter bool
	deadlineMs   int
	maxEngines   int
	execPath     string
	remoteURL    string
	verbose      bool
	version      bool
}

const usageText = `Usage: mdpress [flags] [input.md]

Converts Markdown to a styled, paginated PDF. Reads stdin when no
input file is given.

Flags:
`

// parseFlags parses args (without the program name).
func parseFlags(args []string) (*cliFlags, error) {
	f := &cliFlags{}
	fs := pflag.NewFlagSet("mdpress", pflag.ContinueOnError)

	fs.StringVarP(&f.output, "output", "o", "output.pdf", "output PDF path")
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	fs.StringVarP(&f.template, "template", "t", "", "style template: document, clean, academic")
	fs.StringVar(&f.pageSize, "page-size", "", "page size: letter, a4, legal")
	fs.StringVar(&f.orientation, "orientation", "", "portrait or landscape")
	fs.Float64Var(&f.margin, "margin", 0, "page margin in inches")
	fs.BoolVar(&f.headerFooter, "header-footer", false, "render page numbers in the footer")
	fs.IntVar(&f.deadlineMs, "deadline-ms", 0, "overall conversion budget in milliseconds")
	fs.IntVar(&f.maxEngines, "max-engines", 0, "concurrent browser engines (0 = auto)")
	fs.StringVar(&f.execPath, "exec-path", "", "packaged renderer binary for the constrained tier")
	fs.StringVar(&f.remoteURL, "remote-url", "", "remote render service endpoint")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "verbose logging")
	fs.BoolVar(&f.version, "version", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usageText)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	rest := fs.Args()
	switch len(rest) {
	case 0:
	case 1:
		f.input = rest[0]
	default:
		return nil, fmt.Errorf("expected at most one input file, got %d", len(rest))
	}
	return f, nil
}
