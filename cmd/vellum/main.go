// Package main is a thin command-line harness over the vellum editing
// core: open a file, apply a line-oriented script of edit commands, save.
// It exists to exercise Document end-to-end, not as an editor UI.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dshills/vellum"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	var doc *vellum.Document
	var err error
	if opts.Path != "" {
		doc, err = vellum.Open(opts.Path)
	} else {
		doc, err = vellum.New()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open: %v\n", err)
		return 1
	}
	defer doc.Close()

	script := os.Stdin
	if opts.ScriptPath != "" {
		f, err := os.Open(opts.ScriptPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open script: %v\n", err)
			return 1
		}
		defer f.Close()
		script = f
	}

	if err := runScript(doc, script); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if opts.SaveAs != "" {
		if err := doc.SaveAs(opts.SaveAs); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to save: %v\n", err)
			return 1
		}
	} else if opts.Path != "" {
		if err := doc.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to save: %v\n", err)
			return 1
		}
	}

	for i := 0; i < doc.GetLineCount(); i++ {
		line, ok := doc.GetLine(i)
		if !ok {
			break
		}
		fmt.Fprint(os.Stdout, line)
	}

	return 0
}

type options struct {
	Path       string
	ScriptPath string
	SaveAs     string
}

func parseFlags() options {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.ScriptPath, "script", "", "Path to an edit-command script (defaults to stdin)")
	flag.StringVar(&opts.SaveAs, "o", "", "Save the result to this path instead of the input path")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "vellum - scriptable text-editing core\n\n")
		fmt.Fprintf(os.Stderr, "Usage: vellum [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nScript commands (one per line, tab-separated):\n")
		fmt.Fprintf(os.Stderr, "  cursor ROW COL\n")
		fmt.Fprintf(os.Stderr, "  insert TEXT\n")
		fmt.Fprintf(os.Stderr, "  backspace\n")
		fmt.Fprintf(os.Stderr, "  delete\n")
		fmt.Fprintf(os.Stderr, "  undo\n")
		fmt.Fprintf(os.Stderr, "  redo\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("vellum %s (%s)\n", version, commit)
		os.Exit(0)
	}

	if flag.NArg() > 0 {
		opts.Path = flag.Arg(0)
	}

	return opts
}

// runScript reads one edit command per line from r and applies each to
// doc in order. Unknown commands and malformed arguments are reported as
// errors rather than silently skipped.
func runScript(doc *vellum.Document, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := applyCommand(doc, line); err != nil {
			return fmt.Errorf("command %q: %w", line, err)
		}
	}
	return scanner.Err()
}

func applyCommand(doc *vellum.Document, line string) error {
	fields := strings.SplitN(line, "\t", 2)
	cmd := fields[0]

	switch cmd {
	case "cursor":
		if len(fields) < 2 {
			return fmt.Errorf("cursor requires ROW\\tCOL")
		}
		parts := strings.SplitN(fields[1], "\t", 2)
		if len(parts) != 2 {
			return fmt.Errorf("cursor requires ROW\\tCOL")
		}
		row, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid row: %w", err)
		}
		col, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid column: %w", err)
		}
		doc.SetCursor(vellum.Cursor{
			Anchor: vellum.Position{Row: uint32(row), Column: uint32(col)},
			Head:   vellum.Position{Row: uint32(row), Column: uint32(col)},
		})
		return nil
	case "insert":
		if len(fields) < 2 {
			return fmt.Errorf("insert requires TEXT")
		}
		return doc.Insert(fields[1])
	case "backspace":
		return doc.Delete(true)
	case "delete":
		return doc.Delete(false)
	case "undo":
		return doc.Undo()
	case "redo":
		return doc.Redo()
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}
