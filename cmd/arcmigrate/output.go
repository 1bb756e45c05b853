package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"arcmigrate/internal/preflight"
)

type level int

const (
	levelInfo level = iota
	levelOK
	levelWarn
	levelError
)

var levelStyles = map[level]struct {
	tag   string
	color string
}{
	levelInfo:  {"INFO", "\x1b[36m"},
	levelOK:    {"OK", "\x1b[32m"},
	levelWarn:  {"WARN", "\x1b[33m"},
	levelError: {"ERROR", "\x1b[31m"},
}

const ansiReset = "\x1b[0m"

// printer writes the labelled "name: [TAG] detail" lines used by status
// and preflight. Colour is only used on a terminal.
type printer struct {
	out   io.Writer
	color bool
}

func newPrinter(out io.Writer) printer {
	color := false
	if file, ok := out.(*os.File); ok {
		fd := file.Fd()
		color = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return printer{out: out, color: color}
}

func (p printer) paint(color, text string) string {
	if !p.color || color == "" {
		return text
	}
	return color + text + ansiReset
}

func (p printer) header(title string) {
	title = strings.TrimSpace(title)
	fmt.Fprintln(p.out, p.paint(levelStyles[levelInfo].color, title))
	fmt.Fprintln(p.out, strings.Repeat("=", len([]rune(title))))
}

func (p printer) line(label string, lvl level, detail string) {
	style := levelStyles[lvl]
	text := fmt.Sprintf("  %-22s [%s]", label+":", style.tag)
	if detail != "" {
		text += " " + detail
	}
	fmt.Fprintln(p.out, p.paint(style.color, text))
}

// check prints a preflight result. A failed optional check is a warning.
func (p printer) check(result preflight.Result) {
	switch {
	case result.Passed:
		p.line(result.Name, levelOK, result.Detail)
	case result.Optional:
		p.line(result.Name, levelWarn, result.Detail)
	default:
		p.line(result.Name, levelError, result.Detail)
	}
}

// writeJSON prints v as indented JSON without HTML escaping, so paths
// containing & or < stay readable.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
