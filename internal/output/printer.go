// Package output formats CLI output: colored status lines and tables.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// ColorMode selects when output is colored.
type ColorMode int

const (
	// ColorAuto colors unless NO_COLOR is set or TERM is dumb.
	ColorAuto ColorMode = iota
	ColorAlways
	ColorNever
)

// ParseColorMode parses auto, always or never.
func ParseColorMode(s string) (ColorMode, error) {
	switch s {
	case "auto", "":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q: must be auto, always, or never", s)
	}
}

// ResolveColors reports whether mode turns colors on in this environment.
func ResolveColors(mode ColorMode) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		if _, ok := os.LookupEnv("NO_COLOR"); ok {
			return false
		}
		return os.Getenv("TERM") != "dumb"
	}
}

// Printer writes status lines to out and problems to err.
type Printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
}

func NewPrinter(out, err io.Writer, mode ColorMode) *Printer {
	return &Printer{out: out, err: err, useColors: ResolveColors(mode)}
}

// Out returns the writer for regular output.
func (p *Printer) Out() io.Writer { return p.out }

func (p *Printer) Success(format string, args ...any) {
	p.line(p.out, color.FgGreen, "✓ ", "[OK] ", format, args...)
}

func (p *Printer) Warning(format string, args ...any) {
	p.line(p.err, color.FgYellow, "⚠ ", "[WARN] ", format, args...)
}

func (p *Printer) Error(format string, args ...any) {
	p.line(p.err, color.FgRed, "✗ ", "[ERROR] ", format, args...)
}

func (p *Printer) Info(format string, args ...any) {
	if p.useColors {
		color.New(color.FgCyan).Fprintf(p.out, format+"\n", args...)
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Header prints an underlined section title.
func (p *Printer) Header(title string) {
	rule := strings.Repeat("─", len([]rune(title)))
	if p.useColors {
		color.New(color.FgWhite, color.Bold).Fprintf(p.out, "\n%s\n", title)
		color.New(color.FgWhite).Fprintf(p.out, "%s\n", rule)
		return
	}
	fmt.Fprintf(p.out, "\n%s\n%s\n", title, strings.Repeat("-", len([]rune(title))))
}

// Lifestyle returns a lifestyle name colored by how long it lives.
func (p *Printer) Lifestyle(l string) string {
	if !p.useColors {
		return l
	}
	switch l {
	case "singleton":
		return color.MagentaString(l)
	case "scoped":
		return color.BlueString(l)
	default:
		return l
	}
}

// Dim returns faint text.
func (p *Printer) Dim(text string) string {
	if p.useColors {
		return color.New(color.Faint).Sprint(text)
	}
	return text
}

func (p *Printer) line(w io.Writer, c color.Attribute, mark, plain, format string, args ...any) {
	if p.useColors {
		color.New(c).Fprintf(w, mark+format+"\n", args...)
		return
	}
	fmt.Fprintf(w, plain+format+"\n", args...)
}
