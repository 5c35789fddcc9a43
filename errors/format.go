package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Formatter renders compile errors with source context and optional colors.
// This is strictly a convenience for callers: the compiler itself never
// writes to a terminal.
type Formatter struct {
	// UseColor enables ANSI color codes in output.
	UseColor bool
}

// NewFormatter creates a new error formatter.
func NewFormatter(useColor bool) *Formatter {
	return &Formatter{UseColor: useColor}
}

// Colors used for error formatting
var (
	colorError    = color.New(color.FgRed)
	colorErrorHdr = color.New(color.FgRed, color.Bold)
	colorLocation = color.New(color.FgCyan)
	colorLineNum  = color.New(color.FgHiBlack)
	colorPipe     = color.New(color.FgHiBlack)
	colorCaret    = color.New(color.FgHiRed)
	colorNote     = color.New(color.FgHiBlue)
)

// FormattedError represents an error ready for display.
type FormattedError struct {
	Kind        string // "lex error", "parse error", etc.
	Message     string
	Filename    string
	Line        int
	Column      int
	EndColumn   int               // For multi-character underlines
	SourceLines []SourceLineEntry // Lines of source context
	Note        string            // Additional context
}

// SourceLineEntry represents a line of source code with its number.
type SourceLineEntry struct {
	Number int
	Text   string
	IsMain bool // True if this is the line with the error
}

// Format formats the error as a string using a consistent Rust-like style.
func (f *Formatter) Format(err *FormattedError) string {
	return f.FormatWithPrefix(err, "")
}

// FormatWithPrefix formats the error with an optional prefix like "[1/5]".
func (f *Formatter) FormatWithPrefix(err *FormattedError, prefix string) string {
	var b strings.Builder

	lineNumWidth := 2
	if err.Line >= 100 {
		lineNumWidth = len(fmt.Sprintf("%d", err.Line))
	}

	f.writeHeader(&b, err, prefix)
	f.writeLocation(&b, err, lineNumWidth)
	f.writeSource(&b, err, lineNumWidth)
	if err.Note != "" {
		f.writeNote(&b, err.Note, lineNumWidth)
	}
	return b.String()
}

func (f *Formatter) paint(c *color.Color, s string) string {
	if f.UseColor {
		return c.Sprint(s)
	}
	return s
}

func (f *Formatter) writeHeader(b *strings.Builder, err *FormattedError, prefix string) {
	label := "error"
	if err.Kind != "" && err.Kind != "error" {
		label = err.Kind
	}
	b.WriteString(f.paint(colorErrorHdr, label))
	if prefix != "" {
		b.WriteString(f.paint(colorLineNum, fmt.Sprintf("[%s]", prefix)))
	}
	b.WriteString(f.paint(colorError, ": "))
	b.WriteString(err.Message)
	b.WriteString("\n")
}

func (f *Formatter) writeLocation(b *strings.Builder, err *FormattedError, lineNumWidth int) {
	if err.Line == 0 && err.Filename == "" {
		return
	}
	padding := strings.Repeat(" ", lineNumWidth)
	b.WriteString(padding)
	b.WriteString(f.paint(colorLocation, "--> "))

	loc := ""
	if err.Filename != "" {
		loc = err.Filename
		if err.Line > 0 {
			loc += fmt.Sprintf(":%d:%d", err.Line, err.Column)
		}
	} else if err.Line > 0 {
		loc = fmt.Sprintf("%d:%d", err.Line, err.Column)
	}
	b.WriteString(f.paint(colorLocation, loc))
	b.WriteString("\n")
}

func (f *Formatter) writeSource(b *strings.Builder, err *FormattedError, lineNumWidth int) {
	if len(err.SourceLines) == 0 {
		return
	}
	padding := strings.Repeat(" ", lineNumWidth)

	b.WriteString(padding)
	b.WriteString(f.paint(colorPipe, " |\n"))

	for _, line := range err.SourceLines {
		lineNumStr := fmt.Sprintf("%*d", lineNumWidth, line.Number)
		b.WriteString(f.paint(colorLineNum, lineNumStr))
		b.WriteString(f.paint(colorPipe, " | "))
		b.WriteString(line.Text)
		b.WriteString("\n")

		if line.IsMain && err.Column > 0 {
			b.WriteString(padding)
			b.WriteString(f.paint(colorPipe, " | "))
			b.WriteString(strings.Repeat(" ", err.Column-1))
			caretLen := 1
			if err.EndColumn > err.Column {
				caretLen = err.EndColumn - err.Column + 1
			}
			b.WriteString(f.paint(colorCaret, strings.Repeat("^", caretLen)))
			b.WriteString("\n")
		}
	}
}

func (f *Formatter) writeNote(b *strings.Builder, note string, lineNumWidth int) {
	padding := strings.Repeat(" ", lineNumWidth)
	b.WriteString(padding)
	b.WriteString(f.paint(colorPipe, " = "))
	b.WriteString(f.paint(colorNote, "note: "))
	b.WriteString(note)
	b.WriteString("\n")
}

// FormatMultiple formats multiple errors with consistent styling.
func (f *Formatter) FormatMultiple(errs []*FormattedError) string {
	if len(errs) == 0 {
		return ""
	}
	if len(errs) == 1 {
		return f.Format(errs[0])
	}
	var b strings.Builder
	total := len(errs)
	for i, err := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		prefix := fmt.Sprintf("%d/%d", i+1, total)
		b.WriteString(f.FormatWithPrefix(err, prefix))
	}
	b.WriteString("\n")
	b.WriteString(f.paint(colorErrorHdr, fmt.Sprintf("found %d errors", total)))
	b.WriteString("\n")
	return b.String()
}
