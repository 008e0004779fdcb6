// Package format regenerates canonical query source from a typed tree.
package format

import (
	"bytes"
	"strings"

	"github.com/leapstack-labs/qsql/pkg/token"
)

const indentSize = 2

// Printer handles source formatting with proper indentation and style.
//
// Text that should only appear when something follows it, such as a clause
// header, is pushed on the prefix stack. Pending prefixes are written in
// stack order just before the next piece of text; a prefix that is popped
// without anything having been written is dropped.
type Printer struct {
	output      *bytes.Buffer
	depth       int
	atLineStart bool

	prefixes []*prefix
	flushing bool
}

type prefix struct {
	emit    func()
	written bool
}

func newPrinter() *Printer {
	return &Printer{
		output:      &bytes.Buffer{},
		atLineStart: true,
	}
}

// String returns the formatted output.
func (p *Printer) String() string {
	return strings.TrimRight(p.output.String(), "\n") + "\n"
}

func (p *Printer) write(s string) {
	if s == "" {
		return
	}
	p.flushPrefixes()
	if p.atLineStart && s[0] != '\n' {
		p.writeIndent()
	}
	p.output.WriteString(s)
	p.atLineStart = false
}

func (p *Printer) writeln() {
	p.output.WriteByte('\n')
	p.atLineStart = true
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.depth*indentSize; i++ {
		p.output.WriteByte(' ')
	}
	p.atLineStart = false
}

func (p *Printer) keyword(s string) {
	p.write(strings.ToUpper(s))
}

func (p *Printer) indent() {
	p.depth++
}

func (p *Printer) dedent() {
	if p.depth > 0 {
		p.depth--
	}
}

func (p *Printer) space() {
	p.output.WriteByte(' ')
}

// kw prints keywords by token type, separated by spaces.
func (p *Printer) kw(tokens ...token.TokenType) {
	for i, t := range tokens {
		if i > 0 {
			p.space()
		}
		p.write(t.String())
	}
}

// pushPrefix defers emit until the next write.
func (p *Printer) pushPrefix(emit func()) {
	p.prefixes = append(p.prefixes, &prefix{emit: emit})
}

// popPrefix removes the innermost prefix and reports whether it was written.
func (p *Printer) popPrefix() bool {
	top := p.prefixes[len(p.prefixes)-1]
	p.prefixes = p.prefixes[:len(p.prefixes)-1]
	return top.written
}

func (p *Printer) flushPrefixes() {
	if p.flushing {
		return
	}
	p.flushing = true
	for _, pre := range p.prefixes {
		if !pre.written {
			pre.written = true
			pre.emit()
		}
	}
	p.flushing = false
}

// clause prints a header line followed by an indented body. Nothing is
// printed when the body writes nothing.
func (p *Printer) clause(body func(), header ...token.TokenType) {
	p.pushPrefix(func() {
		p.kw(header...)
		p.writeln()
		p.indent()
	})
	body()
	if p.popPrefix() {
		p.dedent()
		p.writeln()
	}
}

// formatList prints a list of items with separators.
// count is the number of items, format is called for each index,
// sep is the separator string, multiline adds newlines after separators.
func (p *Printer) formatList(count int, format func(i int), sep string, multiline bool) {
	for i := 0; i < count; i++ {
		format(i)
		if i < count-1 {
			p.write(sep)
			if multiline {
				p.writeln()
			}
		}
	}
}
