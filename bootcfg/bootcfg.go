// Package bootcfg reads and writes Raspberry Pi firmware boot
// configuration files (the config.txt dialect). The format is a flat
// list of key=value directives with #-comments, blank lines and
// conditional-section markers such as [all]. The firmware interprets
// every value; this package only preserves and addresses them.
package bootcfg

import (
	"errors"
	"fmt"
	"strings"
)

type lineKind int

const (
	lineBlank lineKind = iota
	lineComment
	lineSection
	lineDirective
)

// line is a single physical line of the file. The raw text is kept
// verbatim so an unmutated document encodes back to the exact input.
type line struct {
	raw      string
	kind     lineKind
	key      string
	value    string
	hasValue bool
	section  string
}

// Directive is a parsed configuration entry. Values are opaque
// compound strings, e.g. dtparam=i2c_arm_baudrate=400000 has key
// "dtparam" and value "i2c_arm_baudrate=400000".
type Directive struct {
	Key      string
	Value    string
	HasValue bool // false for bare flag directives
	Section  string
	Line     int // 1-based line number in the source
}

// Document is an ordered boot configuration file. Duplicate keys are
// kept; firmware applies the last occurrence, which Lookup mirrors.
type Document struct {
	lines           []line
	trailingNewline bool
}

// Parse reads a boot configuration. It is lenient the way firmware is:
// every line is recorded, nothing is rejected. Use Check or ParseStrict
// for the structural findings a careful caller wants surfaced.
func Parse(data []byte) *Document {
	doc := &Document{}
	if len(data) == 0 {
		return doc
	}
	text := string(data)
	rows := strings.Split(text, "\n")
	if rows[len(rows)-1] == "" {
		rows = rows[:len(rows)-1]
		doc.trailingNewline = true
	}
	section := ""
	for _, raw := range rows {
		l := classify(raw, section)
		if l.kind == lineSection {
			section = l.section
		}
		doc.lines = append(doc.lines, l)
	}
	return doc
}

// ParseStrict parses like Parse and additionally fails when the
// document has structural problems (see Check).
func ParseStrict(data []byte) (*Document, error) {
	doc := Parse(data)
	problems := doc.Check()
	if len(problems) == 0 {
		return doc, nil
	}
	errs := make([]error, len(problems))
	for i, p := range problems {
		errs[i] = p
	}
	return doc, errors.Join(errs...)
}

func classify(raw, section string) line {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "":
		return line{raw: raw, kind: lineBlank, section: section}
	case strings.HasPrefix(trimmed, "#"):
		return line{raw: raw, kind: lineComment, section: section}
	case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
		name := strings.TrimSuffix(strings.TrimPrefix(trimmed, "["), "]")
		return line{raw: raw, kind: lineSection, section: name}
	}
	l := line{raw: raw, kind: lineDirective, section: section}
	if i := strings.IndexByte(trimmed, '='); i >= 0 {
		l.key = strings.TrimSpace(trimmed[:i])
		l.value = trimmed[i+1:]
		l.hasValue = true
	} else {
		l.key = trimmed
	}
	return l
}

// Problem is a structural finding in a parsed document.
type Problem struct {
	Line    int
	Message string
}

func (p Problem) Error() string {
	return fmt.Sprintf("line %d: %s", p.Line, p.Message)
}

// Check reports structural problems: an [all] marker appearing more
// than once, a section marker sharing its line with other text, and
// directives with an empty key. Firmware would silently tolerate all
// of these, so Parse records them and Check only reports.
func (d *Document) Check() []Problem {
	var problems []Problem
	allSeen := false
	for i, l := range d.lines {
		n := i + 1
		switch l.kind {
		case lineSection:
			if l.section == "all" {
				if allSeen {
					problems = append(problems, Problem{Line: n, Message: "duplicate [all] section marker"})
				}
				allSeen = true
			}
		case lineDirective:
			trimmed := strings.TrimSpace(l.raw)
			if strings.HasPrefix(trimmed, "[") {
				problems = append(problems, Problem{Line: n, Message: "section marker must be alone on its line"})
			} else if l.key == "" {
				problems = append(problems, Problem{Line: n, Message: "directive has an empty key"})
			}
		}
	}
	return problems
}

// Directives returns every directive in file order with its section
// attribution. Directives before the first marker carry section "".
func (d *Document) Directives() []Directive {
	var out []Directive
	for i, l := range d.lines {
		if l.kind != lineDirective {
			continue
		}
		out = append(out, Directive{
			Key:      l.key,
			Value:    l.value,
			HasValue: l.hasValue,
			Section:  l.section,
			Line:     i + 1,
		})
	}
	return out
}

// Section returns the directives belonging to the named section, in
// file order. The default (pre-marker) section is named "".
func (d *Document) Section(name string) []Directive {
	var out []Directive
	for _, dir := range d.Directives() {
		if dir.Section == name {
			out = append(out, dir)
		}
	}
	return out
}

// Lookup returns the value of the last directive with the given key,
// matching the firmware's later-overrides-earlier rule. Bare flags
// report an empty value with ok true.
func (d *Document) Lookup(key string) (value string, ok bool) {
	for i := len(d.lines) - 1; i >= 0; i-- {
		l := d.lines[i]
		if l.kind == lineDirective && l.key == key {
			return l.value, true
		}
	}
	return "", false
}

// LookupAll returns every directive with the given key in file order.
// Keys like dtoverlay and dtparam legitimately repeat.
func (d *Document) LookupAll(key string) []Directive {
	var out []Directive
	for _, dir := range d.Directives() {
		if dir.Key == key {
			out = append(out, dir)
		}
	}
	return out
}

// Flag reports whether the key is present as a bare flag or carries
// the firmware truthy value "1".
func (d *Document) Flag(key string) bool {
	for i := len(d.lines) - 1; i >= 0; i-- {
		l := d.lines[i]
		if l.kind == lineDirective && l.key == key {
			return !l.hasValue || l.value == "1"
		}
	}
	return false
}

// Set updates the last directive with the given key in place, or
// appends a new key=value line to the end of the document. Comments
// and every other line are left untouched.
func (d *Document) Set(key, value string) {
	for i := len(d.lines) - 1; i >= 0; i-- {
		if d.lines[i].kind == lineDirective && d.lines[i].key == key {
			d.lines[i].raw = key + "=" + value
			d.lines[i].value = value
			d.lines[i].hasValue = true
			return
		}
	}
	d.append(line{
		raw:      key + "=" + value,
		kind:     lineDirective,
		key:      key,
		value:    value,
		hasValue: true,
	})
}

// SetFlag ensures the key is present as a bare flag directive.
func (d *Document) SetFlag(key string) {
	for i := len(d.lines) - 1; i >= 0; i-- {
		if d.lines[i].kind == lineDirective && d.lines[i].key == key {
			d.lines[i].raw = key
			d.lines[i].value = ""
			d.lines[i].hasValue = false
			return
		}
	}
	d.append(line{raw: key, kind: lineDirective, key: key})
}

func (d *Document) append(l line) {
	l.section = d.lastSection()
	d.lines = append(d.lines, l)
	// Appending to a file that ended without a newline would glue two
	// directives together on re-read.
	d.trailingNewline = true
}

func (d *Document) lastSection() string {
	if len(d.lines) == 0 {
		return ""
	}
	return d.lines[len(d.lines)-1].section
}

// Delete removes every directive with the given key and returns how
// many lines were removed.
func (d *Document) Delete(key string) int {
	kept := d.lines[:0]
	removed := 0
	for _, l := range d.lines {
		if l.kind == lineDirective && l.key == key {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	d.lines = kept
	return removed
}

// Encode serializes the document. An unmutated document encodes to the
// exact bytes it was parsed from.
func (d *Document) Encode() []byte {
	if len(d.lines) == 0 {
		return nil
	}
	var b strings.Builder
	for i, l := range d.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.raw)
	}
	if d.trailingNewline {
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func (d *Document) String() string {
	return string(d.Encode())
}
