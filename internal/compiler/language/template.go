package language

import (
	"strings"

	"github.com/google/shlex"

	appErr "polyjudge/pkg/errors"
)

// Placeholder names one substitution slot of a command template.
type Placeholder string

const (
	PlaceholderFile    Placeholder = "file"
	PlaceholderInfile  Placeholder = "infile"
	PlaceholderOutfile Placeholder = "outfile"
)

var (
	// ExecPlaceholders are the slots allowed in exec_cmd.
	ExecPlaceholders = []Placeholder{PlaceholderFile}
	// CompilePlaceholders are the slots allowed in compile_args.
	CompilePlaceholders = []Placeholder{PlaceholderInfile, PlaceholderOutfile}
)

// Template is a parsed command template.
//
// The raw string is split into shell-style words first and placeholders are
// substituted inside each word afterwards, so a value containing whitespace
// or quotes always stays a single argument. Braces are written as "{{" and
// "}}" when they are meant literally. Nothing else is interpreted.
type Template struct {
	raw   string
	words [][]segment
}

type segment struct {
	literal string
	slot    Placeholder
}

// ParseTemplate parses raw against a closed set of allowed placeholders.
func ParseTemplate(raw string, allowed ...Placeholder) (Template, error) {
	fields, err := shlex.Split(raw)
	if err != nil {
		return Template{}, appErr.Wrapf(err, appErr.TemplateInvalid, "parse command template %q failed", raw)
	}
	words := make([][]segment, 0, len(fields))
	for _, field := range fields {
		segs, err := parseWord(field, allowed)
		if err != nil {
			return Template{}, err.WithDetail("template", raw)
		}
		words = append(words, segs)
	}
	return Template{raw: raw, words: words}, nil
}

func parseWord(word string, allowed []Placeholder) ([]segment, *appErr.Error) {
	var (
		segs []segment
		lit  strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{literal: lit.String()})
			lit.Reset()
		}
	}
	for i := 0; i < len(word); i++ {
		switch c := word[i]; c {
		case '{':
			if i+1 < len(word) && word[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(word[i+1:], '}')
			if end < 0 {
				return nil, appErr.Newf(appErr.TemplateInvalid, "unterminated placeholder in %q", word)
			}
			name := Placeholder(strings.TrimSpace(word[i+1 : i+1+end]))
			if !containsPlaceholder(allowed, name) {
				return nil, appErr.Newf(appErr.TemplateInvalid, "unknown placeholder {%s}", name).
					WithDetail("allowed", allowed)
			}
			flush()
			segs = append(segs, segment{slot: name})
			i += end + 1
		case '}':
			if i+1 < len(word) && word[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, appErr.Newf(appErr.TemplateInvalid, "unmatched '}' in %q", word)
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return segs, nil
}

func containsPlaceholder(set []Placeholder, p Placeholder) bool {
	for _, candidate := range set {
		if candidate == p {
			return true
		}
	}
	return false
}

// Render substitutes values into the template and returns one string per argument.
func (t Template) Render(values map[Placeholder]string) ([]string, error) {
	args := make([]string, 0, len(t.words))
	for _, segs := range t.words {
		var b strings.Builder
		for _, seg := range segs {
			if seg.slot == "" {
				b.WriteString(seg.literal)
				continue
			}
			v, ok := values[seg.slot]
			if !ok {
				return nil, appErr.Newf(appErr.TemplateInvalid, "no value for placeholder {%s}", seg.slot).
					WithDetail("template", t.raw)
			}
			b.WriteString(v)
		}
		args = append(args, b.String())
	}
	return args, nil
}

// Placeholders lists the slots referenced by the template, in order of first use.
func (t Template) Placeholders() []Placeholder {
	var out []Placeholder
	for _, segs := range t.words {
		for _, seg := range segs {
			if seg.slot != "" && !containsPlaceholder(out, seg.slot) {
				out = append(out, seg.slot)
			}
		}
	}
	return out
}

// Empty reports whether the template renders to no arguments.
func (t Template) Empty() bool {
	return len(t.words) == 0
}

func (t Template) String() string {
	return t.raw
}
